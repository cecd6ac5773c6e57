package rimage

import (
	"bytes"
	"context"
	"image"
	_ "image/gif" // register gif decoder
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	_ "golang.org/x/image/bmp"  // register bmp decoder
	_ "golang.org/x/image/webp" // register webp decoder

	"github.com/invscan/autocount/utils"
)

// JPEGQuality is the quality used when encoding captured frames and crops.
const JPEGQuality = 90

// DetectMIMEType sniffs the image type from its header bytes.
func DetectMIMEType(data []byte) string {
	detected := http.DetectContentType(data)
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	return detected
}

// DecodeImage decodes image bytes. The mime type is a hint; the header bytes decide.
func DecodeImage(ctx context.Context, data []byte, mimeType string) (image.Image, error) {
	_, span := trace.StartSpan(ctx, "rimage::DecodeImage")
	defer span.End()

	if len(data) == 0 {
		return nil, errors.New("cannot decode empty image bytes")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode image (hint %q)", mimeType)
	}
	span.AddAttributes(trace.StringAttribute("format", format))
	return img, nil
}

// EncodeImage encodes img as JPEG or PNG. An empty mime type means JPEG.
func EncodeImage(ctx context.Context, img image.Image, mimeType string) ([]byte, error) {
	_, span := trace.StartSpan(ctx, "rimage::EncodeImage")
	defer span.End()

	if img == nil {
		return nil, errors.New("cannot encode nil image")
	}
	var buf bytes.Buffer
	switch mimeType {
	case utils.MimeTypeJPEG, "":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, errors.Wrap(err, "could not encode jpeg")
		}
	case utils.MimeTypePNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, errors.Wrap(err, "could not encode png")
		}
	default:
		return nil, errors.Errorf("do not know how to encode %q", mimeType)
	}
	return buf.Bytes(), nil
}

// DecodeDimensions reads only the image header and returns its pixel size.
func DecodeDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, errors.Wrap(err, "could not read image dimensions")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, errors.Errorf("image reports empty dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}
