package rimage

import (
	"context"
	"encoding/base64"
	"image"
	"strings"

	"github.com/pkg/errors"
)

// DataURLPrefix is the prefix every embedded image string must start with.
const DataURLPrefix = "data:image/"

const base64Marker = ";base64,"

// ErrNotImageDataURL is returned for strings that are not base64 image data URLs.
var ErrNotImageDataURL = errors.New("not a base64 image data URL")

// DataURL is an image embedded in a data URL.
type DataURL struct {
	MimeType string
	Data     []byte
}

// ParseDataURL decodes a "data:image/<type>;base64,<payload>" string.
func ParseDataURL(s string) (*DataURL, error) {
	if !strings.HasPrefix(s, DataURLPrefix) {
		return nil, ErrNotImageDataURL
	}
	header, payload, found := strings.Cut(s, ",")
	if !found || !strings.HasSuffix(header+",", base64Marker) {
		return nil, ErrNotImageDataURL
	}
	mimeType := strings.TrimPrefix(header, "data:")
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); err != nil {
			return nil, errors.Wrap(err, "invalid base64 image payload")
		}
	}
	if len(data) == 0 {
		return nil, errors.Wrap(ErrNotImageDataURL, "empty image payload")
	}
	return &DataURL{MimeType: mimeType, Data: data}, nil
}

// String renders the data URL.
func (d DataURL) String() string {
	return "data:" + d.MimeType + base64Marker + base64.StdEncoding.EncodeToString(d.Data)
}

// EncodeDataURL encodes img with the given mime type and wraps it as a data URL.
func EncodeDataURL(ctx context.Context, img image.Image, mimeType string) (string, error) {
	data, err := EncodeImage(ctx, img, mimeType)
	if err != nil {
		return "", err
	}
	if mimeType == "" {
		mimeType = DetectMIMEType(data)
	}
	return DataURL{MimeType: mimeType, Data: data}.String(), nil
}
