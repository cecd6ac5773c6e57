package rimage

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// Crop copies the sub-region r of img into a new bitmap whose origin is (0,0). r is given
// relative to the image's top-left corner.
func Crop(ctx context.Context, img image.Image, r image.Rectangle) (*image.NRGBA, error) {
	_, span := trace.StartSpan(ctx, "rimage::Crop")
	defer span.End()

	window := r.Add(img.Bounds().Min)
	newImg := imaging.Crop(img, window)
	if newImg.Bounds().Empty() {
		return nil, errors.Errorf("crop %v of %v image cropped to 0 pixels", r, img.Bounds().Size())
	}
	return newImg, nil
}

// Fit shrinks img so that neither side exceeds maxEdge, keeping the aspect ratio. Images that
// already fit, or a non-positive maxEdge, are returned unchanged.
func Fit(img image.Image, maxEdge int) image.Image {
	if maxEdge <= 0 {
		return img
	}
	size := img.Bounds().Size()
	if size.X <= maxEdge && size.Y <= maxEdge {
		return img
	}
	return resize.Thumbnail(uint(maxEdge), uint(maxEdge), img, resize.Bilinear)
}
