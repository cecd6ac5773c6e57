package roi

import (
	"image"
	"math"
	"testing"

	"go.viam.com/test"
)

func TestPixelRect(t *testing.T) {
	for _, tc := range []struct {
		name     string
		rect     Rect
		w, h     int
		expected image.Rectangle
	}{
		{"whole frame", Rect{0, 0, 1, 1}, 640, 480, image.Rect(0, 0, 640, 480)},
		{"rounds", Rect{0.1, 0.25, 0.333, 0.5}, 1280, 720, image.Rect(128, 180, 128+426, 180+360)},
		{"half rounds up", Rect{0.5, 0.5, 0.25, 0.25}, 3, 3, image.Rect(2, 2, 3, 3)},
		{"min one pixel", Rect{0.5, 0.5, 0.1, 0.1}, 2, 2, image.Rect(1, 1, 2, 2)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.rect.PixelRect(tc.w, tc.h)
			test.That(t, got, test.ShouldResemble, tc.expected)
			test.That(t, got.Min.X, test.ShouldEqual, int(math.Round(tc.rect.X*float64(tc.w))))
			test.That(t, got.Dx(), test.ShouldEqual, int(math.Max(1, math.Round(tc.rect.Width*float64(tc.w)))))
		})
	}
}

func TestSanitize(t *testing.T) {
	r := Rect{X: -0.2, Y: 0.95, Width: 0.05, Height: 2}.Sanitize()
	test.That(t, r.Valid(), test.ShouldBeTrue)
	test.That(t, r.X, test.ShouldEqual, 0.)
	test.That(t, r.Width, test.ShouldEqual, MinSize)
	test.That(t, r.Height, test.ShouldEqual, 1.)
	test.That(t, r.Y, test.ShouldEqual, 0.)

	r = Rect{X: math.NaN(), Y: 0.5, Width: 0.3, Height: 0.3}.Sanitize()
	test.That(t, r.Valid(), test.ShouldBeTrue)
	test.That(t, r.X, test.ShouldEqual, 0.)
	test.That(t, DefaultRect.Valid(), test.ShouldBeTrue)
}

func TestToFrame(t *testing.T) {
	r := Rect{X: 0.2, Y: 0.4, Width: 0.5, Height: 0.5}
	x, y := r.ToFrame(0.5, 0.5)
	test.That(t, x, test.ShouldAlmostEqual, 0.45)
	test.That(t, y, test.ShouldAlmostEqual, 0.65)
	x, y = r.ToFrame(3, -1)
	test.That(t, x, test.ShouldAlmostEqual, 0.7)
	test.That(t, y, test.ShouldAlmostEqual, 0.4)
}

func TestParseHandle(t *testing.T) {
	for _, h := range Handles {
		parsed, err := ParseHandle(h.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, h)
	}
	_, err := ParseHandle("middle")
	test.That(t, err, test.ShouldNotBeNil)
}
