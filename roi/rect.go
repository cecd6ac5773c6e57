// Package roi implements the normalized region-of-interest rectangle edited over a frozen camera
// frame, and the drag protocol that mutates it.
package roi

import (
	"fmt"
	"image"
	"math"

	"github.com/invscan/autocount/utils"
)

// MinSize is the smallest width or height a Rect may have, in normalized units.
const MinSize = 0.1

// epsilon absorbs float rounding when checking bounds.
const epsilon = 1e-9

// Rect is a rectangle in normalized coordinates relative to a captured frame.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultRect is the rectangle shown when a frame is first frozen.
var DefaultRect = Rect{X: 0.15, Y: 0.15, Width: 0.7, Height: 0.7}

// Right returns the normalized x of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the normalized y of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

func (r Rect) String() string {
	return fmt.Sprintf("roi(x=%.4f y=%.4f w=%.4f h=%.4f)", r.X, r.Y, r.Width, r.Height)
}

// Valid reports whether r satisfies every rectangle invariant.
func (r Rect) Valid() bool {
	return r.X >= -epsilon && r.Y >= -epsilon &&
		r.Right() <= 1+epsilon && r.Bottom() <= 1+epsilon &&
		r.Width >= MinSize-epsilon && r.Height >= MinSize-epsilon
}

// Sanitize returns the closest valid rectangle to r. It is used on rectangles coming from
// outside the drag protocol (saved presets, CLI flags).
func (r Rect) Sanitize() Rect {
	w := utils.Clamp(nanToZero(r.Width), MinSize, 1)
	h := utils.Clamp(nanToZero(r.Height), MinSize, 1)
	return Rect{
		X:      utils.Clamp(nanToZero(r.X), 0, 1-w),
		Y:      utils.Clamp(nanToZero(r.Y), 0, 1-h),
		Width:  w,
		Height: h,
	}
}

// PixelRect converts r to a pixel crop rectangle inside a frame of the given size:
// (round(xW), round(yH)) sized max(1, round(wW)) by max(1, round(hH)).
func (r Rect) PixelRect(frameWidth, frameHeight int) image.Rectangle {
	fw, fh := float64(frameWidth), float64(frameHeight)
	x := utils.RoundInt(r.X * fw)
	y := utils.RoundInt(r.Y * fh)
	w := utils.MaxInt(1, utils.RoundInt(r.Width*fw))
	h := utils.MaxInt(1, utils.RoundInt(r.Height*fh))
	return image.Rect(x, y, x+w, y+h)
}

// ToFrame maps a point given relative to r (each axis in [0,1]) to normalized frame coordinates.
func (r Rect) ToFrame(u, v float64) (float64, float64) {
	return r.X + utils.Clamp01(u)*r.Width, r.Y + utils.Clamp01(v)*r.Height
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
