package rimage

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/gofont/goregular"
)

var font *truetype.Font

// init sets up the fonts we want to use.
func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Font returns the font we use for drawing.
func Font() *truetype.Font {
	return font
}

// DrawString writes a string to the given context at a particular point.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(Font(), &truetype.Options{Size: size}))
	dc.SetColor(c)
	dc.DrawString(text, float64(p.X), float64(p.Y))
}

// DrawRectangleEmpty draws the outline of r into the context.
func DrawRectangleEmpty(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}

// Marker is a labeled point drawn on top of an image.
type Marker struct {
	Center image.Point
	Label  string
}

// MarkerColors returns n evenly spaced, saturated hues so neighbouring markers are distinguishable.
func MarkerColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := range colors {
		colors[i] = colorful.Hsv(float64(i)*360/float64(max(n, 1)), 0.8, 0.95)
	}
	return colors
}

// DrawMarkers returns a copy of img with box outlined and every marker drawn as a filled dot with
// its label. The marker radius scales with the box so small crops stay readable.
func DrawMarkers(img image.Image, box image.Rectangle, markers []Marker) image.Image {
	dc := gg.NewContextForImage(img)
	lineWidth := max(2, float64(min(img.Bounds().Dx(), img.Bounds().Dy()))/200)
	DrawRectangleEmpty(dc, box, color.NRGBA{R: 255, G: 200, A: 255}, lineWidth)

	radius := max(4, float64(min(box.Dx(), box.Dy()))/40)
	colors := MarkerColors(len(markers))
	for i, m := range markers {
		x, y := float64(m.Center.X), float64(m.Center.Y)
		dc.DrawCircle(x, y, radius)
		dc.SetColor(colors[i])
		dc.FillPreserve()
		dc.SetColor(color.White)
		dc.SetLineWidth(1)
		dc.Stroke()
		if m.Label != "" {
			DrawString(dc, m.Label, image.Pt(int(x+radius+2), int(y-radius)), color.White, radius*2.5)
		}
	}
	return dc.Image()
}
