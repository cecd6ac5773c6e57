package roi

import (
	"github.com/invscan/autocount/utils"
)

// Point is a pointer position in screen pixels.
type Point struct {
	X float64
	Y float64
}

// Bounds is the on-screen pixel bounding box of the element the rectangle is drawn over.
type Bounds struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Drag is the state of one pointer interaction. Every update is computed from the snapshot taken
// at drag start so that repeated moves never accumulate drift.
type Drag struct {
	Handle    Handle
	Start     Point
	StartRect Rect
	Container Bounds
}

// NewDrag snapshots the rectangle and container at pointer-down.
func NewDrag(handle Handle, start Point, rect Rect, container Bounds) Drag {
	return Drag{Handle: handle, Start: start, StartRect: rect, Container: container}
}

// Delta converts the pointer displacement since drag start into normalized units.
func (d Drag) Delta(p Point) (float64, float64) {
	var dx, dy float64
	if d.Container.Width > 0 {
		dx = (p.X - d.Start.X) / d.Container.Width
	}
	if d.Container.Height > 0 {
		dy = (p.Y - d.Start.Y) / d.Container.Height
	}
	return dx, dy
}

// Apply returns the rectangle for the pointer at p.
func (d Drag) Apply(p Point) Rect {
	dx, dy := d.Delta(p)
	if d.Handle == HandleMove {
		return Move(d.StartRect, dx, dy)
	}
	return Resize(d.StartRect, d.Handle, dx, dy)
}

// Move translates r by (dx, dy), keeping it fully inside the unit square.
func Move(r Rect, dx, dy float64) Rect {
	r.X = clampPosition(r.X+dx, r.Width)
	r.Y = clampPosition(r.Y+dy, r.Height)
	return r
}

// Resize drags the edges selected by handle by (dx, dy). The opposite edges keep their absolute
// position and neither dimension drops below MinSize.
func Resize(r Rect, handle Handle, dx, dy float64) Rect {
	horizontal, vertical := handle.edges()
	r.X, r.Width = dragEdge(horizontal, r.X, r.Width, dx)
	r.Y, r.Height = dragEdge(vertical, r.Y, r.Height, dy)
	return r
}

// clampPosition keeps a span of the given size inside [0,1].
func clampPosition(pos, size float64) float64 {
	return utils.Clamp(pos, 0, 1-size)
}

// dragEdge applies delta to one edge of the span [pos, pos+size] along a single axis.
func dragEdge(e edge, pos, size, delta float64) (float64, float64) {
	switch e {
	case edgeLow:
		far := pos + size
		newPos := utils.Clamp(pos+delta, 0, far-MinSize)
		return newPos, far - newPos
	case edgeHigh:
		far := utils.Clamp(pos+size+delta, pos+MinSize, 1)
		return pos, far - pos
	default:
		return pos, size
	}
}
