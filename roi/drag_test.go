package roi

import (
	"math/rand"
	"testing"

	"go.viam.com/test"
)

var container = Bounds{Left: 40, Top: 100, Width: 400, Height: 300}

func TestMoveClampsAtBoundary(t *testing.T) {
	r := Rect{X: 0.2, Y: 0.3, Width: 0.4, Height: 0.5}

	moved := Move(r, 0.1, -0.1)
	test.That(t, moved.X, test.ShouldAlmostEqual, 0.3)
	test.That(t, moved.Y, test.ShouldAlmostEqual, 0.2)

	moved = Move(r, 5, 5)
	test.That(t, moved.X, test.ShouldEqual, 1-r.Width)
	test.That(t, moved.Y, test.ShouldEqual, 1-r.Height)
	test.That(t, moved.Width, test.ShouldEqual, r.Width)
	test.That(t, moved.Height, test.ShouldEqual, r.Height)

	moved = Move(r, -5, -5)
	test.That(t, moved.X, test.ShouldEqual, 0.)
	test.That(t, moved.Y, test.ShouldEqual, 0.)
}

func TestResizeKeepsOppositeEdge(t *testing.T) {
	r := Rect{X: 0.2, Y: 0.2, Width: 0.5, Height: 0.5}

	t.Run("top-left grows", func(t *testing.T) {
		out := Resize(r, HandleTopLeft, -0.1, -0.05)
		test.That(t, out.X, test.ShouldAlmostEqual, 0.1)
		test.That(t, out.Y, test.ShouldAlmostEqual, 0.15)
		test.That(t, out.Right(), test.ShouldAlmostEqual, r.Right())
		test.That(t, out.Bottom(), test.ShouldAlmostEqual, r.Bottom())
	})

	t.Run("top-left shrinks past opposite edge", func(t *testing.T) {
		out := Resize(r, HandleTopLeft, 0.9, 0.9)
		test.That(t, out.Width, test.ShouldAlmostEqual, MinSize)
		test.That(t, out.Height, test.ShouldAlmostEqual, MinSize)
		test.That(t, out.Right(), test.ShouldAlmostEqual, r.Right())
		test.That(t, out.Bottom(), test.ShouldAlmostEqual, r.Bottom())
	})

	t.Run("bottom-right shrinks past opposite edge", func(t *testing.T) {
		out := Resize(r, HandleBottomRight, -0.9, -0.9)
		test.That(t, out.X, test.ShouldEqual, r.X)
		test.That(t, out.Y, test.ShouldEqual, r.Y)
		test.That(t, out.Width, test.ShouldAlmostEqual, MinSize)
		test.That(t, out.Height, test.ShouldAlmostEqual, MinSize)
	})

	t.Run("bottom-right grows past frame", func(t *testing.T) {
		out := Resize(r, HandleBottomRight, 2, 2)
		test.That(t, out.Right(), test.ShouldAlmostEqual, 1)
		test.That(t, out.Bottom(), test.ShouldAlmostEqual, 1)
	})

	t.Run("top-right mixes edges", func(t *testing.T) {
		out := Resize(r, HandleTopRight, 0.1, -0.1)
		test.That(t, out.X, test.ShouldEqual, r.X)
		test.That(t, out.Width, test.ShouldAlmostEqual, 0.6)
		test.That(t, out.Y, test.ShouldAlmostEqual, 0.1)
		test.That(t, out.Bottom(), test.ShouldAlmostEqual, r.Bottom())
	})

	t.Run("bottom-left grows past frame", func(t *testing.T) {
		out := Resize(r, HandleBottomLeft, -1, 1)
		test.That(t, out.X, test.ShouldEqual, 0.)
		test.That(t, out.Right(), test.ShouldAlmostEqual, r.Right())
		test.That(t, out.Y, test.ShouldEqual, r.Y)
		test.That(t, out.Bottom(), test.ShouldAlmostEqual, 1)
	})
}

func TestDragUsesStartSnapshot(t *testing.T) {
	start := Point{X: 200, Y: 200}
	d := NewDrag(HandleMove, start, Rect{X: 0.1, Y: 0.1, Width: 0.3, Height: 0.3}, container)

	// many small moves then back to a fixed spot gives the same answer as one jump
	var last Rect
	for i := 0; i < 50; i++ {
		last = d.Apply(Point{X: start.X + float64(i), Y: start.Y + float64(i)/2})
	}
	test.That(t, last.X, test.ShouldAlmostEqual, 0.1+49./400)
	test.That(t, last.Y, test.ShouldAlmostEqual, 0.1+24.5/300)

	back := d.Apply(start)
	test.That(t, back, test.ShouldResemble, d.StartRect)
}

func TestDragZeroSizedContainer(t *testing.T) {
	r := Rect{X: 0.1, Y: 0.1, Width: 0.3, Height: 0.3}
	d := NewDrag(HandleBottomRight, Point{}, r, Bounds{})
	test.That(t, d.Apply(Point{X: 100, Y: 100}), test.ShouldResemble, r)
}

func TestRandomGestureSequencesStayValid(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := DefaultRect
	for i := 0; i < 5000; i++ {
		h := Handles[rng.Intn(len(Handles))]
		start := Point{X: rng.Float64() * container.Width, Y: rng.Float64() * container.Height}
		d := NewDrag(h, start, r, container)
		for j := 0; j < 3; j++ {
			p := Point{
				X: start.X + (rng.Float64()-0.5)*3*container.Width,
				Y: start.Y + (rng.Float64()-0.5)*3*container.Height,
			}
			next := d.Apply(p)
			test.That(t, next.Valid(), test.ShouldBeTrue)
			if h != HandleMove {
				horizontal, vertical := h.edges()
				if horizontal == edgeLow {
					test.That(t, next.Right(), test.ShouldAlmostEqual, r.Right())
				} else {
					test.That(t, next.X, test.ShouldEqual, r.X)
				}
				if vertical == edgeLow {
					test.That(t, next.Bottom(), test.ShouldAlmostEqual, r.Bottom())
				} else {
					test.That(t, next.Y, test.ShouldEqual, r.Y)
				}
			}
		}
		r = d.Apply(Point{X: start.X + rng.NormFloat64()*50, Y: start.Y + rng.NormFloat64()*50})
	}
}
