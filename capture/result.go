// Package capture drives the count workflow over a camera session: freeze a frame, edit a region
// of interest over it, crop and submit the region, then show the returned item positions.
package capture

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/invscan/autocount/utils"
)

// ErrNotReady is returned when the camera has not produced a frame with known dimensions yet.
var ErrNotReady = errors.New("camera is not ready")

// Frame is an immutable encoded snapshot of the live stream.
type Frame struct {
	ID       string
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// Annotation is one counted item. X and Y are normalized to the cropped region.
type Annotation struct {
	Label      string
	X          float64
	Y          float64
	Confidence *float64
}

// Result is the outcome of a count.
type Result struct {
	Count       int
	Annotations []Annotation
}

// clamped returns a copy of r with every annotation position clamped to [0,1].
func (r *Result) clamped() *Result {
	return &Result{
		Count: r.Count,
		Annotations: lo.Map(r.Annotations, func(a Annotation, _ int) Annotation {
			a.X = utils.Clamp01(a.X)
			a.Y = utils.Clamp01(a.Y)
			return a
		}),
	}
}

// Advisory returns the note shown with results that are suspicious but not failures.
func (r *Result) Advisory() string {
	switch {
	case r == nil:
		return ""
	case r.Count == 0:
		return "No items were detected in the selected area. Try adjusting the box or retaking the photo."
	case len(r.Annotations) == 0:
		return fmt.Sprintf("Counted %d item(s), but no positions were returned to mark on the photo.", r.Count)
	default:
		return ""
	}
}
