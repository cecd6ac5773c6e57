package objectdetection

import (
	"strconv"

	"github.com/samber/lo"
)

// Postprocessor defines a function that filters/modifies on an incoming array of Detections.
type Postprocessor func([]Detection) []Detection

// NewScoreFilter returns a function that filters out detections below a certain confidence.
// A detection whose score equals conf is kept.
func NewScoreFilter(conf float64) Postprocessor {
	return func(in []Detection) []Detection {
		return lo.Filter(in, func(d Detection, _ int) bool {
			return d.Score() >= conf
		})
	}
}

// NewAreaFilter returns a function that filters out detections smaller than area square pixels.
func NewAreaFilter(area float64) Postprocessor {
	return func(in []Detection) []Detection {
		return lo.Filter(in, func(d Detection, _ int) bool {
			return d.BoundingBox().Area() >= area
		})
	}
}

// Relabel replaces the class labels with their 1-based position, "1", "2", and so on.
func Relabel(in []Detection) []Detection {
	return lo.Map(in, func(d Detection, i int) Detection {
		return NewDetection(d.BoundingBox(), d.Score(), strconv.Itoa(i+1))
	})
}

// Chain runs the postprocessors in order.
func Chain(steps ...Postprocessor) Postprocessor {
	return func(in []Detection) []Detection {
		out := in
		for _, step := range steps {
			if step == nil {
				continue
			}
			out = step(out)
		}
		return out
	}
}
