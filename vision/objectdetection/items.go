package objectdetection

import (
	"github.com/samber/lo"

	"github.com/invscan/autocount/utils"
)

// Item is a counted object, positioned relative to the image it was detected in.
type Item struct {
	Label      string  `json:"label"`
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes,omitempty"`
}

// NormalizedCenter divides the box midpoint by the image size and clamps each axis to [0,1].
// Non-positive dimensions are treated as 1.
func NormalizedCenter(box Box, width, height int) (float64, float64) {
	w, h := float64(max(width, 1)), float64(max(height, 1))
	cx, cy := box.Center()
	return utils.Clamp01(cx / w), utils.Clamp01(cy / h)
}

// ToItems converts detections into items for an image of the given size, attaching notes to each.
func ToItems(dets []Detection, width, height int, notes string) []Item {
	return lo.Map(dets, func(d Detection, _ int) Item {
		cx, cy := NormalizedCenter(d.BoundingBox(), width, height)
		return Item{
			Label:      d.Label(),
			CenterX:    cx,
			CenterY:    cy,
			Confidence: d.Score(),
			Notes:      notes,
		}
	})
}

// Count applies the score threshold, renumbers the survivors and returns them as items.
func Count(dets []Detection, threshold float64, width, height int, notes string) []Item {
	kept := Chain(NewScoreFilter(threshold), Relabel)(dets)
	return ToItems(kept, width, height, notes)
}
