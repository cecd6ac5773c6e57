package inference

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/invscan/autocount/vision/objectdetection"
)

type wireDetection struct {
	Label string               `json:"label"`
	Score *float64             `json:"score"`
	Box   *objectdetection.Box `json:"box"`
}

// ParseDetections decodes the `[{label?, score, box{xmin,ymin,xmax,ymax}}]` payload. A JSON object
// carrying an "error" field is reported as an upstream error.
func ParseDetections(body []byte) ([]objectdetection.Detection, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &payload); err == nil && payload.Error != "" {
			return nil, errors.Errorf("inference endpoint reported an error: %s", payload.Error)
		}
		return nil, errors.New("unexpected inference payload: expected a list of detections")
	}

	var wire []wireDetection
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, errors.Wrap(err, "could not parse inference payload")
	}
	dets := make([]objectdetection.Detection, 0, len(wire))
	for i, w := range wire {
		if w.Score == nil || w.Box == nil {
			return nil, errors.Errorf("detection %d is missing score or box", i)
		}
		dets = append(dets, objectdetection.NewDetection(*w.Box, *w.Score, w.Label))
	}
	return dets, nil
}
