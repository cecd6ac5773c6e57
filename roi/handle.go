package roi

import (
	"github.com/pkg/errors"
)

// Handle identifies which part of the rectangle a drag manipulates.
type Handle int

const (
	// HandleMove translates the whole rectangle. It is used for the body and the label handle.
	HandleMove Handle = iota
	// HandleTopLeft resizes from the top-left corner.
	HandleTopLeft
	// HandleTopRight resizes from the top-right corner.
	HandleTopRight
	// HandleBottomLeft resizes from the bottom-left corner.
	HandleBottomLeft
	// HandleBottomRight resizes from the bottom-right corner.
	HandleBottomRight
)

// Handles lists every handle in declaration order.
var Handles = []Handle{HandleMove, HandleTopLeft, HandleTopRight, HandleBottomLeft, HandleBottomRight}

type edge int

const (
	edgeNone edge = iota
	edgeLow       // left or top
	edgeHigh      // right or bottom
)

// edges returns which horizontal and vertical edge the handle drags.
func (h Handle) edges() (horizontal, vertical edge) {
	switch h {
	case HandleTopLeft:
		return edgeLow, edgeLow
	case HandleTopRight:
		return edgeHigh, edgeLow
	case HandleBottomLeft:
		return edgeLow, edgeHigh
	case HandleBottomRight:
		return edgeHigh, edgeHigh
	default:
		return edgeNone, edgeNone
	}
}

func (h Handle) String() string {
	switch h {
	case HandleMove:
		return "move"
	case HandleTopLeft:
		return "top-left"
	case HandleTopRight:
		return "top-right"
	case HandleBottomLeft:
		return "bottom-left"
	case HandleBottomRight:
		return "bottom-right"
	}
	return "unknown"
}

// ParseHandle is the inverse of Handle.String.
func ParseHandle(s string) (Handle, error) {
	for _, h := range Handles {
		if h.String() == s {
			return h, nil
		}
	}
	return HandleMove, errors.Errorf("unknown roi handle %q", s)
}
