// Package objectdetection holds the detection types returned by the inference service and the
// post-processing that turns them into normalized item centroids.
package objectdetection

import (
	"fmt"
	"math"
)

// Box is an axis-aligned bounding box in source image pixels.
type Box struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// Center returns the midpoint of the box in pixels.
func (b Box) Center() (float64, float64) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

// Area returns the box area in square pixels. Inverted boxes have zero area.
func (b Box) Area() float64 {
	return math.Max(0, b.XMax-b.XMin) * math.Max(0, b.YMax-b.YMin)
}

// Detection is a single scored, optionally labeled bounding box.
type Detection interface {
	BoundingBox() Box
	Score() float64
	Label() string
}

// NewDetection creates a simple detection.
func NewDetection(box Box, score float64, label string) Detection {
	return &detection2D{boundingBox: box, score: score, label: label}
}

type detection2D struct {
	boundingBox Box
	score       float64
	label       string
}

// BoundingBox returns the bounding box around the detected object.
func (d *detection2D) BoundingBox() Box {
	return d.boundingBox
}

// Score returns a confidence score of the detection between 0.0 and 1.0.
func (d *detection2D) Score() float64 {
	return d.score
}

// Label returns the class label of the object in the bounding box.
func (d *detection2D) Label() string {
	return d.label
}

// String turns the detection into a string.
func (d *detection2D) String() string {
	b := d.boundingBox
	return fmt.Sprintf("Label: %s, Score: %.2f, Box: (%.1f,%.1f)-(%.1f,%.1f)", d.label, d.score, b.XMin, b.YMin, b.XMax, b.YMax)
}
