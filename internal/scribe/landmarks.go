// Package scribe turns per-frame hand detections and periodic classifier
// predictions into accumulated text.
package scribe

import "math"

// Point is a landmark position in normalized image coordinates (0.0-1.0).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LandmarkSet is the ordered keypoint sequence for one detected hand.
// The order is fixed by the detection model and is not interpreted here.
type LandmarkSet []Point

// Center is a position in display pixels.
type Center struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Observation is what one frame tells the pipeline about the hand.
type Observation struct {
	Present bool
	Center  Center
}

// Interpret converts a landmark set for a width x height frame into an
// Observation. An empty set means no hand this frame.
//
// The center is the midpoint of the landmarks' bounding box in display
// pixels. X is flipped because the display is a mirrored copy of the
// frame the detector saw.
func Interpret(set LandmarkSet, width, height int) Observation {
	if len(set) == 0 {
		return Observation{}
	}

	w, h := float64(width), float64(height)
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)

	for _, p := range set {
		x := (1 - p.X) * w
		y := p.Y * h
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}

	return Observation{
		Present: true,
		Center: Center{
			X: (minX + maxX) / 2,
			Y: (minY + maxY) / 2,
		},
	}
}
