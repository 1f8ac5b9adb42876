// Package detector provides hand detection interfaces and types.
package detector

import "github.com/ayusman/mudra/internal/scribe"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D represents a landmark in normalized image coordinates.
// Z is relative depth and is not used by the scribe.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Set projects the landmarks onto the image plane.
func (h *HandLandmarks) Set() scribe.LandmarkSet {
	if h == nil {
		return nil
	}
	set := make(scribe.LandmarkSet, NumLandmarks)
	for i, p := range h.Points {
		set[i] = scribe.Point{X: p.X, Y: p.Y}
	}
	return set
}

// First returns the landmark set of the first detected hand, or nil when
// there is none. Only one hand is tracked.
func First(hands []HandLandmarks) scribe.LandmarkSet {
	if len(hands) == 0 {
		return nil
	}
	return hands[0].Set()
}
