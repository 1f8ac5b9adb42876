package scribe

import (
	"image"
	"math"
)

// Crop geometry defaults.
const (
	// DefaultBoxSize is the side of the square drawn around the hand, in pixels.
	DefaultBoxSize = 204
	// DefaultInset is the margin between the drawn box and the sampled region.
	DefaultInset = 2
)

// CropWindow is the frame region sent for classification.
type CropWindow struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the window as an image.Rectangle.
func (w CropWindow) Rect() image.Rectangle {
	return image.Rect(w.X, w.Y, w.X+w.Width, w.Y+w.Height)
}

// Box returns the outline drawn around the hand, which is the window grown
// by inset on every side.
func (w CropWindow) Box(inset int) image.Rectangle {
	return w.Rect().Inset(-inset)
}

// Geometry derives crop windows from hand centers.
type Geometry struct {
	BoxSize int
	Inset   int
}

// DefaultGeometry returns the 204px box with a 2px inset, giving 200x200 crops.
func DefaultGeometry() Geometry {
	return Geometry{
		BoxSize: DefaultBoxSize,
		Inset:   DefaultInset,
	}
}

// Extent is the side of the sampled square.
func (g Geometry) Extent() int {
	return g.BoxSize - 2*g.Inset
}

// Window centers the box on c. The box origin is clamped at zero before the
// inset is applied, so the window origin is never below (Inset, Inset).
// Windows are not clamped against the right or bottom frame edge.
func (g Geometry) Window(c Center) CropWindow {
	half := float64(g.BoxSize) / 2
	x := int(math.Floor(math.Max(0, c.X-half)))
	y := int(math.Floor(math.Max(0, c.Y-half)))

	return CropWindow{
		X:      x + g.Inset,
		Y:      y + g.Inset,
		Width:  g.Extent(),
		Height: g.Extent(),
	}
}

// InitialWindow is used until the first hand is seen.
func (g Geometry) InitialWindow() CropWindow {
	return CropWindow{
		X:      10,
		Y:      10,
		Width:  g.Extent(),
		Height: g.Extent(),
	}
}
