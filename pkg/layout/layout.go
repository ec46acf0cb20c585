package layout

import (
	"encoding/json"
	"fmt"
	"math"
)

// Bounds applied by the interaction controller. The model itself accepts any
// value written to it.
const (
	PositionMin = -5.0
	PositionMax = 105.0

	ImageSizeMin = 50.0
	ImageSizeMax = 300.0

	FontSizeMin = 10.0
	FontSizeMax = 120.0
)

// Position is a point in percent of the container (0–100 on screen).
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a square box for image slots or a font size for text fields, in
// logical preview pixels.
type Size struct {
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
}

// Placement is the position and size of one element.
type Placement struct {
	Position Position `json:"position"`
	Size     Size     `json:"size"`
}

// State is the complete layout: one placement per element. The zero value is
// not useful; use New. State is a plain value, so assigning it takes a snapshot.
type State struct {
	placements [Count]Placement
}

// New returns a layout with every element at its default placement.
func New() *State {
	s := &State{}
	s.Reset()
	return s
}

// Get returns the placement of e.
func (s *State) Get(e Element) Placement {
	return s.placements[e]
}

// SetPosition moves e to (x, y) percent.
func (s *State) SetPosition(e Element, x, y float64) {
	s.placements[e].Position = Position{X: x, Y: y}
}

// SetSize replaces the size of e. Image sizes are kept square using Width.
func (s *State) SetSize(e Element, sz Size) {
	if e.IsImage() {
		s.placements[e].Size = Size{Width: sz.Width, Height: sz.Width}
		return
	}
	s.placements[e].Size = Size{FontSize: sz.FontSize}
}

// Scalar returns the single resizable dimension of e: width for images,
// font size for text.
func (s *State) Scalar(e Element) float64 {
	if e.IsImage() {
		return s.placements[e].Size.Width
	}
	return s.placements[e].Size.FontSize
}

// SetScalar writes the single resizable dimension of e.
func (s *State) SetScalar(e Element, v float64) {
	if e.IsImage() {
		s.SetSize(e, Size{Width: v})
		return
	}
	s.SetSize(e, Size{FontSize: v})
}

// Reset restores every element to its default placement.
func (s *State) Reset() {
	s.placements = defaults
}

// Clamp pulls every placement into the interaction bounds. Layouts that come
// from outside the controller (API writes, scene files) go through it before
// they reach the renderer.
func (s *State) Clamp() {
	for i := range s.placements {
		p := &s.placements[i]
		p.Position.X = clamp(p.Position.X, PositionMin, PositionMax)
		p.Position.Y = clamp(p.Position.Y, PositionMin, PositionMax)
		e := Element(i)
		if e.IsImage() {
			w := clamp(p.Size.Width, ImageSizeMin, ImageSizeMax)
			p.Size = Size{Width: w, Height: w}
			continue
		}
		p.Size = Size{FontSize: clamp(p.Size.FontSize, FontSizeMin, FontSizeMax)}
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Snapshot returns an independent copy of the layout.
func (s *State) Snapshot() State {
	return *s
}

// MarshalJSON encodes the layout as an object keyed by element id.
func (s State) MarshalJSON() ([]byte, error) {
	m := make(map[Element]Placement, Count)
	for i, p := range s.placements {
		m[Element(i)] = p
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a layout object. Elements missing from the input keep
// their default placement.
func (s *State) UnmarshalJSON(b []byte) error {
	var m map[Element]Placement
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("decode layout: %w", err)
	}
	s.Reset()
	for e, p := range m {
		s.placements[e].Position = p.Position
		s.SetSize(e, p.Size)
	}
	return nil
}
