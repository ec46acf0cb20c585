// Package interaction turns pointer drag and resize gestures into layout writes.
//
// The controller is a three-state machine:
//
//	Idle ──BeginDrag──▶ Dragging(el)
//	Idle ──BeginResize─▶ Resizing(el, anchor)
//	any  ──EndGesture──▶ Idle
//
// Beginning a gesture from any state replaces the previous one, so at most one
// gesture is ever active.
package interaction

import (
	"fmt"
	"math"

	"github.com/xob0t/StoryStencil/pkg/layout"
)

// Mode is the active gesture kind.
type Mode int

const (
	Idle Mode = iota
	Dragging
	Resizing
)

func (m Mode) String() string {
	switch m {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*m = Idle
	case "dragging":
		*m = Dragging
	case "resizing":
		*m = Resizing
	default:
		return fmt.Errorf("unknown gesture mode %q", b)
	}
	return nil
}

// Anchor is captured when a resize begins: the pointer position in
// container-local pixels and the element's scalar size at that moment.
type Anchor struct {
	MouseX      float64 `json:"mouseX"`
	MouseY      float64 `json:"mouseY"`
	InitialSize float64 `json:"initialSize"`
}

// Gesture is the observable interaction state. Element is meaningful unless
// Mode is Idle; Anchor only while Resizing.
type Gesture struct {
	Mode    Mode           `json:"mode"`
	Element layout.Element `json:"element"`
	Anchor  Anchor         `json:"anchor"`
}

// Resize tuning.
const (
	resizeGain   = 0.5 // pixels of size per pixel of pointer travel
	fontSizeGain = 0.3 // text grows slower than images
)

// Controller applies gestures to a layout.
type Controller struct {
	layout   *layout.State
	gesture  Gesture
	onChange func(layout.Element)
}

// Option configures a Controller.
type Option func(*Controller)

// WithChangeHook registers fn to be called after every layout write, e.g. to
// schedule a preview repaint.
func WithChangeHook(fn func(layout.Element)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// NewController creates an idle controller writing into l.
func NewController(l *layout.State, opts ...Option) *Controller {
	c := &Controller{layout: l}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Gesture returns the current interaction state.
func (c *Controller) Gesture() Gesture {
	return c.gesture
}

// Dragging returns the element being dragged, if any.
func (c *Controller) Dragging() (layout.Element, bool) {
	return c.gesture.Element, c.gesture.Mode == Dragging
}

// Resizing returns the element being resized, if any.
func (c *Controller) Resizing() (layout.Element, bool) {
	return c.gesture.Element, c.gesture.Mode == Resizing
}

// BeginDrag starts dragging el, cancelling any other gesture.
func (c *Controller) BeginDrag(el layout.Element, ev *PointerEvent) {
	c.gesture = Gesture{Mode: Dragging, Element: el}
	ev.PreventDefault()
	ev.StopPropagation()
}

// BeginResize starts resizing el from the pointer position in ev.
func (c *Controller) BeginResize(el layout.Element, ev *PointerEvent) {
	mx, my := ev.Container.Local(ev.ClientX, ev.ClientY)
	c.gesture = Gesture{
		Mode:    Resizing,
		Element: el,
		Anchor: Anchor{
			MouseX:      mx,
			MouseY:      my,
			InitialSize: c.layout.Scalar(el),
		},
	}
	ev.PreventDefault()
	ev.StopPropagation()
}

// OnPointerMove applies the active gesture. It reports whether the layout
// changed.
func (c *Controller) OnPointerMove(ev *PointerEvent) bool {
	if c.gesture.Mode == Idle || ev.Container.Empty() {
		return false
	}

	el := c.gesture.Element
	switch c.gesture.Mode {
	case Dragging:
		x, y := dragPosition(ev)
		c.layout.SetPosition(el, x, y)
	case Resizing:
		mx, my := ev.Container.Local(ev.ClientX, ev.ClientY)
		dx := mx - c.gesture.Anchor.MouseX
		dy := my - c.gesture.Anchor.MouseY
		c.layout.SetScalar(el, resizedScalar(el.Kind(), c.gesture.Anchor.InitialSize, dx, dy))
	}

	if c.onChange != nil {
		c.onChange(el)
	}
	return true
}

// EndGesture returns to Idle and discards the resize anchor.
func (c *Controller) EndGesture() {
	c.gesture = Gesture{}
}

// PointerUp ends the active gesture.
func (c *Controller) PointerUp() { c.EndGesture() }

// PointerLeave ends the active gesture when the pointer exits the container.
func (c *Controller) PointerLeave() { c.EndGesture() }

func dragPosition(ev *PointerEvent) (x, y float64) {
	r := ev.Container
	x = (ev.ClientX - r.Left) / r.Width * 100
	y = (ev.ClientY - r.Top) / r.Height * 100
	return clamp(x, layout.PositionMin, layout.PositionMax),
		clamp(y, layout.PositionMin, layout.PositionMax)
}

// resizedScalar takes its magnitude from the full pointer travel but its sign
// from the horizontal component only: moving right grows, anything else
// shrinks.
func resizedScalar(kind layout.Kind, initial, dx, dy float64) float64 {
	dist := math.Hypot(dx, dy)
	dir := -1.0
	if dx > 0 {
		dir = 1.0
	}
	delta := dir * dist * resizeGain

	if kind == layout.KindImage {
		return clamp(initial+delta, layout.ImageSizeMin, layout.ImageSizeMax)
	}
	return clamp(initial+delta*fontSizeGain, layout.FontSizeMin, layout.FontSizeMax)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
