package interaction

// Rect is a bounding box in client (viewport) pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Local converts a client point to container-local pixels.
func (r Rect) Local(clientX, clientY float64) (x, y float64) {
	return clientX - r.Left, clientY - r.Top
}

// PointerEvent is a pointer-down or pointer-move in client coordinates.
// Container is the bounding box of the story container when the event fired.
type PointerEvent struct {
	ClientX   float64 `json:"clientX"`
	ClientY   float64 `json:"clientY"`
	Container Rect    `json:"container"`

	propagationStopped bool
	defaultPrevented   bool
}

// StopPropagation keeps the event from reaching container-level handlers.
func (e *PointerEvent) StopPropagation() { e.propagationStopped = true }

// PreventDefault suppresses native text selection and image dragging.
func (e *PointerEvent) PreventDefault() { e.defaultPrevented = true }

// PropagationStopped reports whether StopPropagation was called.
func (e *PointerEvent) PropagationStopped() bool { return e.propagationStopped }

// DefaultPrevented reports whether PreventDefault was called.
func (e *PointerEvent) DefaultPrevented() bool { return e.defaultPrevented }
