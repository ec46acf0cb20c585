// Package viewport maps between window pixels and the story canvas and
// finds the element under the pointer.
package viewport

import (
	"unicode/utf8"

	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/interaction"
	"github.com/xob0t/StoryStencil/pkg/layout"
)

// HandleSize is the side of the square resize handle, in window pixels.
const HandleSize = 14

// Rough glyph metrics for hit boxes around captions.
const (
	advance    = 0.55
	lineHeight = 1.2
)

// View is where the story canvas sits in the window.
type View struct {
	X, Y, Width, Height float64
}

// Fit letterboxes a 9:16 canvas into an outW×outH window with margin on
// every side.
func Fit(outW, outH int, margin float64) View {
	availW := max(float64(outW)-2*margin, 1)
	availH := max(float64(outH)-2*margin, 1)

	w, h := availW, availW*compositor.BaseHeight/compositor.BaseWidth
	if h > availH {
		h = availH
		w = availH * compositor.BaseWidth / compositor.BaseHeight
	}
	return View{
		X:      (float64(outW) - w) / 2,
		Y:      (float64(outH) - h) / 2,
		Width:  w,
		Height: h,
	}
}

// Rect is the container rect handed to the interaction controller.
func (v View) Rect() interaction.Rect {
	return interaction.Rect{Left: v.X, Top: v.Y, Width: v.Width, Height: v.Height}
}

// Contains reports whether a window point lies on the canvas.
func (v View) Contains(x, y float64) bool {
	return x >= v.X && x < v.X+v.Width && y >= v.Y && y < v.Y+v.Height
}

func (v View) scale() (sx, sy float64) {
	return v.Width / compositor.BaseWidth, v.Height / compositor.BaseHeight
}

// Box is an axis-aligned rectangle in window pixels.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether (x, y) lies inside b.
func (b Box) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Handle is the resize handle at b's bottom-right corner.
func (b Box) Handle() Box {
	return Box{
		MinX: b.MaxX - HandleSize/2, MinY: b.MaxY - HandleSize/2,
		MaxX: b.MaxX + HandleSize/2, MaxY: b.MaxY + HandleSize/2,
	}
}

func centred(cx, cy, w, h float64) Box {
	return Box{MinX: cx - w/2, MinY: cy - h/2, MaxX: cx + w/2, MaxY: cy + h/2}
}

// Hit is a visible element and its box on screen.
type Hit struct {
	Element layout.Element
	Box     Box
}

// Boxes lists the elements a render of s paints, topmost first: captions
// in reverse paint order, then filled image slots from last to first.
func Boxes(s compositor.Scene, v View) []Hit {
	sx, sy := v.scale()
	scale := min(sx, sy)
	at := func(p layout.Position) (float64, float64) {
		return v.X + p.X/100*v.Width, v.Y + p.Y/100*v.Height
	}

	captions := s.Captions()
	hits := make([]Hit, 0, len(captions)+s.Slots())
	for i := len(captions) - 1; i >= 0; i-- {
		c := captions[i]
		p := s.Layout.Get(c.Element)
		cx, cy := at(p.Position)
		size := p.Size.FontSize * scale
		w := float64(utf8.RuneCountInString(c.Text)) * size * advance
		hits = append(hits, Hit{c.Element, centred(cx, cy, w, size*lineHeight)})
	}
	for i := s.Slots() - 1; i >= 0; i-- {
		el, _ := layout.ImageSlot(i)
		p := s.Layout.Get(el)
		cx, cy := at(p.Position)
		hits = append(hits, Hit{el, centred(cx, cy, p.Size.Width*sx, p.Size.Height*sy)})
	}
	return hits
}

// Target is what a pointer-down would grab.
type Target struct {
	Element layout.Element
	Handle  bool
}

// HitTest finds the topmost element under (x, y). A press on an element's
// resize handle wins over the body of anything beneath it.
func HitTest(s compositor.Scene, v View, x, y float64) (Target, bool) {
	for _, h := range Boxes(s, v) {
		if h.Box.Handle().Contains(x, y) {
			return Target{Element: h.Element, Handle: true}, true
		}
		if h.Box.Contains(x, y) {
			return Target{Element: h.Element}, true
		}
	}
	return Target{}, false
}
