// Package layout holds the positions and sizes of the placeable story elements.
//
// The element set is closed: four image slots and five text fields. Every
// element always has a placement; hiding an element is the renderer's
// business, never the model's.
package layout

import (
	"fmt"
)

// Element identifies one of the fixed placeable items on the story canvas.
type Element int

const (
	Image0 Element = iota
	Image1
	Image2
	Image3
	Title
	Description
	LinkCallout
	Price
	Beneficiary

	numElements
)

// Count is the number of placeable elements.
const Count = int(numElements)

// Kind separates square image slots from single-line text fields.
type Kind int

const (
	KindImage Kind = iota
	KindText
)

// ImageSlots lists the image slots in slot order.
var ImageSlots = [...]Element{Image0, Image1, Image2, Image3}

// TextElements lists the text fields in paint order. LinkCallout is last
// because it is an optional overlay toggled per export variant.
var TextElements = [...]Element{Title, Description, Price, Beneficiary, LinkCallout}

var elementIDs = [...]string{
	Image0:      "image_0",
	Image1:      "image_1",
	Image2:      "image_2",
	Image3:      "image_3",
	Title:       "title",
	Description: "description",
	LinkCallout: "link",
	Price:       "price",
	Beneficiary: "beneficiary",
}

// Elements returns every element in declaration order.
func Elements() []Element {
	out := make([]Element, Count)
	for i := range out {
		out[i] = Element(i)
	}
	return out
}

// Valid reports whether e is one of the enumerated elements.
func (e Element) Valid() bool {
	return e >= 0 && e < numElements
}

// Kind returns whether e is an image slot or a text field.
func (e Element) Kind() Kind {
	if e >= Image0 && e <= Image3 {
		return KindImage
	}
	return KindText
}

// IsImage is shorthand for e.Kind() == KindImage.
func (e Element) IsImage() bool {
	return e.Kind() == KindImage
}

// String returns the wire id of the element ("image_0", "title", ...).
func (e Element) String() string {
	if !e.Valid() {
		return fmt.Sprintf("element(%d)", int(e))
	}
	return elementIDs[e]
}

// ImageSlot returns the element for image slot i (0..3).
func ImageSlot(i int) (Element, bool) {
	if i < 0 || i >= len(ImageSlots) {
		return 0, false
	}
	return ImageSlots[i], true
}

// ParseElement resolves a wire id. "swaysell" and "nonprofit" are accepted as
// aliases of the link callout and beneficiary fields.
func ParseElement(s string) (Element, error) {
	switch s {
	case "swaysell":
		return LinkCallout, nil
	case "nonprofit", "non-profit":
		return Beneficiary, nil
	}
	for i, id := range elementIDs {
		if id == s {
			return Element(i), nil
		}
	}
	return 0, fmt.Errorf("unknown element %q", s)
}

// MarshalText implements encoding.TextMarshaler so elements work as JSON keys.
func (e Element) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid element %d", int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Element) UnmarshalText(b []byte) error {
	el, err := ParseElement(string(b))
	if err != nil {
		return err
	}
	*e = el
	return nil
}
