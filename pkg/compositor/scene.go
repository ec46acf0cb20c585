// scene.go — Everything one render pass needs, as a plain value.
package compositor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xob0t/StoryStencil/pkg/contrast"
	"github.com/xob0t/StoryStencil/pkg/layout"
	"github.com/xob0t/StoryStencil/pkg/source"
)

// LinkCalloutText is the placeholder drawn where the story link sticker goes.
const LinkCalloutText = "Insert Story Link Here"

// Mode is the composition workflow.
type Mode string

const (
	// ModeSingle features one product photographed from up to three angles.
	ModeSingle Mode = "single"
	// ModeMultiple features two to four products chosen from a larger set.
	ModeMultiple Mode = "multiple"
)

// MaxSlots returns how many image slots the mode paints.
func (m Mode) MaxSlots() int {
	if m == ModeMultiple {
		return len(layout.ImageSlots)
	}
	return 3
}

// ParseMode accepts "single", "multiple" and "multi".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return ModeSingle, nil
	case "multiple", "multi":
		return ModeMultiple, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Content is the caption text of a story.
type Content struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price,omitempty"`
	PriceMin    string `json:"priceMin,omitempty"`
	PriceMax    string `json:"priceMax,omitempty"`
	Beneficiary string `json:"beneficiary,omitempty"`
}

// PriceText formats the price line for mode, or "" when there is nothing to show.
func (c Content) PriceText(m Mode) string {
	if m == ModeMultiple {
		if c.PriceMin == "" || c.PriceMax == "" {
			return ""
		}
		return fmt.Sprintf("Price: %s - %s", c.PriceMin, c.PriceMax)
	}
	if c.Price == "" {
		return ""
	}
	return "Price: " + c.Price
}

// BeneficiaryText formats the supporting line.
func (c Content) BeneficiaryText() string {
	if c.Beneficiary == "" {
		return ""
	}
	return "Supporting: " + c.Beneficiary
}

// Scene is the input of one render pass.
type Scene struct {
	Mode        Mode           `json:"mode"`
	Background  source.Ref     `json:"background"`
	Images      []source.Ref   `json:"images,omitempty"`
	Layout      layout.State   `json:"layout"`
	Theme       contrast.Theme `json:"theme"`
	Font        FontStyle      `json:"font"`
	Content     Content        `json:"content"`
	IncludeLink bool           `json:"includeLink"`
}

// NewScene returns a scene with the default layout, theme and font.
func NewScene() Scene {
	return Scene{
		Mode:   ModeSingle,
		Layout: *layout.New(),
		Theme:  contrast.DefaultTheme(),
		Font:   StyleSans,
	}
}

// textRun is one caption to paint.
type textRun struct {
	el     layout.Element
	text   string
	weight Weight
}

// TextWeight returns the font weight a caption element is painted with.
func TextWeight(e layout.Element) Weight {
	switch e {
	case layout.Title, layout.Description:
		return WeightBold
	case layout.Price, layout.Beneficiary:
		return WeightSemibold
	case layout.LinkCallout:
		return WeightMedium
	}
	return WeightRegular
}

// TextWeights maps every caption element to its weight.
func TextWeights() map[layout.Element]Weight {
	out := make(map[layout.Element]Weight, len(layout.TextElements))
	for _, e := range layout.TextElements {
		out[e] = TextWeight(e)
	}
	return out
}

// textRuns lists the captions in paint order, skipping empty ones.
func (s Scene) textRuns() []textRun {
	run := func(e layout.Element, text string) textRun { return textRun{e, text, TextWeight(e)} }
	runs := []textRun{
		run(layout.Title, s.Content.Title),
		run(layout.Description, s.Content.Description),
		run(layout.Price, s.Content.PriceText(s.Mode)),
		run(layout.Beneficiary, s.Content.BeneficiaryText()),
	}
	if s.IncludeLink {
		runs = append(runs, run(layout.LinkCallout, LinkCalloutText))
	}

	out := runs[:0]
	for _, r := range runs {
		if r.text != "" {
			out = append(out, r)
		}
	}
	return out
}

// Caption is a caption that a render pass will paint.
type Caption struct {
	Element layout.Element
	Text    string
}

// Captions lists the non-empty captions in paint order.
func (s Scene) Captions() []Caption {
	runs := s.textRuns()
	out := make([]Caption, len(runs))
	for i, r := range runs {
		out[i] = Caption{Element: r.el, Text: r.text}
	}
	return out
}

// Slots returns how many image slots a render pass fills.
func (s Scene) Slots() int {
	return len(s.slotImages())
}

// slotImages pairs the image refs with the slots they fill.
func (s Scene) slotImages() []source.Ref {
	n := min(len(s.Images), s.Mode.MaxSlots())
	return s.Images[:n]
}

// Fingerprint is a stable hash of the scene, used as a render cache key.
func (s Scene) Fingerprint() string {
	b, _ := json.Marshal(s)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
