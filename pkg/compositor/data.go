// data.go — Merge content overrides onto a scene and report scene problems.
package compositor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xob0t/StoryStencil/pkg/contrast"
	"github.com/xob0t/StoryStencil/pkg/layout"
)

// Data overrides a scene's text and styling without touching its layout.
type Data struct {
	Content     Content         `json:"content"`
	Font        FontStyle       `json:"font,omitempty"`
	IncludeLink *bool           `json:"includeLink,omitempty"`
	Theme       *contrast.Theme `json:"theme,omitempty"`
}

// LoadData reads a data file. A malformed file yields a warning and no
// overrides rather than an error.
func LoadData(path string) (*Data, []string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read data: %w", err)
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return &Data{}, []string{fmt.Sprintf("malformed data file: %v; using scene defaults", err)}, nil
	}
	return &d, nil, nil
}

// MergeData applies non-empty overrides from d onto s.
func MergeData(s *Scene, d *Data) {
	if d == nil {
		return
	}
	mergeContent(&s.Content, d.Content)
	if d.Font != "" {
		s.Font = d.Font
	}
	if d.IncludeLink != nil {
		s.IncludeLink = *d.IncludeLink
	}
	if d.Theme != nil {
		s.Theme = *d.Theme
	}
}

func mergeContent(base *Content, over Content) {
	if over.Title != "" {
		base.Title = over.Title
	}
	if over.Description != "" {
		base.Description = over.Description
	}
	if over.Price != "" {
		base.Price = over.Price
	}
	if over.PriceMin != "" {
		base.PriceMin = over.PriceMin
	}
	if over.PriceMax != "" {
		base.PriceMax = over.PriceMax
	}
	if over.Beneficiary != "" {
		base.Beneficiary = over.Beneficiary
	}
}

// Validate returns warnings for a scene. Warnings never stop a render.
func Validate(s Scene) []string {
	var warnings []string

	if s.Background == "" {
		warnings = append(warnings, "scene has no background")
	}
	if !s.Font.Valid() {
		warnings = append(warnings, fmt.Sprintf("unknown font style %q; sans-serif is used", s.Font))
	}

	n := len(s.Images)
	switch s.Mode {
	case ModeMultiple:
		if n < 2 || n > 4 {
			warnings = append(warnings, fmt.Sprintf("multiple mode shows 2-4 images, got %d", n))
		}
		if s.Content.PriceText(s.Mode) == "" {
			warnings = append(warnings, "price range is incomplete; price line omitted")
		}
	default:
		if n > s.Mode.MaxSlots() {
			warnings = append(warnings, fmt.Sprintf("single mode shows at most %d images; %d ignored", s.Mode.MaxSlots(), n-s.Mode.MaxSlots()))
		}
		if s.Content.Price == "" {
			warnings = append(warnings, "price is empty; price line omitted")
		}
	}
	return warnings
}

// Describe returns a human-readable summary of a scene file.
func Describe(sf *SceneFile) string {
	var b strings.Builder
	if sf.Meta.Name != "" {
		fmt.Fprintf(&b, "Scene: %s", sf.Meta.Name)
		if sf.Meta.Version != "" {
			fmt.Fprintf(&b, " (v%s)", sf.Meta.Version)
		}
		if sf.Meta.Author != "" {
			fmt.Fprintf(&b, " by %s", sf.Meta.Author)
		}
		b.WriteString("\n")
	}
	if sf.Meta.Description != "" {
		b.WriteString(sf.Meta.Description + "\n")
	}

	fmt.Fprintf(&b, "\nMode: %s   Font: %s   Link callout: %t\n", sf.Mode, sf.Font, sf.IncludeLink)
	fmt.Fprintf(&b, "Background: %s\n", sf.Background)
	for i, ref := range sf.slotImages() {
		fmt.Fprintf(&b, "Image %d: %s\n", i, ref)
	}

	b.WriteString("\nElements:\n")
	for _, el := range layout.Elements() {
		p := sf.Layout.Get(el)
		if el.IsImage() {
			fmt.Fprintf(&b, "  %-12s (%5.1f%%, %5.1f%%)  %gpx box\n", el, p.Position.X, p.Position.Y, p.Size.Width)
		} else {
			fmt.Fprintf(&b, "  %-12s (%5.1f%%, %5.1f%%)  %gpx text\n", el, p.Position.X, p.Position.Y, p.Size.FontSize)
		}
	}
	return b.String()
}
