package contrast

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Theme is the text styling chosen for a background.
type Theme struct {
	TextColor  string `json:"textColor"`
	TextShadow string `json:"textShadow"`
}

var (
	// Light is white text under a dark shadow, used on dark backgrounds and
	// before any background has been analyzed.
	Light = Theme{TextColor: "#ffffff", TextShadow: "2px 2px 4px rgba(0,0,0,0.8)"}
	// Dark is black text under a light shadow, used on bright backgrounds.
	Dark = Theme{TextColor: "#000000", TextShadow: "2px 2px 4px rgba(255,255,255,0.8)"}
)

// DefaultTheme returns the theme used until a background is analyzed.
func DefaultTheme() Theme { return Light }

// ForLuminance picks the theme for an average luminance in [0, 1].
func ForLuminance(l float64) Theme {
	if l > Threshold {
		return Dark
	}
	return Light
}

// Text returns the resolved text colour.
func (t Theme) Text() color.NRGBA {
	c, err := ParseHex(t.TextColor)
	if err != nil {
		return color.NRGBA{255, 255, 255, 255}
	}
	return c
}

// Shadow returns the shadow colour, the complement of the text colour at 80%
// opacity.
func (t Theme) Shadow() color.NRGBA {
	if c, err := parseShadowColor(t.TextShadow); err == nil {
		return c
	}
	txt := t.Text()
	return color.NRGBA{255 - txt.R, 255 - txt.G, 255 - txt.B, 204}
}

// ParseHex parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseHex(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q", s)
	}
	return color.NRGBA{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
}

// parseShadowColor extracts the rgba(...) colour from a CSS text-shadow.
func parseShadowColor(shadow string) (color.NRGBA, error) {
	start := strings.Index(shadow, "rgba(")
	end := strings.LastIndex(shadow, ")")
	if start < 0 || end < start {
		return color.NRGBA{}, fmt.Errorf("no rgba colour in %q", shadow)
	}
	parts := strings.Split(shadow[start+len("rgba("):end], ",")
	if len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("malformed rgba in %q", shadow)
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 || n > 255 {
			return color.NRGBA{}, fmt.Errorf("malformed rgba in %q", shadow)
		}
		ch[i] = uint8(n)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil || a < 0 || a > 1 {
		return color.NRGBA{}, fmt.Errorf("malformed rgba in %q", shadow)
	}
	return color.NRGBA{ch[0], ch[1], ch[2], uint8(a*255 + 0.5)}, nil
}
