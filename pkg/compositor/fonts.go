// fonts.go — Font styles, weights and the embedded Go font families behind them.
// Uses golang.org/x/image/font/opentype. Each style may be overridden with a
// custom TTF; a style whose override fails to load falls back to its embedded face.
package compositor

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/opentype"
)

// FontStyle is the user-facing font family choice.
type FontStyle string

const (
	StyleSans      FontStyle = "sans-serif"
	StyleSerif     FontStyle = "serif"
	StyleCursive   FontStyle = "cursive"
	StyleMonospace FontStyle = "monospace"
	StyleBold      FontStyle = "bold"
)

// FontStyles lists every style in menu order.
var FontStyles = []FontStyle{StyleSans, StyleSerif, StyleCursive, StyleMonospace, StyleBold}

// Valid reports whether s is a known style.
func (s FontStyle) Valid() bool {
	for _, v := range FontStyles {
		if s == v {
			return true
		}
	}
	return false
}

// CSS returns the CSS font-family list the style stands for.
func (s FontStyle) CSS() string {
	switch s {
	case StyleSerif:
		return "Georgia, serif"
	case StyleCursive:
		return "cursive"
	case StyleMonospace:
		return "monospace"
	case StyleBold:
		return "Arial Black, sans-serif"
	default:
		return "Arial, sans-serif"
	}
}

// Weight is a CSS font weight.
type Weight int

const (
	WeightRegular  Weight = 400
	WeightMedium   Weight = 500
	WeightSemibold Weight = 600
	WeightBold     Weight = 700
)

// builtin maps a style and weight to an embedded TTF.
func builtin(s FontStyle, w Weight) (name string, ttf []byte) {
	switch s {
	case StyleSerif:
		return "gosmallcaps", gosmallcaps.TTF
	case StyleCursive:
		switch {
		case w >= WeightSemibold:
			return "gobolditalic", gobolditalic.TTF
		case w == WeightMedium:
			return "gomediumitalic", gomediumitalic.TTF
		}
		return "goitalic", goitalic.TTF
	case StyleMonospace:
		if w >= WeightSemibold {
			return "gomonobold", gomonobold.TTF
		}
		return "gomono", gomono.TTF
	case StyleBold:
		return "gobold", gobold.TTF
	}
	switch {
	case w >= WeightSemibold:
		return "gobold", gobold.TTF
	case w == WeightMedium:
		return "gomedium", gomedium.TTF
	}
	return "goregular", goregular.TTF
}

// FontManager parses fonts once and hands out faces.
type FontManager struct {
	mu        sync.Mutex
	parsed    map[string]*opentype.Font
	overrides map[FontStyle]*opentype.Font
	dpi       float64
}

// NewFontManager creates a font manager. overrides maps a style to a TTF or
// OTF path; unreadable overrides are logged and skipped.
func NewFontManager(overrides map[FontStyle]string, logger *log.Logger) (*FontManager, error) {
	if logger == nil {
		logger = log.Default()
	}
	fm := &FontManager{
		parsed:    make(map[string]*opentype.Font),
		overrides: make(map[FontStyle]*opentype.Font),
		dpi:       72,
	}

	for style, path := range overrides {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("could not load custom font, using default", "style", style, "path", path, "err", err)
			continue
		}
		f, err := opentype.Parse(data)
		if err != nil {
			logger.Warn("could not parse custom font, using default", "style", style, "path", path, "err", err)
			continue
		}
		fm.overrides[style] = f
	}

	// Fail early if the embedded fallback is unusable.
	if _, err := fm.font(StyleSans, WeightRegular); err != nil {
		return nil, err
	}
	return fm, nil
}

func (fm *FontManager) font(s FontStyle, w Weight) (*opentype.Font, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if f, ok := fm.overrides[s]; ok {
		return f, nil
	}
	name, ttf := builtin(s, w)
	if f, ok := fm.parsed[name]; ok {
		return f, nil
	}
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", name, err)
	}
	fm.parsed[name] = f
	return f, nil
}

// Face returns a face for the style and weight at size pixels. The caller
// owns the face and should Close it.
func (fm *FontManager) Face(s FontStyle, w Weight, size float64) (font.Face, error) {
	f, err := fm.font(s, w)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     fm.dpi,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}
