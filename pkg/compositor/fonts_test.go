package compositor

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"golang.org/x/image/font/gofont/gomono"
)

func TestBuiltinFaces(t *testing.T) {
	tests := []struct {
		style  FontStyle
		weight Weight
		want   string
	}{
		{StyleSans, WeightRegular, "goregular"},
		{StyleSans, WeightMedium, "gomedium"},
		{StyleSans, WeightSemibold, "gobold"},
		{StyleSans, WeightBold, "gobold"},
		{StyleSerif, WeightBold, "gosmallcaps"},
		{StyleCursive, WeightRegular, "goitalic"},
		{StyleCursive, WeightMedium, "gomediumitalic"},
		{StyleCursive, WeightBold, "gobolditalic"},
		{StyleMonospace, WeightMedium, "gomono"},
		{StyleMonospace, WeightSemibold, "gomonobold"},
		{StyleBold, WeightMedium, "gobold"},
		{"unknown", WeightRegular, "goregular"},
	}
	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			if got, _ := builtin(tt.style, tt.weight); got != tt.want {
				t.Errorf("builtin(%s, %d) = %s, want %s", tt.style, tt.weight, got, tt.want)
			}
		})
	}
}

func TestFontStyleCSS(t *testing.T) {
	want := map[FontStyle]string{
		StyleSans:      "Arial, sans-serif",
		StyleSerif:     "Georgia, serif",
		StyleCursive:   "cursive",
		StyleMonospace: "monospace",
		StyleBold:      "Arial Black, sans-serif",
	}
	for _, s := range FontStyles {
		if !s.Valid() {
			t.Errorf("%s not valid", s)
		}
		if s.CSS() != want[s] {
			t.Errorf("%s CSS = %q, want %q", s, s.CSS(), want[s])
		}
	}
	if FontStyle("comic").Valid() {
		t.Error("unknown style reported valid")
	}
}

func TestFontManagerOverrides(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "mono.ttf")
	bad := filepath.Join(dir, "bad.ttf")
	os.WriteFile(good, gomono.TTF, 0o644)
	os.WriteFile(bad, []byte("not a font"), 0o644)

	fm, err := NewFontManager(map[FontStyle]string{
		StyleSerif:   good,
		StyleCursive: bad,
		StyleBold:    filepath.Join(dir, "missing.ttf"),
	}, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := fm.overrides[StyleSerif]; !ok {
		t.Error("valid override not loaded")
	}
	if len(fm.overrides) != 1 {
		t.Errorf("overrides = %d, want 1", len(fm.overrides))
	}

	for _, s := range FontStyles {
		face, err := fm.Face(s, WeightBold, 24)
		if err != nil {
			t.Fatalf("Face(%s): %v", s, err)
		}
		if h := face.Metrics().Height.Ceil(); h <= 0 {
			t.Errorf("Face(%s) height = %d", s, h)
		}
		face.Close()
	}
}
