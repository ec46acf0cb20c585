// static.go — Offline backgrounds: a solid colour or a vertical two-colour
// gradient, for running without any generation service.
package generation

import (
	"context"
	"crypto/rand"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"
	"time"

	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/source"
)

// Static paints a background locally. Colors are "#rrggbb" or "random";
// an empty To gives a solid fill.
type Static struct {
	From string
	To   string
}

func (s Static) Name() string { return "static" }

func (s Static) Generate(_ context.Context, _ Request) (Result, error) {
	from, err := ParseColor(s.From)
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "background colour")
	}

	var img image.Image
	if s.To == "" {
		img = NewSolidImage(OutputWidth, OutputHeight, from)
	} else {
		to, err := ParseColor(s.To)
		if err != nil {
			return Result{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "background colour")
		}
		img = NewGradientImage(OutputWidth, OutputHeight, from, to)
	}

	data, err := export.EncodeBytes(img, export.PNG)
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeGeneration, err, "encode background")
	}
	return Result{
		ID:      fmt.Sprintf("static_%d", time.Now().UnixMilli()),
		Status:  StatusSucceeded,
		Output:  []string{source.DataURL("image/png", data)},
		Model:   "static",
		Backend: s.Name(),
	}, nil
}

// ParseColor parses "#rrggbb", or picks a random colour for "random" or "".
func ParseColor(s string) (color.RGBA, error) {
	if s == "" || s == "random" {
		buf := make([]byte, 3)
		if _, err := rand.Read(buf); err != nil {
			return color.RGBA{}, fmt.Errorf("random color: %w", err)
		}
		return color.RGBA{buf[0], buf[1], buf[2], 255}, nil
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: expected 6-char hex", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}, nil
}

// NewSolidImage creates a uniform image.
func NewSolidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// NewGradientImage blends from top to bottom.
func NewGradientImage(w, h int, from, to color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	lerp := func(a, b uint8, t float64) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
	}
	for y := 0; y < h; y++ {
		t := 0.0
		if h > 1 {
			t = float64(y) / float64(h-1)
		}
		row := color.RGBA{lerp(from.R, to.R, t), lerp(from.G, to.G, t), lerp(from.B, to.B, t), 255}
		draw.Draw(img, image.Rect(0, y, w, y+1), &image.Uniform{row}, image.Point{}, draw.Src)
	}
	return img
}
