// Package contrast picks a readable text colour for a background by sampling
// its luminance where the captions sit.
package contrast

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/charmbracelet/log"

	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/source"
)

// Threshold separates bright from dark backgrounds.
const Threshold = 0.5

// SampleRows are the vertical positions sampled at the horizontal centre,
// as fractions of the image height: title, description, price and
// beneficiary rows.
var SampleRows = []float64{0.15, 0.22, 0.80, 0.90}

// Result is the outcome of one analysis.
type Result struct {
	Luminance float64 `json:"luminance"`
	Theme     Theme   `json:"theme"`
}

// Analyzer decodes backgrounds and chooses themes.
type Analyzer struct {
	decoder source.Decoder
	logger  *log.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the analyzer's logger.
func WithLogger(lg *log.Logger) Option {
	return func(a *Analyzer) { a.logger = lg }
}

// NewAnalyzer creates an analyzer that decodes through d.
func NewAnalyzer(d source.Decoder, opts ...Option) *Analyzer {
	a := &Analyzer{decoder: d, logger: log.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze decodes ref and returns its sampled luminance and theme.
func (a *Analyzer) Analyze(ctx context.Context, ref source.Ref) (Result, error) {
	img, err := a.decoder.Decode(ctx, ref)
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeAnalysis, err, "analyze %s", ref)
	}
	return AnalyzeImage(img)
}

// ThemeOr analyzes ref and returns its theme, or prev when analysis fails.
func (a *Analyzer) ThemeOr(ctx context.Context, ref source.Ref, prev Theme) Theme {
	res, err := a.Analyze(ctx, ref)
	if err != nil {
		a.logger.Warn("background analysis failed, keeping theme", "ref", ref, "err", err)
		return prev
	}
	a.logger.Debug("background analyzed", "luminance", res.Luminance, "text", res.Theme.TextColor)
	return res.Theme
}

// AnalyzeImage samples img and picks a theme.
func AnalyzeImage(img image.Image) (Result, error) {
	l, err := Luminance(img)
	if err != nil {
		return Result{}, err
	}
	return Result{Luminance: l, Theme: ForLuminance(l)}, nil
}

// Luminance returns the mean relative luminance of the sample points.
func Luminance(img image.Image) (float64, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return 0, errors.New(errors.ErrCodeAnalysis, "image has no pixels")
	}

	x := b.Min.X + int(math.Floor(float64(w)*0.5))
	var sum float64
	for _, f := range SampleRows {
		y := b.Min.Y + int(math.Floor(float64(h)*f))
		sum += pixelLuminance(img.At(x, y))
	}
	return sum / float64(len(SampleRows)), nil
}

// pixelLuminance uses Rec. 601 weights over straight (unpremultiplied) RGB.
func pixelLuminance(c color.Color) float64 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return (0.299*float64(n.R) + 0.587*float64(n.G) + 0.114*float64(n.B)) / 255
}
