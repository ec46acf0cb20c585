// renderer.go — Paints a Scene onto a fresh surface.
// Layers: background (stretched) -> product images in slot order -> captions.
// All images are decoded concurrently and joined before anything is painted.
package compositor

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/sync/errgroup"

	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/layout"
	"github.com/xob0t/StoryStencil/pkg/source"
)

// Reference surface the layout's logical pixels are measured against.
const (
	BaseWidth  = 540
	BaseHeight = 960
)

// Shadow geometry at scale 1.
const (
	shadowOffset = 2.0
	shadowBlur   = 4.0
)

// ErrBusy is returned when a render is requested while another pass owns
// the renderer. Callers drop the request.
var ErrBusy = errors.New(errors.ErrCodeRenderBusy, "a render is already in progress")

// Renderer composes scenes. One pass runs at a time per renderer.
type Renderer struct {
	decoder source.Decoder
	fonts   *FontManager
	width   int
	height  int
	logger  *log.Logger
	busy    atomic.Bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTarget renders onto a w×h surface instead of 540×960. Positions and
// sizes scale with the surface.
func WithTarget(w, h int) Option {
	return func(r *Renderer) {
		if w > 0 && h > 0 {
			r.width, r.height = w, h
		}
	}
}

// WithFonts sets the font manager.
func WithFonts(fm *FontManager) Option {
	return func(r *Renderer) { r.fonts = fm }
}

// WithLogger sets the renderer's logger.
func WithLogger(lg *log.Logger) Option {
	return func(r *Renderer) { r.logger = lg }
}

// NewRenderer creates a renderer that decodes through d.
func NewRenderer(d source.Decoder, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		decoder: d,
		width:   BaseWidth,
		height:  BaseHeight,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fonts == nil {
		fm, err := NewFontManager(nil, r.logger)
		if err != nil {
			return nil, err
		}
		r.fonts = fm
	}
	return r, nil
}

// Size returns the output dimensions.
func (r *Renderer) Size() (w, h int) {
	return r.width, r.height
}

// Busy reports whether a pass is running.
func (r *Renderer) Busy() bool {
	return r.busy.Load()
}

// Render paints the scene and returns the surface. A render requested while
// another one is running returns ErrBusy. ctx bounds image decoding only.
func (r *Renderer) Render(ctx context.Context, s Scene) (*image.RGBA, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer r.busy.Store(false)

	start := time.Now()
	bg, imgs, err := r.decodeAll(ctx, s)
	if err != nil {
		return nil, err
	}

	surface := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	dc := gg.NewContextForRGBA(surface)
	scaleX := float64(r.width) / BaseWidth
	scaleY := float64(r.height) / BaseHeight

	dc.DrawImage(imaging.Resize(bg, r.width, r.height, imaging.Lanczos), 0, 0)

	for i, img := range imgs {
		r.drawImage(dc, img, s.Layout.Get(layout.ImageSlots[i]), scaleX, scaleY)
	}

	textScale := math.Min(scaleX, scaleY)
	for _, run := range s.textRuns() {
		if err := r.drawText(dc, s, run, textScale); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "draw %s", run.el)
		}
	}

	r.logger.Debug("render complete", "images", len(imgs), "size", surface.Bounds().Size(), "took", time.Since(start))
	return surface, nil
}

// decodeAll decodes the background and every slot image concurrently.
func (r *Renderer) decodeAll(ctx context.Context, s Scene) (image.Image, []image.Image, error) {
	refs := s.slotImages()
	imgs := make([]image.Image, len(refs))
	var bg image.Image

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := r.decoder.Decode(gctx, s.Background)
		if err != nil {
			return err
		}
		bg = img
		return nil
	})
	for i, ref := range refs {
		g.Go(func() error {
			img, err := r.decoder.Decode(gctx, ref)
			if err != nil {
				return err
			}
			imgs[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeDecode, err, "decode images")
		}
		return nil, nil, err
	}
	return bg, imgs, nil
}

// drawImage stretches img into a box centred on the placement.
func (r *Renderer) drawImage(dc *gg.Context, img image.Image, p layout.Placement, scaleX, scaleY float64) {
	w := int(math.Round(p.Size.Width * scaleX))
	h := int(math.Round(p.Size.Height * scaleY))
	if w <= 0 || h <= 0 {
		return
	}
	cx := p.Position.X / 100 * float64(r.width)
	cy := p.Position.Y / 100 * float64(r.height)

	box := imaging.Resize(img, w, h, imaging.Lanczos)
	dc.DrawImage(box, int(math.Round(cx-float64(w)/2)), int(math.Round(cy-float64(h)/2)))
}

// drawText paints one caption centred on its placement, with a blurred
// shadow underneath.
func (r *Renderer) drawText(dc *gg.Context, s Scene, run textRun, scale float64) error {
	p := s.Layout.Get(run.el)
	size := p.Size.FontSize * scale
	if size <= 0 {
		return nil
	}
	face, err := r.fonts.Face(s.Font, run.weight, size)
	if err != nil {
		return err
	}
	defer face.Close()

	cx := p.Position.X / 100 * float64(r.width)
	cy := p.Position.Y / 100 * float64(r.height)

	dc.SetFontFace(face)
	shadow := shadowLayer(dc, face, run.text, s.Theme.Shadow(), shadowBlur*scale)
	off := shadowOffset * scale
	dc.DrawImageAnchored(shadow, int(math.Round(cx+off)), int(math.Round(cy+off)), 0.5, 0.5)

	dc.SetColor(s.Theme.Text())
	dc.DrawStringAnchored(run.text, cx, cy, 0.5, 0.5)
	return nil
}

// shadowLayer draws text in col on its own transparent layer, padded for the
// blur radius, and blurs it. The shadow never touches the main context's state.
func shadowLayer(dc *gg.Context, face font.Face, text string, col color.Color, blur float64) image.Image {
	tw, th := dc.MeasureString(text)
	sigma := blur / 2
	pad := math.Ceil(3*sigma) + 2
	w := int(math.Ceil(tw + 2*pad))
	h := int(math.Ceil(th + 2*pad))

	layer := gg.NewContext(w, h)
	layer.SetFontFace(face)
	layer.SetColor(col)
	layer.DrawStringAnchored(text, float64(w)/2, float64(h)/2, 0.5, 0.5)
	if sigma <= 0 {
		return layer.Image()
	}
	return imaging.Blur(layer.Image(), sigma)
}
