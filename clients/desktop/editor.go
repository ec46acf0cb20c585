// Package desktop is the StoryStencil desktop editor: a live preview of a
// scene file with drag and resize on the canvas.
package desktop

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/xob0t/StoryStencil/clients/desktop/viewport"
	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/interaction"
	"github.com/xob0t/StoryStencil/pkg/layout"
	"github.com/xob0t/StoryStencil/pkg/pipeline"
)

const margin = 24

var (
	backdrop     = color.RGBA{24, 24, 32, 255}
	outlineColor = color.RGBA{255, 255, 255, 60}
	activeColor  = color.RGBA{80, 200, 255, 255}
)

// Options configure an Editor.
type Options struct {
	Path     string
	Platform export.Platform
	Format   export.Format
	Chain    *export.Chain
}

// Editor implements ebiten.Game over one scene file.
type Editor struct {
	tk       *pipeline.Toolkit
	file     *compositor.SceneFile
	ctrl     *interaction.Controller
	renderer *compositor.Renderer
	opts     Options
	logger   *log.Logger

	view viewport.View

	preview   *ebiten.Image
	frame     atomic.Pointer[image.RGBA]
	rendering atomic.Bool
	exporting atomic.Bool
	dirty     bool

	hover   viewport.Target
	hovered bool
	status  atomic.Pointer[string]
}

// New creates an editor for sf. The background's theme is picked before
// the first frame.
func New(ctx context.Context, tk *pipeline.Toolkit, sf *compositor.SceneFile, opts Options) (*Editor, error) {
	r, err := compositor.NewRenderer(tk.Loader,
		compositor.WithFonts(tk.Fonts),
		compositor.WithLogger(tk.Logger))
	if err != nil {
		return nil, err
	}
	if opts.Chain == nil {
		opts.Chain = pipeline.NewChain(tk.Config, "", tk.Logger)
	}
	if sf.Background != "" {
		sf.Theme = tk.Analyzer.ThemeOr(ctx, sf.Background, sf.Theme)
	}

	e := &Editor{
		tk:       tk,
		file:     sf,
		renderer: r,
		opts:     opts,
		logger:   tk.Logger,
		dirty:    true,
	}
	e.ctrl = interaction.NewController(&sf.Layout, interaction.WithChangeHook(e.changed))
	w, h := r.Size()
	e.preview = ebiten.NewImage(w, h)
	e.setStatus("drag to move, drag a corner to resize")
	return e, nil
}

// changed schedules a repaint after a gesture writes to the layout.
func (e *Editor) changed(layout.Element) {
	e.dirty = true
}

// Run opens the editor window and blocks until it closes.
func Run(e *Editor) error {
	ebiten.SetWindowSize(compositor.BaseWidth/2+2*margin+200, compositor.BaseHeight/2+2*margin+200)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowTitle("StoryStencil: " + filepath.Base(e.opts.Path))
	ebiten.SetVsyncEnabled(true)
	return ebiten.RunGame(e)
}

func (e *Editor) Update() error {
	if err := e.handleKeys(); err != nil {
		return err
	}
	e.handlePointer()
	e.refresh()
	return nil
}

func (e *Editor) handleKeys() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		e.ctrl.EndGesture()
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		e.ctrl.EndGesture()
		e.file.Layout.Reset()
		e.dirty = true
		e.setStatus("layout reset")
	case inpututil.IsKeyJustPressed(ebiten.KeyL):
		e.file.IncludeLink = !e.file.IncludeLink
		e.dirty = true
		e.setStatus(fmt.Sprintf("link callout %s", onOff(e.file.IncludeLink)))
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		if err := e.file.Save(e.opts.Path); err != nil {
			e.setStatus(err.Error())
			e.logger.Error("save failed", "path", e.opts.Path, "err", err)
			break
		}
		e.setStatus("saved " + filepath.Base(e.opts.Path))
	case inpututil.IsKeyJustPressed(ebiten.KeyE):
		e.export()
	case inpututil.IsKeyJustPressed(ebiten.KeyQ):
		return ebiten.Termination
	}
	return nil
}

func (e *Editor) handlePointer() {
	x, y := ebiten.CursorPosition()
	fx, fy := float64(x), float64(y)
	ev := &interaction.PointerEvent{ClientX: fx, ClientY: fy, Container: e.view.Rect()}

	e.hover, e.hovered = viewport.HitTest(e.file.Scene, e.view, fx, fy)

	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		if !e.hovered {
			return
		}
		if e.hover.Handle {
			e.ctrl.BeginResize(e.hover.Element, ev)
		} else {
			e.ctrl.BeginDrag(e.hover.Element, ev)
		}
	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		e.ctrl.PointerUp()
	case e.ctrl.Gesture().Mode != interaction.Idle:
		if !e.view.Contains(fx, fy) {
			e.ctrl.PointerLeave()
			return
		}
		e.ctrl.OnPointerMove(ev)
	}
}

// refresh uploads a finished frame and starts the next pass when the
// scene changed. Only one pass runs at a time; changes made meanwhile are
// picked up by the following one.
func (e *Editor) refresh() {
	if img := e.frame.Swap(nil); img != nil {
		e.preview.WritePixels(img.Pix)
	}
	if !e.dirty || !e.rendering.CompareAndSwap(false, true) {
		return
	}
	e.dirty = false
	scene := e.file.Scene

	go func() {
		defer e.rendering.Store(false)
		img, err := e.renderer.Render(context.Background(), scene)
		if err != nil {
			if !errors.Is(err, errors.ErrCodeRenderBusy) {
				e.setStatus(errors.UserMessage(err))
				e.logger.Warn("preview failed", "err", err)
			}
			return
		}
		e.frame.Store(img)
	}()
}

// export sends the clean image (no link callout) through the share chain.
func (e *Editor) export() {
	if !e.exporting.CompareAndSwap(false, true) {
		return
	}
	scene := e.file.Scene
	scene.IncludeLink = false
	e.setStatus("exporting...")

	go func() {
		defer e.exporting.Store(false)
		d, err := e.tk.Runner.Export(context.Background(), scene, e.opts.Format, e.opts.Platform, e.opts.Chain)
		if err != nil {
			e.setStatus(errors.UserMessage(err))
			e.logger.Error("export failed", "err", err)
			return
		}
		e.setStatus(fmt.Sprintf("exported via %s: %s", d.Channel, d.Location))
		e.logger.Info("exported", "channel", d.Channel, "location", d.Location)
	}()
}

func (e *Editor) Draw(screen *ebiten.Image) {
	screen.Fill(backdrop)

	pw, ph := e.preview.Bounds().Dx(), e.preview.Bounds().Dy()
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(e.view.Width/float64(pw), e.view.Height/float64(ph))
	op.GeoM.Translate(e.view.X, e.view.Y)
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(e.preview, op)

	g := e.ctrl.Gesture()
	for _, h := range viewport.Boxes(e.file.Scene, e.view) {
		active := (g.Mode != interaction.Idle && g.Element == h.Element) ||
			(g.Mode == interaction.Idle && e.hovered && e.hover.Element == h.Element)
		if !active {
			strokeBox(screen, h.Box, outlineColor)
			continue
		}
		strokeBox(screen, h.Box, activeColor)
		hb := h.Box.Handle()
		vector.DrawFilledRect(screen, float32(hb.MinX), float32(hb.MinY),
			float32(hb.MaxX-hb.MinX), float32(hb.MaxY-hb.MinY), activeColor, true)
	}

	ebitenutil.DebugPrint(screen, e.statusLine())
}

func strokeBox(screen *ebiten.Image, b viewport.Box, c color.Color) {
	vector.StrokeRect(screen, float32(b.MinX), float32(b.MinY),
		float32(b.MaxX-b.MinX), float32(b.MaxY-b.MinY), 1, c, true)
}

func (e *Editor) Layout(outsideWidth, outsideHeight int) (int, int) {
	e.view = viewport.Fit(outsideWidth, outsideHeight, margin)
	return outsideWidth, outsideHeight
}

func (e *Editor) statusLine() string {
	g := e.ctrl.Gesture()
	line := fmt.Sprintf("%s  %s", e.file.Mode, g.Mode)
	if g.Mode != interaction.Idle {
		p := e.file.Layout.Get(g.Element)
		line += fmt.Sprintf(" %s (%.1f%%, %.1f%%) size %.0f", g.Element, p.Position.X, p.Position.Y, e.file.Layout.Scalar(g.Element))
	}
	if s := e.status.Load(); s != nil {
		line += "\n" + *s
	}
	return line + "\n[R]eset  [L]ink  [S]ave  [E]xport  [Q]uit"
}

func (e *Editor) setStatus(s string) {
	e.status.Store(&s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
