//go:build js && wasm

// StoryStencil WASM — in-browser editor core.
// Compiled with: GOOS=js GOARCH=wasm go build -o storystencil.wasm ./clients/wasm/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"syscall/js"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/contrast"
	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/interaction"
	"github.com/xob0t/StoryStencil/pkg/layout"
	"github.com/xob0t/StoryStencil/pkg/session"
	"github.com/xob0t/StoryStencil/pkg/source"
)

// editor holds the page's single session and the render stack behind it.
type editor struct {
	store    *source.Store
	loader   *source.Loader
	analyzer *contrast.Analyzer
	renderer *compositor.Renderer
	sess     *session.Session
	logger   *log.Logger
}

var ed *editor

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "storystencil"})

	store := source.NewStore()
	loader := source.NewLoader(store, source.WithLogger(logger))
	renderer, err := compositor.NewRenderer(loader, compositor.WithLogger(logger))
	if err != nil {
		logger.Fatal("renderer", "err", err)
	}
	ed = &editor{
		store:    store,
		loader:   loader,
		analyzer: contrast.NewAnalyzer(loader, contrast.WithLogger(logger)),
		renderer: renderer,
		sess:     session.New("browser", store),
		logger:   logger,
	}

	funcs := map[string]func(js.Value, []js.Value) any{
		"storyView":          ed.view,
		"storySetMode":       ed.setMode,
		"storyAddUploads":    ed.addUploads,
		"storyRemoveUpload":  ed.removeUpload,
		"storyToggleImage":   ed.toggleImage,
		"storySetContent":    ed.setContent,
		"storySetBackground": ed.setBackground,
		"storyValidate":      ed.validate,
		"storyPointerDown":   ed.pointerDown,
		"storyPointerMove":   ed.pointerMove,
		"storyPointerUp":     ed.pointerUp,
		"storyResetLayout":   ed.resetLayout,
		"storyRender":        ed.render,
		"storyDownload":      ed.download,
		"storyShare":         ed.share,
	}
	for name, fn := range funcs {
		js.Global().Set(name, js.FuncOf(fn))
	}
	js.Global().Set("storyReady", js.ValueOf(true))
	logger.Info("StoryStencil WASM loaded")

	// Block forever (WASM must not exit).
	select {}
}

// storyView() — the session as a plain object.
func (e *editor) view(js.Value, []js.Value) any {
	return toJS(e.sess.View())
}

// storySetMode(mode)
func (e *editor) setMode(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return jsError(fmt.Errorf("need mode"))
	}
	m, err := compositor.ParseMode(args[0].String())
	if err != nil {
		return jsError(err)
	}
	e.sess.SetMode(m)
	return toJS(e.sess.View())
}

// storyAddUploads([{name, type, data: Uint8Array}, ...])
func (e *editor) addUploads(_ js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		return jsError(fmt.Errorf("need a list of files"))
	}
	list := args[0]
	files := make([]session.File, list.Length())
	for i := range files {
		f := list.Index(i)
		files[i] = session.File{
			Name: f.Get("name").String(),
			MIME: f.Get("type").String(),
			Data: bytesFromJS(f.Get("data")),
		}
	}
	if err := e.sess.AddUploads(files); err != nil {
		return jsError(err)
	}
	return toJS(e.sess.View())
}

// storyRemoveUpload(index)
func (e *editor) removeUpload(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return jsError(fmt.Errorf("need index"))
	}
	if err := e.sess.RemoveUpload(args[0].Int()); err != nil {
		return jsError(err)
	}
	return toJS(e.sess.View())
}

// storyToggleImage(index)
func (e *editor) toggleImage(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return jsError(fmt.Errorf("need index"))
	}
	if _, err := e.sess.ToggleSelected(args[0].Int()); err != nil {
		return jsError(err)
	}
	return toJS(e.sess.View())
}

// storySetContent({title, description, price, ...}, font?)
func (e *editor) setContent(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return jsError(fmt.Errorf("need content"))
	}
	var c compositor.Content
	if err := fromJS(args[0], &c); err != nil {
		return jsError(err)
	}
	e.sess.SetContent(c)
	if len(args) > 1 && args[1].Type() == js.TypeString {
		if err := e.sess.SetFont(compositor.FontStyle(args[1].String())); err != nil {
			return jsError(err)
		}
	}
	return toJS(e.sess.View())
}

// storyValidate() — null when the story is ready to generate, else
// {error, code} with the message to show.
func (e *editor) validate(js.Value, []js.Value) any {
	if err := e.sess.Validate(); err != nil {
		return jsError(err)
	}
	return js.Null()
}

// storySetBackground(Uint8Array, mime) — resolves to the new theme.
func (e *editor) setBackground(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		return jsError(fmt.Errorf("need data and mime"))
	}
	data := bytesFromJS(args[0])
	mime := args[1].String()
	return promise(func() (any, error) {
		id := e.store.Add("background", data, mime)
		e.sess.SetBackground(context.Background(), source.AssetRef(id), e.analyzer)
		return toJS(e.sess.Theme()), nil
	})
}

// storyPointerDown("drag"|"resize", element, event, rect)
func (e *editor) pointerDown(_ js.Value, args []js.Value) any {
	if len(args) < 4 {
		return jsError(fmt.Errorf("need kind, element, event and rect"))
	}
	el, err := layout.ParseElement(args[1].String())
	if err != nil {
		return jsError(err)
	}
	ev := pointerEvent(args[2], args[3])
	switch args[0].String() {
	case "drag":
		e.sess.BeginDrag(el, ev)
	case "resize":
		e.sess.BeginResize(el, ev)
	default:
		return jsError(fmt.Errorf("unknown gesture %q", args[0].String()))
	}
	if ev.PropagationStopped() {
		args[2].Call("stopPropagation")
	}
	if ev.DefaultPrevented() {
		args[2].Call("preventDefault")
	}
	return nil
}

// storyPointerMove(event, rect) — the layout when it changed, else null.
func (e *editor) pointerMove(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		return jsError(fmt.Errorf("need event and rect"))
	}
	if !e.sess.PointerMove(pointerEvent(args[0], args[1])) {
		return js.Null()
	}
	return toJS(e.sess.Layout())
}

// storyPointerUp() — also bound to pointerleave.
func (e *editor) pointerUp(js.Value, []js.Value) any {
	e.sess.EndGesture()
	return nil
}

// storyResetLayout()
func (e *editor) resetLayout(js.Value, []js.Value) any {
	e.sess.ResetLayout()
	return toJS(e.sess.Layout())
}

// storyRender(includeLink, format?) — resolves to encoded bytes.
func (e *editor) render(_ js.Value, args []js.Value) any {
	includeLink, format := renderArgs(args)
	return promise(func() (any, error) {
		data, err := e.encode(includeLink, format)
		if err != nil {
			return nil, err
		}
		return bytesToJS(data), nil
	})
}

// storyDownload(platform, includeLink, format?) — saves via an anchor click.
func (e *editor) download(_ js.Value, args []js.Value) any {
	platform := platformArg(args)
	includeLink, format := renderArgs(args[min(1, len(args)):])
	return promise(func() (any, error) {
		data, err := e.encode(includeLink, format)
		if err != nil {
			return nil, err
		}
		name := export.DownloadName(platform, includeLink, time.Now(), format)
		saveBlob(data, format.MIME(), name)
		return name, nil
	})
}

// storyShare(platform, format?) — runs the clean image through the share
// chain and resolves to {channel, location}.
func (e *editor) share(_ js.Value, args []js.Value) any {
	platform := platformArg(args)
	_, format := renderArgs(args)
	return promise(func() (any, error) {
		data, err := e.encode(false, format)
		if err != nil {
			return nil, err
		}
		chain := export.NewChain(e.logger, fileShare{}, dataShare{}, clipboard{}, download{})
		d, err := chain.Deliver(context.Background(), export.NewArtifact(data, format, platform))
		if err != nil {
			return nil, err
		}
		return toJS(d), nil
	})
}

func (e *editor) encode(includeLink bool, f export.Format) ([]byte, error) {
	img, err := e.renderer.Render(context.Background(), e.sess.Scene(includeLink))
	if err != nil {
		return nil, err
	}
	return export.EncodeBytes(img, f)
}

func pointerEvent(ev, rect js.Value) *interaction.PointerEvent {
	return &interaction.PointerEvent{
		ClientX: ev.Get("clientX").Float(),
		ClientY: ev.Get("clientY").Float(),
		Container: interaction.Rect{
			Left:   rect.Get("left").Float(),
			Top:    rect.Get("top").Float(),
			Width:  rect.Get("width").Float(),
			Height: rect.Get("height").Float(),
		},
	}
}

func renderArgs(args []js.Value) (includeLink bool, f export.Format) {
	f = export.PNG
	for _, a := range args {
		switch a.Type() {
		case js.TypeBoolean:
			includeLink = a.Bool()
		case js.TypeString:
			if parsed, err := export.ParseFormat(a.String()); err == nil {
				f = parsed
			}
		}
	}
	return includeLink, f
}

func platformArg(args []js.Value) export.Platform {
	if len(args) > 0 && args[0].Type() == js.TypeString {
		if p, err := export.ParsePlatform(args[0].String()); err == nil {
			return p
		}
	}
	return export.Instagram
}

// toJS converts v to a plain JS object through JSON.
func toJS(v any) js.Value {
	b, err := json.Marshal(v)
	if err != nil {
		return jsError(err)
	}
	return js.Global().Get("JSON").Call("parse", string(b))
}

func fromJS(v js.Value, dst any) error {
	s := js.Global().Get("JSON").Call("stringify", v).String()
	return json.Unmarshal([]byte(s), dst)
}
