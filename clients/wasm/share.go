//go:build js && wasm

package main

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/source"
)

// Browser share channels, in chain order: native file share, data-URL
// share, clipboard, forced download.

func navigator() js.Value { return js.Global().Get("navigator") }

type fileShare struct{}

func (fileShare) Name() string { return "file-share" }

func (fileShare) Supported(a export.Artifact) bool {
	nav := navigator()
	if nav.Get("share").IsUndefined() || nav.Get("canShare").IsUndefined() {
		return false
	}
	return nav.Call("canShare", shareFiles(a)).Bool()
}

func (fileShare) Deliver(_ context.Context, a export.Artifact) (string, error) {
	if _, err := await(navigator().Call("share", shareFiles(a))); err != nil {
		return "", fmt.Errorf("share file: %w", err)
	}
	return a.Name, nil
}

func shareFiles(a export.Artifact) js.Value {
	file := js.Global().Get("File").New(
		[]any{bytesToJS(a.Data)}, a.Name, map[string]any{"type": a.Format.MIME()})
	return js.ValueOf(map[string]any{
		"files": []any{file},
		"title": fmt.Sprintf("%s story", a.Platform),
	})
}

type dataShare struct{}

func (dataShare) Name() string { return "data-share" }

func (dataShare) Supported(export.Artifact) bool {
	return !navigator().Get("share").IsUndefined()
}

func (dataShare) Deliver(_ context.Context, a export.Artifact) (string, error) {
	payload := js.ValueOf(map[string]any{
		"title": fmt.Sprintf("%s story", a.Platform),
		"url":   dataURL(a),
	})
	if _, err := await(navigator().Call("share", payload)); err != nil {
		return "", fmt.Errorf("share data: %w", err)
	}
	return a.Name, nil
}

func dataURL(a export.Artifact) string {
	return source.DataURL(a.Format.MIME(), a.Data)
}

type clipboard struct{}

func (clipboard) Name() string { return "clipboard" }

func (clipboard) Supported(export.Artifact) bool {
	cb := navigator().Get("clipboard")
	return !cb.IsUndefined() && !cb.Get("write").IsUndefined() &&
		!js.Global().Get("ClipboardItem").IsUndefined()
}

func (clipboard) Deliver(_ context.Context, a export.Artifact) (string, error) {
	item := js.Global().Get("ClipboardItem").New(map[string]any{
		a.Format.MIME(): blob(a.Data, a.Format.MIME()),
	})
	if _, err := await(navigator().Get("clipboard").Call("write", []any{item})); err != nil {
		return "", fmt.Errorf("copy to clipboard: %w", err)
	}
	return "clipboard", nil
}

type download struct{}

func (download) Name() string { return "download" }

func (download) Supported(export.Artifact) bool { return true }

func (download) Deliver(_ context.Context, a export.Artifact) (string, error) {
	name := export.FallbackName(a.Platform, a.Created, a.Format)
	saveBlob(a.Data, a.Format.MIME(), name)
	return name, nil
}

// saveBlob triggers a browser download through a temporary anchor.
func saveBlob(data []byte, mime, name string) {
	url := js.Global().Get("URL")
	href := url.Call("createObjectURL", blob(data, mime))
	doc := js.Global().Get("document")
	a := doc.Call("createElement", "a")
	a.Set("href", href)
	a.Set("download", name)
	doc.Get("body").Call("appendChild", a)
	a.Call("click")
	a.Call("remove")
	url.Call("revokeObjectURL", href)
}
