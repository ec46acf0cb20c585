package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/config"
	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/session"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() { out = prev })
	return &buf
}

func testContext(cfg config.Config) context.Context {
	ctx := withLogger(context.Background(), log.New(io.Discard))
	return withConfig(ctx, cfg)
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.0.0", "abc123", "2026-01-01")
	if version != "1.0.0" || commit != "abc123" || date != "2026-01-01" {
		t.Errorf("version info = %q %q %q", version, commit, date)
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"render", "analyze", "generate", "pick", "serve", "init", "describe"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestLoggerFromContextDefault(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("missing logger did not fall back to log.Default")
	}
	if configFromContext(context.Background()).Canvas.Width != compositor.BaseWidth {
		t.Error("missing config did not fall back to defaults")
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		flag, output, fallback string
		want                   export.Format
	}{
		{"webp", "story.png", "png", export.WebP},
		{"", "story.jpg", "png", export.JPEG},
		{"", "", "webp", export.WebP},
		{"", "story", "png", export.PNG},
	}
	for _, tt := range tests {
		got, err := outputFormat(tt.flag, tt.output, tt.fallback)
		if err != nil || got != tt.want {
			t.Errorf("outputFormat(%q, %q, %q) = %v, %v; want %v", tt.flag, tt.output, tt.fallback, got, err, tt.want)
		}
	}
	if _, err := outputFormat("gif", "", "png"); err == nil {
		t.Error("gif accepted")
	}
}

func TestCheckImageCount(t *testing.T) {
	tests := []struct {
		mode    compositor.Mode
		n       int
		wantErr bool
	}{
		{compositor.ModeSingle, 0, false},
		{compositor.ModeSingle, 3, false},
		{compositor.ModeSingle, 4, true},
		{compositor.ModeMultiple, 1, true},
		{compositor.ModeMultiple, 4, false},
		{compositor.ModeMultiple, 5, true},
	}
	for _, tt := range tests {
		if err := checkImageCount(tt.mode, tt.n); (err != nil) != tt.wantErr {
			t.Errorf("checkImageCount(%s, %d) = %v", tt.mode, tt.n, err)
		}
	}
}

func TestRunRender(t *testing.T) {
	captureOutput(t)
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "bg.png"), color.White)
	writePNG(t, filepath.Join(dir, "a.png"), color.NRGBA{255, 0, 0, 255})

	scene := `{"mode": "single", "background": "bg.png", "images": ["a.png"], "content": {"title": "Hi", "price": "$5"}}`
	scenePath := filepath.Join(dir, "scene.json")
	os.WriteFile(scenePath, []byte(scene), 0o644)

	cfg := config.Default()
	cfg.Export.OutputDir = dir
	output := filepath.Join(dir, "story.jpg")

	opts := &renderOpts{output: output}
	if err := runRender(testContext(cfg), scenePath, opts, nil); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if format != "jpeg" || img.Bounds().Dx() != 540 {
		t.Errorf("output = %s %v", format, img.Bounds())
	}
}

func TestRunRenderVariants(t *testing.T) {
	captureOutput(t)
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "bg.png"), color.Black)
	os.WriteFile(filepath.Join(dir, "scene.json"), []byte(`{"background": "bg.png"}`), 0o644)

	cfg := config.Default()
	cfg.Export.OutputDir = dir
	opts := &renderOpts{variants: true, platform: "facebook"}
	if err := runRender(testContext(cfg), filepath.Join(dir, "scene.json"), opts, nil); err != nil {
		t.Fatal(err)
	}

	with, _ := filepath.Glob(filepath.Join(dir, "facebook-story-with-link-*.png"))
	without, _ := filepath.Glob(filepath.Join(dir, "facebook-story-no-link-*.png"))
	if len(with) != 1 || len(without) != 1 {
		t.Errorf("variants = %v %v", with, without)
	}
}

func TestRunInit(t *testing.T) {
	buf := captureOutput(t)
	dir := t.TempDir()
	if err := runInit(dir, false); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{compositor.SceneFileName, "data.json", config.FileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	buf.Reset()
	if err := runInit(dir, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "skipped") {
		t.Error("existing files were not skipped")
	}
	if _, err := compositor.LoadSceneFile(filepath.Join(dir, compositor.SceneFileName)); err != nil {
		t.Errorf("sample scene does not parse: %v", err)
	}
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func press(m PickModel, keys ...tea.KeyMsg) PickModel {
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(PickModel)
	}
	return m
}

func TestPickModelOrder(t *testing.T) {
	paths := []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png"}
	m := NewPickModel(paths)

	// Select c, a, then try e after four are picked.
	m = press(m, key(tea.KeyDown), key(tea.KeyDown), key(tea.KeySpace))
	m = press(m, key(tea.KeyUp), key(tea.KeyUp), key(tea.KeySpace))
	m = press(m, key(tea.KeyDown), key(tea.KeySpace))
	m = press(m, key(tea.KeyDown), key(tea.KeyDown), key(tea.KeySpace))
	m = press(m, key(tea.KeyDown), key(tea.KeySpace))

	want := []string{"c.png", "a.png", "b.png", "d.png"}
	if got := m.Picked(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("picked = %v, want %v", got, want)
	}

	// Deselecting a keeps the others in order.
	m = press(m, key(tea.KeyUp), key(tea.KeyUp), key(tea.KeyUp), key(tea.KeyUp), key(tea.KeySpace))
	if got := m.Picked(); strings.Join(got, ",") != "c.png,b.png,d.png" {
		t.Errorf("after deselect = %v", got)
	}
}

func TestPickModelConfirmNeedsTwo(t *testing.T) {
	m := press(NewPickModel([]string{"a.png", "b.png"}), key(tea.KeySpace), key(tea.KeyEnter))
	if m.Confirmed || m.Message != session.MsgSelectImages {
		t.Errorf("confirmed with one image: %+v", m)
	}
	m = press(m, key(tea.KeyDown), key(tea.KeySpace), key(tea.KeyEnter))
	if !m.Confirmed {
		t.Error("two images not confirmed")
	}
	if !strings.Contains(m.View(), "2 of 4 selected") {
		t.Errorf("view = %q", m.View())
	}
}

func TestWritePickedScene(t *testing.T) {
	captureOutput(t)
	dir := t.TempDir()
	output := filepath.Join(dir, "scene.json")
	images := []string{filepath.Join(dir, "b.png"), filepath.Join(dir, "a.png")}

	if err := writePickedScene("", output, images); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(output)
	var doc struct {
		Mode   string   `json:"mode"`
		Images []string `json:"images"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Mode != "multiple" || strings.Join(doc.Images, ",") != "b.png,a.png" {
		t.Errorf("scene = %+v", doc)
	}
}
