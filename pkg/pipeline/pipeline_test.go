package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xob0t/StoryStencil/pkg/cache"
	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/config"
	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/generation"
	"github.com/xob0t/StoryStencil/pkg/source"
)

type countingDecoder struct {
	calls atomic.Int32
}

func (d *countingDecoder) Decode(_ context.Context, ref source.Ref) (image.Image, error) {
	d.calls.Add(1)
	if ref == "missing" {
		return nil, errors.New(errors.ErrCodeDecode, "cannot decode %s", ref)
	}
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img, nil
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestRunner(t *testing.T, c cache.Cache) (*Runner, *countingDecoder) {
	t.Helper()
	dec := &countingDecoder{}
	r, err := compositor.NewRenderer(dec, compositor.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	return NewRunner(r, c, time.Hour, quietLogger()), dec
}

func testScene() compositor.Scene {
	s := compositor.NewScene()
	s.Background = "bg"
	s.Content.Title = "Hello"
	return s
}

func TestRunnerRenderCaches(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r, dec := newTestRunner(t, fc)
	ctx := context.Background()

	first, err := r.Render(ctx, testScene(), export.PNG)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Error("first render reported a cache hit")
	}
	img, err := png.Decode(bytes.NewReader(first.Data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != compositor.BaseWidth || b.Dy() != compositor.BaseHeight {
		t.Errorf("size = %v", b)
	}

	calls := dec.calls.Load()
	second, err := r.Render(ctx, testScene(), export.PNG)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit || !bytes.Equal(first.Data, second.Data) {
		t.Error("second render missed the cache")
	}
	if dec.calls.Load() != calls {
		t.Error("cache hit still decoded images")
	}

	changed := testScene()
	changed.Content.Title = "Other"
	if out, _ := r.Render(ctx, changed, export.PNG); out.CacheHit {
		t.Error("changed scene hit the cache")
	}
}

func TestRunnerRenderError(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	s := testScene()
	s.Background = "missing"
	_, err := r.Render(context.Background(), s, export.JPEG)
	if !errors.Is(err, errors.ErrCodeDecode) {
		t.Errorf("err = %v, want DECODE_FAILED", err)
	}
}

func TestRunnerExportFallsBackToDownload(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	dir := t.TempDir()
	chain := export.NewChain(quietLogger(),
		export.ShareDir{Dir: ""},
		export.Webhook{},
		export.Download{Dir: dir},
	)
	d, err := r.Export(context.Background(), testScene(), export.PNG, export.Facebook, chain)
	if err != nil {
		t.Fatal(err)
	}
	if d.Channel != "download" {
		t.Errorf("channel = %q", d.Channel)
	}
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name      string
		backend   string
		replicate string
		gemini    string
		want      string
	}{
		{"auto without keys", "auto", "", "", "static"},
		{"auto replicate only", "auto", "r", "", "replicate"},
		{"auto gemini only", "auto", "", "g", "gemini"},
		{"auto both", "auto", "r", "g", "router"},
		{"forced static", "static", "r", "g", "static"},
		{"forced gemini", "gemini", "r", "", "gemini"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Generation.Backend = tt.backend
			cfg.ReplicateToken = tt.replicate
			cfg.GeminiKey = tt.gemini
			if got := NewBackend(cfg, quietLogger()).Name(); got != tt.want {
				t.Errorf("backend = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewBackendRoutesMultipleToFallback(t *testing.T) {
	cfg := config.Default()
	cfg.ReplicateToken, cfg.GeminiKey = "r", "g"
	router, ok := NewBackend(cfg, quietLogger()).(generation.Router)
	if !ok {
		t.Fatal("auto with both keys is not a router")
	}
	if got := router.Multiple.Name(); got != "gemini+replicate" {
		t.Errorf("multiple = %q", got)
	}
	if got := router.Single.Name(); got != "replicate" {
		t.Errorf("single = %q", got)
	}
}

func TestNewChainOrder(t *testing.T) {
	chain := NewChain(config.Default(), "", quietLogger())
	want := []string{"file-share", "data-share", "clipboard", "download"}
	if got := chain.Channels(); !slices.Equal(got, want) {
		t.Errorf("channels = %v, want %v", got, want)
	}
}

func TestBuild(t *testing.T) {
	cfg := config.Default()
	tk, err := Build(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer tk.Close()
	if w, h := tk.Runner.Renderer.Size(); w != cfg.Canvas.Width || h != cfg.Canvas.Height {
		t.Errorf("renderer size = %dx%d", w, h)
	}
	if tk.Backend == nil || tk.Analyzer == nil || tk.Store == nil {
		t.Error("toolkit incomplete")
	}
}
