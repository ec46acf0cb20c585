// build.go — Wires configured components into a ready-to-use toolkit.
package pipeline

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/xob0t/StoryStencil/pkg/cache"
	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/config"
	"github.com/xob0t/StoryStencil/pkg/contrast"
	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/generation"
	"github.com/xob0t/StoryStencil/pkg/source"
)

// Toolkit holds every component built from one configuration.
type Toolkit struct {
	Config   config.Config
	Logger   *log.Logger
	Store    *source.Store
	Loader   *source.Loader
	Fonts    *compositor.FontManager
	Cache    cache.Cache
	Analyzer *contrast.Analyzer
	Runner   *Runner
	Backend  generation.Backend
}

// Build creates the toolkit. The caller must Close it.
func Build(ctx context.Context, cfg config.Config, logger *log.Logger) (*Toolkit, error) {
	if logger == nil {
		logger = log.Default()
	}
	store := source.NewStore()
	loader := source.NewLoader(store,
		source.WithLogger(logger),
		source.WithMaxFetch(int64(max(cfg.Server.MaxUploadMB, 1))<<20))

	fonts, err := compositor.NewFontManager(cfg.FontOverrides(), logger)
	if err != nil {
		return nil, err
	}
	c, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		logger.Warn("render cache unavailable, continuing without it", "backend", cfg.Cache.Backend, "err", err)
		c = cache.NewNullCache()
	}

	tk := &Toolkit{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Loader:   loader,
		Fonts:    fonts,
		Cache:    c,
		Analyzer: contrast.NewAnalyzer(loader, contrast.WithLogger(logger)),
		Backend:  NewBackend(cfg, logger),
	}
	if tk.Runner, err = tk.NewRunner(); err != nil {
		c.Close()
		return nil, err
	}
	return tk, nil
}

// NewRunner creates another runner with its own renderer, sharing the
// toolkit's fonts, loader and cache. Each runner renders one pass at a time.
func (t *Toolkit) NewRunner() (*Runner, error) {
	renderer, err := compositor.NewRenderer(t.Loader,
		compositor.WithTarget(t.Config.Canvas.Width, t.Config.Canvas.Height),
		compositor.WithFonts(t.Fonts),
		compositor.WithLogger(t.Logger),
	)
	if err != nil {
		return nil, err
	}
	return NewRunner(renderer, t.Cache, t.Config.Cache.TTL.Duration, t.Logger), nil
}

// Close releases the cache connection.
func (t *Toolkit) Close() error {
	return t.Cache.Close()
}

// NewBackend picks the generation backend named in cfg. "auto" routes
// single-item stories to Replicate and multiple-item stories to Gemini with
// Replicate as fallback, and paints locally when no credentials are set.
func NewBackend(cfg config.Config, logger *log.Logger) generation.Backend {
	g := cfg.Generation
	static := generation.Static{From: g.StaticFrom, To: g.StaticTo}
	replicate := &generation.Replicate{
		Token:        cfg.ReplicateToken,
		BaseURL:      g.ReplicateURL,
		Model:        g.ReplicateModel,
		PollInterval: g.PollInterval.Duration,
		Client:       http.DefaultClient,
		Logger:       logger,
	}
	gemini := &generation.Gemini{
		APIKey:  cfg.GeminiKey,
		BaseURL: g.GeminiURL,
		Model:   g.GeminiModel,
		Client:  http.DefaultClient,
		Logger:  logger,
	}

	switch g.Backend {
	case "static":
		return static
	case "replicate":
		return replicate
	case "gemini":
		return gemini
	}

	switch {
	case cfg.ReplicateToken != "" && cfg.GeminiKey != "":
		return generation.Router{
			Single:   replicate,
			Multiple: generation.Fallback{Primary: gemini, Secondary: replicate, Logger: logger},
		}
	case cfg.ReplicateToken != "":
		return replicate
	case cfg.GeminiKey != "":
		return gemini
	}
	logger.Warn("no generation credentials set, painting backgrounds locally")
	return static
}

// NewChain builds the export chain from the export section: share dir,
// webhook, clipboard, then download into dir. An empty dir uses the
// configured output directory.
func NewChain(cfg config.Config, dir string, logger *log.Logger) *export.Chain {
	e := cfg.Export
	if dir == "" {
		dir = e.OutputDir
	}
	return export.NewChain(logger,
		export.ShareDir{Dir: e.ShareDir},
		export.Webhook{URL: e.ShareWebhook},
		export.Clipboard{Command: e.ClipboardCommand},
		export.Download{Dir: dir},
	)
}
