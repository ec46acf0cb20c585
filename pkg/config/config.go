// Package config loads storystencil.toml.
//
// Every key is optional; Default supplies the rest. Secrets are never read
// from the file, only from REPLICATE_API_TOKEN and GEMINI_API_KEY.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/xob0t/StoryStencil/pkg/cache"
	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/export"
)

// FileName is the config file looked up in the working directory.
const FileName = "storystencil.toml"

// Config is the full configuration.
type Config struct {
	Canvas     Canvas     `toml:"canvas"`
	Fonts      Fonts      `toml:"fonts"`
	Cache      Cache      `toml:"cache"`
	Server     Server     `toml:"server"`
	Generation Generation `toml:"generation"`
	Export     Export     `toml:"export"`

	// Secrets, from the environment.
	ReplicateToken string `toml:"-"`
	GeminiKey      string `toml:"-"`
}

// Canvas is the export surface size.
type Canvas struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Fonts maps font styles to custom TTF paths.
type Fonts struct {
	SansSerif string `toml:"sans_serif"`
	Serif     string `toml:"serif"`
	Cursive   string `toml:"cursive"`
	Monospace string `toml:"monospace"`
	Bold      string `toml:"bold"`
}

// Cache selects the render cache.
type Cache struct {
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	RedisAddr string   `toml:"redis_addr"`
	RedisDB   int      `toml:"redis_db"`
	TTL       Duration `toml:"ttl"`
}

// Server configures `storystencil serve`.
type Server struct {
	Addr         string   `toml:"addr"`
	MaxUploadMB  int      `toml:"max_upload_mb"`
	SessionTTL   Duration `toml:"session_ttl"`
	AllowOrigins []string `toml:"allow_origins"`
}

// Generation configures background generation.
type Generation struct {
	// Backend is "auto", "replicate", "gemini" or "static".
	Backend        string   `toml:"backend"`
	ReplicateURL   string   `toml:"replicate_url"`
	ReplicateModel string   `toml:"replicate_model"`
	GeminiURL      string   `toml:"gemini_url"`
	GeminiModel    string   `toml:"gemini_model"`
	PollInterval   Duration `toml:"poll_interval"`
	StaticFrom     string   `toml:"static_from"`
	StaticTo       string   `toml:"static_to"`
}

// Export configures outputs and share channels.
type Export struct {
	Platform         string   `toml:"platform"`
	Format           string   `toml:"format"`
	OutputDir        string   `toml:"output_dir"`
	ShareDir         string   `toml:"share_dir"`
	ShareWebhook     string   `toml:"share_webhook"`
	ClipboardCommand []string `toml:"clipboard_command"`
}

// Duration is a time.Duration written as "30s" or "24h" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Canvas: Canvas{Width: compositor.BaseWidth, Height: compositor.BaseHeight},
		Cache:  Cache{Backend: cache.BackendNone, TTL: Duration{24 * time.Hour}},
		Server: Server{
			Addr:        "127.0.0.1:8080",
			MaxUploadMB: 20,
			SessionTTL:  Duration{2 * time.Hour},
		},
		Generation: Generation{
			Backend:      "auto",
			PollInterval: Duration{time.Second},
			StaticFrom:   "#1a1a2e",
			StaticTo:     "#e94560",
		},
		Export: Export{
			Platform:  string(export.Instagram),
			Format:    string(export.PNG),
			OutputDir: ".",
		},
	}
}

// Load reads path over the defaults. A missing file at the default
// location is not an error; a missing explicit path is.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = FileName
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if explicit {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	cfg.ReplicateToken = os.Getenv("REPLICATE_API_TOKEN")
	cfg.GeminiKey = os.Getenv("GEMINI_API_KEY")
	return cfg, cfg.Validate()
}

// Validate checks enumerated values.
func (c Config) Validate() error {
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("canvas size must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	switch c.Cache.Backend {
	case "", cache.BackendNone, cache.BackendFile, cache.BackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Generation.Backend {
	case "", "auto", "replicate", "gemini", "static":
	default:
		return fmt.Errorf("unknown generation backend %q", c.Generation.Backend)
	}
	if _, err := export.ParsePlatform(c.Export.Platform); err != nil {
		return err
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return err
	}
	return nil
}

// FontOverrides returns the configured font paths keyed by style.
func (c Config) FontOverrides() map[compositor.FontStyle]string {
	return map[compositor.FontStyle]string{
		compositor.StyleSans:      c.Fonts.SansSerif,
		compositor.StyleSerif:     c.Fonts.Serif,
		compositor.StyleCursive:   c.Fonts.Cursive,
		compositor.StyleMonospace: c.Fonts.Monospace,
		compositor.StyleBold:      c.Fonts.Bold,
	}
}

// CacheOptions converts the cache section for cache.Open.
func (c Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:   c.Cache.Backend,
		Dir:       c.Cache.Dir,
		RedisAddr: c.Cache.RedisAddr,
		RedisDB:   c.Cache.RedisDB,
	}
}

// Example is a commented config written by `storystencil init`.
const Example = `# storystencil.toml

[canvas]
width = 540
height = 960

[fonts]
# serif = "fonts/Georgia.ttf"

[cache]
backend = "none"   # none | file | redis
# dir = ".storystencil-cache"
# redis_addr = "localhost:6379"
ttl = "24h"

[server]
addr = "127.0.0.1:8080"   # ":8080" listens on every interface
max_upload_mb = 20
session_ttl = "2h"

[generation]
backend = "auto"   # auto | replicate | gemini | static
poll_interval = "1s"
static_from = "#1a1a2e"
static_to = "#e94560"

[export]
platform = "instagram"
format = "png"
output_dir = "."
# share_dir = "~/Dropbox/stories"
# share_webhook = "https://example.com/hooks/story"
# clipboard_command = ["wl-copy", "--type", "{mime}"]
`
