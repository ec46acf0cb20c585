// Package pipeline ties the renderer, the encoders, the render cache and the
// export chain together so the CLI, the HTTP API and the desktop editor share
// one scene → bytes → delivery path.
package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xob0t/StoryStencil/pkg/cache"
	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/export"
)

// Runner renders scenes to encoded bytes with caching.
type Runner struct {
	Renderer *compositor.Renderer
	Cache    cache.Cache
	TTL      time.Duration
	Logger   *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching.
func NewRunner(r *compositor.Renderer, c cache.Cache, ttl time.Duration, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Renderer: r, Cache: c, TTL: ttl, Logger: logger}
}

// Output is one encoded render.
type Output struct {
	Data     []byte
	Format   export.Format
	CacheHit bool
	Duration time.Duration
}

// Render produces the encoded story for scene. Cache failures are logged
// and otherwise ignored.
func (r *Runner) Render(ctx context.Context, scene compositor.Scene, f export.Format) (Output, error) {
	start := time.Now()
	w, h := r.Renderer.Size()
	key := cache.ArtifactKey(scene.Fingerprint(), cache.ArtifactOpts{Format: string(f), Width: w, Height: h})

	if data, ok, err := r.Cache.Get(ctx, key); err != nil {
		r.Logger.Warn("render cache read failed", "err", err)
	} else if ok {
		r.Logger.Debug("render cache hit", "key", key[:12])
		return Output{Data: data, Format: f, CacheHit: true, Duration: time.Since(start)}, nil
	}

	img, err := r.Renderer.Render(ctx, scene)
	if err != nil {
		return Output{}, err
	}
	data, err := export.EncodeBytes(img, f)
	if err != nil {
		return Output{}, errors.Wrap(errors.ErrCodeInternal, err, "could not encode the story")
	}
	if err := r.Cache.Set(ctx, key, data, r.TTL); err != nil {
		r.Logger.Warn("render cache write failed", "err", err)
	}

	out := Output{Data: data, Format: f, Duration: time.Since(start)}
	r.Logger.Debug("rendered story", "format", f, "bytes", len(data), "duration", out.Duration.Round(time.Millisecond))
	return out, nil
}

// Export renders scene and hands it to chain.
func (r *Runner) Export(ctx context.Context, scene compositor.Scene, f export.Format, p export.Platform, chain *export.Chain) (export.Delivery, error) {
	out, err := r.Render(ctx, scene, f)
	if err != nil {
		return export.Delivery{}, err
	}
	return chain.Deliver(ctx, export.NewArtifact(out.Data, f, p))
}
