package export

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xob0t/StoryStencil/pkg/errors"
)

// Artifact is an encoded story ready for delivery.
type Artifact struct {
	Name     string
	Format   Format
	Platform Platform
	Data     []byte
	Created  time.Time
}

// NewArtifact wraps encoded data with its share name.
func NewArtifact(data []byte, f Format, p Platform) Artifact {
	return Artifact{
		Name:     ShareName(p, f),
		Format:   f,
		Platform: p,
		Data:     data,
		Created:  time.Now(),
	}
}

// Channel is one way of handing an artifact to the user.
type Channel interface {
	// Name identifies the channel in logs and results.
	Name() string
	// Supported reports whether the channel can take a in this environment.
	Supported(a Artifact) bool
	// Deliver hands a over and returns where it went.
	Deliver(ctx context.Context, a Artifact) (string, error)
}

// Delivery reports which channel took the artifact.
type Delivery struct {
	Channel  string `json:"channel"`
	Location string `json:"location,omitempty"`
}

// Chain tries channels in order until one succeeds.
type Chain struct {
	channels []Channel
	logger   *log.Logger
}

// NewChain builds a chain. Order matters: file share, data-reference share,
// clipboard, then forced download last.
func NewChain(logger *log.Logger, channels ...Channel) *Chain {
	if logger == nil {
		logger = log.Default()
	}
	return &Chain{channels: channels, logger: logger}
}

// Channels returns the names of the configured channels in order.
func (c *Chain) Channels() []string {
	names := make([]string, len(c.channels))
	for i, ch := range c.channels {
		names[i] = ch.Name()
	}
	return names
}

// Deliver hands a to the first supported channel that accepts it. Each
// channel is only tried when every earlier one was unsupported or failed.
func (c *Chain) Deliver(ctx context.Context, a Artifact) (Delivery, error) {
	var lastErr error
	for _, ch := range c.channels {
		if !ch.Supported(a) {
			c.logger.Debug("export channel unsupported", "channel", ch.Name())
			continue
		}
		loc, err := ch.Deliver(ctx, a)
		if err != nil {
			c.logger.Warn("export channel failed, trying next", "channel", ch.Name(), "err", err)
			lastErr = err
			continue
		}
		c.logger.Info("story exported", "channel", ch.Name(), "location", loc)
		return Delivery{Channel: ch.Name(), Location: loc}, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no channel supports %s", a.Format.MIME())
	}
	return Delivery{}, errors.Wrap(errors.ErrCodeExportChannel, lastErr, "could not share or save the story")
}
