// Package generation obtains story backgrounds from image-generation
// services. The compositor only ever sees the resulting image reference.
package generation

import (
	"context"

	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/source"
)

// Story background size requested from the services.
const (
	OutputWidth  = 1080
	OutputHeight = 1920
)

// Request asks for one background.
type Request struct {
	DesignNotes string
	// Images are the encoded product photos, used as visual context by
	// backends that accept it.
	Images [][]byte
	Mode   compositor.Mode
}

// Prediction statuses.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Result is a finished generation.
type Result struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	Output       []string `json:"output"`
	Model        string   `json:"model"`
	Backend      string   `json:"backend"`
	FallbackUsed bool     `json:"fallbackUsed"`
}

// Background returns the image to use: the last output.
func (r Result) Background() source.Ref {
	if len(r.Output) == 0 {
		return ""
	}
	return source.Ref(r.Output[len(r.Output)-1])
}

// Backend generates backgrounds.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (Result, error)
}

// Router sends single-item requests to one backend and multiple-item
// requests to another.
type Router struct {
	Single   Backend
	Multiple Backend
}

func (r Router) Name() string { return "router" }

func (r Router) Generate(ctx context.Context, req Request) (Result, error) {
	if req.Mode == compositor.ModeMultiple && r.Multiple != nil {
		return r.Multiple.Generate(ctx, req)
	}
	return r.Single.Generate(ctx, req)
}
