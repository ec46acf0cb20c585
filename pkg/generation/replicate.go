package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/httputil"
)

// Replicate defaults.
const (
	DefaultReplicateURL   = "https://api.replicate.com"
	DefaultReplicateModel = "black-forest-labs/flux-schnell"
	DefaultPollInterval   = time.Second
)

// Replicate creates a prediction and polls it until it settles.
type Replicate struct {
	Token        string
	BaseURL      string
	Model        string
	PollInterval time.Duration
	Client       *http.Client
	Logger       *log.Logger
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	Model  string          `json:"model"`
}

// outputs normalises the output field, which is a URL or a list of URLs.
func (p prediction) outputs() []string {
	if len(p.Output) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(p.Output, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(p.Output, &one); err == nil && one != "" {
		return []string{one}
	}
	return nil
}

func (r *Replicate) Name() string { return "replicate" }

// withDefaults returns a copy with every unset field filled in. The receiver
// is shared between requests and is never written.
func (r Replicate) withDefaults() *Replicate {
	if r.BaseURL == "" {
		r.BaseURL = DefaultReplicateURL
	}
	if r.Model == "" {
		r.Model = DefaultReplicateModel
	}
	if r.PollInterval <= 0 {
		r.PollInterval = DefaultPollInterval
	}
	if r.Client == nil {
		r.Client = http.DefaultClient
	}
	if r.Logger == nil {
		r.Logger = log.Default()
	}
	return &r
}

// Generate creates the prediction and waits for it.
func (r *Replicate) Generate(ctx context.Context, req Request) (Result, error) {
	return r.withDefaults().generate(ctx, req)
}

func (r *Replicate) generate(ctx context.Context, req Request) (Result, error) {
	if r.Token == "" {
		return Result{}, errors.New(errors.ErrCodeGeneration, "REPLICATE_API_TOKEN is not set")
	}

	body, _ := json.Marshal(map[string]any{
		"input": map[string]any{
			"prompt": framePrompt(req),
			"width":  OutputWidth,
			"height": OutputHeight,
		},
	})

	var p prediction
	url := fmt.Sprintf("%s/v1/models/%s/predictions", r.BaseURL, r.Model)
	if err := r.do(ctx, http.MethodPost, url, body, &p); err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeGeneration, err, "start prediction")
	}
	r.Logger.Info("prediction started", "id", p.ID, "model", r.Model)

	for p.Status != StatusSucceeded {
		switch p.Status {
		case StatusFailed, StatusCanceled:
			return Result{}, errors.New(errors.ErrCodeGeneration, "prediction %s %s: %v", p.ID, p.Status, p.Error)
		}
		select {
		case <-ctx.Done():
			return Result{}, errors.Wrap(errors.ErrCodeGeneration, ctx.Err(), "prediction %s", p.ID)
		case <-time.After(r.PollInterval):
		}
		if err := r.do(ctx, http.MethodGet, fmt.Sprintf("%s/v1/predictions/%s", r.BaseURL, p.ID), nil, &p); err != nil {
			return Result{}, errors.Wrap(errors.ErrCodeGeneration, err, "poll prediction %s", p.ID)
		}
		r.Logger.Debug("prediction status", "id", p.ID, "status", p.Status)
	}

	out := p.outputs()
	if len(out) == 0 {
		return Result{}, errors.New(errors.ErrCodeGeneration, "prediction %s succeeded without output", p.ID)
	}
	return Result{
		ID:      p.ID,
		Status:  p.Status,
		Output:  out,
		Model:   r.Model,
		Backend: r.Name(),
	}, nil
}

func (r *Replicate) do(ctx context.Context, method, url string, body []byte, out any) error {
	return httputil.RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+r.Token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := r.Client.Do(req)
		if err != nil {
			return httputil.Retryable(err)
		}
		defer resp.Body.Close()
		if err := httputil.CheckStatus(resp); err != nil {
			return err
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}
