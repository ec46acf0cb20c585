package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/httputil"
	"github.com/xob0t/StoryStencil/pkg/source"
)

// Gemini defaults.
const (
	DefaultGeminiURL   = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel = "gemini-2.5-flash-image-preview"
)

// Gemini asks a multimodal model for a background, passing the product
// photos along with the prompt.
type Gemini struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
	Logger  *log.Logger
}

type geminiInline struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string        `json:"text,omitempty"`
	InlineData *geminiInline `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Name() string { return "gemini" }

// withDefaults returns a copy with every unset field filled in. The receiver
// is shared between requests and is never written.
func (g Gemini) withDefaults() *Gemini {
	if g.BaseURL == "" {
		g.BaseURL = DefaultGeminiURL
	}
	if g.Model == "" {
		g.Model = DefaultGeminiModel
	}
	if g.Client == nil {
		g.Client = http.DefaultClient
	}
	if g.Logger == nil {
		g.Logger = log.Default()
	}
	return &g
}

// Generate sends one generateContent call and returns the first inline image.
func (g *Gemini) Generate(ctx context.Context, req Request) (Result, error) {
	return g.withDefaults().generate(ctx, req)
}

func (g *Gemini) generate(ctx context.Context, req Request) (Result, error) {
	if g.APIKey == "" {
		return Result{}, errors.New(errors.ErrCodeGeneration, "GEMINI_API_KEY is not set")
	}

	parts := []geminiPart{{Text: galleryPrompt(req)}}
	for _, img := range req.Images {
		parts = append(parts, geminiPart{InlineData: &geminiInline{
			MimeType: http.DetectContentType(img),
			Data:     base64.StdEncoding.EncodeToString(img),
		}})
	}
	body, _ := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
		GenerationConfig: map[string]any{
			"temperature":     0.9,
			"topK":            32,
			"topP":            1,
			"maxOutputTokens": 8192,
		},
	})

	var resp geminiResponse
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.BaseURL, g.Model)
	err := httputil.RetryWithBackoff(ctx, func() error {
		hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		hreq.Header.Set("Content-Type", "application/json")
		hreq.Header.Set("x-goog-api-key", g.APIKey)
		hresp, err := g.Client.Do(hreq)
		if err != nil {
			return httputil.Retryable(err)
		}
		defer hresp.Body.Close()
		if err := httputil.CheckStatus(hresp); err != nil {
			return err
		}
		return json.NewDecoder(hresp.Body).Decode(&resp)
	})
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeGeneration, err, "gemini request")
	}

	var text []string
	for _, c := range resp.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData != nil && strings.HasPrefix(p.InlineData.MimeType, "image/") {
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return Result{}, errors.Wrap(errors.ErrCodeGeneration, err, "gemini image data")
				}
				g.Logger.Info("gemini returned image", "mime", p.InlineData.MimeType, "bytes", len(data))
				return Result{
					ID:      fmt.Sprintf("gemini_%d", time.Now().UnixMilli()),
					Status:  StatusSucceeded,
					Output:  []string{source.DataURL(p.InlineData.MimeType, data)},
					Model:   g.Model,
					Backend: g.Name(),
				}, nil
			}
			if p.Text != "" {
				text = append(text, p.Text)
			}
		}
	}

	snippet := strings.Join(text, " ")
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return Result{}, errors.New(errors.ErrCodeGeneration, "gemini did not return image data: %s", snippet)
}
