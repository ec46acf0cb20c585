package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xob0t/StoryStencil/pkg/httputil"
	"github.com/xob0t/StoryStencil/pkg/source"
)

// ShareDir shares the file itself by dropping it into a watched directory,
// such as a synced folder.
type ShareDir struct {
	Dir string
}

func (s ShareDir) Name() string { return "file-share" }

func (s ShareDir) Supported(Artifact) bool {
	if s.Dir == "" {
		return false
	}
	fi, err := os.Stat(s.Dir)
	return err == nil && fi.IsDir()
}

func (s ShareDir) Deliver(_ context.Context, a Artifact) (string, error) {
	path := filepath.Join(s.Dir, a.Name)
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("write share file: %w", err)
	}
	return path, nil
}

// Webhook shares a data URL by POSTing it as JSON.
type Webhook struct {
	URL    string
	Client *http.Client
}

// WebhookPayload is the body POSTed by Webhook.
type WebhookPayload struct {
	Title    string `json:"title"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
	DataURL  string `json:"dataUrl"`
}

func (w Webhook) Name() string { return "data-share" }

func (w Webhook) Supported(Artifact) bool { return w.URL != "" }

func (w Webhook) Deliver(ctx context.Context, a Artifact) (string, error) {
	body, err := json.Marshal(WebhookPayload{
		Title:    fmt.Sprintf("My %s Story", cases.Title(language.English).String(string(a.Platform))),
		Name:     a.Name,
		Platform: string(a.Platform),
		DataURL:  source.DataURL(a.Format.MIME(), a.Data),
	})
	if err != nil {
		return "", err
	}
	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}

	err = httputil.RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return httputil.Retryable(err)
		}
		resp.Body.Close()
		return httputil.CheckStatus(resp)
	})
	if err != nil {
		return "", err
	}
	return w.URL, nil
}

// Clipboard pipes the image into a clipboard command such as wl-copy or xclip.
type Clipboard struct {
	// Command is the argv to run; empty means auto-detect.
	Command []string
}

// clipboardCommands are tried in order when no command is configured.
var clipboardCommands = [][]string{
	{"wl-copy", "--type", "{mime}"},
	{"xclip", "-selection", "clipboard", "-t", "{mime}", "-i"},
}

func (c Clipboard) Name() string { return "clipboard" }

func (c Clipboard) Supported(Artifact) bool {
	_, ok := c.command()
	return ok
}

func (c Clipboard) command() ([]string, bool) {
	candidates := clipboardCommands
	if len(c.Command) > 0 {
		candidates = [][]string{c.Command}
	}
	for _, argv := range candidates {
		if _, err := exec.LookPath(argv[0]); err == nil {
			return argv, true
		}
	}
	return nil, false
}

func (c Clipboard) Deliver(ctx context.Context, a Artifact) (string, error) {
	argv, ok := c.command()
	if !ok {
		return "", fmt.Errorf("no clipboard command available")
	}
	args := make([]string, len(argv)-1)
	for i, arg := range argv[1:] {
		args[i] = strings.ReplaceAll(arg, "{mime}", a.Format.MIME())
	}

	cmd := exec.CommandContext(ctx, argv[0], args...)
	cmd.Stdin = bytes.NewReader(a.Data)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", argv[0], err, bytes.TrimSpace(out))
	}
	return "clipboard", nil
}

// Download saves the file under Dir with the fallback name. It is the last
// resort of a chain.
type Download struct {
	Dir string
}

func (d Download) Name() string { return "download" }

func (d Download) Supported(Artifact) bool { return true }

func (d Download) Deliver(_ context.Context, a Artifact) (string, error) {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	path := filepath.Join(dir, FallbackName(a.Platform, a.Created, a.Format))
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("write download: %w", err)
	}
	return path, nil
}
