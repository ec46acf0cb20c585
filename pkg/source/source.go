// Package source resolves image references and decodes them to rasters.
//
// A Ref is one of:
//   - "asset:<id>"         an upload held in a Store
//   - "data:<mime>;base64,..." an inline data URL
//   - "http://..." / "https://..." a remote image
//   - anything else        a path on the local filesystem
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/httputil"
)

// AssetPrefix marks a Ref that points into a Store.
const AssetPrefix = "asset:"

// Ref references a decodable raster image.
type Ref string

// AssetRef builds a Ref for an uploaded asset.
func AssetRef(id string) Ref {
	return Ref(AssetPrefix + id)
}

// AssetID returns the store id if r is an asset reference.
func (r Ref) AssetID() (string, bool) {
	if strings.HasPrefix(string(r), AssetPrefix) {
		return strings.TrimPrefix(string(r), AssetPrefix), true
	}
	return "", false
}

// IsRemote reports whether r is an http(s) URL.
func (r Ref) IsRemote() bool {
	s := string(r)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// IsDataURL reports whether r is an inline data URL.
func (r Ref) IsDataURL() bool {
	return strings.HasPrefix(string(r), "data:")
}

// String shortens data URLs so refs can be logged.
func (r Ref) String() string {
	if r.IsDataURL() && len(r) > 48 {
		return string(r[:48]) + "…"
	}
	return string(r)
}

// Decoder turns a Ref into an image.
type Decoder interface {
	Decode(ctx context.Context, ref Ref) (image.Image, error)
}

// DefaultMaxFetch caps the size of a remote image.
const DefaultMaxFetch = 20 << 20

// Loader is the default Decoder.
type Loader struct {
	store    *Store
	client   *http.Client
	logger   *log.Logger
	maxFetch int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the client used for remote refs.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// WithMaxFetch limits how many bytes a remote image may have.
func WithMaxFetch(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxFetch = n
		}
	}
}

// WithLogger sets the loader's logger.
func WithLogger(lg *log.Logger) LoaderOption {
	return func(l *Loader) { l.logger = lg }
}

// NewLoader creates a loader. store may be nil when no uploads are involved.
func NewLoader(store *Store, opts ...LoaderOption) *Loader {
	l := &Loader{store: store, client: http.DefaultClient, logger: log.Default(), maxFetch: DefaultMaxFetch}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Decode resolves ref and decodes it. Asset handles are released before
// Decode returns, whether or not decoding succeeded.
func (l *Loader) Decode(ctx context.Context, ref Ref) (image.Image, error) {
	img, err := l.decode(ctx, ref)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "decode %s", ref)
	}
	l.logger.Debug("decoded image", "ref", ref, "bounds", img.Bounds().Size())
	return img, nil
}

func (l *Loader) decode(ctx context.Context, ref Ref) (image.Image, error) {
	switch {
	case ref == "":
		return nil, fmt.Errorf("empty image reference")
	case ref.IsDataURL():
		data, err := ParseDataURL(string(ref))
		if err != nil {
			return nil, err
		}
		return DecodeReader(bytes.NewReader(data))
	case ref.IsRemote():
		return l.fetch(ctx, string(ref))
	}

	if id, ok := ref.AssetID(); ok {
		if l.store == nil {
			return nil, fmt.Errorf("no asset store configured")
		}
		h, err := l.store.Acquire(id)
		if err != nil {
			return nil, err
		}
		defer h.Release()
		return DecodeReader(h.Reader())
	}

	f, err := os.Open(string(ref))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return DecodeReader(f)
}

func (l *Loader) fetch(ctx context.Context, url string) (image.Image, error) {
	data, _, err := l.fetchBytes(ctx, url)
	if err != nil {
		return nil, err
	}
	return DecodeReader(bytes.NewReader(data))
}

// fetchBytes downloads url, retrying server errors.
func (l *Loader) fetchBytes(ctx context.Context, url string) ([]byte, string, error) {
	var (
		data []byte
		mime string
	)
	err := httputil.RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return httputil.Retryable(fmt.Errorf("fetch: %w", err))
		}
		defer resp.Body.Close()
		if err := httputil.CheckStatus(resp); err != nil {
			return err
		}
		data, err = io.ReadAll(io.LimitReader(resp.Body, l.maxFetch+1))
		if err != nil {
			return err
		}
		if int64(len(data)) > l.maxFetch {
			return fmt.Errorf("image larger than %d bytes", l.maxFetch)
		}
		mime = resp.Header.Get("Content-Type")
		return nil
	})
	return data, mime, err
}

// Localize copies a remote or inline image into the store so later decodes
// are local. Asset and file refs are returned unchanged.
func (l *Loader) Localize(ctx context.Context, ref Ref, name string) (Ref, error) {
	var (
		data []byte
		mime string
		err  error
	)
	switch {
	case ref.IsDataURL():
		mime, _, _ = strings.Cut(strings.TrimPrefix(string(ref), "data:"), ";")
		data, err = ParseDataURL(string(ref))
	case ref.IsRemote():
		data, mime, err = l.fetchBytes(ctx, string(ref))
	default:
		return ref, nil
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeDecode, err, "download %s", ref)
	}
	if l.store == nil {
		return "", errors.New(errors.ErrCodeInternal, "no asset store configured")
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return AssetRef(l.store.Add(name, data, mime)), nil
}

// DecodeReader decodes PNG, JPEG, GIF, BMP, TIFF or WebP data. EXIF
// orientation is applied to JPEG photos.
func DecodeReader(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(12)
	if isWebP(head) {
		img, err := webp.Decode(br)
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		return img, nil
	}
	img, err := imaging.Decode(br, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func isWebP(head []byte) bool {
	return len(head) >= 12 && string(head[0:4]) == "RIFF" && string(head[8:12]) == "WEBP"
}

// ParseDataURL returns the payload of a base64 data URL.
func ParseDataURL(s string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	return data, nil
}

// DataURL encodes data as a base64 data URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
