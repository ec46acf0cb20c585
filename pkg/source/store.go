// store.go — In-memory store for uploaded images and the ephemeral handles
// used to decode them.
package source

import (
	"bytes"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/xob0t/StoryStencil/pkg/errors"
)

// Asset is one uploaded file.
type Asset struct {
	ID      string
	Name    string
	MIME    string
	Data    []byte
	Created time.Time
}

// AssetInfo is the listing view of an asset.
type AssetInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	MIME string `json:"mime"`
	Size int    `json:"size"`
	URL  string `json:"url,omitempty"`
}

// Store keeps uploaded assets and counts outstanding decode handles.
type Store struct {
	mu      sync.RWMutex
	assets  map[string]*Asset
	handles map[*Handle]struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		assets:  make(map[string]*Asset),
		handles: make(map[*Handle]struct{}),
	}
}

// Add stores data and returns its id.
func (s *Store) Add(name string, data []byte, mime string) string {
	id := ulid.Make().String()
	s.mu.Lock()
	s.assets[id] = &Asset{ID: id, Name: name, MIME: mime, Data: data, Created: time.Now()}
	s.mu.Unlock()
	return id
}

// Get returns the asset with the given id.
func (s *Store) Get(id string) (*Asset, bool) {
	s.mu.RLock()
	a, ok := s.assets[id]
	s.mu.RUnlock()
	return a, ok
}

func (a *Asset) info() AssetInfo {
	return AssetInfo{ID: a.ID, Name: a.Name, MIME: a.MIME, Size: len(a.Data)}
}

// Info returns the listing view of one asset.
func (s *Store) Info(id string) (AssetInfo, bool) {
	a, ok := s.Get(id)
	if !ok {
		return AssetInfo{}, false
	}
	return a.info(), true
}

// List returns all assets ordered by upload time. URLs are left for the
// serving layer to fill in.
func (s *Store) List() []AssetInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AssetInfo, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a.info())
	}
	// ulids sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Remove deletes an asset. Handles already acquired keep their bytes.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[id]; !ok {
		return false
	}
	delete(s.assets, id)
	return true
}

// Handle is a short-lived reference to an asset's bytes, acquired for one
// decode and released right after it.
type Handle struct {
	store *Store
	asset *Asset
	once  sync.Once
}

// Acquire opens a handle on the asset. Every handle must be released.
func (s *Store) Acquire(id string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "asset %s not found", id)
	}
	h := &Handle{store: s, asset: a}
	s.handles[h] = struct{}{}
	return h, nil
}

// Reader returns a reader over the asset bytes.
func (h *Handle) Reader() io.Reader {
	return bytes.NewReader(h.asset.Data)
}

// Name returns the original file name of the asset.
func (h *Handle) Name() string {
	return h.asset.Name
}

// Release returns the handle to the store. It is safe to call twice.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.store.mu.Lock()
		delete(h.store.handles, h)
		h.store.mu.Unlock()
	})
}

// OpenHandles returns the number of handles acquired and not yet released.
func (s *Store) OpenHandles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handles)
}
