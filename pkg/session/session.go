// Package session holds one user's story in progress: workflow, uploads,
// selection, captions, background, theme, layout and the active gesture.
//
// A Session guards itself with a mutex so the HTTP API and the live pointer
// stream can share it. All mutation goes through its methods.
package session

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/contrast"
	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/generation"
	"github.com/xob0t/StoryStencil/pkg/interaction"
	"github.com/xob0t/StoryStencil/pkg/layout"
	"github.com/xob0t/StoryStencil/pkg/source"
)

// Upload limits and selection bounds per workflow.
const (
	MaxUploadsSingle   = 3
	MaxUploadsMultiple = 15
	MinSelected        = 2
	MaxSelected        = 4
)

// Validation messages shown before generation.
const (
	MsgSelectImages = "Please select between 2-4 images to display."
	MsgPriceRange   = "Please enter both minimum and maximum prices."
	MsgPrice        = "Please enter a price."
)

// MaxUploads returns the upload limit for mode.
func MaxUploads(m compositor.Mode) int {
	if m == compositor.ModeMultiple {
		return MaxUploadsMultiple
	}
	return MaxUploadsSingle
}

// Upload is one product photo held in the asset store.
type Upload struct {
	AssetID string `json:"assetId"`
	Name    string `json:"name"`
}

// File is an incoming upload.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Session is one story being composed.
type Session struct {
	mu sync.Mutex

	id      string
	created time.Time
	touched time.Time

	store *source.Store

	mode        compositor.Mode
	uploads     []Upload
	selected    []int
	content     compositor.Content
	designNotes string
	font        compositor.FontStyle
	theme       contrast.Theme
	background  source.Ref
	bgAsset     string // store asset owned by the background, if any
	generation  *generation.Result

	layout     *layout.State
	controller *interaction.Controller
	revision   uint64
}

// New creates an empty single-item session backed by store.
func New(id string, store *source.Store) *Session {
	now := time.Now()
	s := &Session{
		id:      id,
		created: now,
		touched: now,
		store:   store,
		mode:    compositor.ModeSingle,
		font:    compositor.StyleSans,
		theme:   contrast.DefaultTheme(),
		layout:  layout.New(),
	}
	s.controller = interaction.NewController(s.layout)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// touch records activity and bumps the revision. Callers hold mu.
func (s *Session) touch() {
	s.touched = time.Now()
	s.revision++
}

// LastActive returns the time of the last change.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Revision increases on every change; previews repaint when it moves.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// ── Workflow ──

// Mode returns the current workflow.
func (s *Session) Mode() compositor.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches workflow. Switching clears uploads, selection, captions,
// the generated background and the layout. The theme is kept.
func (s *Session) SetMode(m compositor.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = m
	s.dropUploads()
	s.selected = nil
	s.content = compositor.Content{}
	s.designNotes = ""
	s.background = ""
	s.dropBackground()
	s.generation = nil
	s.controller.EndGesture()
	s.layout.Reset()
	s.touch()
}

func (s *Session) dropUploads() {
	for _, u := range s.uploads {
		s.store.Remove(u.AssetID)
	}
	s.uploads = nil
}

func (s *Session) dropBackground() {
	if s.bgAsset != "" {
		s.store.Remove(s.bgAsset)
		s.bgAsset = ""
	}
}

// isUpload reports whether id is one of the uploads. Callers hold mu.
func (s *Session) isUpload(id string) bool {
	return slices.ContainsFunc(s.uploads, func(u Upload) bool { return u.AssetID == id })
}

// Owns reports whether ref names a stored asset belonging to this session:
// one of its uploads or its current background.
func (s *Session) Owns(ref source.Ref) bool {
	id, ok := ref.AssetID()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return id == s.bgAsset || s.isUpload(id)
}

// Assets lists the stored assets the session owns: uploads first, then the
// background when it is stored.
func (s *Session) Assets() []source.AssetInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]source.AssetInfo, 0, len(s.uploads)+1)
	for _, u := range s.uploads {
		if info, ok := s.store.Info(u.AssetID); ok {
			out = append(out, info)
		}
	}
	if s.bgAsset != "" {
		if info, ok := s.store.Info(s.bgAsset); ok {
			out = append(out, info)
		}
	}
	return out
}

// ── Uploads and selection ──

// AddUploads stores files. The whole batch is rejected if it would exceed
// the workflow's limit.
func (s *Session) AddUploads(files []File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := MaxUploads(s.mode)
	if len(s.uploads)+len(files) > limit {
		return errors.New(errors.ErrCodeInvalidInput,
			"Maximum %d images allowed for %s workflow. Please remove some images first.", limit, s.mode)
	}
	for _, f := range files {
		id := s.store.Add(f.Name, f.Data, f.MIME)
		s.uploads = append(s.uploads, Upload{AssetID: id, Name: f.Name})
	}
	s.touch()
	return nil
}

// Uploads returns the uploaded photos in upload order.
func (s *Session) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.uploads)
}

// RemoveUpload deletes upload i and re-indexes the selection so it keeps
// pointing at the same photos.
func (s *Session) RemoveUpload(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.uploads) {
		return errors.New(errors.ErrCodeNotFound, "no upload at index %d", i)
	}
	s.store.Remove(s.uploads[i].AssetID)
	s.uploads = slices.Delete(s.uploads, i, i+1)

	sel := s.selected[:0]
	for _, idx := range s.selected {
		switch {
		case idx == i:
		case idx > i:
			sel = append(sel, idx-1)
		default:
			sel = append(sel, idx)
		}
	}
	s.selected = sel
	s.touch()
	return nil
}

// ToggleSelected selects or deselects upload i for display. Selection order
// decides slot order. Selecting a fifth image is ignored. It reports whether
// i is selected afterwards.
func (s *Session) ToggleSelected(i int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.uploads) {
		return false, errors.New(errors.ErrCodeNotFound, "no upload at index %d", i)
	}
	if pos := slices.Index(s.selected, i); pos >= 0 {
		s.selected = slices.Delete(s.selected, pos, pos+1)
		s.touch()
		return false, nil
	}
	if len(s.selected) >= MaxSelected {
		return false, nil
	}
	s.selected = append(s.selected, i)
	s.touch()
	return true, nil
}

// Selected returns the selected upload indices in selection order.
func (s *Session) Selected() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.selected)
}

// displayed returns the uploads that fill image slots, in slot order.
// Callers hold mu.
func (s *Session) displayed() []Upload {
	if s.mode != compositor.ModeMultiple {
		return s.uploads[:min(len(s.uploads), s.mode.MaxSlots())]
	}
	out := make([]Upload, 0, len(s.selected))
	for _, idx := range s.selected {
		if idx < len(s.uploads) {
			out = append(out, s.uploads[idx])
		}
	}
	return out
}

// ── Captions ──

// SetContent replaces the caption text.
func (s *Session) SetContent(c compositor.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = c
	s.touch()
}

// Content returns the caption text.
func (s *Session) Content() compositor.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// SetDesignNotes sets the style hint sent to the generation service.
func (s *Session) SetDesignNotes(notes string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.designNotes = notes
	s.touch()
}

// SetFont picks the caption font style.
func (s *Session) SetFont(f compositor.FontStyle) error {
	if !f.Valid() {
		return errors.New(errors.ErrCodeInvalidInput, "unknown font style %q", f)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.font = f
	s.touch()
	return nil
}

// Validate checks the session is ready for generation and returns the
// message to show when it is not.
func (s *Session) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validate()
}

func (s *Session) validate() error {
	if s.mode == compositor.ModeMultiple {
		if n := len(s.selected); n < MinSelected || n > MaxSelected {
			return errors.New(errors.ErrCodeInvalidInput, MsgSelectImages)
		}
		if s.content.PriceMin == "" || s.content.PriceMax == "" {
			return errors.New(errors.ErrCodeInvalidInput, MsgPriceRange)
		}
		return nil
	}
	if s.content.Price == "" {
		return errors.New(errors.ErrCodeInvalidInput, MsgPrice)
	}
	return nil
}

// ── Background ──

// GenerationRequest validates the session and collects the displayed photos.
func (s *Session) GenerationRequest() (generation.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(); err != nil {
		return generation.Request{}, err
	}
	req := generation.Request{DesignNotes: s.designNotes, Mode: s.mode}
	for _, u := range s.displayed() {
		data, err := s.readUpload(u)
		if err != nil {
			return generation.Request{}, err
		}
		req.Images = append(req.Images, data)
	}
	return req, nil
}

func (s *Session) readUpload(u Upload) ([]byte, error) {
	h, err := s.store.Acquire(u.AssetID)
	if err != nil {
		return nil, err
	}
	defer h.Release()
	data, err := io.ReadAll(h.Reader())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u.Name, err)
	}
	return data, nil
}

// ThemeSource picks a theme for a background; *contrast.Analyzer is one.
type ThemeSource interface {
	ThemeOr(ctx context.Context, ref source.Ref, prev contrast.Theme) contrast.Theme
}

// SetBackground installs ref as the background and re-themes the captions.
// When analysis fails the previous theme stays. Analysis runs without the
// lock held.
//
// A stored asset that is not one of the uploads becomes owned by the session:
// it leaves the store once the session stops using it.
func (s *Session) SetBackground(ctx context.Context, ref source.Ref, themes ThemeSource) {
	s.mu.Lock()
	prev := s.theme
	s.mu.Unlock()

	theme := prev
	if themes != nil {
		theme = themes.ThemeOr(ctx, ref, prev)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	owned := ""
	if id, ok := ref.AssetID(); ok && !s.isUpload(id) {
		owned = id
	}
	if s.bgAsset != owned {
		s.dropBackground()
	}
	s.bgAsset = owned
	s.background = ref
	s.theme = theme
	s.touch()
}

// ApplyGeneration records a finished generation and uses its last output.
func (s *Session) ApplyGeneration(ctx context.Context, res generation.Result, themes ThemeSource) {
	s.mu.Lock()
	s.generation = &res
	s.mu.Unlock()
	s.SetBackground(ctx, res.Background(), themes)
}

// Theme returns the caption theme.
func (s *Session) Theme() contrast.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// ── Layout and gestures ──

// BeginDrag starts dragging el.
func (s *Session) BeginDrag(el layout.Element, ev *interaction.PointerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.BeginDrag(el, ev)
}

// BeginResize starts resizing el.
func (s *Session) BeginResize(el layout.Element, ev *interaction.PointerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.BeginResize(el, ev)
}

// PointerMove applies the active gesture and reports whether the layout changed.
func (s *Session) PointerMove(ev *interaction.PointerEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.controller.OnPointerMove(ev)
	if changed {
		s.touch()
	}
	return changed
}

// EndGesture ends any drag or resize.
func (s *Session) EndGesture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.EndGesture()
}

// Gesture returns the active gesture.
func (s *Session) Gesture() interaction.Gesture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.Gesture()
}

// Layout returns a snapshot of the layout.
func (s *Session) Layout() layout.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout.Snapshot()
}

// SetLayout replaces the whole layout.
func (s *Session) SetLayout(l layout.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.layout = l
	s.touch()
}

// ResetLayout restores every element to its default placement.
func (s *Session) ResetLayout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.EndGesture()
	s.layout.Reset()
	s.touch()
}

// ── Rendering ──

// Scene captures everything the renderer needs. The scene is a copy; later
// session changes do not affect it.
func (s *Session) Scene(includeLink bool) compositor.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()

	shown := s.displayed()
	refs := make([]source.Ref, len(shown))
	for i, u := range shown {
		refs[i] = source.AssetRef(u.AssetID)
	}
	return compositor.Scene{
		Mode:        s.mode,
		Background:  s.background,
		Images:      refs,
		Layout:      s.layout.Snapshot(),
		Theme:       s.theme,
		Font:        s.font,
		Content:     s.content,
		IncludeLink: includeLink,
	}
}

// View is the JSON form of a session.
type View struct {
	ID          string                               `json:"id"`
	Mode        compositor.Mode                      `json:"mode"`
	Uploads     []Upload                             `json:"uploads"`
	Selected    []int                                `json:"selected"`
	Content     compositor.Content                   `json:"content"`
	DesignNotes string                               `json:"designNotes"`
	Font        compositor.FontStyle                 `json:"font"`
	FontCSS     string                               `json:"fontCSS"`
	Weights     map[layout.Element]compositor.Weight `json:"weights"`
	Theme       contrast.Theme                       `json:"theme"`
	Background  source.Ref                           `json:"background,omitempty"`
	Generation  *generation.Result                   `json:"generation,omitempty"`
	Layout      layout.State                         `json:"layout"`
	Gesture     interaction.Gesture                  `json:"gesture"`
	Revision    uint64                               `json:"revision"`
}

// View returns a snapshot for the API.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:          s.id,
		Mode:        s.mode,
		Uploads:     slices.Clone(s.uploads),
		Selected:    slices.Clone(s.selected),
		Content:     s.content,
		DesignNotes: s.designNotes,
		Font:        s.font,
		FontCSS:     s.font.CSS(),
		Weights:     compositor.TextWeights(),
		Theme:       s.theme,
		Background:  s.background,
		Generation:  s.generation,
		Layout:      s.layout.Snapshot(),
		Gesture:     s.controller.Gesture(),
		Revision:    s.revision,
	}
}

// Close releases the session's uploads and background.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropUploads()
	s.dropBackground()
	s.selected = nil
}
