package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/layout"
	"github.com/xob0t/StoryStencil/pkg/session"
	"github.com/xob0t/StoryStencil/pkg/source"
)

type ctxKey int

const sessionKey ctxKey = 0

func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(sessionKey).(*session.Session)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func indexParam(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, badRequest("invalid index %q", chi.URLParam(r, "index"))
	}
	return i, nil
}

func queryBool(r *http.Request, key string, def bool) bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// outputOpts reads the platform and format query parameters, falling back
// to the configured defaults.
func (s *Server) outputOpts(platform, format string) (export.Platform, export.Format, error) {
	if platform == "" {
		platform = s.tk.Config.Export.Platform
	}
	if format == "" {
		format = s.tk.Config.Export.Format
	}
	p, err := export.ParsePlatform(platform)
	if err != nil {
		return "", "", badRequest("%v", err)
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", "", badRequest("%v", err)
	}
	return p, f, nil
}

// ── Misc ──

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"backend":  s.tk.Backend.Name(),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ref source.Ref `json:"ref"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := checkRef(req.Ref, nil); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.tk.Analyzer.Analyze(r.Context(), req.Ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// checkRef accepts the image references a client may hand the server:
// http(s) and data URLs, and stored assets owned by sess. Local paths are
// never accepted over the API.
func checkRef(ref source.Ref, sess *session.Session) error {
	switch {
	case ref == "":
		return errors.New(errors.ErrCodeInvalidInput, "missing image reference")
	case ref.IsRemote(), ref.IsDataURL():
		return nil
	case sess != nil && sess.Owns(ref):
		return nil
	}
	if _, ok := ref.AssetID(); ok {
		return errors.New(errors.ErrCodeNotFound, "asset not found")
	}
	return errors.New(errors.ErrCodeInvalidInput, "unsupported image reference %s", ref)
}

// ── Assets ──

func assetURL(sessionID, assetID string) string {
	return "/api/sessions/" + sessionID + "/assets/" + assetID
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	list := sess.Assets()
	for i := range list {
		list[i].URL = assetURL(sess.ID(), list[i].ID)
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "assetID")
	a, ok := s.tk.Store.Get(id)
	if !ok || !sessionFrom(r).Owns(source.AssetRef(id)) {
		s.writeError(w, r, errors.New(errors.ErrCodeNotFound, "asset not found"))
		return
	}
	w.Header().Set("Content-Type", a.MIME)
	w.Write(a.Data)
}

// ── Sessions ──

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, s.sessions.Create().View())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(sessionFrom(r).ID())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	mode, err := compositor.ParseMode(req.Mode)
	if err != nil {
		s.writeError(w, r, badRequest("%v", err))
		return
	}
	sess := sessionFrom(r)
	sess.SetMode(mode)
	writeJSON(w, http.StatusOK, sess.View())
}

// ── Uploads and selection ──

func (s *Server) readFiles(w http.ResponseWriter, r *http.Request, field string) ([]session.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return nil, badRequest("invalid upload: %v", err)
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, badRequest("no files in field %q", field)
	}
	files := make([]session.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func readFile(fh *multipart.FileHeader) (session.File, error) {
	f, err := fh.Open()
	if err != nil {
		return session.File{}, badRequest("open %s: %v", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return session.File{}, badRequest("read %s: %v", fh.Filename, err)
	}
	mime := fh.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return session.File{Name: fh.Filename, MIME: mime, Data: data}, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	files, err := s.readFiles(w, r, "files")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess := sessionFrom(r)
	if err := sess.AddUploads(files); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleRemoveUpload(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err == nil {
		err = sessionFrom(r).RemoveUpload(i)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionFrom(r).View())
}

func (s *Server) handleToggleSelection(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err == nil {
		_, err = sessionFrom(r).ToggleSelected(i)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionFrom(r).View())
}

// ── Captions and layout ──

type contentRequest struct {
	Content     *compositor.Content   `json:"content"`
	DesignNotes *string               `json:"designNotes"`
	Font        *compositor.FontStyle `json:"font"`
}

func (s *Server) handleSetContent(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess := sessionFrom(r)
	if req.Font != nil {
		if err := sess.SetFont(*req.Font); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.Content != nil {
		sess.SetContent(*req.Content)
	}
	if req.DesignNotes != nil {
		sess.SetDesignNotes(*req.DesignNotes)
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleSetLayout(w http.ResponseWriter, r *http.Request) {
	l := layout.New()
	if err := decodeBody(r, l); err != nil {
		s.writeError(w, r, err)
		return
	}
	l.Clamp()
	sess := sessionFrom(r)
	sess.SetLayout(*l)
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleResetLayout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.ResetLayout()
	writeJSON(w, http.StatusOK, sess.View())
}

// ── Background ──

// handleSetBackground accepts an uploaded file in field "file" or a JSON
// body {"ref": "..."}.
func (s *Server) handleSetBackground(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var ref source.Ref

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Ref source.Ref `json:"ref"`
		}
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := checkRef(req.Ref, sessionFrom(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
		local, err := s.tk.Loader.Localize(ctx, req.Ref, "background")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ref = local
	} else {
		files, err := s.readFiles(w, r, "file")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		f := files[0]
		ref = source.AssetRef(s.tk.Store.Add(f.Name, f.Data, f.MIME))
	}

	sess := sessionFrom(r)
	sess.SetBackground(ctx, ref, s.tk.Analyzer)
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(r)

	req, err := sess.GenerationRequest()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.tk.Backend.Generate(ctx, req)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeGeneration, err, "Failed to generate story. Please try again."))
		return
	}

	if bg := res.Background(); bg != "" {
		if local, err := s.tk.Loader.Localize(ctx, bg, res.ID); err != nil {
			s.logger.Warn("could not store generated background, using remote", "err", err)
		} else {
			res.Output = append(slices.Clone(res.Output[:len(res.Output)-1]), string(local))
		}
	}
	sess.ApplyGeneration(ctx, res, s.tk.Analyzer)
	writeJSON(w, http.StatusOK, sess.View())
}

// ── Output ──

func (s *Server) render(w http.ResponseWriter, r *http.Request, link bool, f export.Format) ([]byte, bool) {
	sess := sessionFrom(r)
	runner, err := s.runner(sess)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	out, err := runner.Render(r.Context(), sess.Scene(link), f)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	cacheStatus := "miss"
	if out.CacheHit {
		cacheStatus = "hit"
	}
	w.Header().Set("X-Cache", cacheStatus)
	return out.Data, true
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	_, f, err := s.outputOpts("", r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, ok := s.render(w, r, queryBool(r, "link", true), f)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", f.MIME())
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, f, err := s.outputOpts(q.Get("platform"), q.Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	link := queryBool(r, "link", true)
	data, ok := s.render(w, r, link, f)
	if !ok {
		return
	}
	name := export.DownloadName(p, link, time.Now(), f)
	w.Header().Set("Content-Type", f.MIME())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Write(data)
}

// handleShare returns the share payload: the story under its share name,
// for clients that hand files to a native share sheet.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, f, err := s.outputOpts(q.Get("platform"), q.Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, ok := s.render(w, r, queryBool(r, "link", true), f)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", f.MIME())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, export.ShareName(p, f)))
	w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Platform    string `json:"platform"`
		Format      string `json:"format"`
		IncludeLink *bool  `json:"includeLink"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, f, err := s.outputOpts(req.Platform, req.Format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	link := true
	if req.IncludeLink != nil {
		link = *req.IncludeLink
	}

	sess := sessionFrom(r)
	runner, err := s.runner(sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := runner.Export(r.Context(), sess.Scene(link), f, p, s.chain)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
