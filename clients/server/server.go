// Package server provides the StoryStencil HTTP API, the live gesture stream
// and a small embedded editor page.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/pipeline"
	"github.com/xob0t/StoryStencil/pkg/session"
)

//go:embed web/*
var webContent embed.FS

// Server serves one toolkit to many sessions.
type Server struct {
	tk       *pipeline.Toolkit
	sessions *session.Manager
	chain    *export.Chain
	logger   *log.Logger

	maxUpload int64
	origins   []string

	// One runner per session: a render in flight rejects only that
	// session's next render.
	mu      sync.Mutex
	runners map[string]*pipeline.Runner
}

// New creates a server over tk.
func New(tk *pipeline.Toolkit) *Server {
	cfg := tk.Config
	s := &Server{
		tk:        tk,
		chain:     pipeline.NewChain(cfg, "", tk.Logger),
		logger:    tk.Logger,
		maxUpload: int64(max(cfg.Server.MaxUploadMB, 1)) << 20,
		origins:   cfg.Server.AllowOrigins,
		runners:   make(map[string]*pipeline.Runner),
	}
	s.sessions = session.NewManager(tk.Store,
		session.WithTTL(cfg.Server.SessionTTL.Duration),
		session.WithLogger(tk.Logger),
		session.WithCloseHook(s.dropRunner),
	)
	return s
}

// Sessions returns the session registry.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// runner returns the session's runner, creating it on first use.
func (s *Server) runner(sess *session.Session) (*pipeline.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runners[sess.ID()]; ok {
		return r, nil
	}
	r, err := s.tk.NewRunner()
	if err != nil {
		return nil, err
	}
	s.runners[sess.ID()] = r
	return r, nil
}

func (s *Server) dropRunner(sess *session.Session) {
	s.mu.Lock()
	delete(s.runners, sess.ID())
	s.mu.Unlock()
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.cors)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/analyze", s.handleAnalyze)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Use(s.withSession)
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/assets", s.handleListAssets)
			r.Get("/assets/{assetID}", s.handleGetAsset)
			r.Put("/mode", s.handleSetMode)
			r.Post("/uploads", s.handleUpload)
			r.Delete("/uploads/{index}", s.handleRemoveUpload)
			r.Post("/selection/{index}", s.handleToggleSelection)
			r.Put("/content", s.handleSetContent)
			r.Put("/layout", s.handleSetLayout)
			r.Delete("/layout", s.handleResetLayout)
			r.Post("/background", s.handleSetBackground)
			r.Post("/generate", s.handleGenerate)
			r.Get("/render", s.handleRender)
			r.Get("/download", s.handleDownload)
			r.Get("/share", s.handleShare)
			r.Post("/export", s.handleExport)
			r.Get("/live", s.handleLive)
		})
	})

	webFS, err := fs.Sub(webContent, "web")
	if err == nil {
		r.Handle("/*", http.FileServer(http.FS(webFS)))
	}
	return r
}

// Run serves on addr until ctx is cancelled.
func Run(ctx context.Context, tk *pipeline.Toolkit, addr string, open bool) error {
	s := New(tk)
	defer s.sessions.Close()

	sweepCtx, stop := context.WithCancel(ctx)
	defer stop()
	go s.sessions.Run(sweepCtx, time.Minute)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- httpSrv.ListenAndServe() }()

	url := browserURL(addr)
	s.logger.Info("StoryStencil UI", "url", url)
	if open {
		go openBrowser(url)
	}

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

// browserURL is the address a local browser should open for a listen addr.
func browserURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// ── Middleware ──

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) allowedOrigin(origin string) bool {
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.allowedOrigin(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	cmd.Start()
}
