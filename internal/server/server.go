// Package server is the development server behind "sitebuilder serve":
// static files from the output directory with live reload.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Config describes what the server exposes.
type Config struct {
	Root       string
	LiveReload bool
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

type Server struct {
	cfg    Config
	hub    *Hub
	router chi.Router

	mu         sync.RWMutex
	lastBuild  string
	lastStatus string
	lastErr    error
	builtAt    time.Time
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{cfg: cfg, hub: NewHub(cfg.Logger)}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics)
	}

	files := http.FileServer(http.Dir(s.cfg.Root))
	if s.cfg.LiveReload {
		r.Get(scriptPath, serveScript)
		r.Handle(reloadPath, s.hub)
		files = injectLiveReload(files)
	}
	r.Handle("/*", middleware.NoCache(files))
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Hub exposes the live reload hub.
func (s *Server) Hub() *Hub { return s.hub }

// BuildFinished records the last build for /healthz and reloads browsers.
// err is the error the build returned, if any.
func (s *Server) BuildFinished(buildID, outcome string, err error) {
	s.mu.Lock()
	s.lastBuild = buildID
	s.lastStatus = outcome
	s.lastErr = err
	s.builtAt = time.Now().UTC()
	s.mu.Unlock()
	if s.cfg.LiveReload {
		s.hub.Broadcast(buildID)
	}
}

type healthResponse struct {
	Status    string     `json:"status"`
	LastBuild string     `json:"last_build,omitempty"`
	Outcome   string     `json:"outcome,omitempty"`
	BuiltAt   *time.Time `json:"built_at,omitempty"`
	Error     string     `json:"error,omitempty"`
	Clients   int        `json:"livereload_clients"`
}

// handleHealth answers 200 unless the last build failed, in which case the
// status follows the category of the build error.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := healthResponse{Status: "ok", LastBuild: s.lastBuild, Outcome: s.lastStatus, Clients: s.hub.Clients()}
	if !s.builtAt.IsZero() {
		t := s.builtAt
		resp.BuiltAt = &t
	}
	lastErr := s.lastErr
	s.mu.RUnlock()

	code := ferrors.StatusCodeFor(lastErr)
	if lastErr != nil {
		resp.Status = "build_failed"
		resp.Error = lastErr.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.cfg.Logger.Error("failed to write health response", logfields.Error(err))
	}
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("Serving site", logfields.URL("http://"+addr), logfields.Path(s.cfg.Root))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
