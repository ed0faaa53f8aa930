// Package api exposes legalization over HTTP for serve mode. The
// surface is small: submit documents, fetch stored runs, fetch
// rendered artifacts. All request and response bodies are JSON; the
// embedded documents are the same TOML the CLI reads.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/pipeline"
	"github.com/selimozt/fabpack/pkg/store"
)

// Server handles HTTP requests for the legalization service.
type Server struct {
	runner *pipeline.Runner
	store  store.Store
	log    *log.Logger
	router chi.Router
}

// Config configures a Server.
type Config struct {
	// Runner executes legalization requests. Required.
	Runner *pipeline.Runner

	// Store persists run reports. Required.
	Store store.Store

	// Logger receives request logs. Nil means the default logger.
	Logger *log.Logger
}

// NewServer creates a server with its routes mounted.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "api server needs a pipeline runner")
	}
	if cfg.Store == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "api server needs a result store")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	s := &Server{
		runner: cfg.Runner,
		store:  cfg.Store,
		log:    cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/legalize", s.handleLegalize)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Get("/runs/{runID}/artifact", s.handleArtifact)
		r.Delete("/runs/{runID}", s.handleDeleteRun)
	})
	s.router = r
	return s, nil
}

// Handler returns the mounted router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// legalizeRequest is the POST /v1/legalize body.
type legalizeRequest struct {
	Arch      string           `json:"arch"`
	Netlist   string           `json:"netlist"`
	Device    string           `json:"device"`
	Placement string           `json:"placement,omitempty"`
	Options   pipeline.Options `json:"options"`
}

// legalizeResponse wraps the stored report.
type legalizeResponse struct {
	RunID    string          `json:"run_id"`
	CacheHit bool            `json:"cache_hit"`
	Report   json.RawMessage `json:"report"`
}

func (s *Server) handleLegalize(w http.ResponseWriter, r *http.Request) {
	var req legalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidConfig, err, "malformed request body"))
		return
	}
	if req.Arch == "" || req.Netlist == "" || req.Device == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidConfig, "arch, netlist, and device documents are required"))
		return
	}

	docs := pipeline.Documents{
		Arch:      []byte(req.Arch),
		Netlist:   []byte(req.Netlist),
		Device:    []byte(req.Device),
		Placement: []byte(req.Placement),
	}
	// The report is the only artifact the endpoint returns; renders
	// are fetched per run afterwards.
	req.Options.Formats = []string{pipeline.FormatJSON}

	res, err := s.runner.Execute(r.Context(), docs, req.Options)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.Save(r.Context(), res.Report); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, legalizeResponse{
		RunID:    res.Report.RunID,
		CacheHit: res.CacheInfo.ResultHit,
		Report:   json.RawMessage(res.Artifacts[pipeline.FormatJSON]),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	sums, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if sums == nil {
		sums = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": sums})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.Get(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "runID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
