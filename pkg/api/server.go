package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openlio/liocfg/pkg/configstore"
	"github.com/openlio/liocfg/pkg/logging"
)

// Config configures the API server.
type Config struct {
	Addr     string
	Store    *configstore.Store
	EventBuf *logging.EventBuffer
	Live     bool // whether a kernel target backend is attached
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	store      *configstore.Store
	eventBuf   *logging.EventBuffer
	live       bool
	startTime  time.Time
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	s := &Server{
		store:     cfg.Store,
		eventBuf:  cfg.EventBuf,
		live:      cfg.Live,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Prometheus metrics with isolated registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(newCollector(s))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/status", s.statusHandler)
	mux.HandleFunc("GET /api/config", s.configShowHandler)
	mux.HandleFunc("POST /api/config", s.configSetHandler)
	mux.HandleFunc("DELETE /api/config", s.configDeleteHandler)
	mux.HandleFunc("POST /api/restore", s.restoreHandler)
	mux.HandleFunc("POST /api/save", s.saveHandler)
	mux.HandleFunc("POST /api/undo", s.undoHandler)
	mux.HandleFunc("GET /api/search", s.searchHandler)
	mux.HandleFunc("GET /api/diff", s.diffHandler)
	mux.HandleFunc("POST /api/apply", s.applyHandler)
	mux.HandleFunc("GET /api/verify", s.verifyHandler)
	mux.HandleFunc("GET /api/history", s.historyHandler)
	mux.HandleFunc("GET /api/events", s.eventsHandler)
	mux.HandleFunc("GET /api/events/stream", s.eventStreamHandler)

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	return s
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP API server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
