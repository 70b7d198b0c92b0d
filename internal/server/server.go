// Package server exposes the batch fill pipeline over HTTP: one upload,
// one synchronous transform, one download.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/docfill/docfill/internal/batch"
	"github.com/docfill/docfill/internal/catalog"
	"github.com/docfill/docfill/internal/config"
	"github.com/docfill/docfill/internal/server/middleware"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP front end over the batch orchestrator.
type Server struct {
	cfg    *config.Config
	keys   []string // canonical field keys accepted as form values
	orch   *batch.Orchestrator
	logger *slog.Logger
}

// New creates a Server. The catalog supplies the canonical field keys the
// process endpoint reads from the submitted form.
func New(cfg *config.Config, cat *catalog.Catalog, orch *batch.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		keys:   cat.Keys(),
		orch:   orch,
		logger: logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/process", s.handleProcess)
	mux.HandleFunc("/api/v1/highlight", s.handleHighlight)
	return middleware.TrafficLogger(s.logger, mux)
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Address())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.cfg.Version})
}
