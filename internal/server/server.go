// Package server exposes the station's recent snapshots and daily statistics
// over a small local HTTP API and a live WebSocket stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
)

// Config holds the listener settings of the status server
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AuthToken      string
	AllowedOrigins []string
	HistorySize    int
}

// Addr returns the host:port the server listens on
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// Server owns the snapshot store, the API handler and the stream
type Server struct {
	cfg    Config
	store  *SnapshotStore
	api    *APIHandler
	stream *StreamHandler
	http   *http.Server
	logger zerolog.Logger
}

// New creates a status server. daily may be nil.
func New(cfg Config, daily DailySource, info *models.StationInfo, logger zerolog.Logger) *Server {
	store := NewSnapshotStore(cfg.HistorySize)
	s := &Server{
		cfg:    cfg,
		store:  store,
		api:    NewAPIHandler(store, daily, info, logger),
		stream: NewStreamHandler(cfg.AuthToken, logger, cfg.AllowedOrigins...),
		logger: logger,
	}
	s.api.AddStats("stream", func() (any, error) {
		return s.stream.Clients(), nil
	})

	s.http = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/current", s.api.HandleCurrent)
	mux.HandleFunc("GET /api/history", s.api.HandleHistory)
	mux.HandleFunc("GET /api/daily", s.api.HandleDaily)
	mux.HandleFunc("GET /api/stats", s.api.HandleStats)
	mux.HandleFunc("GET /health", s.api.HandleHealth)
	mux.Handle("GET /api/stream", s.stream)
	return mux
}

// API returns the API handler, for registering extra stats
func (s *Server) API() *APIHandler {
	return s.api
}

// Publish records a snapshot and pushes it to stream clients
func (s *Server) Publish(msg models.SnapshotMessage) {
	s.store.Add(msg)
	s.stream.Broadcast(msg)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("Status server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	s.logger.Info().Msg("Status server stopped")
	return nil
}
