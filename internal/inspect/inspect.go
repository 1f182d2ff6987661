// Package inspect serves a read-only HTTP view of the connection controller:
// health, connection snapshots and Prometheus metrics.
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/wsctl/internal/connection"
	"github.com/rickgao/wsctl/internal/transport"
	"github.com/rickgao/wsctl/internal/version"
)

// Source is the controller view the server reads from.
type Source interface {
	Describe(id uint64) (connection.Snapshot, bool)
	List() []connection.Snapshot
	Counts() map[connection.Status]int
}

// StatsSource reports transport statistics.
type StatsSource interface {
	Stats() transport.EndpointStats
}

// Config configures the inspection server.
type Config struct {
	Addr        string
	MetricsPath string
	InstanceID  string
}

// Server is the inspection HTTP server.
type Server struct {
	cfg      Config
	source   Source
	stats    StatsSource
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStats adds transport statistics to /health.
func WithStats(stats StatsSource) Option {
	return func(s *Server) { s.stats = stats }
}

// WithGatherer sets the metrics source. The default is the global registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates an inspection server over source.
func NewServer(cfg Config, source Source, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		source:   source,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MetricsPath == "" {
		s.cfg.MetricsPath = "/metrics"
	}
	s.logger = s.logger.With("component", "inspect")
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/connections", s.handleList).Methods(http.MethodGet)
	router.HandleFunc("/connections/{id}", s.handleDescribe).Methods(http.MethodGet)
	router.Handle(s.cfg.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return router
}

// Run serves until ctx is cancelled, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting inspect server", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("inspect server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown inspect server: %w", err)
		}
		s.logger.Info("inspect server stopped")
		return nil
	}
}

type healthResponse struct {
	Status      string                `json:"status"`
	Instance    string                `json:"instance"`
	Version     string                `json:"version"`
	Connections map[string]int        `json:"connections"`
	Sockets     int                   `json:"sockets"`
	Queue       *transport.QueueStats `json:"queue,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := healthResponse{
		Status:      "healthy",
		Instance:    s.cfg.InstanceID,
		Version:     version.Version,
		Connections: make(map[string]int),
	}
	for status, n := range s.source.Counts() {
		health.Connections[status.String()] = n
	}
	if s.stats != nil {
		stats := s.stats.Stats()
		health.Sockets = stats.Open
		health.Queue = &stats.Queue
	}

	writeJSON(w, http.StatusOK, health)
}

// handleList returns every record, or only those in ?status=<name>.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	snaps := s.source.List()

	if name := r.URL.Query().Get("status"); name != "" {
		status, err := connection.ParseStatus(name)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		filtered := make([]connection.Snapshot, 0, len(snaps))
		for _, snap := range snaps {
			if snap.Status == status {
				filtered = append(filtered, snap)
			}
		}
		snaps = filtered
	}

	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid connection id"})
		return
	}

	snap, ok := s.source.Describe(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such connection"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
