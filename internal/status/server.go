// Package status serves the shutdown monitor state over HTTP: a JSON view
// of the watch loop at /api/status and Prometheus metrics at /metrics.
package status

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chartplotterhat/internal/config"
	"chartplotterhat/internal/monitor"
)

// Snapshotter reports the watch loop state.
type Snapshotter interface {
	Snapshot() monitor.Snapshot
}

// Server holds the HTTP server and what it reports on.
type Server struct {
	cfg    config.Status
	source Snapshotter
	logger golog.Logger
	srv    *http.Server
}

// NewServer builds the status server.  gatherer supplies /metrics.
func NewServer(cfg config.Status, source Snapshotter, gatherer prometheus.Gatherer, logger golog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		source: source,
		logger: logger,
	}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if cfg.CertFile != "" {
		// TLS configuration: use modern defaults
		s.srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	return s
}

// Handler returns the routes of the server.
func (s *Server) Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Serve listens on the configured address until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.Addr)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		if s.srv.TLSConfig != nil {
			s.logger.Infow("status listening", "url", "https://"+ln.Addr().String())
			errCh <- s.srv.ServeTLS(ln, s.cfg.CertFile, s.cfg.KeyFile)
			return
		}
		s.logger.Infow("status listening", "url", "http://"+ln.Addr().String())
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleStatus returns the watch loop state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.source.Snapshot()); err != nil {
		s.logger.Debugw("write status", "error", err)
	}
}
