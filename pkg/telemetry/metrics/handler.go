package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}

// Server serves the metrics endpoint.
type Server struct {
	server   *http.Server
	mux      *http.ServeMux
	listener net.Listener
	logger   *slog.Logger
}

// NewServer binds the metrics listener. The endpoint starts answering once
// Serve is called.
func NewServer(c *Collector) (*Server, error) {
	ln, err := net.Listen("tcp", c.config.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", c.config.ListenAddress, err)
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())

	return &Server{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		mux:      mux,
		listener: ln,
		logger:   slog.Default().With("component", "metrics"),
	}, nil
}

// Handle mounts an additional handler, such as the health probes. It must be
// called before Serve.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks until the server is shut down.
func (s *Server) Serve() error {
	s.logger.Info("metrics endpoint listening", "address", s.Addr())
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
