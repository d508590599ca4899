package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
)

const shutdownTimeout = 3 * time.Second

// Server exposes a Collector at /metrics on its own listener
type Server struct {
	h      *server.Hertz
	addr   string
	logger *slog.Logger
}

// NewServer builds a metrics listener for addr (host:port)
func NewServer(addr string, c *Collector, logger *slog.Logger) *Server {
	h := server.New(
		server.WithHostPorts(addr),
		server.WithDisablePrintRoute(true),
	)
	h.GET("/metrics", c.HertzHandler())

	return &Server{h: h, addr: addr, logger: logger.With("component", "metrics")}
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.h.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("metrics server shutdown", "error", err)
		}
	}()

	s.logger.Info("serving metrics", "addr", s.addr)
	if err := s.h.Run(); err != nil {
		s.logger.Error("metrics server stopped", "error", err)
	}
}
