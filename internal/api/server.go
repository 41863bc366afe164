package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"trading-journal-go/internal/config"

	"go.uber.org/zap"
)

// Server serves the journal HTTP API.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

func NewServer(cfg config.Server, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger.Named("api-server"),
	}
}

// Start binds the listen address and serves in a new goroutine. Errors after
// a successful bind are reported on the returned channel.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("Starting API server", zap.String("address", ln.Addr().String()))
	errc := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
			errc <- err
		}
		close(errc)
	}()
	return errc, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}
