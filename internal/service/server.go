package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server HTTP server plus the background work that must drain before exit
type Server struct {
	httpServer *http.Server
	drains     []func()
	logger     *zap.Logger
}

func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return &Server{httpServer: s, logger: logger}
}

// DrainOnStop registers fn to run after the listener has shut down (e.g. CheckInService.Wait)
func (s *Server) DrainOnStop(fn func()) {
	s.drains = append(s.drains, fn)
}

// Start blocks until the server stops; a graceful stop returns nil
func (s *Server) Start() error {
	s.logger.Info("Starting checkin-desk HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down, then waits for the drains or ctx, whichever comes first
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping checkin-desk HTTP server")
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		for _, fn := range s.drains {
			fn()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("background work still running at shutdown")
	}
	return err
}
