package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"upgradewatch/internal/config"
	"upgradewatch/internal/interfaces"
)

const shutdownTimeout = 10 * time.Second

// Error variables for err113 compliance.
var (
	errPollerNotStarted = errors.New("poller did not start: cluster name is empty")
)

// Poller is the polling loop the server runs alongside the listener.
type Poller interface {
	Start(ctx context.Context) bool
	Stop()
}

// Server runs the HTTP listener and the poller until its context ends.
type Server struct {
	httpServer *http.Server
	api        *API
	poller     Poller
	logger     interfaces.Logger
}

// NewServer creates a server for api listening on cfg.Addr().
func NewServer(cfg config.ServerConfig, api *API, poller Poller, logger interfaces.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      api,
			ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
		},
		api:    api,
		poller: poller,
		logger: logger.Named("server"),
	}
}

// Run starts polling and serving, and shuts both down when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if !s.poller.Start(ctx) {
		return errPollerNotStarted
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Infof("Listening on %s", s.httpServer.Addr)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	var runErr error

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down")
	case err, ok := <-errCh:
		if ok {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	s.poller.Stop()
	s.api.Hub().Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	if err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to shut down http server: %w", err)
	}

	return runErr
}
