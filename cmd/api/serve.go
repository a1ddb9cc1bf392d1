package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

type eventRouter interface {
	Run(ctx context.Context) error
	Running() chan struct{}
}

var shutdownTimeout = 10 * time.Second

// serve runs the event router and the HTTP server until ctx is done. The router
// gets its own context and is stopped only after the HTTP server has drained, so
// requests finishing during shutdown can still publish.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, events eventRouter) error {
	busCtx, cancelBus := context.WithCancel(context.Background())
	defer cancelBus()

	busErr := make(chan error, 1)
	go func() { busErr <- events.Run(busCtx) }()
	select {
	case <-events.Running():
	case err := <-busErr:
		return fmt.Errorf("message router: %w", err)
	}

	srvErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		return fmt.Errorf("server error: %w", err)
	case err := <-busErr:
		return fmt.Errorf("message router: %w", err)
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)

	cancelBus()
	if err := <-busErr; err != nil {
		slog.Error("message router stopped", "error", err)
	}
	if shutdownErr != nil {
		return fmt.Errorf("forced shutdown: %w", shutdownErr)
	}
	slog.Info("server stopped")
	return nil
}
