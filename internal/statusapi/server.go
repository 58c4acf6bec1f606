package statusapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"transkribator/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the status endpoint on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return serve(ctx, listener, handler, logger)
}

func serve(ctx context.Context, listener net.Listener, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	logger.Info("status endpoint listening",
		logging.String("addr", listener.Addr().String()),
		logging.String(logging.FieldEventType, "status_api_started"),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown status endpoint: %w", err)
	}
	return nil
}
