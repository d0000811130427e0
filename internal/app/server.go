package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
)

// Run serves HTTP until ctx is canceled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", a.httpServer.Addr)
		errCh <- a.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Serve runs the HTTP server on l; tests use it with an ephemeral port.
func (a *App) Serve(l net.Listener) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.httpServer.Serve(l)
		close(errCh)
	}()
	return errCh
}

// Stop drains HTTP first, then background work, then closes resources in
// reverse order of creation.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to shut down http server", "error", err)
	}

	a.cancel()

	slog.InfoContext(ctx, "waiting for background goroutines")
	if err := a.goroutine.Wait(); err != nil {
		slog.ErrorContext(ctx, "background goroutines reported errors", "error", err)
	}

	a.closeAll(ctx)
	slog.InfoContext(ctx, "application stopped")
}
