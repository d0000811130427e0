package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shandysiswandi/govault/internal/app"
)

const shutdownTimeout = 10 * time.Second

func main() {
	application, err := app.New()
	if err != nil {
		slog.Error("failed to start application", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	runErr := application.Run(ctx)
	if runErr != nil {
		slog.Error("http server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	application.Stop(shutdownCtx)

	if runErr != nil {
		os.Exit(1) //nolint:gocritic // deferred cancels are moot at exit
	}
}
