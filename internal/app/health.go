package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/router"
)

type healthResponse struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func (h healthResponse) Message() string {
	return "Service is healthy"
}

// healthz reports whether the stores the step-up protocol depends on answer.
// A ledger that cannot be reached fails closed, so the probe does too.
func (a *App) healthz(r *router.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.dbConn.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "health check failed", "name", "database", "error", err)
		return nil, goerror.NewBusiness("Database unavailable", goerror.CodeUnavailable)
	}

	if err := a.cacheConn.Ping(ctx).Err(); err != nil {
		slog.WarnContext(ctx, "health check failed", "name", "redis", "error", err)
		return nil, goerror.NewBusiness("Redis unavailable", goerror.CodeUnavailable)
	}

	return healthResponse{Database: "ok", Redis: "ok"}, nil
}
