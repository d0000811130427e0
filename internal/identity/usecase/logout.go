package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
)

func (s *Usecase) Logout(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Logout")
	defer span.End()

	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return goerror.NewBusiness("authentication required", goerror.CodeUnauthorized)
	}

	exp := s.clock.Now()
	if clm.ExpiresAt != nil {
		exp = clm.ExpiresAt.Time
	}

	if err := s.session.RevokeSession(ctx, clm.ID, exp); err != nil {
		slog.ErrorContext(ctx, "failed to revoke session", "user_id", clm.UserID, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}
