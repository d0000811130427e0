package inbound

import (
	"context"

	"github.com/shandysiswandi/govault/internal/pkg/router"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
	"github.com/shandysiswandi/govault/internal/stepup/usecase"
)

type uc interface {
	Verify(ctx context.Context, in usecase.VerifyInput) (*usecase.VerifyOutput, error)
	CheckAction(ctx context.Context, in usecase.CheckActionInput) (entity.Result, error)
	ListChallenges(ctx context.Context, in usecase.ListChallengesInput) ([]entity.Challenge, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// public route; the sensitive context checks the Bearer itself
	r.POST("/api/v1/2fa/verify", end.Verify)
	r.POST("/api/v1/2fa/check-action", end.CheckAction)

	r.GET("/api/v1/admin/stepup/challenges", end.ListChallenges, r.Authorize("stepup.challenges", "read"))
}
