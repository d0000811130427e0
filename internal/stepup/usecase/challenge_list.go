package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
)

const defaultChallengeListLimit = 50

type ListChallengesInput struct {
	UserID int64 `validate:"required,gt=0"`
	Limit  int   `validate:"omitempty,min=1,max=200"`
}

func (s *Usecase) ListChallenges(ctx context.Context, in ListChallengesInput) ([]entity.Challenge, error) {
	ctx, span := s.startSpan(ctx, "ListChallenges")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}
	if in.Limit == 0 {
		in.Limit = defaultChallengeListLimit
	}

	p := s.policy()
	rctx, cancel := s.readCtx(ctx, p)
	defer cancel()

	items, err := s.repoDB.ListChallenges(rctx, in.UserID, in.Limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list challenges", "user_id", in.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return items, nil
}
