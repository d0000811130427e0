package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
)

type CheckActionInput struct {
	UserID      int64             `validate:"required,gt=0"`
	DeviceID    string            `validate:"required,max=255"`
	ActionType  entity.ActionType `validate:"required,action_type"`
	Environment entity.Environment
}

// CheckAction asks whether a live grant exists without submitting a code.
// Unlike Authorize it always denies when the environment changed.
func (s *Usecase) CheckAction(ctx context.Context, in CheckActionInput) (entity.Result, error) {
	ctx, span := s.startSpan(ctx, "CheckAction")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "invalid check action input", "error", err)
		return entity.Denied(entity.ReasonMalformedRequest), goerror.NewInvalidInput(err)
	}
	if err := validateScope(entity.ContextSensitive, in.ActionType); err != nil {
		return entity.Denied(entity.ReasonMalformedRequest), err
	}

	res, err := s.authorize(ctx, s.policy(), AuthorizeInput{
		UserID:            in.UserID,
		ActionType:        in.ActionType,
		Context:           entity.ContextSensitive,
		DeviceID:          in.DeviceID,
		Environment:       in.Environment,
		StrictFingerprint: true,
	})
	if err == nil {
		s.observe(entity.ContextSensitive, in.ActionType, res)
	}

	return res, err
}
