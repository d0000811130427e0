package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	stepupentity "github.com/shandysiswandi/govault/internal/stepup/entity"
)

type DeleteInput struct {
	Gate
	CredentialID int64 `validate:"required,gt=0"`
}

func (s *Usecase) DeleteCredential(ctx context.Context, in DeleteInput) error {
	ctx, span := s.startSpan(ctx, "DeleteCredential")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	_, err := s.repoDB.GetCredential(ctx, in.UserID, in.CredentialID)
	if errors.Is(err, goerror.ErrNotFound) {
		return goerror.NewBusiness("Credential not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get credential", "user_id", in.UserID, "credential_id", in.CredentialID, "error", err)
		return goerror.NewServer(err)
	}

	if err := s.requireGrant(ctx, in.Gate, stepupentity.ActionTypeDeleteCredential); err != nil {
		return err
	}

	err = s.repoDB.SoftDeleteCredential(ctx, in.UserID, in.CredentialID, s.clock.Now())
	if errors.Is(err, goerror.ErrNotFound) {
		return goerror.NewBusiness("Credential not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete credential", "user_id", in.UserID, "credential_id", in.CredentialID, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}
