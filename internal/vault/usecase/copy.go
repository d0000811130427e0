package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	stepupentity "github.com/shandysiswandi/govault/internal/stepup/entity"
)

type CopyInput struct {
	Gate
	CredentialID int64 `validate:"required,gt=0"`
}

type CopyOutput struct {
	Password string
}

// CopyPassword reveals a stored password behind a copy_password grant.
func (s *Usecase) CopyPassword(ctx context.Context, in CopyInput) (*CopyOutput, error) {
	ctx, span := s.startSpan(ctx, "CopyPassword")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	cred, err := s.repoDB.GetCredential(ctx, in.UserID, in.CredentialID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("Credential not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get credential", "user_id", in.UserID, "credential_id", in.CredentialID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.requireGrant(ctx, in.Gate, stepupentity.ActionTypeCopyPassword); err != nil {
		return nil, err
	}

	plain, err := s.sealer.Open(cred.Secret, credentialScope(in.UserID))
	if err != nil {
		slog.ErrorContext(ctx, "failed to open credential", "user_id", in.UserID, "credential_id", cred.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "credential password copied", "user_id", in.UserID, "credential_id", cred.ID, "device_id", in.DeviceID)

	return &CopyOutput{Password: string(plain)}, nil
}
