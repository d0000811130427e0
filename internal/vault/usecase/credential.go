package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/vault/entity"
)

type CreateInput struct {
	UserID   int64  `validate:"required,gt=0"`
	Name     string `validate:"required,min=1,max=100"`
	Username string `validate:"max=255"`
	URL      string `validate:"omitempty,url,max=2048"`
	Password string `validate:"required,max=1024"`
	Notes    string `validate:"max=4096"`
}

// CredentialOutput is a credential without its secret.
type CredentialOutput struct {
	ID        int64
	Name      string
	Username  string
	URL       string
	Notes     string
	CreatedAt time.Time
}

func toOutput(c entity.Credential) CredentialOutput {
	return CredentialOutput{
		ID:        c.ID,
		Name:      c.Name,
		Username:  c.Username,
		URL:       c.URL,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
	}
}

func (s *Usecase) CreateCredential(ctx context.Context, in CreateInput) (*CredentialOutput, error) {
	ctx, span := s.startSpan(ctx, "CreateCredential")
	defer span.End()

	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimSpace(in.URL)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	sealed, err := s.sealer.Seal([]byte(in.Password), credentialScope(in.UserID))
	if err != nil {
		slog.ErrorContext(ctx, "failed to seal credential", "user_id", in.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	cred := entity.Credential{
		ID:        s.uid.Generate(),
		UserID:    in.UserID,
		Name:      in.Name,
		Username:  in.Username,
		URL:       in.URL,
		Secret:    sealed,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repoDB.CreateCredential(ctx, cred); err != nil {
		slog.ErrorContext(ctx, "failed to repo create credential", "user_id", in.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	out := toOutput(cred)
	return &out, nil
}

func (s *Usecase) ListCredentials(ctx context.Context, userID int64) ([]CredentialOutput, error) {
	ctx, span := s.startSpan(ctx, "ListCredentials")
	defer span.End()

	items, err := s.repoDB.ListCredentials(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list credentials", "user_id", userID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return lo.Map(items, func(c entity.Credential, _ int) CredentialOutput { return toOutput(c) }), nil
}
