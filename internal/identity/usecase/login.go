package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
)

type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// LoginOutput carries the pre-session token that the second factor exchanges
// for a full session. SetupRequired is true when no TOTP secret exists yet.
type LoginOutput struct {
	PreSessionToken string
	ExpiresAt       time.Time
	TwoFAEnabled    bool
	SetupRequired   bool
}

func (s *Usecase) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	ctx, span := s.startSpan(ctx, "Login")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	email := strings.TrimSpace(in.Email)
	user, err := s.repoDB.GetUserByEmail(ctx, email)
	if errors.Is(err, goerror.ErrNotFound) {
		s.bcrypt.Verify(string(s.dummyHash()), in.Password)
		slog.WarnContext(ctx, "user account not found", "email", email)
		return nil, goerror.NewBusiness("invalid email or password", goerror.CodeUnauthorized)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by email", "email", email, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !s.bcrypt.Verify(user.PasswordHash, in.Password) {
		slog.WarnContext(ctx, "password user account not match", "user_id", user.ID)
		return nil, goerror.NewBusiness("invalid email or password", goerror.CodeUnauthorized)
	}

	token, expiresAt, err := s.session.IssuePreSession(ctx, jwt.Subject{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role.String(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue pre-session", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &LoginOutput{
		PreSessionToken: token,
		ExpiresAt:       expiresAt,
		TwoFAEnabled:    user.TwoFAEnabled,
		SetupRequired:   !user.HasSecret(),
	}, nil
}
