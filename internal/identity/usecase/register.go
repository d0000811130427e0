package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/shandysiswandi/govault/internal/identity/entity"
	"github.com/shandysiswandi/govault/internal/pkg/goerror"
)

type RegisterInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,password"`
	FullName string `validate:"required,min=2,max=100,alphaspace"`
}

type RegisterOutput struct {
	ID       int64
	Email    string
	FullName string
	Role     string
}

func (s *Usecase) Register(ctx context.Context, in RegisterInput) (*RegisterOutput, error) {
	ctx, span := s.startSpan(ctx, "Register")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	hashed, err := s.bcrypt.Hash(in.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "error", err)
		return nil, goerror.NewServer(err)
	}

	role := entity.RoleUser
	if slices.Contains(s.cfg.GetArray("modules.identity.admin_emails"), in.Email) {
		role = entity.RoleAdmin
	}

	user := entity.NewUser{
		ID:           s.uid.Generate(),
		Email:        in.Email,
		PasswordHash: string(hashed),
		FullName:     in.FullName,
		Role:         role,
		CreatedAt:    s.clock.Now(),
	}

	err = s.repoDB.CreateUser(ctx, user)
	if errors.Is(err, goerror.ErrConflict) {
		return nil, goerror.NewBusiness("Email already registered", goerror.CodeConflict)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create user", "email", user.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &RegisterOutput{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role.String(),
	}, nil
}
