package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/govault/internal/identity/entity"
	"github.com/shandysiswandi/govault/internal/pkg/goerror"
)

const userColumns = `id, email, password_hash, full_name, role, totp_secret, twofa_enabled, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	var (
		u    entity.User
		role string
	)
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FullName,
		&role,
		&u.TOTPSecret,
		&u.TwoFAEnabled,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = entity.Role(role)

	return &u, nil
}

func (s *DB) CreateUser(ctx context.Context, in entity.NewUser) (err error) {
	ctx, span := s.startSpan(ctx, "CreateUser")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO identity_users (id, email, password_hash, full_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		in.ID, in.Email, in.PasswordHash, in.FullName, in.Role.String(), in.CreatedAt,
	)
	return s.mapError(err)
}

func (s *DB) GetUserByEmail(ctx context.Context, email string) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByEmail")
	defer func() { s.endSpan(span, err) }()

	u, err := scanUser(s.conn.QueryRow(ctx,
		`SELECT `+userColumns+` FROM identity_users WHERE LOWER(email) = LOWER($1)`, email))
	if err != nil {
		return nil, s.mapError(err)
	}
	return u, nil
}

func (s *DB) GetUserByID(ctx context.Context, id int64) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByID")
	defer func() { s.endSpan(span, err) }()

	u, err := scanUser(s.conn.QueryRow(ctx,
		`SELECT `+userColumns+` FROM identity_users WHERE id = $1`, id))
	if err != nil {
		return nil, s.mapError(err)
	}
	return u, nil
}

// UpdateTOTPSecret replaces the sealed secret. twofa_enabled is left as is.
func (s *DB) UpdateTOTPSecret(ctx context.Context, userID int64, secret []byte, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateTOTPSecret")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx,
		`UPDATE identity_users SET totp_secret = $2, updated_at = $3 WHERE id = $1`,
		userID, secret, at,
	)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}
	return nil
}
