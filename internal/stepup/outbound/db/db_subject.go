package db

import (
	"context"
	"time"

	"github.com/shandysiswandi/govault/internal/stepup/entity"
)

func (s *DB) GetSubject(ctx context.Context, userID int64) (sub *entity.Subject, err error) {
	ctx, span := s.startSpan(ctx, "GetSubject")
	defer func() { s.endSpan(span, err) }()

	var out entity.Subject
	err = s.conn.QueryRow(ctx, `SELECT id, email, role, totp_secret, twofa_enabled
		FROM identity_users WHERE id = $1`, userID).
		Scan(&out.UserID, &out.Email, &out.Role, &out.TOTPSecret, &out.TwoFAEnabled)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &out, nil
}

// EnableTwoFA flips twofa_enabled on. changed is false when it was already on.
func (s *DB) EnableTwoFA(ctx context.Context, userID int64, at time.Time) (changed bool, err error) {
	ctx, span := s.startSpan(ctx, "EnableTwoFA")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `UPDATE identity_users
		SET twofa_enabled = TRUE, updated_at = $2
		WHERE id = $1 AND NOT twofa_enabled`, userID, at)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}
