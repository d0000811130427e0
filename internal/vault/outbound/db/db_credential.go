package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/vault/entity"
)

const credentialColumns = `id, user_id, name, username, url, secret, notes, created_at, updated_at`

func scanCredential(row pgx.Row) (*entity.Credential, error) {
	var c entity.Credential
	if err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Username, &c.URL, &c.Secret, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *DB) CreateCredential(ctx context.Context, in entity.Credential) (err error) {
	ctx, span := s.startSpan(ctx, "CreateCredential")
	defer func() { s.endSpan(span, err) }()

	q := `INSERT INTO vault_credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.conn.Exec(ctx, q,
		in.ID, in.UserID, in.Name, in.Username, in.URL, in.Secret, in.Notes, in.CreatedAt, in.UpdatedAt,
	)
	return s.mapError(err)
}

// ListCredentials returns the live credentials of a user, newest first.
func (s *DB) ListCredentials(ctx context.Context, userID int64) (out []entity.Credential, err error) {
	ctx, span := s.startSpan(ctx, "ListCredentials")
	defer func() { s.endSpan(span, err) }()

	q := `SELECT ` + credentialColumns + ` FROM vault_credentials
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`

	rows, err := s.conn.Query(ctx, q, userID)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}

	return out, rows.Err()
}

func (s *DB) GetCredential(ctx context.Context, userID, id int64) (out *entity.Credential, err error) {
	ctx, span := s.startSpan(ctx, "GetCredential")
	defer func() { s.endSpan(span, err) }()

	q := `SELECT ` + credentialColumns + ` FROM vault_credentials
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`

	out, err = scanCredential(s.conn.QueryRow(ctx, q, id, userID))
	return out, s.mapError(err)
}

func (s *DB) SoftDeleteCredential(ctx context.Context, userID, id int64, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "SoftDeleteCredential")
	defer func() { s.endSpan(span, err) }()

	q := `UPDATE vault_credentials SET deleted_at = $3, updated_at = $3
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`

	tag, err := s.conn.Exec(ctx, q, id, userID, at)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}
