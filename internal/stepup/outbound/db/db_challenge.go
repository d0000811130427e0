package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
)

const challengeColumns = `id, user_id, action_type, context, device_id, method,
	is_verified, verified_at, expires_at, ip_address, user_agent, created_at`

func scanChallenge(row pgx.Row) (*entity.Challenge, error) {
	var (
		c          entity.Challenge
		actionType string
		chContext  string
		method     string
		ip, ua     *string
	)

	if err := row.Scan(
		&c.ID, &c.Key.UserID, &actionType, &chContext, &c.Key.DeviceID, &method,
		&c.IsVerified, &c.VerifiedAt, &c.ExpiresAt, &ip, &ua, &c.CreatedAt,
	); err != nil {
		return nil, err
	}

	c.Key.ActionType = entity.ActionType(actionType)
	c.Key.Context = entity.Context(chContext)
	c.Method = entity.Method(method)
	if ip != nil {
		c.Environment.IPAddress = *ip
	}
	if ua != nil {
		c.Environment.UserAgent = *ua
	}

	return &c, nil
}

// FindLiveChallenge returns the newest verified, unexpired and fresh row for k.
// Ties on verified_at resolve to the highest id, which is the latest insert.
func (s *DB) FindLiveChallenge(ctx context.Context, k entity.Key, now time.Time, ttl time.Duration) (ch *entity.Challenge, err error) {
	ctx, span := s.startSpan(ctx, "FindLiveChallenge")
	defer func() { s.endSpan(span, err) }()

	row := s.conn.QueryRow(ctx, `SELECT `+challengeColumns+`
		FROM stepup_challenges
		WHERE user_id = $1 AND action_type = $2 AND context = $3 AND device_id = $4
			AND is_verified AND expires_at > $5 AND verified_at >= $6
		ORDER BY verified_at DESC, id DESC
		LIMIT 1`,
		k.UserID, k.ActionType.String(), k.Context.String(), k.DeviceID, now, now.Add(-ttl),
	)

	ch, err = scanChallenge(row)
	err = s.mapError(err)
	return ch, err
}

// CreateVerifiedChallenge appends a row. It never updates an existing one.
func (s *DB) CreateVerifiedChallenge(ctx context.Context, in entity.Challenge) (err error) {
	ctx, span := s.startSpan(ctx, "CreateVerifiedChallenge")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `INSERT INTO stepup_challenges
		(id, user_id, action_type, context, device_id, method, is_verified, verified_at, expires_at, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		in.ID, in.Key.UserID, in.Key.ActionType.String(), in.Key.Context.String(), in.Key.DeviceID,
		string(in.Method), in.IsVerified, in.VerifiedAt, in.ExpiresAt,
		in.Environment.IPAddress, in.Environment.UserAgent, in.CreatedAt,
	)

	err = s.mapError(err)
	return err
}

// RefreshChallenge slides every live row for k forward to now. It returns how many rows moved.
func (s *DB) RefreshChallenge(ctx context.Context, k entity.Key, now time.Time, ttl time.Duration) (n int64, err error) {
	ctx, span := s.startSpan(ctx, "RefreshChallenge")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `UPDATE stepup_challenges
		SET verified_at = $5, expires_at = $6
		WHERE user_id = $1 AND action_type = $2 AND context = $3 AND device_id = $4
			AND is_verified AND expires_at > $5 AND verified_at >= $7`,
		k.UserID, k.ActionType.String(), k.Context.String(), k.DeviceID, now, now.Add(ttl), now.Add(-ttl),
	)
	if err != nil {
		return 0, s.mapError(err)
	}

	return tag.RowsAffected(), nil
}

// ListChallenges returns the newest rows of one user, live or not.
func (s *DB) ListChallenges(ctx context.Context, userID int64, limit int) (out []entity.Challenge, err error) {
	ctx, span := s.startSpan(ctx, "ListChallenges")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `SELECT `+challengeColumns+`
		FROM stepup_challenges
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		ch, scanErr := scanChallenge(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		out = append(out, *ch)
	}

	err = rows.Err()
	return out, err
}

// DeleteExpiredChallenges removes rows that expired before cutoff.
func (s *DB) DeleteExpiredChallenges(ctx context.Context, cutoff time.Time) (n int64, err error) {
	ctx, span := s.startSpan(ctx, "DeleteExpiredChallenges")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM stepup_challenges WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, s.mapError(err)
	}

	return tag.RowsAffected(), nil
}
