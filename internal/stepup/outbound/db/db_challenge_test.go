package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/testkit"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
)

const ttl = 5 * time.Minute

func newTestDB(t *testing.T) (*DB, int64) {
	t.Helper()

	pool := testkit.Postgres(t)
	ctx := context.Background()

	const userID int64 = 1001
	if _, err := pool.Exec(ctx, `INSERT INTO identity_users (id, email, password_hash, totp_secret)
		VALUES ($1, 'ledger@govault.test', 'x', '\x01'::bytea)`, userID); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return NewDB(pool, instrument.NewNoop()), userID
}

func verifiedAt(t time.Time) *time.Time { return &t }

func newChallenge(id int64, k entity.Key, at time.Time) entity.Challenge {
	return entity.Challenge{
		ID:          id,
		Key:         k,
		Method:      entity.MethodTOTP,
		IsVerified:  true,
		VerifiedAt:  verifiedAt(at),
		ExpiresAt:   at.Add(ttl),
		Environment: entity.Environment{IPAddress: "10.0.0.1", UserAgent: "test"},
		CreatedAt:   at,
	}
}

func TestDB_ChallengeLedger(t *testing.T) {
	s, userID := newTestDB(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := entity.Key{UserID: userID, ActionType: entity.ActionTypeCopyPassword, Context: entity.ContextSensitive, DeviceID: "dev-a"}

	t.Run("not found before any verification", func(t *testing.T) {
		_, err := s.FindLiveChallenge(ctx, key, now, ttl)
		if !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("ties on verified_at pick the highest id", func(t *testing.T) {
		for _, id := range []int64{10, 12, 11} {
			if err := s.CreateVerifiedChallenge(ctx, newChallenge(id, key, now)); err != nil {
				t.Fatalf("create %d: %v", id, err)
			}
		}

		ch, err := s.FindLiveChallenge(ctx, key, now.Add(time.Minute), ttl)
		if err != nil {
			t.Fatalf("FindLiveChallenge: %v", err)
		}
		if ch.ID != 12 {
			t.Fatalf("id = %d, want 12", ch.ID)
		}
	})

	t.Run("exact tuple only", func(t *testing.T) {
		other := key
		other.DeviceID = "dev-b"
		if _, err := s.FindLiveChallenge(ctx, other, now, ttl); !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("device b: err = %v", err)
		}

		other = key
		other.ActionType = entity.ActionTypeDeleteCredential
		if _, err := s.FindLiveChallenge(ctx, other, now, ttl); !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("delete_credential: err = %v", err)
		}
	})

	t.Run("refresh slides every live row", func(t *testing.T) {
		later := now.Add(4 * time.Minute)
		n, err := s.RefreshChallenge(ctx, key, later, ttl)
		if err != nil {
			t.Fatalf("RefreshChallenge: %v", err)
		}
		if n != 3 {
			t.Fatalf("rows = %d, want 3", n)
		}

		ch, err := s.FindLiveChallenge(ctx, key, later.Add(4*time.Minute), ttl)
		if err != nil {
			t.Fatalf("after refresh: %v", err)
		}
		if !ch.ExpiresAt.Equal(later.Add(ttl)) {
			t.Fatalf("expires_at = %v, want %v", ch.ExpiresAt, later.Add(ttl))
		}
	})

	t.Run("expired rows are not live and get swept", func(t *testing.T) {
		far := now.Add(time.Hour)
		if _, err := s.FindLiveChallenge(ctx, key, far, ttl); !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}

		n, err := s.DeleteExpiredChallenges(ctx, far)
		if err != nil {
			t.Fatalf("DeleteExpiredChallenges: %v", err)
		}
		if n != 3 {
			t.Fatalf("swept = %d, want 3", n)
		}

		rows, err := s.ListChallenges(ctx, key.UserID, 10)
		if err != nil || len(rows) != 0 {
			t.Fatalf("ListChallenges = %v, %v", rows, err)
		}
	})
}

func TestDB_Subject(t *testing.T) {
	s, userID := newTestDB(t)
	ctx := context.Background()

	sub, err := s.GetSubject(ctx, userID)
	if err != nil {
		t.Fatalf("GetSubject: %v", err)
	}
	if !sub.HasSecret() || sub.TwoFAEnabled {
		t.Fatalf("unexpected subject %+v", sub)
	}

	changed, err := s.EnableTwoFA(ctx, userID, time.Now())
	if err != nil || !changed {
		t.Fatalf("first EnableTwoFA = %v, %v", changed, err)
	}
	changed, err = s.EnableTwoFA(ctx, userID, time.Now())
	if err != nil || changed {
		t.Fatalf("second EnableTwoFA = %v, %v", changed, err)
	}

	if _, err := s.GetSubject(ctx, 404); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}
