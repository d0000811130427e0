package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/testkit"
	"github.com/shandysiswandi/govault/internal/vault/entity"
)

func TestDB_Credentials(t *testing.T) {
	s := NewDB(testkit.Postgres(t), instrument.NewNoop())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []int64{7, 8} {
		if _, err := s.conn.Exec(ctx,
			`INSERT INTO identity_users (id, email, password_hash, full_name, role, created_at, updated_at)
			VALUES ($1, $2, 'x', 'Owner', 'user', $3, $3)`,
			id, fmt.Sprintf("owner%d@govault.test", id), now,
		); err != nil {
			t.Fatalf("seed user %d: %v", id, err)
		}
	}

	cred := func(id, userID int64, at time.Time) entity.Credential {
		return entity.Credential{
			ID: id, UserID: userID, Name: "mail", Username: "alice", URL: "https://mail.test",
			Secret: []byte{1, 2, 3}, Notes: "n", CreatedAt: at, UpdatedAt: at,
		}
	}

	for _, c := range []entity.Credential{
		cred(100, 7, now),
		cred(101, 7, now.Add(time.Minute)),
		cred(102, 8, now),
	} {
		if err := s.CreateCredential(ctx, c); err != nil {
			t.Fatalf("CreateCredential(%d): %v", c.ID, err)
		}
	}

	t.Run("duplicate id conflicts", func(t *testing.T) {
		if err := s.CreateCredential(ctx, cred(100, 7, now)); !errors.Is(err, goerror.ErrConflict) {
			t.Fatalf("err = %v, want ErrConflict", err)
		}
	})

	t.Run("list is per user and newest first", func(t *testing.T) {
		got, err := s.ListCredentials(ctx, 7)
		if err != nil {
			t.Fatalf("ListCredentials: %v", err)
		}
		if len(got) != 2 || got[0].ID != 101 || got[1].ID != 100 {
			t.Fatalf("got %+v", got)
		}
		if string(got[0].Secret) != "\x01\x02\x03" {
			t.Fatalf("secret = %v", got[0].Secret)
		}
	})

	t.Run("get is scoped to the owner", func(t *testing.T) {
		if _, err := s.GetCredential(ctx, 8, 100); !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		c, err := s.GetCredential(ctx, 7, 100)
		if err != nil || c.Name != "mail" {
			t.Fatalf("GetCredential: %+v %v", c, err)
		}
	})

	t.Run("soft delete hides the row once", func(t *testing.T) {
		if err := s.SoftDeleteCredential(ctx, 7, 100, now.Add(time.Hour)); err != nil {
			t.Fatalf("SoftDeleteCredential: %v", err)
		}
		if err := s.SoftDeleteCredential(ctx, 7, 100, now.Add(time.Hour)); !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("second delete err = %v", err)
		}
		if _, err := s.GetCredential(ctx, 7, 100); !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("deleted row still visible: %v", err)
		}
		got, _ := s.ListCredentials(ctx, 7)
		if len(got) != 1 {
			t.Fatalf("list after delete = %d rows", len(got))
		}
	})
}
