package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/goroutine"
	"github.com/shandysiswandi/govault/internal/pkg/idempotency"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/sealer"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
	stepupentity "github.com/shandysiswandi/govault/internal/stepup/entity"
	stepupusecase "github.com/shandysiswandi/govault/internal/stepup/usecase"
	"github.com/shandysiswandi/govault/internal/vault/entity"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeDB struct {
	mu    sync.Mutex
	creds map[int64]entity.Credential
}

func (f *fakeDB) CreateCredential(_ context.Context, in entity.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds[in.ID] = in
	return nil
}

func (f *fakeDB) ListCredentials(_ context.Context, userID int64) ([]entity.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []entity.Credential
	for _, c := range f.creds {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDB) GetCredential(_ context.Context, userID, id int64) (*entity.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.creds[id]
	if !ok || c.UserID != userID {
		return nil, goerror.ErrNotFound
	}
	return &c, nil
}

func (f *fakeDB) SoftDeleteCredential(_ context.Context, userID, id int64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.creds[id]
	if !ok || c.UserID != userID {
		return goerror.ErrNotFound
	}
	delete(f.creds, id)
	return nil
}

type fakeBlob struct {
	mu         sync.Mutex
	objects    map[string][]byte
	presignErr error
}

func (f *fakeBlob) PutExport(_ context.Context, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = body
	return nil
}

func (f *fakeBlob) PresignExport(_ context.Context, key string, _ time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://blob.test/" + key + "?sig=1", nil
}

func (f *fakeBlob) DeleteExport(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type fakeMessaging struct {
	mu     sync.Mutex
	events []VaultExportedEvent
}

func (f *fakeMessaging) PublishVaultExported(_ context.Context, msg VaultExportedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, msg)
	return nil
}

// fakeStepUp authorizes the actions listed in grants and asks for a code otherwise.
type fakeStepUp struct {
	mu     sync.Mutex
	grants map[stepupentity.ActionType]bool
	calls  []stepupusecase.AuthorizeInput
}

func (f *fakeStepUp) Authorize(_ context.Context, in stepupusecase.AuthorizeInput) (stepupentity.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, in)
	if in.Code == "000000" {
		return stepupentity.Denied(stepupentity.ReasonInvalidCode), nil
	}
	if f.grants[in.ActionType] || in.Code != "" {
		return stepupentity.Authorized(&stepupentity.Challenge{}), nil
	}
	return stepupentity.RequiresVerification(), nil
}

type harness struct {
	uc     *Usecase
	db     *fakeDB
	blob   *fakeBlob
	mq     *fakeMessaging
	stepUp *fakeStepUp
	gm     *goroutine.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(`
modules:
  vault:
    export_url_expiry: 10
`))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	ring, err := sealer.NewKeyring(1, map[uint16][]byte{1: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}

	snow, err := uid.NewSnowflakeWithNode(3)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		db:     &fakeDB{creds: map[int64]entity.Credential{}},
		blob:   &fakeBlob{objects: map[string][]byte{}},
		mq:     &fakeMessaging{},
		stepUp: &fakeStepUp{grants: map[stepupentity.ActionType]bool{}},
		gm:     goroutine.NewManager(4),
	}

	h.uc = New(Dependency{
		RepoDB:        h.db,
		RepoBlob:      h.blob,
		RepoMessaging: h.mq,
		StepUp:        h.stepUp,
		Idempotency:   idempotency.New(rdb),
		Validator:     v,
		Config:        cfg,
		Sealer:        sealer.NewAESGCM(ring),
		UID:           snow,
		Clock:         fixedClock{t: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)},
		Instrument:    instrument.NewNoop(),
		Goroutine:     h.gm,
	})

	return h
}

func (h *harness) create(t *testing.T, userID int64, name, password string) *CredentialOutput {
	t.Helper()

	out, err := h.uc.CreateCredential(context.Background(), CreateInput{
		UserID: userID, Name: name, Username: "alice", URL: "https://" + name + ".test", Password: password,
	})
	if err != nil {
		t.Fatalf("CreateCredential(%s): %v", name, err)
	}
	return out
}

func statusOf(t *testing.T, err error) int {
	t.Helper()

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *goerror.Error, got %T (%v)", err, err)
	}
	return gerr.StatusCode()
}

func TestCreateAndList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out := h.create(t, 7, "mail", "hunter2")

	stored := h.db.creds[out.ID]
	if strings.Contains(string(stored.Secret), "hunter2") {
		t.Fatal("password must be stored sealed")
	}

	items, err := h.uc.ListCredentials(ctx, 7)
	if err != nil || len(items) != 1 || items[0].Name != "mail" {
		t.Fatalf("ListCredentials = %+v, %v", items, err)
	}

	other, _ := h.uc.ListCredentials(ctx, 8)
	if len(other) != 0 {
		t.Fatalf("another user sees %d credentials", len(other))
	}

	_, err = h.uc.CreateCredential(ctx, CreateInput{UserID: 7, Name: " ", Password: "x"})
	if got := statusOf(t, err); got != http.StatusUnprocessableEntity {
		t.Fatalf("blank name status = %d", got)
	}
}

func TestCopyPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := h.create(t, 7, "mail", "hunter2")

	t.Run("no grant asks for verification", func(t *testing.T) {
		_, err := h.uc.CopyPassword(ctx, CopyInput{Gate: Gate{UserID: 7, DeviceID: "dev-a"}, CredentialID: cred.ID})

		var denial *stepupentity.DenialError
		if !errors.As(err, &denial) || denial.Result.Kind != stepupentity.ResultRequiresVerification {
			t.Fatalf("err = %v, want requires verification", err)
		}
	})

	t.Run("wrong code is denied", func(t *testing.T) {
		_, err := h.uc.CopyPassword(ctx, CopyInput{Gate: Gate{UserID: 7, DeviceID: "dev-a", Code: "000000"}, CredentialID: cred.ID})

		var denial *stepupentity.DenialError
		if !errors.As(err, &denial) || denial.Result.Reason != stepupentity.ReasonInvalidCode {
			t.Fatalf("err = %v, want invalid_code", err)
		}
	})

	t.Run("grant reveals the password", func(t *testing.T) {
		out, err := h.uc.CopyPassword(ctx, CopyInput{
			Gate:         Gate{UserID: 7, DeviceID: "dev-a", Code: "123456", IPAddress: "10.0.0.1", UserAgent: "ua"},
			CredentialID: cred.ID,
		})
		if err != nil || out.Password != "hunter2" {
			t.Fatalf("CopyPassword = %+v, %v", out, err)
		}

		last := h.stepUp.calls[len(h.stepUp.calls)-1]
		if last.ActionType != stepupentity.ActionTypeCopyPassword || last.Context != stepupentity.ContextSensitive {
			t.Fatalf("authorize called with %+v", last)
		}
		if last.Environment.IPAddress != "10.0.0.1" || last.DeviceID != "dev-a" {
			t.Fatalf("environment not forwarded: %+v", last)
		}
	})

	t.Run("foreign credential is not found before any step-up", func(t *testing.T) {
		before := len(h.stepUp.calls)
		_, err := h.uc.CopyPassword(ctx, CopyInput{Gate: Gate{UserID: 8, DeviceID: "dev-a", Code: "123456"}, CredentialID: cred.ID})
		if got := statusOf(t, err); got != http.StatusNotFound {
			t.Fatalf("status = %d", got)
		}
		if len(h.stepUp.calls) != before {
			t.Fatal("a code must not be spent on a credential the user does not own")
		}
	})
}

func TestDeleteCredential(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := h.create(t, 7, "mail", "hunter2")

	// a copy grant does not cover delete
	h.stepUp.grants[stepupentity.ActionTypeCopyPassword] = true
	err := h.uc.DeleteCredential(ctx, DeleteInput{Gate: Gate{UserID: 7, DeviceID: "dev-a"}, CredentialID: cred.ID})
	var denial *stepupentity.DenialError
	if !errors.As(err, &denial) {
		t.Fatalf("err = %v, want denial", err)
	}

	h.stepUp.grants[stepupentity.ActionTypeDeleteCredential] = true
	if err := h.uc.DeleteCredential(ctx, DeleteInput{Gate: Gate{UserID: 7, DeviceID: "dev-a"}, CredentialID: cred.ID}); err != nil {
		t.Fatalf("DeleteCredential: %v", err)
	}

	err = h.uc.DeleteCredential(ctx, DeleteInput{Gate: Gate{UserID: 7, DeviceID: "dev-a"}, CredentialID: cred.ID})
	if got := statusOf(t, err); got != http.StatusNotFound {
		t.Fatalf("second delete status = %d", got)
	}
}

func TestExportVault(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, 7, "mail", "hunter2")
	h.create(t, 7, "bank", "s3cret")
	h.stepUp.grants[stepupentity.ActionTypeExportVault] = true

	in := ExportInput{Gate: Gate{UserID: 7, Email: "alice@govault.test", DeviceID: "dev-a"}, IdempotencyKey: "exp-1"}

	first, err := h.uc.ExportVault(ctx, in)
	if err != nil {
		t.Fatalf("ExportVault: %v", err)
	}
	if first.Replayed || first.Count != 2 || !strings.HasPrefix(first.Key, "exports/7/") {
		t.Fatalf("first = %+v", first)
	}
	if want := time.Date(2026, 6, 1, 8, 10, 0, 0, time.UTC); !first.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", first.ExpiresAt, want)
	}

	var doc entity.Export
	if err := json.Unmarshal(h.blob.objects[first.Key], &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(doc.Items) != 2 || doc.UserID != "7" {
		t.Fatalf("export doc = %+v", doc)
	}
	for _, it := range doc.Items {
		if it.Password != "hunter2" && it.Password != "s3cret" {
			t.Fatalf("export holds %q, want plaintext", it.Password)
		}
	}

	second, err := h.uc.ExportVault(ctx, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Replayed || second.URL != first.URL || len(h.blob.objects) != 1 {
		t.Fatalf("replay wrote again: %+v objects=%d", second, len(h.blob.objects))
	}

	h.gm.Wait()
	if len(h.mq.events) != 1 || h.mq.events[0].Email != "alice@govault.test" {
		t.Fatalf("events = %+v", h.mq.events)
	}
}

func TestExportVaultFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, 7, "mail", "hunter2")

	in := ExportInput{Gate: Gate{UserID: 7, DeviceID: "dev-a"}, IdempotencyKey: "exp-2"}

	t.Run("no grant", func(t *testing.T) {
		_, err := h.uc.ExportVault(ctx, in)
		var denial *stepupentity.DenialError
		if !errors.As(err, &denial) {
			t.Fatalf("err = %v, want denial", err)
		}
	})

	t.Run("missing idempotency key", func(t *testing.T) {
		_, err := h.uc.ExportVault(ctx, ExportInput{Gate: in.Gate})
		if got := statusOf(t, err); got != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", got)
		}
	})

	t.Run("presign failure removes the file and frees the key", func(t *testing.T) {
		h.stepUp.grants[stepupentity.ActionTypeExportVault] = true
		h.blob.presignErr = errors.New("signer down")

		_, err := h.uc.ExportVault(ctx, in)
		if got := statusOf(t, err); got != http.StatusInternalServerError {
			t.Fatalf("status = %d", got)
		}
		if len(h.blob.objects) != 0 {
			t.Fatal("unreachable export left in storage")
		}

		h.blob.presignErr = nil
		out, err := h.uc.ExportVault(ctx, in)
		if err != nil || out.Replayed {
			t.Fatalf("retry = %+v, %v", out, err)
		}
	})
}
