package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	libotp "github.com/pquerna/otp"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/goroutine"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
	"github.com/shandysiswandi/govault/internal/pkg/otp"
	"github.com/shandysiswandi/govault/internal/pkg/sealer"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
	"github.com/shandysiswandi/govault/internal/shared/session"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeDB mirrors the SQL of the postgres ledger over a slice. Like pgx, every
// call fails once its context is done.
type fakeDB struct {
	mu         sync.Mutex
	rows       []entity.Challenge
	subjects   map[int64]*entity.Subject
	failFind   error
	failCreate error

	// onFindMiss runs outside the lock after a lookup found nothing.
	onFindMiss func()
}

func (f *fakeDB) live(c entity.Challenge, k entity.Key, now time.Time, ttl time.Duration) bool {
	return c.Key == k && c.IsVerified && c.ExpiresAt.After(now) && !c.VerifiedAt.Before(now.Add(-ttl))
}

func (f *fakeDB) FindLiveChallenge(ctx context.Context, k entity.Key, now time.Time, ttl time.Duration) (*entity.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.failFind != nil {
		f.mu.Unlock()
		return nil, f.failFind
	}

	var matches []entity.Challenge
	for _, c := range f.rows {
		if f.live(c, k, now, ttl) {
			matches = append(matches, c)
		}
	}
	hook := f.onFindMiss
	f.mu.Unlock()

	if len(matches) == 0 {
		if hook != nil {
			hook()
		}
		return nil, goerror.ErrNotFound
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].VerifiedAt.Equal(*matches[j].VerifiedAt) {
			return matches[i].VerifiedAt.After(*matches[j].VerifiedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	out := matches[0]
	return &out, nil
}

func (f *fakeDB) CreateVerifiedChallenge(ctx context.Context, in entity.Challenge) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreate != nil {
		return f.failCreate
	}
	f.rows = append(f.rows, in)
	return nil
}

func (f *fakeDB) RefreshChallenge(ctx context.Context, k entity.Key, now time.Time, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for i := range f.rows {
		if f.live(f.rows[i], k, now, ttl) {
			at := now
			f.rows[i].VerifiedAt = &at
			f.rows[i].ExpiresAt = now.Add(ttl)
			n++
		}
	}
	return n, nil
}

func (f *fakeDB) ListChallenges(_ context.Context, userID int64, limit int) ([]entity.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []entity.Challenge
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if f.rows[i].Key.UserID == userID {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

func (f *fakeDB) DeleteExpiredChallenges(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.rows[:0]
	var n int64
	for _, c := range f.rows {
		if c.ExpiresAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	f.rows = kept
	return n, nil
}

func (f *fakeDB) GetSubject(_ context.Context, userID int64) (*entity.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub, ok := f.subjects[userID]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeDB) EnableTwoFA(_ context.Context, userID int64, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub, ok := f.subjects[userID]
	if !ok {
		return false, goerror.ErrNotFound
	}
	if sub.TwoFAEnabled {
		return false, nil
	}
	sub.TwoFAEnabled = true
	return true, nil
}

func (f *fakeDB) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeCache struct {
	mu       sync.Mutex
	attempts map[int64]int64
	claims   map[string]string
	locks    map[string]string
	fail     error

	// onClaim runs after a code has been claimed.
	onClaim func()
}

func newFakeCache() *fakeCache {
	return &fakeCache{attempts: map[int64]int64{}, claims: map[string]string{}, locks: map[string]string{}}
}

func (f *fakeCache) AllowAttempt(_ context.Context, userID int64, limit int64, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return false, f.fail
	}
	f.attempts[userID]++
	return f.attempts[userID] <= limit, nil
}

func (f *fakeCache) ResetAttempts(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.attempts, userID)
	return nil
}

func (f *fakeCache) ClaimCode(_ context.Context, userID int64, step uint64, grant string, _ time.Duration) (string, bool, error) {
	f.mu.Lock()

	key := fmt.Sprintf("%d:%d", userID, step)
	owner, taken := f.claims[key]
	if !taken {
		f.claims[key] = grant
		owner = grant
	}
	hook := f.onClaim
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return owner, !taken, nil
}

func (f *fakeCache) AcquireLock(_ context.Context, name, owner string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, held := f.locks[name]; held {
		return false, nil
	}
	f.locks[name] = owner
	return true, nil
}

func (f *fakeCache) ReleaseLock(_ context.Context, name, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.locks[name] == owner {
		delete(f.locks, name)
	}
	return nil
}

type fakeSession struct {
	mu     sync.Mutex
	tokens map[string]*session.PreSession
	issued int
}

func (f *fakeSession) PeekPreSession(_ context.Context, token string) (*session.PreSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ps, ok := f.tokens[token]
	if !ok {
		return nil, session.ErrPreSessionNotFound
	}
	return ps, nil
}

func (f *fakeSession) ConsumePreSession(_ context.Context, token string) (*session.PreSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ps, ok := f.tokens[token]
	if !ok {
		return nil, session.ErrPreSessionNotFound
	}
	delete(f.tokens, token)
	return ps, nil
}

func (f *fakeSession) IssueSession(_ context.Context, sub jwt.Subject) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.issued++
	return &session.Session{
		AccessToken: fmt.Sprintf("access-%d-%d", sub.UserID, f.issued),
		TokenID:     fmt.Sprintf("jti-%d", f.issued),
		ExpiresAt:   time.Now().Add(time.Hour),
		CSRFToken:   "csrf",
	}, nil
}

type fakeMessaging struct {
	mu     sync.Mutex
	events []SecurityEvent
}

func (f *fakeMessaging) PublishSecurityEvent(_ context.Context, msg SecurityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, msg)
	return nil
}

const (
	userWithSecret    int64 = 1
	userWithoutSecret int64 = 2
)

const defaultTestConfig = `
modules:
  stepup:
    grant_ttl: 5m
    ledger_read_timeout: 1s
    ledger_write_timeout: 1s
    max_attempts: 5
    attempt_window: 15m
    fingerprint_enforce: false
    allow_code_reuse: false
    sweeper:
      retention: 1h
`

type harness struct {
	uc     *Usecase
	db     *fakeDB
	cache  *fakeCache
	sess   *fakeSession
	mq     *fakeMessaging
	gm     *goroutine.Manager
	clock  *fakeClock
	totp   *otp.TOTP
	secret string
}

func newHarness(t *testing.T, cfgYAML string) *harness {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(cfgYAML))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	v, err := validator.NewV10Validator(
		validator.WithEnum("twofa_context", entity.ContextNames()...),
		validator.WithEnum("action_type", entity.ActionTypeNames()...),
	)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	ring, err := sealer.NewKeyring(1, map[uint16][]byte{1: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	seal := sealer.NewAESGCM(ring)

	totp := otp.NewTOTP("GoVault", 30, 1, libotp.DigitsSix)
	secret, _, err := totp.Generate("user@govault.test")
	if err != nil {
		t.Fatalf("totp: %v", err)
	}
	sealed, err := seal.Seal([]byte(secret), sealer.Scope{UserID: userWithSecret, Purpose: sealer.PurposeOTPSeed})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	snow, err := uid.NewSnowflakeWithNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	h := &harness{
		db: &fakeDB{subjects: map[int64]*entity.Subject{
			userWithSecret:    {UserID: userWithSecret, Email: "user@govault.test", Role: "member", TOTPSecret: sealed},
			userWithoutSecret: {UserID: userWithoutSecret, Email: "new@govault.test", Role: "member"},
		}},
		cache:  newFakeCache(),
		sess:   &fakeSession{tokens: map[string]*session.PreSession{}},
		mq:     &fakeMessaging{},
		gm:     goroutine.NewManager(10),
		clock:  &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)},
		totp:   totp,
		secret: secret,
	}

	h.uc = New(Dependency{
		RepoDB:        h.db,
		RepoCache:     h.cache,
		RepoMessaging: h.mq,
		Session:       h.sess,
		Validator:     v,
		Config:        cfg,
		Sealer:        seal,
		Totp:          totp,
		UID:           snow,
		OID:           uid.NewULID(),
		Clock:         h.clock,
		Instrument:    instrument.NewNoop(),
		Goroutine:     h.gm,
	})

	return h
}

func (h *harness) code(t *testing.T) string {
	t.Helper()

	c, err := h.totp.GenerateCode(h.secret, h.clock.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	return c
}

// wrongCode returns a well formed code that is not valid now.
func (h *harness) wrongCode(t *testing.T) string {
	t.Helper()

	good := h.code(t)
	if good == "000000" {
		return "000001"
	}
	return "000000"
}

// publishedEvents drains the async publisher. Call it once at the end of a test.
func (h *harness) publishedEvents(t *testing.T) []SecurityEvent {
	t.Helper()

	if err := h.gm.Wait(); err != nil {
		t.Fatalf("goroutines: %v", err)
	}
	h.mq.mu.Lock()
	defer h.mq.mu.Unlock()
	return append([]SecurityEvent(nil), h.mq.events...)
}

func sensitive(user int64, action entity.ActionType, device, code string) AuthorizeInput {
	return AuthorizeInput{
		UserID:      user,
		ActionType:  action,
		Context:     entity.ContextSensitive,
		DeviceID:    device,
		Code:        code,
		Environment: entity.Environment{IPAddress: "10.0.0.1", UserAgent: "vault-cli/1.0"},
	}
}

func mustAuthorize(t *testing.T, h *harness, in AuthorizeInput) entity.Result {
	t.Helper()

	res, err := h.uc.Authorize(context.Background(), in)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	return res
}

var errDown = errors.New("connection refused")
