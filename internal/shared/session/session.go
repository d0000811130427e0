// Package session issues the two credentials a user holds.
//
// A pre-session token proves the password step of login and nothing else. It is
// opaque, stored in redis under an HMAC of its value, and consumed exactly once.
// A full session is a signed JWT paired with an anti-forgery token whose HMAC is
// kept under the JWT id; logging out records the JWT id in a revocation set
// until the token would expire anyway.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/govault/internal/pkg/clock"
	"github.com/shandysiswandi/govault/internal/pkg/hash"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPreSessionTTL bounds how long a user has to enter the second factor.
const DefaultPreSessionTTL = 5 * time.Minute

var (
	// ErrPreSessionNotFound is returned for unknown, expired or already consumed pre-session tokens.
	ErrPreSessionNotFound = errors.New("session: pre-session not found")
	// ErrEmptyToken is returned when an empty token is presented.
	ErrEmptyToken = errors.New("session: token is empty")
)

const (
	preSessionPrefix = "identity:presession:"
	revokedPrefix    = "identity:revoked:"
	csrfPrefix       = "identity:csrf:"

	csrfTokenBytes = 32
)

// PreSession is what a pre-session token resolves to.
type PreSession struct {
	UserID   int64     `json:"user_id"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	IssuedAt time.Time `json:"issued_at"`
}

// Subject returns the identity a full session would be minted for.
func (p *PreSession) Subject() jwt.Subject {
	return jwt.Subject{UserID: p.UserID, Email: p.Email, Role: p.Role}
}

// Session is a full session credential.
type Session struct {
	AccessToken string
	TokenID     string
	ExpiresAt   time.Time
	CSRFToken   string
}

type Config struct {
	Redis         *redis.Client
	JWT           jwt.JWT
	HMAC          hash.Hash
	Tokens        uid.StringID
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
	PreSessionTTL time.Duration
}

type Issuer struct {
	client *redis.Client
	jwt    jwt.JWT
	hmac   hash.Hash
	tokens uid.StringID
	clock  clock.Clocker
	ins    instrument.Instrumentation
	preTTL time.Duration
}

func New(cfg Config) *Issuer {
	ttl := cfg.PreSessionTTL
	if ttl <= 0 {
		ttl = DefaultPreSessionTTL
	}

	return &Issuer{
		client: cfg.Redis,
		jwt:    cfg.JWT,
		hmac:   cfg.HMAC,
		tokens: cfg.Tokens,
		clock:  cfg.Clock,
		ins:    cfg.Instrument,
		preTTL: ttl,
	}
}

func (i *Issuer) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return i.ins.Tracer("shared.session").Start(ctx, name)
}

func (i *Issuer) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrPreSessionNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (i *Issuer) preSessionKey(token string) (string, error) {
	sum, err := i.hmac.Hash(token)
	if err != nil {
		return "", err
	}
	return preSessionPrefix + string(sum), nil
}

// IssuePreSession stores a fresh single-use token for sub and returns its raw value.
func (i *Issuer) IssuePreSession(ctx context.Context, sub jwt.Subject) (token string, expiresAt time.Time, err error) {
	ctx, span := i.startSpan(ctx, "IssuePreSession")
	defer func() { i.endSpan(span, err) }()

	now := i.clock.Now()
	token = i.tokens.Generate()

	key, err := i.preSessionKey(token)
	if err != nil {
		return "", time.Time{}, err
	}

	body, err := json.Marshal(PreSession{
		UserID:   sub.UserID,
		Email:    sub.Email,
		Role:     sub.Role,
		IssuedAt: now,
	})
	if err != nil {
		return "", time.Time{}, err
	}

	if err = i.client.Set(ctx, key, body, i.preTTL).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("session: store pre-session: %w", err)
	}

	return token, now.Add(i.preTTL), nil
}

// PeekPreSession resolves token without consuming it.
func (i *Issuer) PeekPreSession(ctx context.Context, token string) (ps *PreSession, err error) {
	ctx, span := i.startSpan(ctx, "PeekPreSession")
	defer func() { i.endSpan(span, err) }()

	return i.loadPreSession(ctx, token, func(key string) *redis.StringCmd {
		return i.client.Get(ctx, key)
	})
}

// ConsumePreSession resolves token and deletes it atomically.
// Of two concurrent calls with the same token at most one succeeds.
func (i *Issuer) ConsumePreSession(ctx context.Context, token string) (ps *PreSession, err error) {
	ctx, span := i.startSpan(ctx, "ConsumePreSession")
	defer func() { i.endSpan(span, err) }()

	return i.loadPreSession(ctx, token, func(key string) *redis.StringCmd {
		return i.client.GetDel(ctx, key)
	})
}

func (i *Issuer) loadPreSession(ctx context.Context, token string, fetch func(key string) *redis.StringCmd) (*PreSession, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	key, err := i.preSessionKey(token)
	if err != nil {
		return nil, err
	}

	raw, err := fetch(key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPreSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: load pre-session: %w", err)
	}

	var ps PreSession
	if err := json.Unmarshal(raw, &ps); err != nil {
		return nil, fmt.Errorf("session: decode pre-session: %w", err)
	}

	return &ps, nil
}

// IssueSession mints a full session for sub.
func (i *Issuer) IssueSession(ctx context.Context, sub jwt.Subject) (s *Session, err error) {
	ctx, span := i.startSpan(ctx, "IssueSession")
	defer func() { i.endSpan(span, err) }()

	tok, err := i.jwt.Generate(sub)
	if err != nil {
		return nil, fmt.Errorf("session: sign token: %w", err)
	}

	raw := make([]byte, csrfTokenBytes)
	if _, err = rand.Read(raw); err != nil {
		return nil, fmt.Errorf("session: csrf token: %w", err)
	}
	csrf := hex.EncodeToString(raw)

	sum, err := i.hmac.Hash(csrf)
	if err != nil {
		return nil, err
	}

	if ttl := tok.ExpiresAt.Sub(i.clock.Now()); ttl > 0 {
		if err = i.client.Set(ctx, csrfPrefix+tok.ID, sum, ttl).Err(); err != nil {
			return nil, fmt.Errorf("session: store csrf token: %w", err)
		}
	}

	return &Session{
		AccessToken: tok.Value,
		TokenID:     tok.ID,
		ExpiresAt:   tok.ExpiresAt,
		CSRFToken:   csrf,
	}, nil
}

// VerifyCSRF reports whether token is the anti-forgery token issued with the
// session tokenID. Unknown sessions and empty tokens are simply false.
func (i *Issuer) VerifyCSRF(ctx context.Context, tokenID, token string) (bool, error) {
	if tokenID == "" || token == "" {
		return false, nil
	}

	stored, err := i.client.Get(ctx, csrfPrefix+tokenID).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session: load csrf token: %w", err)
	}

	sum, err := i.hmac.Hash(token)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(stored, sum) == 1, nil
}

// RevokeSession denylists tokenID until expiresAt.
func (i *Issuer) RevokeSession(ctx context.Context, tokenID string, expiresAt time.Time) (err error) {
	ctx, span := i.startSpan(ctx, "RevokeSession")
	defer func() { i.endSpan(span, err) }()

	if tokenID == "" {
		return ErrEmptyToken
	}

	ttl := expiresAt.Sub(i.clock.Now())
	if ttl <= 0 {
		return nil
	}

	_, err = i.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, revokedPrefix+tokenID, "1", ttl)
		pipe.Del(ctx, csrfPrefix+tokenID)
		return nil
	})
	return err
}

// IsRevoked reports whether tokenID was logged out.
func (i *Issuer) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := i.client.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
