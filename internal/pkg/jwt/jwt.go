package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrSigningKeyTooShort = errors.New("jwt: HS512 key must be at least 64 bytes")
	ErrTokenExpired       = errors.New("jwt: token expired")
	ErrInvalidToken       = errors.New("jwt: invalid token")
)

type JWT interface {
	Generate(sub Subject) (Token, error)
	// Verify returns ErrTokenExpired or ErrInvalidToken for a token that
	// should not be honored.
	Verify(tokenStr string) (Claims, error)
}

// Subject is who a token is minted for.
type Subject struct {
	UserID int64
	Email  string
	Role   string
}

// Token is a signed value plus the id used to revoke it.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

type Config struct {
	Secret    []byte
	Issuer    string
	Audiences []string
	TTL       time.Duration
	Clock     interface{ Now() time.Time }
	// IDs generates the jti claim.
	IDs interface{ Generate() string }
}

// Claims is the payload of a session token. Role is the casbin subject.
type Claims struct {
	jwt.RegisteredClaims
	UserID    int64  `json:"user_id,string"`
	UserEmail string `json:"user_email"`
	Role      string `json:"role,omitempty"`
}

type claimsKey struct{}

// GetAuth returns the verified claims of the request, or nil for an anonymous one.
func GetAuth(ctx context.Context) *Claims {
	clm, ok := ctx.Value(claimsKey{}).(Claims)
	if !ok {
		return nil
	}
	return &clm
}

func SetAuth(ctx context.Context, clm Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, clm)
}
