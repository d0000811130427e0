package jwt

import (
	"errors"
	"strconv"

	libJWT "github.com/golang-jwt/jwt/v5"
)

const minHS512Key = 64

// Symmetric signs and verifies with one shared HMAC key.
type Symmetric struct {
	cfg    Config
	parser *libJWT.Parser
}

func NewHS512(cfg Config) (*Symmetric, error) {
	if len(cfg.Secret) < minHS512Key {
		return nil, ErrSigningKeyTooShort
	}

	opts := []libJWT.ParserOption{
		libJWT.WithValidMethods([]string{libJWT.SigningMethodHS512.Alg()}),
		libJWT.WithIssuer(cfg.Issuer),
		libJWT.WithIssuedAt(),
		libJWT.WithExpirationRequired(),
	}
	if len(cfg.Audiences) > 0 {
		opts = append(opts, libJWT.WithAudience(cfg.Audiences...))
	}
	if cfg.Clock != nil {
		opts = append(opts, libJWT.WithTimeFunc(cfg.Clock.Now))
	}

	return &Symmetric{cfg: cfg, parser: libJWT.NewParser(opts...)}, nil
}

func (s *Symmetric) Generate(sub Subject) (Token, error) {
	now := s.cfg.Clock.Now()
	tok := Token{ID: s.cfg.IDs.Generate(), ExpiresAt: now.Add(s.cfg.TTL)}

	claims := Claims{
		RegisteredClaims: libJWT.RegisteredClaims{
			ID:        tok.ID,
			Subject:   strconv.FormatInt(sub.UserID, 10),
			Issuer:    s.cfg.Issuer,
			Audience:  s.cfg.Audiences,
			IssuedAt:  libJWT.NewNumericDate(now),
			NotBefore: libJWT.NewNumericDate(now),
			ExpiresAt: libJWT.NewNumericDate(tok.ExpiresAt),
		},
		UserID:    sub.UserID,
		UserEmail: sub.Email,
		Role:      sub.Role,
	}

	var err error
	tok.Value, err = libJWT.NewWithClaims(libJWT.SigningMethodHS512, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return Token{}, err
	}
	return tok, nil
}

func (s *Symmetric) Verify(tokenStr string) (Claims, error) {
	var claims Claims
	token, err := s.parser.ParseWithClaims(tokenStr, &claims, func(*libJWT.Token) (any, error) {
		return s.cfg.Secret, nil
	})

	switch {
	case errors.Is(err, libJWT.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case err != nil:
		return Claims{}, errors.Join(ErrInvalidToken, err)
	case !token.Valid:
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
