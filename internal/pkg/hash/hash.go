// Package hash derives one-way digests of secrets: bcrypt for passwords and
// keyed HMAC for lookup keys of bearer tokens.
package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

type Hash interface {
	Hash(str string) ([]byte, error)
	Verify(hashed, str string) bool
}

// Bcrypt hashes passwords. The pepper keys an HMAC over the password first,
// so the bcrypt input is always 44 bytes and the 72 byte limit never bites.
type Bcrypt struct {
	cost   int
	pepper []byte
}

// NewBcrypt falls back to bcrypt.DefaultCost for an out of range cost.
func NewBcrypt(cost int, pepper string) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost, pepper: []byte(pepper)}
}

func (h *Bcrypt) peppered(plaintext string) []byte {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(plaintext))
	return []byte(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword(h.peppered(plaintext), h.cost)
}

func (h *Bcrypt) Verify(hashed, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), h.peppered(plaintext)) == nil
}

// HMACSHA256 produces hex digests. It is deterministic, which is what a
// lookup key needs and a password hash must never be.
type HMACSHA256 struct {
	secret []byte
}

func NewHMACSHA256(secret string) *HMACSHA256 {
	return &HMACSHA256{secret: []byte(secret)}
}

func (s *HMACSHA256) Hash(str string) ([]byte, error) {
	return s.sum(str), nil
}

func (s *HMACSHA256) Verify(hashed, str string) bool {
	return hmac.Equal([]byte(hashed), s.sum(str))
}

func (s *HMACSHA256) sum(str string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(str))
	return hex.AppendEncode(nil, mac.Sum(nil))
}
