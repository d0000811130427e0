package entity

import (
	"strings"
	"time"
)

// UnknownEnvironment is stored when the client did not send an IP or user agent.
const UnknownEnvironment = "Unknown"

// Key is the exact tuple a grant is scoped to.
type Key struct {
	UserID     int64
	ActionType ActionType
	Context    Context
	DeviceID   string
}

// Environment is the best-effort request fingerprint captured at verification.
type Environment struct {
	IPAddress string
	UserAgent string
}

// Normalize trims both fields and substitutes UnknownEnvironment for blanks.
func (e Environment) Normalize() Environment {
	ip := strings.TrimSpace(e.IPAddress)
	if ip == "" {
		ip = UnknownEnvironment
	}
	ua := strings.TrimSpace(e.UserAgent)
	if ua == "" {
		ua = UnknownEnvironment
	}
	return Environment{IPAddress: ip, UserAgent: ua}
}

// Mismatch reports which known fields differ from other. Unknown values never mismatch.
func (e Environment) Mismatch(other Environment) (ip, ua bool) {
	a, b := e.Normalize(), other.Normalize()
	known := func(v string) bool { return v != UnknownEnvironment }

	ip = known(a.IPAddress) && known(b.IPAddress) && a.IPAddress != b.IPAddress
	ua = known(a.UserAgent) && known(b.UserAgent) && a.UserAgent != b.UserAgent
	return ip, ua
}

// Challenge is one ledger row: a verification event for a Key.
type Challenge struct {
	ID          int64
	Key         Key
	Method      Method
	IsVerified  bool
	VerifiedAt  *time.Time
	ExpiresAt   time.Time
	Environment Environment
	CreatedAt   time.Time
}

// IsLive reports whether the challenge can authorize k at now.
//
// A live challenge is verified, not expired, verified no longer than ttl ago and
// matches k exactly.
func (c *Challenge) IsLive(k Key, now time.Time, ttl time.Duration) bool {
	if c == nil || !c.IsVerified || c.VerifiedAt == nil {
		return false
	}
	if c.Key != k {
		return false
	}
	if !now.Before(c.ExpiresAt) {
		return false
	}
	return now.Sub(*c.VerifiedAt) <= ttl
}

// Subject is the slice of the user record the protocol needs.
type Subject struct {
	UserID       int64
	Email        string
	Role         string
	TOTPSecret   []byte
	TwoFAEnabled bool
}

// HasSecret reports whether TOTP setup was ever run.
func (s *Subject) HasSecret() bool {
	return s != nil && len(s.TOTPSecret) > 0
}
