package sealer

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// Purpose identifies what a sealed value is used for.
type Purpose string

const (
	// PurposeOTPSeed scopes encryption to TOTP shared secrets.
	PurposeOTPSeed Purpose = "otp_seed"
	// PurposeCredential scopes encryption to stored vault passwords.
	PurposeCredential Purpose = "credential"
)

// Scope is bound into the ciphertext as additional authenticated data.
type Scope struct {
	UserID  int64
	Purpose Purpose
}

func (s Scope) aad() []byte {
	sum := sha256.Sum256(fmt.Appendf(nil, "uid=%d\npurpose=%s\n", s.UserID, s.Purpose))
	return sum[:]
}

// Sealer encrypts and decrypts values for a scope.
type Sealer interface {
	Seal(plaintext []byte, scope Scope) ([]byte, error)
	Open(ciphertext []byte, scope Scope) ([]byte, error)
}

var (
	// ErrNoKeys is returned when a keyring has no usable key.
	ErrNoKeys = errors.New("sealer: keyring is empty")
	// ErrUnknownKeyVersion is returned when a ciphertext names a key the keyring does not hold.
	ErrUnknownKeyVersion = errors.New("sealer: unknown key version")
	// ErrInvalidKeyLength is returned for keys that are not 32 bytes.
	ErrInvalidKeyLength = errors.New("sealer: key must be 32 bytes")
	// ErrPlaintextEmpty is returned when sealing an empty value.
	ErrPlaintextEmpty = errors.New("sealer: plaintext is empty")
	// ErrMalformed is returned for truncated ciphertexts.
	ErrMalformed = errors.New("sealer: malformed ciphertext")
	// ErrOpenFailed hides whether the key, scope or payload was wrong.
	ErrOpenFailed = errors.New("sealer: open failed")
)

// Keyring holds versioned AES-256 keys. Current is used for sealing.
type Keyring struct {
	current uint16
	keys    map[uint16][]byte
}

// NewKeyring builds a keyring that seals with the key at version current.
func NewKeyring(current uint16, keys map[uint16][]byte) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	cp := make(map[uint16][]byte, len(keys))
	for v, k := range keys {
		if len(k) != keyLen {
			return nil, fmt.Errorf("%w: version %d has %d bytes", ErrInvalidKeyLength, v, len(k))
		}
		cp[v] = append([]byte(nil), k...)
	}

	if _, ok := cp[current]; !ok {
		return nil, fmt.Errorf("%w: current version %d", ErrUnknownKeyVersion, current)
	}

	return &Keyring{current: current, keys: cp}, nil
}

func (k *Keyring) key(version uint16) ([]byte, error) {
	key, ok := k.keys[version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKeyVersion, version)
	}
	return key, nil
}
