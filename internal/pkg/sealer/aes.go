package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Ciphertext layout: [0..1] key version, [2..13] nonce, [14..] sealed payload and tag.
const (
	keyLen    = 32
	nonceLen  = 12
	headerLen = 2 + nonceLen
)

// AESGCM implements Sealer on top of a Keyring.
type AESGCM struct {
	ring *Keyring
}

// NewAESGCM returns an AES-256-GCM sealer.
func NewAESGCM(ring *Keyring) *AESGCM {
	return &AESGCM{ring: ring}
}

// Seal encrypts plaintext with the current key.
func (a *AESGCM) Seal(plaintext []byte, scope Scope) ([]byte, error) {
	if a == nil || a.ring == nil {
		return nil, ErrNoKeys
	}
	if len(plaintext) == 0 {
		return nil, ErrPlaintextEmpty
	}

	gcm, err := a.gcm(a.ring.current)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerLen, headerLen+len(plaintext)+gcm.Overhead())
	binary.BigEndian.PutUint16(out[:2], a.ring.current)
	if _, err := rand.Read(out[2:headerLen]); err != nil {
		return nil, fmt.Errorf("sealer: nonce: %w", err)
	}

	return gcm.Seal(out, out[2:headerLen], plaintext, scope.aad()), nil
}

// Open decrypts ciphertext with the key version named in its header.
func (a *AESGCM) Open(ciphertext []byte, scope Scope) ([]byte, error) {
	if a == nil || a.ring == nil {
		return nil, ErrNoKeys
	}
	if len(ciphertext) <= headerLen {
		return nil, ErrMalformed
	}

	gcm, err := a.gcm(binary.BigEndian.Uint16(ciphertext[:2]))
	if err != nil {
		return nil, err
	}

	plain, err := gcm.Open(nil, ciphertext[2:headerLen], ciphertext[headerLen:], scope.aad())
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plain, nil
}

func (a *AESGCM) gcm(version uint16) (cipher.AEAD, error) {
	key, err := a.ring.key(version)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sealer: aes: %w", err)
	}

	return cipher.NewGCM(block)
}
