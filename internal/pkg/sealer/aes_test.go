package sealer

import (
	"bytes"
	"errors"
	"testing"
)

func testRing(t *testing.T, current uint16, versions ...uint16) *Keyring {
	t.Helper()

	keys := map[uint16][]byte{}
	for _, v := range versions {
		keys[v] = bytes.Repeat([]byte{byte(v)}, keyLen)
	}

	ring, err := NewKeyring(current, keys)
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	return ring
}

func TestAESGCM_SealOpen(t *testing.T) {
	s := NewAESGCM(testRing(t, 1, 1))
	scope := Scope{UserID: 42, Purpose: PurposeOTPSeed}

	ct, err := s.Seal([]byte("JBSWY3DPEHPK3PXP"), scope)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	got, err := s.Open(ct, scope)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(got) != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("Open() = %q", got)
	}
}

func TestAESGCM_ScopeBinding(t *testing.T) {
	s := NewAESGCM(testRing(t, 1, 1))

	ct, err := s.Seal([]byte("hunter2"), Scope{UserID: 1, Purpose: PurposeCredential})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	tests := []struct {
		name  string
		scope Scope
	}{
		{name: "other user", scope: Scope{UserID: 2, Purpose: PurposeCredential}},
		{name: "other purpose", scope: Scope{UserID: 1, Purpose: PurposeOTPSeed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Open(ct, tt.scope); !errors.Is(err, ErrOpenFailed) {
				t.Fatalf("Open() error = %v, want ErrOpenFailed", err)
			}
		})
	}
}

func TestAESGCM_Rotation(t *testing.T) {
	scope := Scope{UserID: 7, Purpose: PurposeOTPSeed}

	old := NewAESGCM(testRing(t, 1, 1))
	ct, err := old.Seal([]byte("seed"), scope)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	rotated := NewAESGCM(testRing(t, 2, 1, 2))
	if got, err := rotated.Open(ct, scope); err != nil || string(got) != "seed" {
		t.Fatalf("Open old ciphertext after rotation = %q, %v", got, err)
	}

	dropped := NewAESGCM(testRing(t, 2, 2))
	if _, err := dropped.Open(ct, scope); !errors.Is(err, ErrUnknownKeyVersion) {
		t.Fatalf("Open with retired key error = %v", err)
	}
}

func TestAESGCM_Malformed(t *testing.T) {
	s := NewAESGCM(testRing(t, 1, 1))

	if _, err := s.Open([]byte{0, 1, 2}, Scope{}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Open(short) error = %v", err)
	}
	if _, err := s.Seal(nil, Scope{}); !errors.Is(err, ErrPlaintextEmpty) {
		t.Fatalf("Seal(nil) error = %v", err)
	}
}

func TestNewKeyring(t *testing.T) {
	if _, err := NewKeyring(1, nil); !errors.Is(err, ErrNoKeys) {
		t.Fatalf("empty keyring error = %v", err)
	}
	if _, err := NewKeyring(1, map[uint16][]byte{1: []byte("short")}); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("short key error = %v", err)
	}
	if _, err := NewKeyring(3, map[uint16][]byte{1: bytes.Repeat([]byte{1}, keyLen)}); !errors.Is(err, ErrUnknownKeyVersion) {
		t.Fatalf("missing current error = %v", err)
	}
}
