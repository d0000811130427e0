package uid

import (
	"crypto/rand"
	"encoding/base64"
)

// tokenBytes gives 256 bits of entropy per token.
const tokenBytes = 32

// Token generates unguessable URL-safe bearer tokens. Values carry no
// structure, so nothing about the issuer leaks through them.
type Token struct{}

func NewToken() *Token {
	return &Token{}
}

func (Token) Generate() string {
	var b [tokenBytes]byte
	_, _ = rand.Read(b[:]) // never fails since go1.24
	return base64.RawURLEncoding.EncodeToString(b[:])
}
