package uid

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULID generates lexicographically sortable ids, monotonic within a millisecond.
type ULID struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULID() *ULID {
	return &ULID{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (u *ULID) Generate() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), u.entropy).String()
}
