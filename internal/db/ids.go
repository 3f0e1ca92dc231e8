package db

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID generates a ULID. IDs minted within the same millisecond are
// strictly increasing, so (timestamp, id) ordering matches insertion order.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Now returns the current time in Unix milliseconds, the unit of every stored timestamp.
func Now() int64 {
	return time.Now().UnixMilli()
}
