package repository

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/memo/internal/note"
)

// IDSource allocates note ids.
type IDSource interface {
	NewID(t time.Time) (string, error)
}

// ULIDSource allocates ULIDs from one monotonic entropy source, so ids
// allocated within the same millisecond are still distinct and increasing.
type ULIDSource struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDSource creates a ULIDSource seeded from crypto/rand.
func NewULIDSource() *ULIDSource {
	return &ULIDSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewID returns a ULID string timestamped at t.
func (s *ULIDSource) NewID(t time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), s.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// derivedID returns the id for a stored note that has none. It depends only
// on the record and its position, so every process loading the same slot
// assigns the same id. salt is bumped when the result collides.
func derivedID(n note.Note, position, salt int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d\x00%d\x00%d\x00%s\x00%s", salt, position, n.CreatedAt, n.Title, n.Content)

	// CreatedAt outside the ULID time range gets timestamp 0
	var ms uint64
	if n.CreatedAt >= 0 && uint64(n.CreatedAt) <= ulid.MaxTime() {
		ms = uint64(n.CreatedAt)
	}
	return ulid.MustNew(ms, bytes.NewReader(h.Sum(nil))).String()
}
