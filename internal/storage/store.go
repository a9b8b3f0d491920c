package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
)

// ErrSlotNotFound is returned by Store.Get when a key has never been written.
var ErrSlotNotFound = stderrors.New("slot not found")

// ErrQuotaExceeded is returned by a MemoryStore write that would exceed its quota.
var ErrQuotaExceeded = stderrors.New("storage quota exceeded")

// Store is a local key-value blob store holding named slots.
// Put must replace the whole value atomically: a reader never observes a partial write.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// MemoryStore is an in-process Store. MaxBytes > 0 caps the total size of all slots.
type MemoryStore struct {
	MaxBytes int

	mu    sync.Mutex
	slots map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore with no quota.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

// Get returns a copy of the value under key.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.slots[key]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value under key.
func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slots == nil {
		m.slots = make(map[string][]byte)
	}

	if m.MaxBytes > 0 {
		total := len(value)
		for k, v := range m.slots {
			if k != key {
				total += len(v)
			}
		}
		if total > m.MaxBytes {
			return fmt.Errorf("%w: %d bytes (max %d)", ErrQuotaExceeded, total, m.MaxBytes)
		}
	}

	m.slots[key] = append([]byte(nil), value...)
	return nil
}

// sanitizeKey turns a slot key into a safe file name stem.
func sanitizeKey(s string) string {
	// Replace path separators with dashes
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")

	// Replace ".." sequences (could be embedded)
	s = strings.ReplaceAll(s, "..", "-")

	// Remove null bytes and other control characters
	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-. ")

	if s == "" {
		return "slot"
	}
	return s
}
