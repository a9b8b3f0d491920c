package storage

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/hpungsan/memo/internal/errors"
	"github.com/hpungsan/memo/internal/note"
)

// Adapter serializes the note collection to and from one named slot of a Store.
// The slot holds a JSON array of notes with no version field.
type Adapter struct {
	store Store
	key   string
}

// NewAdapter creates an Adapter for the slot named key.
func NewAdapter(store Store, key string) *Adapter {
	return &Adapter{store: store, key: key}
}

// Key returns the slot name.
func (a *Adapter) Key() string {
	return a.key
}

// Load reads the slot. The returned slice is never nil.
//
// An absent or empty slot is "no notes yet" and returns a nil error. A slot that
// cannot be parsed returns MALFORMED_STORED_DATA, and a failed read returns
// PERSISTENCE_FAILURE. Either way the caller gets an empty collection and the
// slot is not touched.
func (a *Adapter) Load(ctx context.Context) ([]note.Note, error) {
	data, err := a.store.Get(ctx, a.key)
	if stderrors.Is(err, ErrSlotNotFound) {
		return []note.Note{}, nil
	}
	if err != nil {
		return []note.Note{}, errors.NewPersistenceFailure("load", a.key, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []note.Note{}, nil
	}

	var notes []note.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return []note.Note{}, errors.NewMalformedStoredData(a.key, err)
	}
	if notes == nil {
		notes = []note.Note{}
	}
	return notes, nil
}

// Save serializes the full collection and overwrites the slot.
// Failures (quota, serialization, I/O) return PERSISTENCE_FAILURE.
func (a *Adapter) Save(ctx context.Context, notes []note.Note) error {
	if notes == nil {
		notes = []note.Note{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return errors.NewPersistenceFailure("save", a.key, err)
	}
	if err := a.store.Put(ctx, a.key, data); err != nil {
		return errors.NewPersistenceFailure("save", a.key, err)
	}
	return nil
}
