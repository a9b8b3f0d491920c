// Package repository owns the in-memory note collection and keeps the
// backing store in sync with it. Every mutation re-serializes and persists
// the full collection.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/memo/internal/errors"
	"github.com/hpungsan/memo/internal/note"
)

// maxIDAttempts bounds retries when an allocated id collides with a live note.
const maxIDAttempts = 8

// Persister loads and saves the whole collection. storage.Adapter implements it.
type Persister interface {
	Load(ctx context.Context) ([]note.Note, error)
	Save(ctx context.Context, notes []note.Note) error
}

// EventKind identifies a collection change.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventReloaded EventKind = "reloaded"
)

// Event describes one change. Note is the zero value for EventReloaded.
type Event struct {
	Kind EventKind
	ID   string
	Note note.Note
}

type subscriber struct {
	id int
	fn func(Event)
}

// Repository is the single owner of the note collection.
// It is not safe for concurrent use.
type Repository struct {
	persister Persister
	clock     func() time.Time
	ids       IDSource
	log       zerolog.Logger

	notes   []note.Note // newest created first
	loadErr error

	subs    []subscriber
	nextSub int
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(r *Repository) { r.clock = clock }
}

// WithIDSource overrides the ULID allocator.
func WithIDSource(ids IDSource) Option {
	return func(r *Repository) { r.ids = ids }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Repository) { r.log = log }
}

// Open loads the collection from persister. A load failure does not fail
// construction: the repository starts empty and LoadError reports the cause.
func Open(ctx context.Context, persister Persister, opts ...Option) *Repository {
	r := &Repository{
		persister: persister,
		clock:     time.Now,
		ids:       NewULIDSource(),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	notes, err := persister.Load(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to load notes, starting with an empty collection")
		r.loadErr = err
	}
	r.notes = r.repair(notes)
	return r
}

// LoadError returns the error from the most recent load, or nil.
func (r *Repository) LoadError() error {
	return r.loadErr
}

// Create inserts a new note at the front of the collection and persists.
// On PERSISTENCE_FAILURE the note is kept in memory and returned with the error.
func (r *Repository) Create(ctx context.Context, title, content string) (note.Note, error) {
	now := r.clock()
	id, err := r.allocateID(now)
	if err != nil {
		return note.Note{}, err
	}

	ms := note.Millis(now)
	n := note.Note{
		ID:        id,
		Title:     title,
		Content:   content,
		CreatedAt: ms,
		UpdatedAt: ms,
	}
	r.notes = append([]note.Note{n}, r.notes...)
	r.log.Debug().Str("id", id).Msg("note created")

	err = r.persist(ctx)
	r.publish(Event{Kind: EventCreated, ID: id, Note: n})
	return n, err
}

// Update replaces the title and content of the note with id.
// ID and CreatedAt never change, and UpdatedAt never drops below CreatedAt.
func (r *Repository) Update(ctx context.Context, id, title, content string) (note.Note, error) {
	i := r.indexOf(id)
	if i < 0 {
		return note.Note{}, errors.NewNotFound(id)
	}

	n := r.notes[i]
	n.Title = title
	n.Content = content
	n.UpdatedAt = max(note.Millis(r.clock()), n.CreatedAt)
	r.notes[i] = n
	r.log.Debug().Str("id", id).Msg("note updated")

	err := r.persist(ctx)
	r.publish(Event{Kind: EventUpdated, ID: id, Note: n})
	return n, err
}

// Delete removes the note with id and persists.
func (r *Repository) Delete(ctx context.Context, id string) error {
	i := r.indexOf(id)
	if i < 0 {
		return errors.NewNotFound(id)
	}

	n := r.notes[i]
	r.notes = append(r.notes[:i:i], r.notes[i+1:]...)
	r.log.Debug().Str("id", id).Msg("note deleted")

	err := r.persist(ctx)
	r.publish(Event{Kind: EventDeleted, ID: id, Note: n})
	return err
}

// Find returns the note with id.
func (r *Repository) Find(id string) (note.Note, bool) {
	if i := r.indexOf(id); i >= 0 {
		return r.notes[i], true
	}
	return note.Note{}, false
}

// All returns a copy of the collection in stored order.
func (r *Repository) All() []note.Note {
	out := make([]note.Note, len(r.notes))
	copy(out, r.notes)
	return out
}

// Len returns the number of notes.
func (r *Repository) Len() int {
	return len(r.notes)
}

// Flush persists the current collection unchanged. It is the retry path
// after a PERSISTENCE_FAILURE.
func (r *Repository) Flush(ctx context.Context) error {
	return r.persist(ctx)
}

// Reload re-reads the backing slot, replacing the collection. If the slot
// cannot be read or parsed, the in-memory collection is kept and the error
// is returned (and reported by LoadError).
func (r *Repository) Reload(ctx context.Context) error {
	notes, err := r.persister.Load(ctx)
	r.loadErr = err
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to reload notes, keeping in-memory collection")
		return err
	}

	r.notes = r.repair(notes)
	r.log.Debug().Int("count", len(r.notes)).Msg("notes reloaded")
	r.publish(Event{Kind: EventReloaded})
	return nil
}

// Subscribe registers fn for every collection change, in registration order.
// The returned function removes the subscription.
func (r *Repository) Subscribe(fn func(Event)) (cancel func()) {
	id := r.nextSub
	r.nextSub++
	r.subs = append(r.subs, subscriber{id: id, fn: fn})

	return func() {
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

func (r *Repository) publish(e Event) {
	// Copy so a subscriber may cancel itself during delivery
	subs := append([]subscriber(nil), r.subs...)
	for _, s := range subs {
		s.fn(e)
	}
}

func (r *Repository) persist(ctx context.Context) error {
	if err := r.persister.Save(ctx, r.notes); err != nil {
		r.log.Warn().Err(err).Int("count", len(r.notes)).Msg("failed to persist notes")
		return err
	}
	return nil
}

func (r *Repository) indexOf(id string) int {
	for i := range r.notes {
		if r.notes[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) allocateID(now time.Time) (string, error) {
	for range maxIDAttempts {
		id, err := r.ids.NewID(now)
		if err != nil {
			return "", errors.NewInternal(fmt.Errorf("failed to generate id: %w", err))
		}
		if id != "" && r.indexOf(id) < 0 {
			return id, nil
		}
	}
	return "", errors.NewInternal(fmt.Errorf("failed to allocate a unique id after %d attempts", maxIDAttempts))
}

// repair fixes records that break the collection invariants: missing ids get
// an id derived from the record, duplicate ids keep the first occurrence, and
// UpdatedAt is clamped up to CreatedAt. No record without an id is dropped.
func (r *Repository) repair(notes []note.Note) []note.Note {
	// taken holds every stored id so a derived id never shadows a real one
	taken := make(map[string]bool, len(notes))
	for _, n := range notes {
		if n.ID != "" {
			taken[n.ID] = true
		}
	}

	out := make([]note.Note, 0, len(notes))
	seen := make(map[string]bool, len(notes))

	for i, n := range notes {
		if n.ID == "" {
			id := derivedID(n, i, 0)
			for salt := 1; taken[id]; salt++ {
				id = derivedID(n, i, salt)
			}
			taken[id] = true
			r.log.Warn().Str("id", id).Msg("assigned id to stored note without one")
			n.ID = id
		}
		if seen[n.ID] {
			r.log.Warn().Str("id", n.ID).Msg("dropping stored note with duplicate id")
			continue
		}
		seen[n.ID] = true

		if n.UpdatedAt < n.CreatedAt {
			r.log.Warn().Str("id", n.ID).Msg("clamped updatedAt to createdAt")
			n.UpdatedAt = n.CreatedAt
		}
		out = append(out, n)
	}
	return out
}
