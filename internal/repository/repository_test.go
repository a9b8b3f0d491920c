package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/memo/internal/errors"
	"github.com/hpungsan/memo/internal/note"
	"github.com/hpungsan/memo/internal/storage"
)

const testKey = "webMemoApp.notes"

// fakeClock returns a fixed instant that tests advance by hand.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func setup(t *testing.T, opts ...Option) (*Repository, *storage.MemoryStore, *storage.Adapter) {
	t.Helper()
	store := storage.NewMemoryStore()
	adapter := storage.NewAdapter(store, testKey)
	return Open(context.Background(), adapter, opts...), store, adapter
}

func assertUniqueIDs(t *testing.T, notes []note.Note) {
	t.Helper()
	seen := make(map[string]bool, len(notes))
	for _, n := range notes {
		if seen[n.ID] {
			t.Fatalf("duplicate id %q in collection", n.ID)
		}
		seen[n.ID] = true
	}
}

func TestCreate(t *testing.T) {
	clock := newClock()
	repo, _, adapter := setup(t, WithClock(clock.Now))
	ctx := context.Background()

	n, err := repo.Create(ctx, "Groceries", "milk")
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)
	require.Equal(t, note.Millis(clock.now), n.CreatedAt)
	require.Equal(t, n.CreatedAt, n.UpdatedAt)

	clock.Advance(time.Second)
	second, err := repo.Create(ctx, "", "")
	require.NoError(t, err)

	// Newest created first
	all := repo.All()
	require.Len(t, all, 2)
	require.Equal(t, second.ID, all[0].ID)
	require.Equal(t, n.ID, all[1].ID)

	// Persisted after every mutation
	stored, err := adapter.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, all, stored)
}

func TestCreate_FrozenClockIDsUnique(t *testing.T) {
	clock := newClock()
	repo, _, _ := setup(t, WithClock(clock.Now))
	ctx := context.Background()

	var prev string
	for range 200 {
		n, err := repo.Create(ctx, "", "")
		require.NoError(t, err)
		if prev != "" && n.ID <= prev {
			t.Fatalf("ids not increasing within one millisecond: %q after %q", n.ID, prev)
		}
		prev = n.ID
	}
	assertUniqueIDs(t, repo.All())
}

// scriptedIDs hands out a fixed sequence of ids.
type scriptedIDs struct{ ids []string }

func (s *scriptedIDs) NewID(time.Time) (string, error) {
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id, nil
}

func TestCreate_RetriesCollidingID(t *testing.T) {
	ids := &scriptedIDs{ids: []string{"a", "a", "", "b"}}
	repo, _, _ := setup(t, WithIDSource(ids))
	ctx := context.Background()

	first, err := repo.Create(ctx, "", "")
	require.NoError(t, err)
	require.Equal(t, "a", first.ID)

	second, err := repo.Create(ctx, "", "")
	require.NoError(t, err)
	require.Equal(t, "b", second.ID)
}

func TestCreate_GivesUpOnPersistentCollision(t *testing.T) {
	same := make([]string, maxIDAttempts+1)
	for i := range same {
		same[i] = "a"
	}
	repo, _, _ := setup(t, WithIDSource(&scriptedIDs{ids: same}))
	ctx := context.Background()

	_, err := repo.Create(ctx, "", "")
	require.NoError(t, err)

	_, err = repo.Create(ctx, "", "")
	require.True(t, errors.Is(err, errors.ErrInternal), "got %v", err)
	require.Equal(t, 1, repo.Len())
}

func TestUpdate(t *testing.T) {
	clock := newClock()
	repo, _, adapter := setup(t, WithClock(clock.Now))
	ctx := context.Background()

	n, err := repo.Create(ctx, "old", "body")
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	updated, err := repo.Update(ctx, n.ID, "new", "changed")
	require.NoError(t, err)
	require.Equal(t, n.ID, updated.ID)
	require.Equal(t, n.CreatedAt, updated.CreatedAt)
	require.Equal(t, note.Millis(clock.now), updated.UpdatedAt)
	require.Equal(t, "new", updated.Title)
	require.Equal(t, "changed", updated.Content)

	found, ok := repo.Find(n.ID)
	require.True(t, ok)
	require.Equal(t, updated, found)

	stored, err := adapter.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []note.Note{updated}, stored)
}

func TestUpdate_ClockBehindCreatedAt(t *testing.T) {
	clock := newClock()
	repo, _, _ := setup(t, WithClock(clock.Now))
	ctx := context.Background()

	n, err := repo.Create(ctx, "", "")
	require.NoError(t, err)

	clock.Advance(-time.Hour)
	updated, err := repo.Update(ctx, n.ID, "t", "")
	require.NoError(t, err)
	require.Equal(t, n.CreatedAt, updated.UpdatedAt)
}

func TestUpdate_NotFound(t *testing.T) {
	repo, store, _ := setup(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "keep", "")
	require.NoError(t, err)
	before := repo.All()
	raw, _ := store.Get(ctx, testKey)

	_, err = repo.Update(ctx, "missing", "x", "y")
	require.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
	require.Equal(t, before, repo.All())

	after, _ := store.Get(ctx, testKey)
	require.Equal(t, raw, after)
}

func TestDelete(t *testing.T) {
	repo, _, adapter := setup(t)
	ctx := context.Background()

	a, _ := repo.Create(ctx, "a", "")
	b, _ := repo.Create(ctx, "b", "")
	c, _ := repo.Create(ctx, "c", "")

	require.NoError(t, repo.Delete(ctx, b.ID))
	_, ok := repo.Find(b.ID)
	require.False(t, ok)

	ids := []string{}
	for _, n := range repo.All() {
		ids = append(ids, n.ID)
	}
	require.Equal(t, []string{c.ID, a.ID}, ids)

	stored, err := adapter.Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	err = repo.Delete(ctx, b.ID)
	require.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
	require.Equal(t, 2, repo.Len())
}

func TestAll_ReturnsCopy(t *testing.T) {
	repo, _, _ := setup(t)
	n, _ := repo.Create(context.Background(), "original", "")

	all := repo.All()
	all[0].Title = "mutated"

	found, _ := repo.Find(n.ID)
	require.Equal(t, "original", found.Title)
}

func TestMixedSequence_IDsStayUnique(t *testing.T) {
	clock := newClock()
	repo, _, _ := setup(t, WithClock(clock.Now))
	ctx := context.Background()

	var live []string
	for i := range 60 {
		switch i % 3 {
		case 0, 1:
			n, err := repo.Create(ctx, "", "")
			require.NoError(t, err)
			live = append(live, n.ID)
		case 2:
			_, err := repo.Update(ctx, live[len(live)-1], "t", "c")
			require.NoError(t, err)
			require.NoError(t, repo.Delete(ctx, live[0]))
			live = live[1:]
		}
		assertUniqueIDs(t, repo.All())
		for _, n := range repo.All() {
			require.LessOrEqual(t, n.CreatedAt, n.UpdatedAt)
		}
	}
	require.Equal(t, len(live), repo.Len())
}

func TestPersistenceFailure_KeepsInMemoryState(t *testing.T) {
	store := &storage.MemoryStore{MaxBytes: 1 << 20}
	adapter := storage.NewAdapter(store, testKey)
	repo := Open(context.Background(), adapter)
	ctx := context.Background()

	kept, err := repo.Create(ctx, "kept", "")
	require.NoError(t, err)

	store.MaxBytes = 5

	n, err := repo.Create(ctx, "new", "body")
	require.True(t, errors.Is(err, errors.ErrPersistenceFailure), "got %v", err)
	require.NotEmpty(t, n.ID)
	found, ok := repo.Find(n.ID)
	require.True(t, ok)
	require.Equal(t, n, found)

	_, err = repo.Update(ctx, kept.ID, "edited", "")
	require.True(t, errors.Is(err, errors.ErrPersistenceFailure), "got %v", err)
	found, _ = repo.Find(kept.ID)
	require.Equal(t, "edited", found.Title)

	// Retry succeeds once space is available again
	store.MaxBytes = 0
	require.NoError(t, repo.Flush(ctx))
	stored, err := adapter.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, repo.All(), stored)
}

func TestOpen_LoadsExisting(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	adapter := storage.NewAdapter(store, testKey)
	existing := []note.Note{
		{ID: "b", Title: "B", CreatedAt: 2, UpdatedAt: 3},
		{ID: "a", Title: "A", CreatedAt: 1, UpdatedAt: 1},
	}
	require.NoError(t, adapter.Save(ctx, existing))

	repo := Open(ctx, adapter)
	require.NoError(t, repo.LoadError())
	require.Equal(t, existing, repo.All())
}

func TestOpen_MalformedStartsEmpty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Put(ctx, testKey, []byte("{broken")))

	repo := Open(ctx, storage.NewAdapter(store, testKey))
	require.Equal(t, 0, repo.Len())
	require.True(t, errors.Is(repo.LoadError(), errors.ErrMalformedStoredData))

	// Slot untouched until the next explicit save
	raw, _ := store.Get(ctx, testKey)
	require.Equal(t, "{broken", string(raw))

	_, err := repo.Create(ctx, "", "fresh")
	require.NoError(t, err)
	raw, _ = store.Get(ctx, testKey)
	require.NotEqual(t, "{broken", string(raw))
}

func TestOpen_RepairsLegacyRecords(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	legacy := `[
		{"id":1700000000000,"title":"dup first","createdAt":1700000000000,"updatedAt":1700000000000},
		{"id":1700000000000,"title":"dup second","createdAt":1700000000000,"updatedAt":1700000000000},
		{"title":"no id","createdAt":1600000000000,"updatedAt":1600000000000},
		{"id":"clamp","createdAt":50,"updatedAt":10}
	]`
	require.NoError(t, store.Put(ctx, testKey, []byte(legacy)))

	repo := Open(ctx, storage.NewAdapter(store, testKey))
	require.NoError(t, repo.LoadError())

	all := repo.All()
	require.Len(t, all, 3)
	assertUniqueIDs(t, all)
	require.Equal(t, "1700000000000", all[0].ID)
	require.Equal(t, "dup first", all[0].Title)
	require.NotEmpty(t, all[1].ID)
	require.Equal(t, "no id", all[1].Title)
	require.Equal(t, int64(50), all[2].UpdatedAt)

	// Legacy ids are addressable
	_, err := repo.Update(ctx, "1700000000000", "renamed", "")
	require.NoError(t, err)
}

func TestOpen_MissingIDsStableAcrossLoads(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	legacy := `[
		{"title":"no id","createdAt":5},
		{"title":"no id","createdAt":5},
		{"title":"neg no id","createdAt":-5},
		{"title":"far future","createdAt":9223372036854775807}
	]`
	require.NoError(t, store.Put(ctx, testKey, []byte(legacy)))

	first := Open(ctx, storage.NewAdapter(store, testKey))
	second := Open(ctx, storage.NewAdapter(store, testKey))

	// Nothing is dropped, even with createdAt outside the id time range
	require.Len(t, first.All(), 4)
	assertUniqueIDs(t, first.All())
	require.Equal(t, first.All(), second.All())

	for _, n := range first.All() {
		_, ok := second.Find(n.ID)
		require.True(t, ok, "id %q from one load missing from another", n.ID)
	}

	// An id taken from one process can be edited from the next
	id := first.All()[2].ID
	_, err := second.Update(ctx, id, "renamed", "")
	require.NoError(t, err)
	third := Open(ctx, storage.NewAdapter(store, testKey))
	n, ok := third.Find(id)
	require.True(t, ok)
	require.Equal(t, "renamed", n.Title)
}

func TestOpen_DerivedIDAvoidsStoredIDs(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	orphan := note.Note{Title: "orphan", CreatedAt: 7}
	taken := derivedID(orphan, 1, 0)

	data := `[{"id":"` + taken + `","title":"real","createdAt":1},{"title":"orphan","createdAt":7}]`
	require.NoError(t, store.Put(ctx, testKey, []byte(data)))

	repo := Open(ctx, storage.NewAdapter(store, testKey))
	all := repo.All()
	require.Len(t, all, 2)
	assertUniqueIDs(t, all)
	require.Equal(t, taken, all[0].ID)
	require.Equal(t, "orphan", all[1].Title)
	require.NotEqual(t, taken, all[1].ID)
}

func TestReload(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	adapter := storage.NewAdapter(store, testKey)
	repo := Open(ctx, adapter)

	_, err := repo.Create(ctx, "mine", "")
	require.NoError(t, err)

	// Another writer replaces the slot
	other := []note.Note{{ID: "x", Title: "theirs", CreatedAt: 1, UpdatedAt: 1}}
	require.NoError(t, adapter.Save(ctx, other))

	require.NoError(t, repo.Reload(ctx))
	require.Equal(t, other, repo.All())

	// A broken slot keeps the in-memory collection
	require.NoError(t, store.Put(ctx, testKey, []byte("nope")))
	err = repo.Reload(ctx)
	require.True(t, errors.Is(err, errors.ErrMalformedStoredData), "got %v", err)
	require.Equal(t, other, repo.All())
	require.Equal(t, err, repo.LoadError())
}

func TestSubscribe(t *testing.T) {
	repo, _, _ := setup(t)
	ctx := context.Background()

	var events []Event
	cancel := repo.Subscribe(func(e Event) { events = append(events, e) })

	n, _ := repo.Create(ctx, "", "")
	_, _ = repo.Update(ctx, n.ID, "t", "")
	_, _ = repo.Update(ctx, "missing", "t", "")
	_ = repo.Delete(ctx, n.ID)
	_ = repo.Reload(ctx)

	kinds := make([]EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	require.Equal(t, []EventKind{EventCreated, EventUpdated, EventDeleted, EventReloaded}, kinds)
	require.Equal(t, n.ID, events[2].ID)

	cancel()
	_, _ = repo.Create(ctx, "", "")
	require.Len(t, events, 4)
}

func TestSubscribe_CancelDuringDelivery(t *testing.T) {
	repo, _, _ := setup(t)

	calls := 0
	var cancel func()
	cancel = repo.Subscribe(func(Event) {
		calls++
		cancel()
	})
	other := 0
	repo.Subscribe(func(Event) { other++ })

	_, _ = repo.Create(context.Background(), "", "")
	_, _ = repo.Create(context.Background(), "", "")

	require.Equal(t, 1, calls)
	require.Equal(t, 2, other)
}
