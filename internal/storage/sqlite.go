package storage

import (
	"context"
	"database/sql"

	"github.com/hpungsan/memo/internal/db"
)

// SQLiteStore keeps slots in the slots table of the memo database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an initialized database (see db.Init).
func NewSQLiteStore(database *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// Get returns the value under key, or ErrSlotNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := db.GetSlot(ctx, s.db, key)
	if err == db.ErrSlotNotFound {
		return nil, ErrSlotNotFound
	}
	return value, err
}

// Put overwrites the value under key.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	return db.PutSlot(ctx, s.db, key, value)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
