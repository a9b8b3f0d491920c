package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/hpungsan/memo/internal/errors"
)

// ErrSlotNotFound is returned when a key has never been written.
var ErrSlotNotFound = &errors.MemoError{
	Code:    "SLOT_NOT_FOUND",
	Status:  404,
	Message: "slot not found",
}

// GetSlot returns the value stored under key.
func GetSlot(ctx context.Context, db *sql.DB, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return value, nil
}

// PutSlot overwrites the value stored under key.
// The single UPSERT statement is atomic: readers see the old value or the new one.
func PutSlot(ctx context.Context, db *sql.DB, key string, value []byte) error {
	query := `
		INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if value == nil {
		value = []byte{}
	}
	if _, err := db.ExecContext(ctx, query, key, value, time.Now().UnixMilli()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
