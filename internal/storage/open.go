package storage

import (
	"fmt"
	"path/filepath"

	"github.com/hpungsan/memo/internal/config"
	"github.com/hpungsan/memo/internal/db"
)

// SlotDir is the FileStore directory inside the base directory.
const SlotDir = "slots"

// Open creates the Store selected by cfg.Backend under baseDir.
// The returned close function releases the backend and is never nil.
func Open(baseDir string, cfg *config.Config) (Store, func() error, error) {
	backend := config.BackendSQLite
	if cfg != nil && cfg.Backend != "" {
		backend = cfg.Backend
	}

	switch backend {
	case config.BackendSQLite:
		database, err := db.Init(baseDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		db.ConfigurePool(database, cfg)
		s := NewSQLiteStore(database)
		return s, s.Close, nil

	case config.BackendFile:
		s, err := NewFileStore(filepath.Join(baseDir, SlotDir))
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend %q (want %s or %s)", backend, config.BackendSQLite, config.BackendFile)
}
