package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// TempFilePrefix is the prefix used for temporary atomic write files.
	TempFilePrefix = "memo-tmp-"

	// DefaultWatchDebounce coalesces bursts of file events into one callback.
	DefaultWatchDebounce = 50 * time.Millisecond
)

// FileStore keeps each slot as <Dir>/<key>.json.
type FileStore struct {
	Dir string

	// Debounce overrides DefaultWatchDebounce when > 0.
	Debounce time.Duration
}

// NewFileStore creates dir (0700) and returns a FileStore rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create slot directory: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

// Path returns the file backing key.
func (f *FileStore) Path(key string) string {
	return filepath.Join(f.Dir, sanitizeKey(key)+".json")
}

// Get reads the file backing key.
func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.Path(key))
	if stderrors.Is(err, os.ErrNotExist) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put replaces the file backing key via temp file and rename.
func (f *FileStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFileAtomic(f.Path(key), value, 0600)
}

// Watch calls fn whenever the file backing key is replaced, written, or removed
// by anyone. Bursts of events within the debounce window produce one call.
// fn runs on the calling goroutine. Watch blocks until ctx is done.
func (f *FileStore) Watch(ctx context.Context, key string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: atomic rename swaps the file, which drops a file-level watch.
	if err := watcher.Add(f.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", f.Dir, err)
	}

	debounce := f.Debounce
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	target := filepath.Base(f.Path(key))

	// fire is nil while no change is pending; each event restarts the window.
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			fire = time.After(debounce)

		case <-fire:
			fire = nil
			fn()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", f.Dir, err)
		}
	}
}

// writeFileAtomic replaces filename with data via a synced temp file in the
// same directory and a rename. Readers see the old content or the new, never
// a partial write.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(filename), TempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("rename to %s: %w", filename, err)
	}
	return nil
}
