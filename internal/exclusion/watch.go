package exclusion

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// SharedPath returns the on-disk location of backends that another process,
// such as the exclusions CLI, can write while the gateway runs. Memory and
// bolt backends report false: bolt holds an exclusive lock on its file.
func SharedPath(b Backend) (string, bool) {
	switch v := b.(type) {
	case *FileBackend:
		return v.Path(), true
	case *SQLiteBackend:
		return v.Path(), true
	default:
		return "", false
	}
}

// Watch reloads store whenever the file at path, or one of its SQLite
// sidecars ("-wal", "-journal"), changes. Reload failures go to onError and
// the previous rules stay in effect. Watch blocks until ctx is done.
func Watch(ctx context.Context, store *Store, path string, onError func(error)) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve exclusions path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Clean(event.Name), absPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(fmt.Errorf("watch exclusions: %w", err))
			}
		case <-pending:
			pending = nil
			if err := store.Reload(); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
