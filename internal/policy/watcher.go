package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval absorbs the burst of write events editors emit when
// saving a file, so one save triggers one reload.
const debounceInterval = 100 * time.Millisecond

// Watcher reloads the policy file into a Store when it changes on disk.
// A reload that fails to parse or validate keeps the previous policy.
type Watcher struct {
	path   string
	store  *Store
	logger *slog.Logger
}

func NewWatcher(path string, store *Store, logger *slog.Logger) *Watcher {
	return &Watcher{path: path, store: store, logger: logger}
}

// Watch blocks until ctx is cancelled, reloading on debounced write events.
// The parent directory is watched rather than the file itself: editors that
// rename-and-replace on save would otherwise orphan the watch.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceInterval)
			} else {
				debounce.Reset(debounceInterval)
			}
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("policy watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	pol, err := LoadFromFile(w.path)
	if err != nil {
		w.logger.Warn("policy reload failed, keeping previous policy",
			slog.String("file", w.path),
			slog.String("error", err.Error()),
		)
		return
	}
	w.store.Replace(pol)
	w.logger.Info("policy reloaded", slog.String("file", w.path))
}
