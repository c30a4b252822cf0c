package policy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is how long the watcher waits after the last change.
const reloadDebounce = 500 * time.Millisecond

// Reloader watches the policy directory and drops the store cache on change.
type Reloader struct {
	watcher  *fsnotify.Watcher
	store    *Store
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	reloaded chan struct{}
}

// NewReloader creates a file watcher for the store's directory.
func NewReloader(store *Store, logger *slog.Logger) (*Reloader, error) {
	if store.Dir() == "" {
		return nil, fmt.Errorf("policy store has no directory to watch")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(store.Dir()); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", store.Dir(), err)
	}

	return &Reloader{
		watcher:  watcher,
		store:    store,
		logger:   logger,
		debounce: reloadDebounce,
		reloaded: make(chan struct{}, 1),
	}, nil
}

// Reloaded signals (non-blocking, coalesced) after each cache drop.
func (r *Reloader) Reloaded() <-chan struct{} { return r.reloaded }

// Run watches for file changes and reloads policies. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			r.mu.Unlock()
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if _, isPolicy := domainFromFile(filepath.Base(event.Name)); !isPolicy {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				r.mu.Lock()
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(r.debounce, r.fire)
				r.mu.Unlock()
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("policy watcher error", "error", err)
		}
	}
}

func (r *Reloader) fire() {
	r.store.Reload()
	r.logger.Info("policies reloaded", "dir", r.store.Dir())
	select {
	case r.reloaded <- struct{}{}:
	default:
	}
}
