package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher calls OnChange once the corpus directory has been quiet for the
// debounce delay after a change.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(ctx context.Context) error
	logger   *slog.Logger

	mu      sync.Mutex
	pending bool
	lastAt  time.Time
}

type WatcherConfig struct {
	Dir      string
	Debounce time.Duration
	OnChange func(ctx context.Context) error
}

func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("corpus directory is required")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("change callback is required")
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		dir:      cfg.Dir,
		debounce: debounce,
		onChange: cfg.OnChange,
		logger:   slog.Default().With("component", "corpus-watcher"),
	}, nil
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching corpus", "dir", w.dir, "debounce", w.debounce)

	tick := max(w.debounce/4, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case <-ticker.C:
			w.fireIfQuiet(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	w.logger.Debug("corpus event", "op", event.Op.String(), "path", event.Name)
	w.mu.Lock()
	w.pending = true
	w.lastAt = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) fireIfQuiet(ctx context.Context) {
	w.mu.Lock()
	ready := w.pending && time.Since(w.lastAt) >= w.debounce
	if ready {
		w.pending = false
	}
	w.mu.Unlock()
	if !ready {
		return
	}
	if err := w.onChange(ctx); err != nil {
		w.logger.Error("corpus change handler failed", "error", err)
	}
}
