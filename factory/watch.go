package factory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a catalog file into a store when it changes on disk.
//
// The parent directory is watched, not the file, so editors that save by
// rename keep triggering reloads. A broken file is logged and ignored; the
// previously seeded catalog stays in place.
type Watcher struct {
	path     string
	seeder   Seeder
	onReload func(*Catalog)
	logger   *zap.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for path. onReload runs after every
// successful reseed (use it to invalidate caches); it may be nil.
func NewWatcher(path string, seeder Seeder, onReload func(*Catalog), logger *zap.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("catalog watcher: no catalog file configured")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("catalog watcher: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     abs,
		seeder:   seeder,
		onReload: onReload,
		logger:   logger,
		debounce: 250 * time.Millisecond,
		watcher:  fw,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("catalog watcher: %w", err)
	}
	w.running = true
	go w.run(ctx)
	w.logger.Info("watching catalog", zap.String("path", w.path))
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("closing catalog watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Editors emit bursts of events per save.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			w.Reload(ctx)
		}
	}
}

// Reload loads the catalog file and reseeds the store.
func (w *Watcher) Reload(ctx context.Context) bool {
	cat, err := LoadCatalog(w.path)
	if err != nil {
		w.logger.Error("catalog reload failed; keeping previous catalog", zap.Error(err))
		return false
	}
	if err := cat.Seed(ctx, w.seeder); err != nil {
		w.logger.Error("catalog reseed failed", zap.Error(err))
		return false
	}
	if w.onReload != nil {
		w.onReload(cat)
	}
	w.logger.Info("catalog reloaded",
		zap.String("path", w.path),
		zap.Int("tiers", len(cat.Tiers)),
		zap.Int("kpis", len(cat.KPIs)),
		zap.Int("task_targets", cat.Targets.Len()),
	)
	return true
}
