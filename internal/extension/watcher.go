package extension

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor emits on save.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reapplies manifest settings to a Registry when the manifest
// file changes.
type Watcher struct {
	registry *Registry
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onReload func(error)

	ready     chan struct{}
	readyOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// OnReload registers a hook called after every reload attempt with its
// result, nil on success.
func OnReload(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher creates a watcher for the manifest at path.
func NewWatcher(registry *Registry, path string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		registry: registry,
		path:     path,
		debounce: DefaultDebounce,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ready is closed once the watch is established.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is done. The parent directory is watched rather
// than the file so that atomic replace-by-rename is seen.
func (w *Watcher) Run(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("failed to resolve manifest path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	w.readyOnce.Do(func() { close(w.ready) })
	w.logger.Debug("watching plugin manifest", "path", abs)

	base := filepath.Base(abs)
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
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		case <-fire:
			fire = nil
			_ = w.Reload()
		}
	}
}

// Reload reads the manifest now and reconfigures the registry. A manifest
// that cannot be read or parsed leaves the current settings untouched.
func (w *Watcher) Reload() error {
	m, err := LoadManifest(w.path)
	if err != nil {
		w.logger.Warn("manifest reload skipped", "path", w.path, "error", err)
		w.notify(err)
		return err
	}

	err = errors.Join(w.registry.Reconfigure(m)...)
	if err == nil {
		w.logger.Info("plugin manifest reloaded", "path", w.path)
	}
	w.notify(err)
	return err
}

func (w *Watcher) notify(err error) {
	if w.onReload != nil {
		w.onReload(err)
	}
}
