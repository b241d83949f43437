package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ryzeai/ryze/model"
)

// RegistryWatcher reloads a model registry file into a live registry when the
// file changes. Invalid files are logged and ignored, so the registry keeps
// its last good configuration.
type RegistryWatcher struct {
	path     string
	target   *model.Registry
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// Debouncing: remember a change until the next tick
	pendingMu sync.Mutex
	pending   bool

	// reloaded is signalled after every reload attempt
	reloaded chan error
}

// NewRegistryWatcher creates a watcher that keeps target in sync with the
// registry file at path.
func NewRegistryWatcher(path string, target *model.Registry, logger *slog.Logger) (*RegistryWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	return &RegistryWatcher{
		path:     abs,
		target:   target,
		debounce: 200 * time.Millisecond,
		watcher:  fsw,
		logger:   logger,
		reloaded: make(chan error, 1),
	}, nil
}

// Reloaded delivers the outcome of reload attempts. Only the latest outcome
// is kept if nobody is reading.
func (w *RegistryWatcher) Reloaded() <-chan error {
	return w.reloaded
}

// Start begins watching. It returns once the watch is in place; events are
// processed until ctx is done or Stop is called.
func (w *RegistryWatcher) Start(ctx context.Context) error {
	// Watch the directory: editors often replace the file instead of
	// writing it in place, which drops a watch on the file itself.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	go w.processEvents(ctx)

	w.logger.Info("Model registry watcher started", "path", w.path)
	return nil
}

// Stop stops the watcher
func (w *RegistryWatcher) Stop() error {
	return w.watcher.Close()
}

// processEvents handles fsnotify events with debouncing
func (w *RegistryWatcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.pendingMu.Lock()
				w.pending = true
				w.pendingMu.Unlock()
				w.logger.Debug("Model registry change detected", "op", event.Op.String())
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *RegistryWatcher) flushPending() {
	w.pendingMu.Lock()
	if !w.pending {
		w.pendingMu.Unlock()
		return
	}
	w.pending = false
	w.pendingMu.Unlock()

	err := w.reload()
	select {
	case w.reloaded <- err:
	default:
		// Drop the stale outcome and keep the latest.
		select {
		case <-w.reloaded:
		default:
		}
		w.reloaded <- err
	}
}

func (w *RegistryWatcher) reload() error {
	next, err := model.LoadFromFile(w.path)
	if err != nil {
		w.logger.Warn("Keeping previous model registry", "path", w.path, "error", err)
		return err
	}
	w.target.Replace(next)
	w.logger.Info("Model registry reloaded", "path", w.path, "endpoints", len(next.ListEndpoints()))
	return nil
}
