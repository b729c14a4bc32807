package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// ReloadFunc is called after every reload attempt. On failure cfg is nil and
// the previous snapshot stays active.
type ReloadFunc func(cfg *Config, err error)

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	path     string
	onReload ReloadFunc
	logger   *slog.Logger

	fsw  *fsnotify.Watcher
	done chan struct{}
	once sync.Once

	mu      sync.RWMutex
	current *Config
	reloads atomic.Uint32
}

// NewWatcher loads the config at path and starts watching it for changes.
func NewWatcher(path string, logger *slog.Logger, onReload ReloadFunc) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if onReload == nil {
		onReload = func(*Config, error) {}
	}

	cfg, err := LoadAndValidate(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the parent directory so atomic saves (write temp + rename) are seen.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config dir: %w", err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		onReload: onReload,
		logger:   logger.With("component", "config"),
		fsw:      fsw,
		done:     make(chan struct{}),
		current:  cfg,
	}

	go w.watch()

	return w, nil
}

func (w *Watcher) watch() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	count := w.reloads.Add(1)
	w.logger.Info("Reloading config file", "path", w.path, "count", count)

	cfg, err := LoadAndValidate(w.path)
	if err != nil {
		w.logger.Error("Failed to reload config", "error", err)
		w.onReload(nil, err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	w.logger.Info("Config reloaded successfully", "count", count)
	w.onReload(cfg, nil)
}

// Snapshot returns the most recent valid config.
func (w *Watcher) Snapshot() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.current
}

// ReloadCount returns the number of reload attempts so far.
func (w *Watcher) ReloadCount() uint32 {
	return w.reloads.Load()
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}
