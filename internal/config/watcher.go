package config

import (
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 100 * time.Millisecond

// Watcher watches the config file for changes and reloads it.
type Watcher struct {
	config    *Config
	logger    *log.Logger
	watcher   *fsnotify.Watcher
	callbacks []func(*Config)
	stop      chan struct{}
	once      sync.Once
	mu        sync.RWMutex
}

// NewWatcher creates a new config file watcher. A nil logger discards.
func NewWatcher(config *Config, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:    config,
		logger:    logger.WithPrefix("config"),
		watcher:   watcher,
		callbacks: make([]func(*Config), 0),
		stop:      make(chan struct{}),
	}

	return w, nil
}

// OnReload registers a callback to be called when the config is reloaded.
func (w *Watcher) OnReload(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching the config file.
func (w *Watcher) Start() error {
	path := w.config.Path()
	if path == "" {
		return nil // No config file to watch
	}

	// Editors replace the file on save, so watch the directory and
	// filter by name.
	if err := w.watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	go w.watch()
	return nil
}

// Stop stops watching the config file. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		w.watcher.Close()
	})
}

// watch is the main watch loop.
func (w *Watcher) watch() {
	var debounceTimer *time.Timer
	path := w.config.Path()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					w.reload()
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)

		case <-w.stop:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

// reload reloads the config and notifies callbacks.
func (w *Watcher) reload() {
	if err := w.config.Reload(); err != nil {
		w.logger.Error("reload failed", "path", w.config.Path(), "err", err)
		return
	}

	w.logger.Info("reloaded", "path", w.config.Path(), "connections", len(w.config.GetConnections()))

	w.mu.RLock()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(w.config)
	}
}

// GetConfig returns the current config.
func (w *Watcher) GetConfig() *Config {
	return w.config
}
