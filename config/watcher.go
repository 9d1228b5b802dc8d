package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches a config file for changes and invokes reload callbacks
// with the freshly parsed (and validated) configuration. Changes that fail
// to parse or validate are logged and dropped; the previous config stays in
// effect.
type Watcher struct {
	configPath string
	watcher    *fsnotify.Watcher
	logger     *zap.SugaredLogger

	mu            sync.Mutex
	callbacks     []ReloadCallback
	debounceTimer *time.Timer

	done chan struct{}
}

// ReloadCallback is called with the new config after a successful reload
type ReloadCallback func(*Config)

// debouncePeriod coalesces the bursts of write events editors produce
const debouncePeriod = 500 * time.Millisecond

// NewWatcher creates a watcher for the given config file.
func NewWatcher(configPath string, log *zap.SugaredLogger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files on save,
	// which would otherwise drop the watch
	if err := fw.Add(filepath.Dir(configPath)); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		configPath: configPath,
		watcher:    fw,
		logger:     log,
		done:       make(chan struct{}),
	}, nil
}

// OnReload registers a callback invoked after each successful reload
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching for config file changes
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop ends watching. Safe to call once.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("Config watcher error", "error", err)
		}
	}
}

// scheduleReload debounces rapid successive writes into one reload
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(debouncePeriod, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := LoadFromFile(w.configPath)
	if err != nil {
		w.logger.Warnw("Config reload failed, keeping previous config",
			"path", w.configPath,
			"error", err)
		return
	}

	w.logger.Infow("Config reloaded", "path", w.configPath)

	w.mu.Lock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}
