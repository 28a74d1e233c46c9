package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// WatcherState represents the current state of a config Watcher.
type WatcherState int

const (
	// WatcherIdle means the watcher is waiting for changes.
	WatcherIdle WatcherState = iota
	// WatcherReloading means the file is being re-read.
	WatcherReloading
	// WatcherStopped means the watcher has been stopped.
	WatcherStopped
)

// WatchError wraps a reload failure with its phase.
type WatchError struct {
	Phase string // "watch", "load"
	Cause error
	Time  time.Time
}

func (e WatchError) Error() string {
	return fmt.Sprintf("config %s failed: %v", e.Phase, e.Cause)
}

func (e WatchError) Unwrap() error {
	return e.Cause
}

// ReloadFunc receives every successfully reloaded config, or the error that
// stopped a reload.
type ReloadFunc func(Config, error)

// Watcher re-reads a config file when it changes on disk.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload ReloadFunc

	mu      sync.Mutex
	state   WatcherState
	started bool
	timer   *time.Timer

	fw     *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher for path. Nothing happens until Start.
func NewWatcher(path string, debounce time.Duration, onReload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce == 0 {
		debounce = 200 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:     path,
		debounce: debounce,
		onReload: onReload,
		fw:       fw,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Start is idempotent.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.started || w.state == WatcherStopped {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	// Editors replace files by rename, so watch the directory.
	if err := w.fw.Add(filepath.Dir(w.path)); err != nil {
		close(w.done)
		return WatchError{Phase: "watch", Cause: err, Time: time.Now()}
	}
	go w.loop()
	return nil
}

// Stop halts the watcher. Stop is idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.state == WatcherStopped {
		w.mu.Unlock()
		return
	}
	w.state = WatcherStopped
	wasStarted := w.started
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.cancel()
	w.fw.Close()

	if wasStarted {
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
		}
	}
}

// State returns the current watcher state.
func (w *Watcher) State() WatcherState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) loop() {
	defer close(w.done)
	target := filepath.Clean(w.path)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher error", "path", w.path, "err", err)
		}
	}
}

// schedule coalesces bursts of events into one reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == WatcherStopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	if w.state != WatcherIdle {
		w.mu.Unlock()
		return
	}
	w.state = WatcherReloading
	w.mu.Unlock()

	cfg, err := Load(w.path)
	if err != nil {
		err = WatchError{Phase: "load", Cause: err, Time: time.Now()}
		log.Warn("config reload failed", "path", w.path, "err", err)
	} else {
		log.Info("config reloaded", "path", w.path)
	}

	w.mu.Lock()
	stopped := w.state == WatcherStopped
	if !stopped {
		w.state = WatcherIdle
	}
	w.mu.Unlock()

	if !stopped && w.onReload != nil {
		w.onReload(cfg, err)
	}
}
