package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lifetime-go/lifetime/pkg/logger"
)

// Watcher reloads a manifest whenever its file changes on disk
type Watcher struct {
	path     string
	logger   logger.Logger
	debounce time.Duration

	mu        sync.RWMutex
	watcher   *fsnotify.Watcher
	callbacks []ReloadCallback
	modTime   time.Time
	timer     *time.Timer
	cancel    context.CancelFunc
	done      chan struct{}
}

// ReloadCallback receives the outcome of every reload attempt
type ReloadCallback func(ReloadEvent)

// ReloadEvent describes one reload attempt. Config is nil when Err is set.
type ReloadEvent struct {
	Path      string
	Timestamp time.Time
	Kind      ReloadKind
	Config    *Config
	Err       error
}

// ReloadKind is the file event that caused a reload
type ReloadKind string

const (
	ReloadModified ReloadKind = "modified"
	ReloadCreated  ReloadKind = "created"
	ReloadRemoved  ReloadKind = "removed"
	ReloadManual   ReloadKind = "manual"
	ReloadError    ReloadKind = "error"
)

// DefaultDebounce collapses the burst of events editors produce on save.
const DefaultDebounce = 500 * time.Millisecond

// NewWatcher creates a manifest watcher for path
func NewWatcher(path string, log logger.Logger) *Watcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Watcher{
		path:     path,
		logger:   log.WithModule("config"),
		debounce: DefaultDebounce,
	}
}

// OnReload adds a reload callback
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// SetDebounce sets how long the file must stay quiet before reloading
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Path returns the watched manifest path
func (w *Watcher) Path() string {
	return w.path
}

// Start watches the manifest directory until Stop is called
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return fmt.Errorf("already watching %s", w.path)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Editors replace files on save, so watch the directory.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	if stat, err := os.Stat(w.path); err == nil {
		w.modTime = stat.ModTime()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.watcher = fw
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, fw, w.done)

	w.logger.Debug("watching manifest", logger.WithField("path", w.path))
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return nil
	}
	fw, done := w.watcher, w.done
	w.cancel()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.watcher = nil
	w.mu.Unlock()

	err := fw.Close()
	<-done
	w.logger.Debug("stopped watching manifest")
	return err
}

// IsWatching reports whether Start has been called without Stop
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watcher != nil
}

// Reload loads the manifest now, bypassing the modification check
func (w *Watcher) Reload() {
	w.reload(ReloadManual, true)
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("manifest watcher panic recovered", logger.WithField("panic", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.matches(event.Name) {
				continue
			}
			w.logger.Debug("manifest event", logger.WithField("event", event.String()))
			w.schedule(kindOf(event.Op))
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("manifest watcher error", logger.WithError(err))
			w.notify(ReloadEvent{Kind: ReloadError, Err: err})
		}
	}
}

// matches accepts the manifest itself and the temporary files editors
// write next to it.
func (w *Watcher) matches(name string) bool {
	base := filepath.Base(w.path)
	got := filepath.Base(name)
	if got == base {
		return true
	}
	return strings.HasPrefix(got, base) && (strings.HasSuffix(got, ".tmp") || strings.HasSuffix(got, "~"))
}

func kindOf(op fsnotify.Op) ReloadKind {
	switch {
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		return ReloadRemoved
	case op&fsnotify.Create != 0:
		return ReloadCreated
	default:
		return ReloadModified
	}
}

func (w *Watcher) schedule(kind ReloadKind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.reload(kind, false)
	})
}

func (w *Watcher) reload(kind ReloadKind, force bool) {
	stat, err := os.Stat(w.path)
	if err != nil {
		// A rename-and-replace save reports Remove before the new file lands.
		if kind == ReloadRemoved {
			err = fmt.Errorf("manifest was removed: %s", w.path)
		}
		w.logger.Warn("manifest unavailable", logger.WithError(err))
		w.notify(ReloadEvent{Kind: ReloadError, Err: err})
		return
	}

	w.mu.Lock()
	if !force && !stat.ModTime().After(w.modTime) {
		w.mu.Unlock()
		w.logger.Debug("manifest not modified, skipping reload")
		return
	}
	w.modTime = stat.ModTime()
	w.mu.Unlock()

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("failed to reload manifest", logger.WithError(err))
		w.notify(ReloadEvent{Kind: ReloadError, Err: err})
		return
	}

	w.logger.Info("manifest reloaded", logger.WithField("modules", len(cfg.Modules)))
	w.notify(ReloadEvent{Kind: kind, Config: cfg})
}

func (w *Watcher) notify(event ReloadEvent) {
	event.Path = w.path
	event.Timestamp = time.Now()

	w.mu.RLock()
	callbacks := append([]ReloadCallback(nil), w.callbacks...)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("reload callback panic recovered", logger.WithField("panic", r))
				}
			}()
			cb(event)
		}()
	}
}
