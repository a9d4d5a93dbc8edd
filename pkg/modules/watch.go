package modules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lifetime-go/lifetime/pkg/logger"
	"github.com/lifetime-go/lifetime/pkg/module"
	"github.com/lifetime-go/lifetime/pkg/utils"
)

// DefaultSettle is how long a path must stay quiet before its change is
// reported.
const DefaultSettle = 100 * time.Millisecond

// ChangeType classifies a FileEvent
type ChangeType string

const (
	FileCreated  ChangeType = "created"
	FileModified ChangeType = "modified"
	FileDeleted  ChangeType = "deleted"
	FileRenamed  ChangeType = "renamed"
)

// FileEvent is one settled change below the watched path
type FileEvent struct {
	Path string
	Type ChangeType
}

// Watch reports file changes below a path while it runs. Directories are
// watched recursively, including ones created after Start.
type Watch struct {
	*module.Lifetime
	id     module.ID
	path   string
	logger logger.Logger

	mu       sync.Mutex
	settle   time.Duration
	ignore   *utils.IgnoreMatcher
	watcher  *fsnotify.Watcher
	pending  map[string]time.Time
	onChange func(FileEvent)
	changes  atomic.Int64
}

// NewWatch creates a watch module for path
func NewWatch(id module.ID, path string, log logger.Logger, requires ...module.ID) *Watch {
	if log == nil {
		log = logger.Nop()
	}
	w := &Watch{
		id:      id,
		path:    path,
		settle:  DefaultSettle,
		pending: make(map[string]time.Time),
		logger:  log.WithModule(id.String()),
	}
	w.Lifetime = module.NewLifetime(w.run, requires...)
	return w
}

// ID returns the module identity
func (w *Watch) ID() module.ID { return w.id }

// OnChange installs a callback for settled changes
func (w *Watch) OnChange(fn func(FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// SetSettle sets the settling delay
func (w *Watch) SetSettle(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settle = d
}

// SetIgnore skips paths matching m. Paths are matched relative to the
// watched root.
func (w *Watch) SetIgnore(m *utils.IgnoreMatcher) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ignore = m
}

func (w *Watch) ignored(path string) bool {
	rel, err := filepath.Rel(w.path, path)
	if err != nil || rel == "." {
		return false
	}
	w.mu.Lock()
	m := w.ignore
	w.mu.Unlock()
	return m.Match(rel)
}

// Changes returns how many settled changes have been reported
func (w *Watch) Changes() int64 {
	return w.changes.Load()
}

// Start registers the watch and launches the event loop. A missing path
// fails the start.
func (w *Watch) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if info.IsDir() {
		err = w.addDirectory(fw, w.path)
	} else {
		err = fw.Add(w.path)
	}
	if err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()

	if err := w.Lifetime.Start(ctx); err != nil {
		fw.Close()
		return err
	}
	w.logger.Info("watching", logger.WithField("path", w.path))
	return nil
}

func (w *Watch) addDirectory(fw *fsnotify.Watcher, dir string) error {
	if err := fw.Add(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if w.ignored(sub) {
			continue
		}
		if err := w.addDirectory(fw, sub); err != nil {
			w.logger.Warn("failed to watch subdirectory",
				logger.WithField("path", sub),
				logger.WithError(err))
		}
	}
	return nil
}

func (w *Watch) run(ctx context.Context) error {
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	defer fw.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addDirectory(fw, event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", logger.WithError(err))
					}
				}
			}
			w.schedule(ctx, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", logger.WithError(err))
		}
	}
}

// schedule reports event once its path has been quiet for the settling
// delay. Later events for the same path supersede earlier ones.
func (w *Watch) schedule(ctx context.Context, event fsnotify.Event) {
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	settle := w.settle
	w.mu.Unlock()

	time.AfterFunc(settle, func() {
		if ctx.Err() != nil {
			return
		}
		w.mu.Lock()
		last, ok := w.pending[event.Name]
		if !ok || time.Since(last) < settle {
			w.mu.Unlock()
			return
		}
		delete(w.pending, event.Name)
		onChange := w.onChange
		w.mu.Unlock()

		change := FileEvent{Path: event.Name, Type: changeType(event)}
		w.changes.Add(1)
		w.logger.Info("changed",
			logger.WithField("path", change.Path),
			logger.WithField("type", change.Type))
		if onChange != nil {
			onChange(change)
		}
	})
}

func changeType(event fsnotify.Event) ChangeType {
	var t ChangeType
	switch {
	case event.Op&fsnotify.Create != 0:
		t = FileCreated
	case event.Op&fsnotify.Remove != 0:
		t = FileDeleted
	case event.Op&fsnotify.Rename != 0:
		t = FileRenamed
	default:
		t = FileModified
	}
	if t != FileDeleted && t != FileRenamed {
		if _, err := os.Stat(event.Name); err != nil {
			t = FileDeleted
		}
	}
	return t
}
