// Package state persists a snapshot of the current run so that other
// processes can inspect it
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/lifetime-go/lifetime/pkg/lifecycle"
	"github.com/lifetime-go/lifetime/pkg/logger"
)

// HeartbeatInterval is how often a running process refreshes its snapshot.
const HeartbeatInterval = 10 * time.Second

// StaleAfter is the heartbeat age after which a snapshot is considered
// abandoned.
const StaleAfter = 3 * HeartbeatInterval

// ErrNoRun is returned by Load when nothing has been recorded for a manifest.
var ErrNoRun = errors.New("no run recorded")

// Run statuses
const (
	StatusStarting = "starting"
	StatusRunning  = "running"
	StatusStopping = "stopping"
	StatusStopped  = "stopped"
	StatusFailed   = "failed"
)

// RunState is the persisted snapshot of a run
type RunState struct {
	RunID     string                   `json:"runId,omitempty"`
	Manifest  string                   `json:"manifest"`
	ProcessID int                      `json:"processId"`
	Status    string                   `json:"status"`
	StartedAt time.Time                `json:"startedAt"`
	Heartbeat time.Time                `json:"heartbeat"`
	LastError string                   `json:"lastError,omitempty"`
	Modules   map[string]*ModuleRecord `json:"modules"`
}

// ModuleRecord is the last known state of one module
type ModuleRecord struct {
	State     string        `json:"state"`
	Duration  time.Duration `json:"duration,omitempty"`
	LastError string        `json:"lastError,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ModuleNames returns the recorded module names in sorted order
func (r *RunState) ModuleNames() []string {
	names := make([]string, 0, len(r.Modules))
	for name := range r.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsAlive reports whether the process that wrote the snapshot still runs
// and keeps its heartbeat fresh.
func (r *RunState) IsAlive(now time.Time) bool {
	if r.ProcessID == 0 || now.Sub(r.Heartbeat) > StaleAfter {
		return false
	}
	proc, err := os.FindProcess(r.ProcessID)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Dir returns the state directory for a manifest
func Dir(manifestPath string) string {
	return filepath.Join(filepath.Dir(manifestPath), ".lifetime", "state")
}

// Load reads the snapshot written for manifestPath
func Load(manifestPath string) (*RunState, error) {
	data, err := os.ReadFile(filepath.Join(Dir(manifestPath), "run.json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoRun
	}
	if err != nil {
		return nil, err
	}
	var rs RunState
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &rs, nil
}

// Store keeps the snapshot of this process's run on disk. It observes the
// lifecycle manager and rewrites the file on every event.
type Store struct {
	dir    string
	logger logger.Logger
	now    func() time.Time

	mu    sync.Mutex
	state *RunState
}

var _ lifecycle.Observer = (*Store)(nil)

// NewStore creates a store next to the manifest at manifestPath
func NewStore(manifestPath string, log logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		dir:    Dir(manifestPath),
		logger: log.WithModule("state"),
		now:    time.Now,
		state: &RunState{
			Manifest: manifestPath,
			Modules:  make(map[string]*ModuleRecord),
		},
	}
}

// Path returns the snapshot file
func (s *Store) Path() string {
	return filepath.Join(s.dir, "run.json")
}

// Begin resets the snapshot for a new run of modules
func (s *Store) Begin(modules []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.state.ProcessID = os.Getpid()
	s.state.Status = StatusStarting
	s.state.StartedAt = now
	s.state.Heartbeat = now
	s.state.LastError = ""
	s.state.RunID = ""
	s.state.Modules = make(map[string]*ModuleRecord, len(modules))
	for _, name := range modules {
		s.state.Modules[name] = &ModuleRecord{State: "pending", UpdatedAt: now}
	}
	return s.save()
}

// Observe implements lifecycle.Observer
func (s *Store) Observe(e lifecycle.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.state.Heartbeat = now
	if e.RunID != "" {
		s.state.RunID = e.RunID
	}

	switch e.Kind {
	case lifecycle.EventRunStarting:
		s.state.Status = StatusStarting
	case lifecycle.EventRunStarted:
		s.state.Status = StatusRunning
	case lifecycle.EventRunStopping:
		s.state.Status = StatusStopping
	case lifecycle.EventRunStopped:
		s.state.Status = StatusStopped
	case lifecycle.EventRunFailed:
		s.state.Status = StatusFailed
		if e.Err != nil {
			s.state.LastError = e.Err.Error()
		}
	default:
		rec := &ModuleRecord{Duration: e.Duration, UpdatedAt: now}
		switch e.Kind {
		case lifecycle.EventModuleStarted:
			rec.State = "running"
		case lifecycle.EventModuleStopped:
			rec.State = "stopped"
		case lifecycle.EventModuleFailed:
			rec.State = "failed"
			if e.Err != nil {
				rec.LastError = e.Err.Error()
			}
		}
		s.state.Modules[e.Module.String()] = rec
	}

	if err := s.save(); err != nil {
		s.logger.Debug("Failed to save run state", logger.WithError(err))
	}
}

// Touch refreshes the heartbeat
func (s *Store) Touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Heartbeat = s.now()
	return s.save()
}

// Snapshot returns a copy of the current snapshot
func (s *Store) Snapshot() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.state
	cp.Modules = make(map[string]*ModuleRecord, len(s.state.Modules))
	for k, v := range s.state.Modules {
		rec := *v
		cp.Modules[k] = &rec
	}
	return cp
}

// Close marks the snapshot as no longer owned by a process
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ProcessID = 0
	if s.state.Status != StatusFailed {
		s.state.Status = StatusStopped
	}
	return s.save()
}

func (s *Store) save() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write atomically
	path := s.Path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}
