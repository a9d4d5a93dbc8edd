// Package mocks provides test doubles for modules, resolvers and observers.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/lifetime-go/lifetime/pkg/module"
)

// Journal records module actions across modules in the order they happen.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
	seq     int
}

// Entry is one recorded action. Begin and End are journal sequence numbers.
type Entry struct {
	Module module.ID
	Action string
	Begin  int
	End    int
}

// NewJournal creates an empty journal
func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) begin() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	return j.seq
}

func (j *Journal) end(id module.ID, action string, begin int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	j.entries = append(j.entries, Entry{Module: id, Action: action, Begin: begin, End: j.seq})
}

// Entries returns the completed actions in completion order
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...)
}

// Order returns the modules that completed action, in completion order
func (j *Journal) Order(action string) []module.ID {
	var out []module.ID
	for _, e := range j.Entries() {
		if e.Action == action {
			out = append(out, e.Module)
		}
	}
	return out
}

// Find returns the last entry for id and action
func (j *Journal) Find(id module.ID, action string) (Entry, bool) {
	entries := j.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Module == id && entries[i].Action == action {
			return entries[i], true
		}
	}
	return Entry{}, false
}

// RecordingModule is a configurable module that records its calls
type RecordingModule struct {
	id      module.ID
	journal *Journal

	mu          sync.RWMutex
	requires    []module.ID
	declareErr  error
	startErr    error
	stopErr     error
	startDelay  time.Duration
	stopDelay   time.Duration
	onStart     func(ctx context.Context) error
	declares    int
	starts      int
	stops       int
	running     bool
	blockOnStop bool
}

// NewRecordingModule creates a module named id writing to journal
func NewRecordingModule(id module.ID, journal *Journal, requires ...module.ID) *RecordingModule {
	if journal == nil {
		journal = NewJournal()
	}
	return &RecordingModule{id: id, journal: journal, requires: requires}
}

// ID returns the module identity
func (m *RecordingModule) ID() module.ID { return m.id }

// DeclareDependencies requires the configured dependencies
func (m *RecordingModule) DeclareDependencies(ctx context.Context, deps module.DependencyContext) error {
	m.mu.Lock()
	m.declares++
	requires, declareErr := m.requires, m.declareErr
	m.mu.Unlock()

	if declareErr != nil {
		return declareErr
	}
	for _, id := range requires {
		if err := deps.Require(id); err != nil {
			return err
		}
	}
	return nil
}

// Start records the start, honoring the configured delay and error
func (m *RecordingModule) Start(ctx context.Context) error {
	m.mu.Lock()
	m.starts++
	delay, startErr, onStart := m.startDelay, m.startErr, m.onStart
	m.mu.Unlock()

	begin := m.journal.begin()
	err := wait(ctx, delay)
	if err == nil && onStart != nil {
		err = onStart(ctx)
	}
	if err == nil {
		err = startErr
	}
	m.journal.end(m.id, "start", begin)

	if err == nil {
		m.mu.Lock()
		m.running = true
		m.mu.Unlock()
	}
	return err
}

// Stop records the stop, honoring the configured delay and error
func (m *RecordingModule) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stops++
	delay, stopErr, block := m.stopDelay, m.stopErr, m.blockOnStop
	m.mu.Unlock()

	begin := m.journal.begin()
	var err error
	if block {
		<-ctx.Done()
		err = ctx.Err()
	} else {
		err = wait(ctx, delay)
	}
	if err == nil {
		err = stopErr
	}
	m.journal.end(m.id, "stop", begin)

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return err
}

// IsRunning reports whether Start succeeded more recently than Stop ran
func (m *RecordingModule) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetDeclareError sets the error to return from DeclareDependencies
func (m *RecordingModule) SetDeclareError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.declareErr = err
}

// SetStartError sets the error to return from Start
func (m *RecordingModule) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// SetStopError sets the error to return from Stop
func (m *RecordingModule) SetStopError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopErr = err
}

// SetStartDelay makes Start wait d, or until its context is done
func (m *RecordingModule) SetStartDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startDelay = d
}

// SetStopDelay makes Stop wait d, or until its context is done
func (m *RecordingModule) SetStopDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopDelay = d
}

// SetBlockOnStop makes Stop wait for its context to be done
func (m *RecordingModule) SetBlockOnStop(block bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockOnStop = block
}

// OnStart installs a hook run inside Start after the delay
func (m *RecordingModule) OnStart(fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStart = fn
}

// GetDeclareCallCount returns the number of DeclareDependencies calls
func (m *RecordingModule) GetDeclareCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.declares
}

// GetStartCallCount returns the number of Start calls
func (m *RecordingModule) GetStartCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.starts
}

// GetStopCallCount returns the number of Stop calls
func (m *RecordingModule) GetStopCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stops
}

// MockResolver is an in-memory resolver that counts instantiations. Each
// identity maps to a constructor; instances are cached until Reset.
type MockResolver struct {
	mu           sync.Mutex
	constructors map[module.ID]func() module.Module
	instances    map[module.ID]module.Module
	created      map[module.ID]int
	resets       int
}

// NewMockResolver creates an empty resolver
func NewMockResolver() *MockResolver {
	return &MockResolver{
		constructors: make(map[module.ID]func() module.Module),
		instances:    make(map[module.ID]module.Module),
		created:      make(map[module.ID]int),
	}
}

// Add registers a constructor for id
func (r *MockResolver) Add(id module.ID, constructor func() module.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[id] = constructor
}

// TryGet returns the cached instance or constructs one
func (r *MockResolver) TryGet(id module.ID) (module.Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.instances[id]; ok {
		return m, true
	}
	c, ok := r.constructors[id]
	if !ok {
		return nil, false
	}
	m := c()
	r.instances[id] = m
	r.created[id]++
	return m, true
}

// Cached returns the cached instance only
func (r *MockResolver) Cached(id module.ID) (module.Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.instances[id]
	return m, ok
}

// Reset drops every instance
func (r *MockResolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[module.ID]module.Module)
	r.resets++
}

// Created returns how many instances of id were constructed
func (r *MockResolver) Created(id module.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created[id]
}

// Resets returns how many times Reset was called
func (r *MockResolver) Resets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}
