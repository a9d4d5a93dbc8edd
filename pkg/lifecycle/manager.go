// Package lifecycle starts a set of modules in dependency order and shuts
// them down in reverse, running independent modules concurrently.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lifetime-go/lifetime/internal/engine"
	"github.com/lifetime-go/lifetime/internal/graph"
	lcontext "github.com/lifetime-go/lifetime/pkg/context"
	"github.com/lifetime-go/lifetime/pkg/logger"
	"github.com/lifetime-go/lifetime/pkg/module"
)

// Manager drives one run at a time: Start builds the dependency graph and
// starts every module, Shutdown stops them in reverse order. Both may be
// called again for a new run with fresh instances.
type Manager struct {
	resolver       Resolver
	logger         logger.Logger
	strategy       Strategy
	maxConcurrency int
	observers      []Observer

	// mu guards the fields below. It is never held while module code runs.
	mu      sync.Mutex
	state   State
	runID   string
	graph   *graph.Graph[module.ID]
	modules map[module.ID]ModuleState
}

// New creates an idle manager resolving modules through resolver.
func New(resolver Resolver, opts ...Option) *Manager {
	m := &Manager{
		resolver: resolver,
		logger:   logger.Nop(),
		strategy: engine.DefaultStrategy,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start discovers the modules of source, collects their dependency
// declarations, builds the graph and starts every module after its
// dependencies. On failure the cached instances are dropped and the manager
// returns to idle.
func (m *Manager) Start(ctx context.Context, source Source) error {
	runID, err := m.begin(StateIdle, StateStarting, ErrAlreadyRunning)
	if err != nil {
		return err
	}

	ctx = m.runContext(ctx, runID, "start")
	log := logger.WithContext(ctx, m.logger)
	began := time.Now()

	log.Info("Starting modules")
	m.emit(Event{RunID: runID, Phase: PhaseStart, Kind: EventRunStarting})

	g, err := m.prepare(ctx, source, log)
	if err == nil {
		log.Debug("Dependency graph built",
			logger.WithField("modules", g.Len()),
			logger.WithField("walker", string(m.strategy)))
		err = m.walk(ctx, g.Forward(), PhaseStart, log)
	}

	if err != nil {
		m.finish(StateIdle, nil)
		log.Error("Start failed", logger.WithError(err))
		m.emit(Event{RunID: runID, Phase: PhaseStart, Kind: EventRunFailed, Err: err, Duration: time.Since(began)})
		return err
	}

	m.finish(StateRunning, g)
	log.Success("All modules running", logger.WithField("modules", g.Len()))
	m.emit(Event{RunID: runID, Phase: PhaseStart, Kind: EventRunStarted, Duration: time.Since(began)})
	return nil
}

// Shutdown stops every module after the modules depending on it. The
// instances are dropped and the manager returns to idle even when a Stop
// fails; that failure is returned.
func (m *Manager) Shutdown(ctx context.Context) error {
	runID, err := m.begin(StateRunning, StateStopping, ErrNotRunning)
	if err != nil {
		return err
	}

	m.mu.Lock()
	g := m.graph
	m.mu.Unlock()

	ctx = m.runContext(ctx, runID, "shutdown")
	log := logger.WithContext(ctx, m.logger)
	began := time.Now()

	log.Info("Stopping modules")
	m.emit(Event{RunID: runID, Phase: PhaseStop, Kind: EventRunStopping})

	err = m.walk(ctx, g.Backward(), PhaseStop, log)

	m.finish(StateIdle, nil)

	if err != nil {
		log.Error("Shutdown failed", logger.WithError(err))
		m.emit(Event{RunID: runID, Phase: PhaseStop, Kind: EventRunFailed, Err: err, Duration: time.Since(began)})
		return err
	}
	log.Success("All modules stopped")
	m.emit(Event{RunID: runID, Phase: PhaseStop, Kind: EventRunStopped, Duration: time.Since(began)})
	return nil
}

// Lookup returns the instance of id in the current run. It never creates an
// instance and reports false while idle.
func (m *Manager) Lookup(id module.ID) (module.Module, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateIdle {
		return nil, false
	}
	return m.resolver.Cached(id)
}

// LookupAs is Lookup followed by a type assertion to T.
func LookupAs[T any](m *Manager, id module.ID) (T, bool) {
	var zero T
	mod, ok := m.Lookup(id)
	if !ok {
		return zero, false
	}
	t, ok := mod.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// State returns the manager state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsStarting() bool { return m.State() == StateStarting }
func (m *Manager) IsRunning() bool  { return m.State() == StateRunning }
func (m *Manager) IsStopping() bool { return m.State() == StateStopping }

// RunID identifies the current run. It is empty while idle.
func (m *Manager) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}

// Order returns the start order of the running graph, or nil.
func (m *Manager) Order() []module.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.graph == nil {
		return nil
	}
	return m.graph.Order()
}

// ModuleState reports what happened to id in the current or most recent run.
func (m *Manager) ModuleState(id module.ID) ModuleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modules[id]
}

// begin moves the manager from one state to the next and opens a new run
// when starting.
func (m *Manager) begin(from, to State, wrong error) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return "", fmt.Errorf("%w (state %s)", wrong, m.state)
	}
	m.state = to
	if from == StateIdle {
		m.runID = lcontext.GenerateRunID()
		m.modules = make(map[module.ID]ModuleState)
	}
	return m.runID, nil
}

// finish moves to state. Returning to idle drops the cached instances under
// the same lock, so Lookup never sees an active state without instances.
func (m *Manager) finish(state State, g *graph.Graph[module.ID]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == StateIdle {
		m.resolver.Reset()
		m.runID = ""
	}
	m.state = state
	m.graph = g
}

func (m *Manager) setModuleState(id module.ID, s ModuleState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.modules != nil {
		m.modules[id] = s
	}
}

func (m *Manager) runContext(ctx context.Context, runID, operation string) context.Context {
	return lcontext.EnrichContext(ctx, runID, operation)
}

func (m *Manager) emit(e Event) {
	for _, o := range m.observers {
		o.Observe(e)
	}
}

// walk runs phase over view and turns walker errors into lifecycle errors.
func (m *Manager) walk(ctx context.Context, view *graph.View[module.ID], phase Phase, log logger.Logger) error {
	w := engine.New[module.ID](engine.Options{
		Strategy:       m.strategy,
		MaxConcurrency: m.maxConcurrency,
		Logger:         m.logger,
	})
	err := w.Walk(ctx, view, func(ctx context.Context, id module.ID) error {
		return m.act(ctx, id, phase, log)
	})
	if err == nil {
		return nil
	}

	var notStarted *engine.CancelledError
	if errors.As(err, &notStarted) {
		id, _ := notStarted.Key.(module.ID)
		m.setModuleState(id, ModuleFailed)
		return &CancelledError{Module: id, Phase: phase, Err: notStarted.Err}
	}
	return err
}

// act runs one module's Start or Stop.
func (m *Manager) act(ctx context.Context, id module.ID, phase Phase, log logger.Logger) (err error) {
	mod, ok := m.resolver.Cached(id)
	if !ok {
		return &UnresolvableError{Module: id, Dependency: id}
	}

	modLog := log.WithModule(string(id))
	ctx = lcontext.WithModule(ctx, string(id))
	began := time.Now()

	running, done := ModuleStarting, ModuleRunning
	if phase == PhaseStop {
		running, done = ModuleStopping, ModuleStopped
	}
	m.setModuleState(id, running)
	modLog.Debug(fmt.Sprintf("Module %s", running))

	defer func() {
		if r := recover(); r != nil {
			err = &ActionError{Module: id, Phase: phase, Err: &engine.PanicError{Value: r}}
		}

		e := Event{RunID: lcontext.GetRunID(ctx), Phase: phase, Module: id, Duration: time.Since(began)}
		if err != nil {
			m.setModuleState(id, ModuleFailed)
			modLog.Error(fmt.Sprintf("Module %s failed", phase), logger.WithError(err))
			e.Kind, e.Err = EventModuleFailed, err
		} else {
			m.setModuleState(id, done)
			modLog.Debug(fmt.Sprintf("Module %s", done),
				logger.WithField("took", e.Duration.String()))
			e.Kind = EventModuleStarted
			if phase == PhaseStop {
				e.Kind = EventModuleStopped
			}
		}
		m.emit(e)
	}()

	if phase == PhaseStop {
		err = mod.Stop(ctx)
	} else {
		err = mod.Start(ctx)
	}
	return classify(id, phase, err)
}

// classify wraps a module body error as cancellation or action failure.
func classify(id module.ID, phase Phase, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &CancelledError{Module: id, Phase: phase, Err: err}
	}
	return &ActionError{Module: id, Phase: phase, Err: err}
}
