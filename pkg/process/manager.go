// Package process ties a running application to operating system signals
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lifetime-go/lifetime/pkg/logger"
)

// DefaultSignals are the signals that end a run.
var DefaultSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

// Manager waits for a shutdown signal and runs the registered handlers in
// reverse registration order.
type Manager struct {
	logger  logger.Logger
	signals []os.Signal

	mu               sync.Mutex
	shutdownHandlers []func()
	heartbeatFunc    func()
	heartbeatEvery   time.Duration
	heartbeatStop    chan struct{}
	trigger          chan os.Signal
	done             chan struct{}
	received         os.Signal
	running          bool
	wg               sync.WaitGroup
}

// NewManager creates a new process manager listening for signals, or
// DefaultSignals when none are given.
func NewManager(log logger.Logger, signals ...os.Signal) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	if len(signals) == 0 {
		signals = DefaultSignals
	}
	return &Manager{
		logger:  log.WithModule("process"),
		signals: signals,
		trigger: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
}

// RegisterShutdownHandler adds a shutdown handler
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// SetHeartbeat runs fn every interval while the manager is running
func (m *Manager) SetHeartbeat(interval time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeatEvery = interval
	m.heartbeatFunc = fn
}

// Start listens for signals until one arrives or ctx is done. A manager
// can be started once.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running || m.isDone() {
		m.mu.Unlock()
		return
	}
	m.running = true
	heartbeat, every := m.heartbeatFunc, m.heartbeatEvery
	var stop chan struct{}
	if heartbeat != nil && every > 0 {
		stop = make(chan struct{})
		m.heartbeatStop = stop
	}
	m.mu.Unlock()

	if stop != nil {
		m.startHeartbeat(ctx, stop, every, heartbeat)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, m.signals...)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer signal.Stop(sigChan)

		var sig os.Signal
		select {
		case <-ctx.Done():
			m.logger.Debug("context done, shutting down")
		case sig = <-sigChan:
			m.logger.Info("Received signal", logger.WithField("signal", sig))
		case sig = <-m.trigger:
			m.logger.Info("Shutdown requested", logger.WithField("signal", sig))
		}
		m.handleShutdown(sig)
	}()
}

// Trigger behaves as if sig had been delivered to the process
func (m *Manager) Trigger(sig os.Signal) {
	select {
	case m.trigger <- sig:
	default:
	}
}

// Done is closed after the shutdown handlers have run
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Signal returns the signal that caused the shutdown, or nil when the
// context ended it.
func (m *Manager) Signal() os.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

// Stop shuts down as if a signal had arrived and waits for the handlers
func (m *Manager) Stop() {
	if m.IsRunning() {
		m.Trigger(nil)
	}
	m.wg.Wait()
}

// IsRunning checks if the process manager is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) isDone() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *Manager) handleShutdown(sig os.Signal) {
	m.mu.Lock()
	handlers := append([]func(){}, m.shutdownHandlers...)
	m.received = sig
	m.running = false
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
	m.mu.Unlock()

	m.logger.Debug("Running shutdown handlers", logger.WithField("count", len(handlers)))
	for i := len(handlers) - 1; i >= 0; i-- {
		m.runHandler(handlers[i])
	}
	close(m.done)
}

func (m *Manager) runHandler(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Shutdown handler panic recovered", logger.WithField("panic", r))
		}
	}()
	handler()
}

func (m *Manager) startHeartbeat(ctx context.Context, stop <-chan struct{}, every time.Duration, fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}
