package lifecycle

import (
	"github.com/lifetime-go/lifetime/internal/engine"
	"github.com/lifetime-go/lifetime/pkg/logger"
)

// Strategy selects how the dependency graph is walked.
type Strategy = engine.Strategy

const (
	WalkMemo = engine.StrategyMemo
	WalkWave = engine.StrategyWave
)

// ParseStrategy parses "memo" or "wave"; the empty string selects memo.
func ParseStrategy(name string) (Strategy, error) {
	return engine.ParseStrategy(name)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.logger = log
		}
	}
}

// WithWalker selects the walk strategy.
func WithWalker(s Strategy) Option {
	return func(m *Manager) {
		m.strategy = s
	}
}

// WithMaxConcurrency bounds concurrent module actions when walking with
// WalkWave. Zero means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.maxConcurrency = n
		}
	}
}

// WithObserver registers an observer. It may be given more than once.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}
