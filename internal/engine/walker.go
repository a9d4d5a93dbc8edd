// Package engine walks a dependency graph view concurrently, visiting each
// node exactly once after every node it has an edge to was visited
// successfully.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/lifetime-go/lifetime/internal/graph"
	"github.com/lifetime-go/lifetime/pkg/logger"
)

// ErrUnknownStrategy is returned by ParseStrategy.
var ErrUnknownStrategy = errors.New("unknown walk strategy")

// Strategy selects how a walk schedules its units of work.
type Strategy string

const (
	// StrategyMemo launches one unit per node on first demand and lets
	// every unit await the units of its edges.
	StrategyMemo Strategy = "memo"
	// StrategyWave counts unfinished edges per node and schedules a node
	// once its count drops to zero.
	StrategyWave Strategy = "wave"
)

// DefaultStrategy is used when none is configured.
const DefaultStrategy = StrategyMemo

// ParseStrategy parses a strategy name. The empty string selects the default.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return DefaultStrategy, nil
	case StrategyMemo:
		return StrategyMemo, nil
	case StrategyWave:
		return StrategyWave, nil
	}
	return "", fmt.Errorf("%w: %q (expected memo or wave)", ErrUnknownStrategy, name)
}

// VisitFunc is the per-node action of a walk.
type VisitFunc[K comparable] func(ctx context.Context, key K) error

// Walker visits every node of a view.
//
// A node is visited only after all nodes in its Edges were visited without
// error. When one of them failed, the node is not visited and fails with the
// same error. Nothing in flight is preempted: Walk returns the first error
// observed only once every started visit has returned. When ctx is done
// before a node's visit starts, the node fails with a *CancelledError.
type Walker[K comparable] interface {
	Walk(ctx context.Context, view *graph.View[K], visit VisitFunc[K]) error
}

// Options configure a Walker.
type Options struct {
	Strategy Strategy
	// MaxConcurrency bounds concurrent visits for the wave strategy.
	// Zero means unbounded. The memo strategy ignores it.
	MaxConcurrency int
	Logger         logger.Logger
}

// New creates a walker for the configured strategy.
func New[K comparable](opts Options) Walker[K] {
	log := orNop(opts.Logger)
	if opts.Strategy == StrategyWave {
		return &waveWalker[K]{maxConcurrency: opts.MaxConcurrency, logger: log}
	}
	return &memoWalker[K]{logger: log}
}

// CancelledError reports a node that was not visited because the walk's
// context was done.
type CancelledError struct {
	Key any
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%v: not started: %v", e.Key, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// visitNode runs visit for key unless ctx is already done, turning a panic
// into a *PanicError.
func visitNode[K comparable](ctx context.Context, log logger.Logger, key K, visit VisitFunc[K]) (err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &CancelledError{Key: key, Err: ctxErr}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Visit panicked",
				logger.WithField("node", fmt.Sprint(key)),
				logger.WithField("panic", r),
				logger.WithField("stack_trace", string(debug.Stack())))
			err = &PanicError{Value: r}
		}
	}()
	return visit(ctx, key)
}
