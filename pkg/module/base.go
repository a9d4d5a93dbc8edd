package module

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Base implements Module with a static dependency list and no-op bodies.
// Embed it and override Start or Stop as needed.
type Base struct {
	requires []ID
}

// Requires appends static dependencies declared on every run.
func (b *Base) Requires(ids ...ID) {
	b.requires = append(b.requires, ids...)
}

// DeclareDependencies requires every identity passed to Requires.
func (b *Base) DeclareDependencies(ctx context.Context, deps DependencyContext) error {
	for _, id := range b.requires {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := deps.Require(id); err != nil {
			return err
		}
	}
	return nil
}

// Start does nothing.
func (b *Base) Start(ctx context.Context) error { return nil }

// Stop does nothing.
func (b *Base) Stop(ctx context.Context) error { return nil }

// Func adapts plain functions to Module. Nil hooks are no-ops.
type Func struct {
	Base
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// NewFunc builds a Func module depending on requires.
func NewFunc(onStart, onStop func(ctx context.Context) error, requires ...ID) *Func {
	f := &Func{OnStart: onStart, OnStop: onStop}
	f.Requires(requires...)
	return f
}

func (f *Func) Start(ctx context.Context) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx)
}

func (f *Func) Stop(ctx context.Context) error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop(ctx)
}

// Lifetime runs a long-lived loop between Start and Stop. Start launches the
// loop and returns immediately; Stop cancels the loop and waits for it.
// A loop that ends because its context was cancelled is not an error; any
// other error it returns is surfaced from Stop.
type Lifetime struct {
	Base
	run func(ctx context.Context) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewLifetime creates a Lifetime module around run.
func NewLifetime(run func(ctx context.Context) error, requires ...ID) *Lifetime {
	l := &Lifetime{run: run}
	l.Requires(requires...)
	return l
}

// Start launches the loop. The loop keeps the values of ctx but not its
// cancellation: it lives until Stop.
func (l *Lifetime) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return fmt.Errorf("lifetime loop already running")
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.err = nil

	go func() {
		defer close(done)
		err := l.runSafely(loopCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			l.mu.Lock()
			l.err = err
			l.mu.Unlock()
		}
	}()
	return nil
}

func (l *Lifetime) runSafely(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lifetime loop panic: %v", r)
		}
	}()
	if l.run == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return l.run(ctx)
}

// Stop cancels the loop and waits for it to return or for ctx to be done.
func (l *Lifetime) Stop(ctx context.Context) error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if done == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.err
	l.cancel, l.done, l.err = nil, nil, nil
	return err
}

// IsRunning reports whether the loop has been started and not yet stopped.
func (l *Lifetime) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done != nil
}
