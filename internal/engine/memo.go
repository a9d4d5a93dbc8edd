package engine

import (
	"context"
	"sync"

	"github.com/lifetime-go/lifetime/internal/graph"
	"github.com/lifetime-go/lifetime/pkg/logger"
)

type memoWalker[K comparable] struct {
	logger logger.Logger
}

// future is the completion of one node's unit of work.
type future struct {
	done chan struct{}
	err  error
}

func (f *future) wait() error {
	<-f.done
	return f.err
}

// memoWalk is the state of a single memo walk. Units are created on first
// demand and recorded so that a node shared by several dependents runs once.
type memoWalk[K comparable] struct {
	ctx    context.Context
	visit  VisitFunc[K]
	group  *SafeGroup
	logger logger.Logger

	mu    sync.Mutex
	units sync.Map // K -> *future
}

func (w *memoWalker[K]) Walk(ctx context.Context, view *graph.View[K], visit VisitFunc[K]) error {
	if view == nil || view.Len() == 0 {
		return nil
	}

	walk := &memoWalk[K]{
		ctx:    ctx,
		visit:  visit,
		group:  NewSafeGroup(w.logger),
		logger: w.logger,
	}
	for _, n := range view.Nodes() {
		walk.use(n)
	}
	return walk.group.Wait()
}

// use returns the unit for n, launching it if no unit exists yet.
func (w *memoWalk[K]) use(n *graph.Node[K]) *future {
	if f, ok := w.units.Load(n.Key); ok {
		return f.(*future)
	}

	w.mu.Lock()
	if f, ok := w.units.Load(n.Key); ok {
		w.mu.Unlock()
		return f.(*future)
	}
	f := &future{done: make(chan struct{})}
	w.units.Store(n.Key, f)
	w.mu.Unlock()

	w.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
			f.err = err
			close(f.done)
		}()
		return w.run(n)
	})
	return f
}

func (w *memoWalk[K]) run(n *graph.Node[K]) error {
	deps := make([]*future, len(n.Edges))
	for i, e := range n.Edges {
		deps[i] = w.use(e)
	}
	for _, d := range deps {
		if err := d.wait(); err != nil {
			return err
		}
	}
	return visitNode(w.ctx, w.logger, n.Key, w.visit)
}
