package engine

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/lifetime-go/lifetime/internal/graph"
	"github.com/lifetime-go/lifetime/pkg/logger"
)

type waveWalker[K comparable] struct {
	maxConcurrency int
	logger         logger.Logger
}

type waveNode struct {
	remaining atomic.Int32
	cause     atomic.Pointer[error]
}

func (w *waveWalker[K]) Walk(ctx context.Context, view *graph.View[K], visit VisitFunc[K]) error {
	if view == nil || view.Len() == 0 {
		return nil
	}

	nodes := view.Nodes()
	state := make([]waveNode, len(nodes))
	waiters := make([][]*graph.Node[K], len(nodes))
	for _, n := range nodes {
		state[n.Index()].remaining.Store(int32(len(n.Edges)))
		for _, e := range n.Edges {
			waiters[e.Index()] = append(waiters[e.Index()], n)
		}
	}

	var sem *semaphore.Weighted
	if w.maxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(w.maxConcurrency))
	}

	group := NewSafeGroup(w.logger)

	var schedule func(n *graph.Node[K])
	schedule = func(n *graph.Node[K]) {
		group.Go(func() error {
			err := w.run(ctx, sem, &state[n.Index()], n.Key, visit)
			for _, waiter := range waiters[n.Index()] {
				s := &state[waiter.Index()]
				if err != nil {
					s.cause.CompareAndSwap(nil, &err)
				}
				if s.remaining.Add(-1) == 0 {
					schedule(waiter)
				}
			}
			return err
		})
	}

	for _, n := range view.Order() {
		if len(n.Edges) == 0 {
			schedule(n)
		}
	}
	return group.Wait()
}

func (w *waveWalker[K]) run(ctx context.Context, sem *semaphore.Weighted, s *waveNode, key K, visit VisitFunc[K]) error {
	if cause := s.cause.Load(); cause != nil {
		return *cause
	}
	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return &CancelledError{Key: key, Err: err}
		}
		defer sem.Release(1)
	}
	return visitNode(ctx, w.logger, key, visit)
}
