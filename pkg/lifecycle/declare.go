package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/lifetime-go/lifetime/internal/engine"
	"github.com/lifetime-go/lifetime/internal/graph"
	"github.com/lifetime-go/lifetime/pkg/logger"
	"github.com/lifetime-go/lifetime/pkg/module"
)

// prepare discovers the candidates of source, runs the declaration phase
// and builds the graph. Dependencies outside the candidate set are resolved
// and declared in further rounds until the set is closed.
func (m *Manager) prepare(ctx context.Context, source Source, log logger.Logger) (*graph.Graph[module.ID], error) {
	known := make(map[module.ID]module.Module)
	var keys []module.ID

	for _, id := range source.Candidates() {
		if _, dup := known[id]; dup {
			continue
		}
		if !id.Valid() {
			log.Debug("Skipping candidate with invalid identity", logger.WithField("candidate", string(id)))
			continue
		}
		mod, ok := m.resolver.TryGet(id)
		if !ok {
			log.Debug("Skipping candidate the resolver cannot supply", logger.WithField("candidate", string(id)))
			continue
		}
		known[id] = mod
		keys = append(keys, id)
	}

	deps := make(map[module.ID][]module.ID, len(keys))
	frontier := keys
	for len(frontier) > 0 {
		if err := m.declare(ctx, frontier, known, deps); err != nil {
			return nil, err
		}

		var next []module.ID
		for _, id := range frontier {
			for _, dep := range deps[id] {
				if _, ok := known[dep]; ok {
					continue
				}
				mod, ok := m.resolver.TryGet(dep)
				if !ok {
					return nil, &UnresolvableError{Module: id, Dependency: dep}
				}
				log.Debug("Pulled in dependency",
					logger.WithField("dependency", string(dep)),
					logger.WithField("required_by", string(id)))
				known[dep] = mod
				keys = append(keys, dep)
				next = append(next, dep)
			}
		}
		frontier = next
	}

	g, err := graph.Build(keys, func(id module.ID) []module.ID { return deps[id] })
	if err != nil {
		return nil, graphError(err)
	}

	for _, id := range keys {
		m.setModuleState(id, ModulePending)
	}
	return g, nil
}

// declare runs DeclareDependencies of every module in ids concurrently,
// each against its own Declaration.
func (m *Manager) declare(ctx context.Context, ids []module.ID, known map[module.ID]module.Module, deps map[module.ID][]module.ID) error {
	var mu sync.Mutex
	group := engine.NewSafeGroup(m.logger)

	for _, id := range ids {
		mod := known[id]
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return &CancelledError{Module: id, Phase: PhaseDeclare, Err: err}
			}

			decl := module.NewDeclaration(id)
			if err := declareSafely(ctx, mod, decl); err != nil {
				return declarationError(id, err)
			}
			if err := decl.Err(); err != nil {
				return err
			}

			mu.Lock()
			deps[id] = decl.Dependencies()
			mu.Unlock()
			return nil
		})
	}
	return group.Wait()
}

func declareSafely(ctx context.Context, mod module.Module, decl *module.Declaration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &engine.PanicError{Value: r}
		}
	}()
	return mod.DeclareDependencies(ctx, decl)
}

func declarationError(id module.ID, err error) error {
	switch {
	case errors.Is(err, ErrInvalidDependencyDeclaration):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &CancelledError{Module: id, Phase: PhaseDeclare, Err: err}
	}
	return &ActionError{Module: id, Phase: PhaseDeclare, Err: err}
}

func graphError(err error) error {
	var gerr *graph.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch {
	case errors.Is(err, graph.ErrCycle):
		path := make([]module.ID, len(gerr.Path))
		for i, name := range gerr.Path {
			path[i] = module.ID(name)
		}
		return &CycleError{Path: path}
	case errors.Is(err, graph.ErrUnresolvable):
		return errors.Join(ErrUnresolvableDependency, err)
	}
	return errors.Join(ErrInvalidDependencyDeclaration, err)
}

// Plan describes the graph a Start would walk.
type Plan struct {
	// Order lists modules dependencies first.
	Order []module.ID
	// Waves groups modules by depth; a module only depends on modules in
	// earlier waves, so each wave may start concurrently.
	Waves [][]module.ID
	// Dependencies maps every module to its declared dependencies.
	Dependencies map[module.ID][]module.ID
}

// Plan runs discovery, declaration and graph construction for source
// without starting anything. It needs an idle manager, holds it in the
// starting state meanwhile, and always drops the instances it created.
func (m *Manager) Plan(ctx context.Context, source Source) (*Plan, error) {
	runID, err := m.begin(StateIdle, StateStarting, ErrAlreadyRunning)
	if err != nil {
		return nil, err
	}
	defer m.finish(StateIdle, nil)

	ctx = m.runContext(ctx, runID, "plan")
	g, err := m.prepare(ctx, source, logger.WithContext(ctx, m.logger))
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Order:        g.Order(),
		Waves:        g.Waves(),
		Dependencies: make(map[module.ID][]module.ID, g.Len()),
	}
	for _, id := range g.Keys() {
		p.Dependencies[id] = g.Dependencies(id)
	}
	return p, nil
}
