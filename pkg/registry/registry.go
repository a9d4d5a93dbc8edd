// Package registry maps module identities to factories and caches the one
// instance per identity that a lifecycle run works with.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lifetime-go/lifetime/pkg/logger"
	"github.com/lifetime-go/lifetime/pkg/module"
)

var (
	// ErrDuplicateRegistration is returned when an identity is registered twice.
	ErrDuplicateRegistration = errors.New("module already registered")
	// ErrInvalidRegistration is returned for an invalid identity or a nil factory.
	ErrInvalidRegistration = errors.New("invalid module registration")
)

// Factory creates a fresh module instance. It is called at most once per
// identity between two calls to Reset.
type Factory func() (module.Module, error)

// Registry is the default resolver and module source of a lifecycle manager.
type Registry struct {
	mu        sync.Mutex
	factories map[module.ID]Factory
	instances map[module.ID]module.Module
	logger    logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report failing factories.
func WithLogger(log logger.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.logger = log
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		factories: make(map[module.ID]Factory),
		instances: make(map[module.ID]module.Module),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a factory for id.
func (r *Registry) Register(id module.ID, factory Factory) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %q is not a valid module identity", ErrInvalidRegistration, id)
	}
	if factory == nil {
		return fmt.Errorf("%w: nil factory for %q", ErrInvalidRegistration, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateRegistration, id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(id module.ID, factory Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// Has reports whether a factory is registered for id.
func (r *Registry) Has(id module.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[id]
	return ok
}

// TryGet returns the cached instance for id, creating it on first use.
// It reports false when id is not registered or its factory fails.
func (r *Registry) TryGet(id module.ID) (module.Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.instances[id]; ok {
		return m, true
	}
	factory, ok := r.factories[id]
	if !ok {
		return nil, false
	}

	// Factories run under the lock so that concurrent declarations never
	// create two instances of one identity.
	m, err := factory()
	if err != nil || m == nil {
		if err == nil {
			err = errors.New("factory returned nil module")
		}
		r.logger.Warn("Module factory failed",
			logger.WithField("id", id.String()),
			logger.WithError(err))
		return nil, false
	}
	r.instances[id] = m
	return m, true
}

// Cached returns the instance for id without creating it.
func (r *Registry) Cached(id module.ID) (module.Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.instances[id]
	return m, ok
}

// Reset drops every cached instance. Registrations are kept.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[module.ID]module.Module)
}

// IDs lists every registered identity in sorted order.
func (r *Registry) IDs() []module.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]module.ID, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Candidates makes the registry a module source covering every registration.
func (r *Registry) Candidates() []module.ID {
	return r.IDs()
}
