package registry_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifetime-go/lifetime/pkg/module"
	"github.com/lifetime-go/lifetime/pkg/registry"
)

func newFunc() (module.Module, error) {
	return module.NewFunc(nil, nil), nil
}

func TestRegister(t *testing.T) {
	r := registry.New()

	require.NoError(t, r.Register("db", newFunc))
	assert.True(t, r.Has("db"))

	err := r.Register("db", newFunc)
	assert.ErrorIs(t, err, registry.ErrDuplicateRegistration)

	err = r.Register("", newFunc)
	assert.ErrorIs(t, err, registry.ErrInvalidRegistration)

	err = r.Register("nil-factory", nil)
	assert.ErrorIs(t, err, registry.ErrInvalidRegistration)

	assert.Panics(t, func() { r.MustRegister("db", newFunc) })
}

func TestTryGet_CachesOneInstancePerRun(t *testing.T) {
	r := registry.New()
	var created atomic.Int32
	r.MustRegister("db", func() (module.Module, error) {
		created.Add(1)
		return module.NewFunc(nil, nil), nil
	})

	var wg sync.WaitGroup
	got := make([]module.Module, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, ok := r.TryGet("db")
			assert.True(t, ok)
			got[i] = m
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	for _, m := range got {
		assert.Same(t, got[0], m)
	}

	cached, ok := r.Cached("db")
	require.True(t, ok)
	assert.Same(t, got[0], cached)

	r.Reset()
	_, ok = r.Cached("db")
	assert.False(t, ok, "reset should drop the cache")

	fresh, ok := r.TryGet("db")
	require.True(t, ok)
	assert.NotSame(t, got[0], fresh)
	assert.Equal(t, int32(2), created.Load())
}

func TestTryGet_Unresolvable(t *testing.T) {
	r := registry.New()
	r.MustRegister("broken", func() (module.Module, error) {
		return nil, errors.New("no config")
	})
	r.MustRegister("nil", func() (module.Module, error) { return nil, nil })

	_, ok := r.TryGet("missing")
	assert.False(t, ok)
	_, ok = r.TryGet("broken")
	assert.False(t, ok)
	_, ok = r.TryGet("nil")
	assert.False(t, ok)
}

func TestCachedNeverInstantiates(t *testing.T) {
	r := registry.New()
	var created atomic.Int32
	r.MustRegister("db", func() (module.Module, error) {
		created.Add(1)
		return module.NewFunc(nil, nil), nil
	})

	_, ok := r.Cached("db")
	assert.False(t, ok)
	assert.Zero(t, created.Load())
}

func TestIDsSorted(t *testing.T) {
	r := registry.New()
	for _, id := range []module.ID{"web", "api", "db"} {
		r.MustRegister(id, newFunc)
	}
	assert.Equal(t, []module.ID{"api", "db", "web"}, r.IDs())
	assert.Equal(t, r.IDs(), r.Candidates())
}
