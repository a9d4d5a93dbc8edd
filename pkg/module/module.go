// Package module defines the contract every lifecycle-managed component
// implements, the per-module dependency declaration context, and a few base
// implementations that cover the common shapes of a module body.
package module

import (
	"context"
	"regexp"
)

// ID is the opaque identity of a module. Exactly one instance exists per ID
// while a run is active.
type ID string

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/@-]*$`)

// Valid reports whether the identity can name a module.
func (id ID) Valid() bool {
	return idPattern.MatchString(string(id))
}

func (id ID) String() string {
	return string(id)
}

//go:generate mockgen -destination=../mocks/mock_module.go -package=mocks github.com/lifetime-go/lifetime/pkg/module Module

// Module is the capability set the lifecycle manager drives.
//
// DeclareDependencies is called once per run, before any module starts, and
// must only call Require on the supplied context. Start is called after every
// declared dependency has started; Stop is called after every module that
// depends on this one has stopped. All three must honor ctx.
type Module interface {
	DeclareDependencies(ctx context.Context, deps DependencyContext) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runner is implemented by modules that know whether they are running.
type Runner interface {
	IsRunning() bool
}

// Restart stops m (when it reports running, or always when it cannot tell)
// and starts it again.
func Restart(ctx context.Context, m Module) error {
	if r, ok := m.(Runner); !ok || r.IsRunning() {
		if err := m.Stop(ctx); err != nil {
			return err
		}
	}
	return m.Start(ctx)
}
