package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lifetime-go/lifetime/pkg/module"
)

// Error kinds. Every failed Start or Shutdown matches exactly one of the
// first five with errors.Is.
var (
	ErrInvalidDependencyDeclaration = module.ErrInvalidDependencyDeclaration
	ErrUnresolvableDependency       = errors.New("unresolvable dependency")
	ErrCyclicDependency             = errors.New("cyclic dependency")
	ErrActionFailure                = errors.New("module action failed")
	ErrCancelled                    = errors.New("lifecycle operation cancelled")

	ErrAlreadyRunning = errors.New("lifecycle already started")
	ErrNotRunning     = errors.New("lifecycle not running")
)

// Phase names the module action an error or event belongs to.
type Phase string

const (
	PhaseDeclare Phase = "declare"
	PhaseStart   Phase = "start"
	PhaseStop    Phase = "stop"
)

// ActionError wraps an error returned (or a panic raised) by a module body.
type ActionError struct {
	Module module.ID
	Phase  Phase
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s of module %q failed: %v", e.Phase, e.Module, e.Err)
}

func (e *ActionError) Is(target error) bool { return target == ErrActionFailure }

func (e *ActionError) Unwrap() error { return e.Err }

// CancelledError reports a module action that was cancelled or never ran
// because the operation's context was done.
type CancelledError struct {
	Module module.ID
	Phase  Phase
	Err    error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s of module %q cancelled: %v", e.Phase, e.Module, e.Err)
}

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

func (e *CancelledError) Unwrap() error { return e.Err }

// UnresolvableError reports a declared dependency the resolver cannot supply.
type UnresolvableError struct {
	Module     module.ID
	Dependency module.ID
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("%s: module %q requires %q", ErrUnresolvableDependency, e.Module, e.Dependency)
}

func (e *UnresolvableError) Unwrap() error { return ErrUnresolvableDependency }

// CycleError reports a dependency cycle. Path starts and ends with the same
// module.
type CycleError struct {
	Path []module.ID
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Path))
	for i, id := range e.Path {
		names[i] = string(id)
	}
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(names, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicDependency }
