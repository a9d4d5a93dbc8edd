package module

import (
	"errors"
	"fmt"
)

// ErrInvalidDependencyDeclaration is returned when a module requires an
// invalid identity, itself, or the same identity twice.
var ErrInvalidDependencyDeclaration = errors.New("invalid dependency declaration")

// DeclarationError describes a rejected Require call.
type DeclarationError struct {
	Module     ID
	Dependency ID
	Reason     string
}

func (e *DeclarationError) Error() string {
	return fmt.Sprintf("%s: module %q requiring %q: %s",
		ErrInvalidDependencyDeclaration, e.Module, e.Dependency, e.Reason)
}

func (e *DeclarationError) Unwrap() error { return ErrInvalidDependencyDeclaration }
