package module

import "sync"

// DependencyContext collects the identities one module requires.
type DependencyContext interface {
	Require(id ID) error
}

// Declaration is the DependencyContext handed to a single module during the
// declaration phase. It records requirements in declaration order and keeps
// the first violation so that a module ignoring Require's error still fails.
type Declaration struct {
	owner ID

	mu   sync.Mutex
	seen map[ID]struct{}
	deps []ID
	err  error
}

// NewDeclaration creates an empty declaration for the module named owner.
func NewDeclaration(owner ID) *Declaration {
	return &Declaration{
		owner: owner,
		seen:  make(map[ID]struct{}),
	}
}

// Owner returns the identity of the declaring module.
func (d *Declaration) Owner() ID {
	return d.owner
}

// Require records a dependency on id.
func (d *Declaration) Require(id ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var reason string
	switch {
	case !id.Valid():
		reason = "not a valid module identity"
	case id == d.owner:
		reason = "a module cannot depend on itself"
	default:
		if _, dup := d.seen[id]; dup {
			reason = "already required"
		}
	}
	if reason != "" {
		err := &DeclarationError{Module: d.owner, Dependency: id, Reason: reason}
		if d.err == nil {
			d.err = err
		}
		return err
	}

	d.seen[id] = struct{}{}
	d.deps = append(d.deps, id)
	return nil
}

// Dependencies returns a copy of the required identities in declaration order.
func (d *Declaration) Dependencies() []ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ID, len(d.deps))
	copy(out, d.deps)
	return out
}

// Err returns the first rejected requirement, if any.
func (d *Declaration) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}
