package lifecycle

import "github.com/lifetime-go/lifetime/pkg/module"

// Resolver supplies module instances. TryGet may create an instance and
// must return the same one for an identity until Reset. Cached never
// creates anything. *registry.Registry implements Resolver.
type Resolver interface {
	TryGet(id module.ID) (module.Module, bool)
	Cached(id module.ID) (module.Module, bool)
	Reset()
}

// Source yields the candidate modules of a run. Dependencies they declare
// are pulled in even when the source does not list them.
// *registry.Registry is a Source covering every registration.
type Source interface {
	Candidates() []module.ID
}

type idSource []module.ID

func (s idSource) Candidates() []module.ID { return s }

// IDs returns a Source listing exactly ids.
func IDs(ids ...module.ID) Source {
	return idSource(append([]module.ID(nil), ids...))
}
