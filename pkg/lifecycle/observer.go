package lifecycle

import (
	"time"

	"github.com/lifetime-go/lifetime/pkg/module"
)

// EventKind classifies an Event.
type EventKind int

const (
	EventRunStarting EventKind = iota
	EventRunStarted
	EventRunStopping
	EventRunStopped
	EventRunFailed
	EventModuleStarted
	EventModuleStopped
	EventModuleFailed
)

func (k EventKind) String() string {
	switch k {
	case EventRunStarting:
		return "run-starting"
	case EventRunStarted:
		return "run-started"
	case EventRunStopping:
		return "run-stopping"
	case EventRunStopped:
		return "run-stopped"
	case EventRunFailed:
		return "run-failed"
	case EventModuleStarted:
		return "module-started"
	case EventModuleStopped:
		return "module-stopped"
	case EventModuleFailed:
		return "module-failed"
	}
	return "unknown"
}

// IsRun reports whether the event concerns a whole run rather than a module.
func (k EventKind) IsRun() bool {
	return k <= EventRunFailed
}

// Event is emitted on run and module transitions. Module is empty for run
// events; Duration is the time the action or run took.
type Event struct {
	RunID    string
	Phase    Phase
	Module   module.ID
	Kind     EventKind
	Err      error
	Duration time.Duration
}

// Observer receives events. Module events are delivered from the goroutine
// that ran the action, so Observe must be safe for concurrent use and
// should return quickly.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
