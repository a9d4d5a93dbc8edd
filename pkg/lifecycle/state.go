package lifecycle

// State is the state of a Manager.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// ModuleState is the state of one module in the current or most recent run.
type ModuleState int

const (
	ModuleUnknown ModuleState = iota
	ModulePending
	ModuleStarting
	ModuleRunning
	ModuleStopping
	ModuleStopped
	ModuleFailed
)

func (s ModuleState) String() string {
	switch s {
	case ModulePending:
		return "pending"
	case ModuleStarting:
		return "starting"
	case ModuleRunning:
		return "running"
	case ModuleStopping:
		return "stopping"
	case ModuleStopped:
		return "stopped"
	case ModuleFailed:
		return "failed"
	}
	return "unknown"
}
