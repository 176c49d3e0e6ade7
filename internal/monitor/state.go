package monitor

// State is the coordinator's lifecycle phase.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}
