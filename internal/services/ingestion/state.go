package ingestion

// State is the coordinator lifecycle state
type State int32

// State constants
const (
	StateStarting State = iota
	StateInitializing
	StatePolling
	StateEvaluating
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateInitializing:
		return "initializing"
	case StatePolling:
		return "polling"
	case StateEvaluating:
		return "evaluating"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}
