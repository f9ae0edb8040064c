package batch

// State is the orchestrator lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateStopped
)

func (state State) String() string {
	switch state {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

type EventKind int

const (
	EventProgress EventKind = iota
	EventResult
	EventCompleted
	EventStopped
)

func (kind EventKind) String() string {
	switch kind {
	case EventProgress:
		return "progress"
	case EventResult:
		return "result"
	case EventCompleted:
		return "completed"
	default:
		return "stopped"
	}
}

// Terminal reports whether the event ends its run.
func (kind EventKind) Terminal() bool {
	return kind == EventCompleted || kind == EventStopped
}

// Event is published by the worker and delivered to listeners after the
// orchestrator state reflects it. Index is zero-based.
type Event struct {
	Kind    EventKind
	RunID   string
	Index   int
	Total   int
	Preview string
	Record  *Record
	Stats   Stats
}

// Listener receives events in publication order on the dispatcher goroutine.
type Listener func(Event)
