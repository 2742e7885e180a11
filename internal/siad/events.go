package siad

import "time"

// State is the controller's view of the daemon lifecycle.
type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateReady
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EventKind names a lifecycle transition.
type EventKind string

const (
	EventStarting    EventKind = "starting"
	EventReady       EventKind = "ready"
	EventExited      EventKind = "exited"
	EventStopped     EventKind = "stopped"
	EventSpawnFailed EventKind = "spawn_failed"
)

// Event is delivered to subscribers on every lifecycle transition.
type Event struct {
	RunID    string
	Kind     EventKind
	State    State
	PID      int
	ExitCode int
	Err      error
	At       time.Time
}

const subscriberBuffer = 16
