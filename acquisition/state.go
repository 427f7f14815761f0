package acquisition

import "fmt"

// State is the lifecycle state of a sensor worker.
type State int32

// The four lifecycle states. A sensor is in exactly one of them at any time.
const (
	Initializing State = iota
	Running
	Suspending
	Suspended
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Suspending:
		return "suspending"
	case Suspended:
		return "suspended"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// transitions lists every edge the worker and the control surface can take.
//
//	Initializing -> Running      worker, after programming succeeds
//	Initializing -> Suspending   Stop before programming finished
//	Running      -> Suspending   Stop
//	Running      -> Initializing Start (reprogram with new parameters)
//	Suspending   -> Suspended    worker, after powering down
//	Suspending   -> Initializing Start before the worker observed the Stop
//	Suspended    -> Initializing Start
var transitions = map[State][]State{
	Initializing: {Running, Suspending},
	Running:      {Suspending, Initializing},
	Suspending:   {Suspended, Initializing},
	Suspended:    {Initializing},
}

// ValidTransition reports whether from -> to is an edge of the lifecycle state machine.
// Self-transitions are always valid since Start and Stop are idempotent.
func ValidTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
