package control

import (
	"fmt"
	"time"
)

// State is the control loop lifecycle state.
type State int32

const (
	Idle State = iota
	Connecting
	Resetting
	Running
	Finalizing
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Resetting:
		return "resetting"
	case Running:
		return "running"
	case Finalizing:
		return "finalizing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Event reports loop progress. Cycle and Action are set while Running.
type Event struct {
	State     State
	Cycle     int
	Records   int
	Action    []float32
	Reward    float32
	Path      string
	Err       error
	Timestamp time.Time
}
