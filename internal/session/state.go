package session

import "sync/atomic"

// State is the lifecycle stage of a session. Closed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type atomicState struct {
	v atomic.Int32
}

func (a *atomicState) Load() State {
	return State(a.v.Load())
}

// advance moves to next unless the state is already past it.
func (a *atomicState) advance(next State) bool {
	for {
		cur := a.v.Load()
		if State(cur) >= next {
			return false
		}
		if a.v.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}
