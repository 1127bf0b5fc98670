package engine

import (
	"sync/atomic"
)

// State captures the run state of the engine: Idle, Running, or Shutdown.
type State uint32

const (
	// Idle is the initial state: the engine is constructed or reset and
	// rounds are not being driven.
	Idle State = iota
	// Running means the loop drives one round per cycle.
	Running
	// Shutdown is terminal.
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}
