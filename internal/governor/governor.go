// Package governor implements the generic governor pattern of
// spec.md §4.4/§4.7: a supervisory subsystem owning one device class,
// its DoubleBuffer, its sockets, and its producer/consumer goroutines.
// Governors have no control-socket reader of their own: cmd/client's
// single control-connection reader requests termination on each
// Lifecycle. Grounded on original_source/src/governors.py's
// SensorGovernor/SpeakerGovernor classes and on the teacher's
// mutex-guarded ServerState pattern (state.go) for the state machine.
package governor

import (
	"sync/atomic"
)

// State is one of the five governor lifecycle states (spec.md §4.7).
type State int32

const (
	StateInit State = iota
	StateReady
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateDraining:
		return "DRAINING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Lifecycle tracks a governor's state machine and termination flag. The
// termination flag is the only cross-thread shared primitive per
// governor (spec.md §9): written by the termination listener only, read
// by the producer and consumer.
type Lifecycle struct {
	state    atomic.Int32
	termFlag atomic.Bool
}

// NewLifecycle builds a Lifecycle starting in INIT.
func NewLifecycle() *Lifecycle {
	l := &Lifecycle{}
	l.state.Store(int32(StateInit))
	return l
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// SetState transitions to s. Callers are responsible for only making
// transitions valid per spec.md §4.7; this type does not itself enforce
// the transition graph, matching the teacher's plain mutex-guarded
// fields rather than a generated state machine.
func (l *Lifecycle) SetState(s State) {
	l.state.Store(int32(s))
}

// RequestTermination sets the termination flag. Only the termination
// listener goroutine should call this.
func (l *Lifecycle) RequestTermination() {
	l.termFlag.Store(true)
}

// TerminationRequested reports whether termination has been requested.
func (l *Lifecycle) TerminationRequested() bool {
	return l.termFlag.Load()
}
