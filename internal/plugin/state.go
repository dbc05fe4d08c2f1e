package plugin

import "sync/atomic"

// State represents the lifecycle state of a managed plugin.
type State int32

const (
	// StateUninitialized - constructed, Init not yet called.
	StateUninitialized State = iota
	// StateInitialized - Init succeeded.
	StateInitialized
	// StateStarted - Start succeeded, actions may run.
	StateStarted
	// StateStopped - Stop was called.
	StateStopped
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Lifecycle tracks a plugin's State. Embed it to get State and IsReady.
// The zero value is StateUninitialized.
type Lifecycle struct {
	state atomic.Int32
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// Transition moves from one state to another. Returns false and leaves the
// state unchanged if the current state is not from.
func (l *Lifecycle) Transition(from, to State) bool {
	return l.state.CompareAndSwap(int32(from), int32(to))
}

// Set forces the state.
func (l *Lifecycle) Set(s State) {
	l.state.Store(int32(s))
}

// IsReady reports whether the plugin has been initialized and not stopped.
func (l *Lifecycle) IsReady() bool {
	s := l.State()
	return s == StateInitialized || s == StateStarted
}
