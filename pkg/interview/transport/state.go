// Package transport connects an interview to the remote agent.
//
// Streaming is the low-latency path over a persistent realtime connection.
// Fallback is the turn-based HTTP path used when streaming is unavailable
// or fails. Arbiter decides which one is authoritative.
package transport

import (
	"fmt"
	"sync"
)

// State is the connection state of a session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreamingActive
	// StateDegraded means the fallback transport is authoritative.
	StateDegraded
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreamingActive:
		return "streaming_active"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Kind names a transport.
type Kind string

const (
	KindNone      Kind = ""
	KindStreaming Kind = "streaming"
	KindFallback  Kind = "fallback"
)

// Arbiter tracks which transport is authoritative. The switch from
// streaming to fallback happens at most once.
type Arbiter struct {
	mu       sync.Mutex
	state    State
	switched bool
}

// NewArbiter returns an idle Arbiter.
func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// State returns the current state.
func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Active returns the authoritative transport.
func (a *Arbiter) Active() Kind {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case StateStreamingActive:
		return KindStreaming
	case StateDegraded:
		return KindFallback
	default:
		return KindNone
	}
}

// Connecting moves an idle arbiter to connecting.
func (a *Arbiter) Connecting() bool {
	return a.transition(StateIdle, StateConnecting)
}

// Connected marks the streaming transport authoritative.
func (a *Arbiter) Connected() bool {
	return a.transition(StateConnecting, StateStreamingActive)
}

// Degrade hands authority to the fallback transport. It reports true only
// the first time; later calls and calls after Close are no-ops.
func (a *Arbiter) Degrade() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.switched || a.state == StateClosed {
		return false
	}
	a.switched = true
	a.state = StateDegraded
	return true
}

// Close moves the arbiter to closed. It reports whether it was open.
func (a *Arbiter) Close() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateClosed {
		return false
	}
	a.state = StateClosed
	return true
}

func (a *Arbiter) transition(from, to State) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != from {
		return false
	}
	a.state = to
	return true
}
