// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

// State is the lifecycle position of a Session.
//
//	Created -> Running -> Completed
//	                   -> Terminated -> Killed
type State int

const (
	StateCreated State = iota
	StateRunning
	StateCompleted
	StateTerminated
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTerminated:
		return "terminated"
	case StateKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible from s, apart
// from Terminated escalating to Killed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateTerminated || s == StateKilled
}

// canTransition encodes the allowed edges of the state machine.
func canTransition(from, to State) bool {
	switch from {
	case StateCreated:
		return to == StateRunning
	case StateRunning:
		return to == StateCompleted || to == StateTerminated
	case StateTerminated:
		return to == StateKilled
	default:
		return false
	}
}
