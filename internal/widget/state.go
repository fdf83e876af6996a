package widget

import (
	"fmt"
)

// Phase is the lifecycle stage of a widget session.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseAuthenticating
	PhaseRestoring
	PhaseCreating
	PhaseActive
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseRestoring:
		return "restoring"
	case PhaseCreating:
		return "creating"
	case PhaseActive:
		return "active"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is the session lifecycle state. SessionID is set for Restoring and
// Active, Reason for Failed.
type State struct {
	Phase     Phase  `json:"phase"`
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func Uninitialized() State { return State{Phase: PhaseUninitialized} }
func Authenticating() State { return State{Phase: PhaseAuthenticating} }
func Restoring(sessionID string) State { return State{Phase: PhaseRestoring, SessionID: sessionID} }
func Creating() State { return State{Phase: PhaseCreating} }
func Active(sessionID string) State { return State{Phase: PhaseActive, SessionID: sessionID} }
func Failed(reason string) State { return State{Phase: PhaseFailed, Reason: reason} }

func (s State) String() string {
	switch s.Phase {
	case PhaseRestoring, PhaseActive:
		return fmt.Sprintf("%s(%s)", s.Phase, s.SessionID)
	case PhaseFailed:
		return fmt.Sprintf("%s(%s)", s.Phase, s.Reason)
	default:
		return s.Phase.String()
	}
}

// transitions lists the phases reachable from each phase. Authenticating may
// jump straight to Active when an existing conversation is discovered, and
// Active returns to Uninitialized when its stored session expires.
var transitions = map[Phase][]Phase{
	PhaseUninitialized:  {PhaseAuthenticating},
	PhaseAuthenticating: {PhaseRestoring, PhaseCreating, PhaseActive, PhaseFailed},
	PhaseRestoring:      {PhaseActive, PhaseCreating, PhaseFailed},
	PhaseCreating:       {PhaseActive, PhaseFailed},
	PhaseActive:         {PhaseUninitialized},
	PhaseFailed:         {},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

func validate(next State) error {
	switch next.Phase {
	case PhaseRestoring, PhaseActive:
		if next.SessionID == "" {
			return fmt.Errorf("%w: %s requires a session id", ErrInvalidTransition, next.Phase)
		}
	}
	return nil
}
