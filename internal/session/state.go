package session

import (
	"errors"
	"fmt"

	"github.com/lehigh-university-libraries/pagescan/internal/upload"
)

// State of a capture session. A session is in exactly one state at a time.
type State int

const (
	Idle State = iota
	Acquiring
	Live
	Reviewing
	Packaging
	Sending
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case Live:
		return "live"
	case Reviewing:
		return "reviewing"
	case Packaging:
		return "packaging"
	case Sending:
		return "sending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Submitting reports whether a submission is in flight
func (s State) Submitting() bool {
	return s == Packaging || s == Sending
}

var transitions = map[State][]State{
	Idle:      {Acquiring, Packaging},
	Acquiring: {Live, Idle},
	Live:      {Reviewing, Packaging},
	Reviewing: {Acquiring, Packaging},
	Packaging: {Sending, Failed},
	Sending:   {Succeeded, Failed},
	Succeeded: {Acquiring, Packaging, Idle},
	Failed:    {Acquiring, Packaging},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	// ErrBusy rejects a trigger while another operation is outstanding
	ErrBusy = errors.New("session is busy")
	// ErrNoPages rejects finishing an empty document
	ErrNoPages = errors.New("no pages captured")
	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("session is closed")
	// ErrIllegalTransition matches any TransitionError
	ErrIllegalTransition = errors.New("illegal state transition")
)

// TransitionError reports an operation that is not legal in the current state
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrIllegalTransition }

func stateForPhase(p upload.Phase) (State, bool) {
	switch p {
	case upload.PhasePackaging:
		return Packaging, true
	case upload.PhaseSending:
		return Sending, true
	case upload.PhaseSucceeded:
		return Succeeded, true
	case upload.PhaseFailed:
		return Failed, true
	default:
		return 0, false
	}
}
