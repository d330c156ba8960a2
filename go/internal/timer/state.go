package timer

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of the active segment's countdown.
type State int

const (
	StateIdle    State = iota // nothing loaded yet
	StateReady                // loaded, countdown not running
	StateRunning              // countdown ticking
	StatePaused               // countdown frozen, pause-elapsed ticking
	StateStopped              // halted by the moderator or by expiry
)

var stateNames = map[State]string{
	StateIdle:    "idle",
	StateReady:   "ready",
	StateRunning: "running",
	StatePaused:  "paused",
	StateStopped: "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText lets State render as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Transitions that do not apply to the current state are rejected with one of
// these and leave the engine untouched.
var (
	ErrInvalidTransition = errors.New("transition not valid in current state")
	ErrNoLinkedSegment   = errors.New("active segment has no linked segment")
	ErrUnknownSegment    = errors.New("unknown segment")
	ErrNoNextSegment     = errors.New("no next segment")
	ErrClosed            = errors.New("engine closed")
)

// IsIgnored reports whether err is a rejected transition rather than a fault.
func IsIgnored(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNoLinkedSegment) ||
		errors.Is(err, ErrUnknownSegment) ||
		errors.Is(err, ErrNoNextSegment) ||
		errors.Is(err, ErrClosed)
}

// Options selects the operating mode of an engine.
type Options struct {
	// AllowOvertime lets the countdown run past zero into negative time.
	// When false the countdown floors at zero and stops itself there.
	AllowOvertime bool `json:"allow_overtime" yaml:"allow_overtime"`
	// PartyCount is 1 or 2.
	PartyCount int `json:"party_count" yaml:"party_count"`
}

// Resume policies applied to the pause-elapsed time when leaving StatePaused.
type ResumePolicy int

const (
	ResumeDiscard ResumePolicy = iota
	ResumeDeductSelf
	ResumeDeductLinked
)

func (p ResumePolicy) String() string {
	switch p {
	case ResumeDiscard:
		return "discard"
	case ResumeDeductSelf:
		return "deduct_self"
	case ResumeDeductLinked:
		return "deduct_linked"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}
