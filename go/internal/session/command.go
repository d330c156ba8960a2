package session

import (
	"errors"
	"fmt"

	"github.com/mcdev12/trialclock/go/internal/segment"
)

// Command names accepted by Run.Apply.
type Command string

const (
	CommandSelect             Command = "select"
	CommandStart              Command = "start"
	CommandPause              Command = "pause"
	CommandResumeDiscard      Command = "resume-discard"
	CommandResumeDeductSelf   Command = "resume-deduct-self"
	CommandResumeDeductLinked Command = "resume-deduct-linked"
	CommandStop               Command = "stop"
	CommandNext               Command = "next"
	CommandSwitchParty        Command = "switch-party"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadTarget      = errors.New("select needs a valid target segment")
)

// Target names a segment for CommandSelect.
type Target struct {
	Party string `json:"party"`
	ID    int64  `json:"id"`
}

// Apply routes a command to the run's engine. Transitions the engine rejects
// come back as timer sentinel errors.
func (r *Run) Apply(cmd Command, target *Target) error {
	e := r.Engine
	switch cmd {
	case CommandSelect:
		if target == nil {
			return ErrBadTarget
		}
		party, err := segment.ParseParty(target.Party)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadTarget, err)
		}
		return e.Select(party, target.ID)
	case CommandStart:
		return e.Start()
	case CommandPause:
		return e.Pause()
	case CommandResumeDiscard:
		return e.ResumeDiscard()
	case CommandResumeDeductSelf:
		return e.ResumeDeductSelf()
	case CommandResumeDeductLinked:
		return e.ResumeDeductLinked()
	case CommandStop:
		return e.Stop()
	case CommandNext:
		return e.Next()
	case CommandSwitchParty:
		return e.SwitchParty()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
}
