package timer

import (
	"fmt"

	"github.com/mcdev12/trialclock/go/internal/segment"
)

// Machine is the segment timer state machine with no clocks attached. Every
// method is a transition: it either applies fully and returns nil, or returns
// an error and leaves the machine exactly as it was. Which clock drivers should
// be armed is derived from State (see armed).
type Machine struct {
	opts Options
	reg  *segment.Registry

	state  State
	active *segment.Segment
	party  segment.Party
	index  int

	banked       int
	pauseElapsed int
	expired      bool
}

// NewMachine creates an idle machine over reg. A zero PartyCount is taken from
// the registry.
func NewMachine(reg *segment.Registry, opts Options) (*Machine, error) {
	if opts.PartyCount == 0 {
		opts.PartyCount = reg.PartyCount()
	}
	if opts.PartyCount != reg.PartyCount() {
		return nil, fmt.Errorf("options declare %d parties, registry has %d", opts.PartyCount, reg.PartyCount())
	}
	return &Machine{
		opts:  opts,
		reg:   reg,
		state: StateIdle,
		index: -1,
	}, nil
}

func (m *Machine) State() State                { return m.state }
func (m *Machine) Options() Options            { return m.opts }
func (m *Machine) Registry() *segment.Registry { return m.reg }
func (m *Machine) Active() *segment.Segment    { return m.active }
func (m *Machine) Party() segment.Party        { return m.party }
func (m *Machine) PauseElapsed() int           { return m.pauseElapsed }
func (m *Machine) Banked() int                 { return m.banked }
func (m *Machine) Expired() bool               { return m.expired }

// Remaining is the active segment's countdown value (0 when idle).
func (m *Machine) Remaining() int {
	if m.active == nil {
		return 0
	}
	return m.active.RemainingOrNominal()
}

// armed reports which clock drivers a state needs. Never both.
func armed(s State) (countdown, pause bool) {
	switch s {
	case StateRunning:
		return true, false
	case StatePaused:
		return false, true
	default:
		return false, false
	}
}

// Select loads the segment id of party, halting any running or paused clock
// first. Valid from every state.
func (m *Machine) Select(party segment.Party, id int64) error {
	seg, idx, ok := m.reg.Find(party, id)
	if !ok {
		return fmt.Errorf("%w: %s/%d", ErrUnknownSegment, party, id)
	}
	m.load(party, idx, seg)
	return nil
}

// SelectIndex loads the segment at position idx of party.
func (m *Machine) SelectIndex(party segment.Party, idx int) error {
	seg, ok := m.reg.At(party, idx)
	if !ok {
		return fmt.Errorf("%w: %s[%d]", ErrUnknownSegment, party, idx)
	}
	m.load(party, idx, seg)
	return nil
}

func (m *Machine) load(party segment.Party, idx int, seg *segment.Segment) {
	m.fullStop()
	m.active = seg
	m.party = party
	m.index = idx
	seg.Load()
	m.state = StateReady
}

// fullStop clears pause bookkeeping and leaves the active segment's banked
// value untouched.
func (m *Machine) fullStop() {
	m.banked = 0
	m.pauseElapsed = 0
	m.expired = false
}

// Start begins or restarts the countdown from the banked value.
func (m *Machine) Start() error {
	switch m.state {
	case StateReady, StateStopped:
	default:
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, m.state)
	}
	if !m.opts.AllowOvertime && m.Remaining() <= 0 {
		return fmt.Errorf("%w: segment has no time left", ErrInvalidTransition)
	}
	m.expired = false
	m.state = StateRunning
	return nil
}

// Tick advances the countdown by one second. It reports whether the tick
// expired the segment, which in bounded mode also stops the countdown.
func (m *Machine) Tick() (expired bool, err error) {
	if m.state != StateRunning {
		return false, fmt.Errorf("%w: tick while %s", ErrInvalidTransition, m.state)
	}

	// Start and Resume never leave a bounded segment running at zero, so the
	// decrement below cannot go negative without overtime.
	remaining := m.Remaining() - 1
	m.active.SetRemaining(remaining)

	if !m.opts.AllowOvertime && remaining == 0 {
		m.expire()
		return true, nil
	}
	return false, nil
}

func (m *Machine) expire() {
	m.fullStop()
	m.expired = true
	m.state = StateStopped
}

// Pause freezes the countdown and starts accounting pause time.
func (m *Machine) Pause() error {
	if m.state != StateRunning {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, m.state)
	}
	m.banked = m.Remaining()
	m.pauseElapsed = 0
	m.state = StatePaused
	return nil
}

// PauseTick counts one second of pause time.
func (m *Machine) PauseTick() error {
	if m.state != StatePaused {
		return fmt.Errorf("%w: pause tick while %s", ErrInvalidTransition, m.state)
	}
	m.pauseElapsed++
	return nil
}

// CanDeductLinked reports whether the active segment has a resolvable link.
func (m *Machine) CanDeductLinked() bool {
	_, ok := m.reg.Linked(m.active)
	return ok
}

// Resume leaves the pause, settles the pause time per policy and restarts the
// countdown. In bounded mode a segment left with no time lands in StateStopped
// as expired rather than running.
func (m *Machine) Resume(policy ResumePolicy) error {
	if m.state != StatePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, m.state)
	}

	switch policy {
	case ResumeDiscard:
		m.active.SetRemaining(m.banked)

	case ResumeDeductSelf:
		m.active.SetRemaining(m.clamp(m.banked - m.pauseElapsed))

	case ResumeDeductLinked:
		linked, ok := m.reg.Linked(m.active)
		if !ok {
			return ErrNoLinkedSegment
		}
		linked.SetRemaining(m.clamp(linked.Load() - m.pauseElapsed))
		m.active.SetRemaining(m.banked)

	default:
		return fmt.Errorf("%w: unknown resume policy %d", ErrInvalidTransition, int(policy))
	}

	m.banked = 0
	m.pauseElapsed = 0
	if !m.opts.AllowOvertime && m.Remaining() <= 0 {
		m.expire()
		return nil
	}
	m.state = StateRunning
	return nil
}

func (m *Machine) clamp(v int) int {
	if !m.opts.AllowOvertime && v < 0 {
		return 0
	}
	return v
}

// Stop halts whichever clock is armed. The banked value is kept and a later
// Start restarts from it.
func (m *Machine) Stop() error {
	switch m.state {
	case StateRunning, StatePaused:
	default:
		return fmt.Errorf("%w: stop from %s", ErrInvalidTransition, m.state)
	}
	m.fullStop()
	m.state = StateStopped
	return nil
}

// HasNext reports whether the active party's list continues past the active segment.
func (m *Machine) HasNext() bool {
	if m.active == nil {
		return m.reg.Len(m.reg.First()) > 0
	}
	return m.index+1 < m.reg.Len(m.party)
}

// Next moves to the following segment of the active party. Before anything is
// selected it loads the first segment.
func (m *Machine) Next() error {
	if m.active == nil {
		return m.SelectIndex(m.reg.First(), 0)
	}
	if !m.HasNext() {
		return ErrNoNextSegment
	}
	return m.SelectIndex(m.party, m.index+1)
}

// SwitchParty selects the segment at the same position in the other party's
// list. Two-party runs only.
func (m *Machine) SwitchParty() error {
	if m.opts.PartyCount < 2 || m.active == nil {
		return fmt.Errorf("%w: switch party", ErrInvalidTransition)
	}
	other := m.party.Opposing()
	n := m.reg.Len(other)
	if n == 0 {
		return fmt.Errorf("%w: %s has no segments", ErrUnknownSegment, other)
	}
	idx := m.index
	if idx >= n {
		idx = n - 1
	}
	return m.SelectIndex(other, idx)
}
