package timer

import "github.com/mcdev12/trialclock/go/internal/segment"

// Tier is the colour/urgency band of the main display.
type Tier string

const (
	TierNormal   Tier = "normal"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
	TierOvertime Tier = "overtime"
	TierPaused   Tier = "paused"
)

// TierFor derives the urgency band from a remaining-time value. Any negative
// value is overtime, whatever its magnitude.
func TierFor(remaining int) Tier {
	switch {
	case remaining < 0:
		return TierOvertime
	case remaining <= 10:
		return TierCritical
	case remaining <= 30:
		return TierWarning
	default:
		return TierNormal
	}
}

// Affordance is a control the moderator may use in the current state.
type Affordance string

const (
	AffordStart              Affordance = "start"
	AffordRestart            Affordance = "restart"
	AffordPause              Affordance = "pause"
	AffordStop               Affordance = "stop"
	AffordNext               Affordance = "next"
	AffordAdvance            Affordance = "advance"
	AffordResumeDiscard      Affordance = "resume_discard"
	AffordResumeDeductSelf   Affordance = "resume_deduct_self"
	AffordResumeDeductLinked Affordance = "resume_deduct_linked"
	AffordSwitchParty        Affordance = "switch_party"
)

// RenderState is everything a render sink needs to draw the timer.
type RenderState struct {
	State        State         `json:"state"`
	Party        segment.Party `json:"party,omitempty"`
	PartyName    string        `json:"party_name,omitempty"`
	Active       *ActiveView   `json:"active,omitempty"`
	Display      Display       `json:"display"`
	Banked       *Display      `json:"banked,omitempty"`
	PauseElapsed int           `json:"pause_elapsed_sec"`
	Tier         Tier          `json:"tier"`
	Expired      bool          `json:"expired"`
	Overtime     bool          `json:"allow_overtime"`
	Affordances  []Affordance  `json:"affordances"`
	Segments     []SegmentView `json:"segments"`
}

// ActiveView identifies the active segment and its link.
type ActiveView struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	LinkedID   *int64 `json:"linked_id,omitempty"`
	LinkedName string `json:"linked_name,omitempty"`
}

// Display is a clock value ready to print.
type Display struct {
	Label    string `json:"label"`
	Text     string `json:"text"`
	Seconds  int    `json:"seconds"`
	Overtime bool   `json:"overtime"`
}

// SegmentView is one sidebar entry.
type SegmentView struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Party     segment.Party `json:"party"`
	Time      string        `json:"time"`
	Remaining Display       `json:"remaining"`
	Linked    bool          `json:"linked"`
	Active    bool          `json:"active"`
	Completed bool          `json:"completed"`
}

// Has reports whether a is among the state's affordances.
func (r RenderState) Has(a Affordance) bool {
	for _, x := range r.Affordances {
		if x == a {
			return true
		}
	}
	return false
}

func clockDisplay(label string, seconds int) Display {
	return Display{
		Label:    label,
		Text:     segment.FormatClock(seconds),
		Seconds:  seconds,
		Overtime: seconds < 0,
	}
}

// Render derives the full render state. Tier and affordances are computed here
// from the current values, so every transition that changes remaining time
// recolours immediately.
func (m *Machine) Render() RenderState {
	rs := RenderState{
		State:        m.state,
		Party:        m.party,
		PartyName:    m.reg.PartyName(m.party),
		PauseElapsed: m.pauseElapsed,
		Expired:      m.expired,
		Overtime:     m.opts.AllowOvertime,
		Affordances:  m.affordances(),
		Segments:     m.segmentViews(),
	}

	if m.active == nil {
		rs.Display = clockDisplay("Select a segment", 0)
		rs.Tier = TierNormal
		return rs
	}

	rs.Active = &ActiveView{ID: m.active.ID, Name: m.active.Name}
	if linked, ok := m.reg.Linked(m.active); ok {
		id := linked.ID
		rs.Active.LinkedID = &id
		rs.Active.LinkedName = linked.Name
	}

	switch m.state {
	case StatePaused:
		rs.Display = clockDisplay("Time Paused", m.pauseElapsed)
		banked := clockDisplay("Time Remaining", m.banked)
		rs.Banked = &banked
		rs.Tier = TierPaused
	case StateStopped:
		rs.Display = clockDisplay("Stopped", m.Remaining())
		rs.Tier = TierFor(m.Remaining())
	default:
		rs.Display = clockDisplay("Time Remaining", m.Remaining())
		rs.Tier = TierFor(m.Remaining())
	}
	return rs
}

func (m *Machine) affordances() []Affordance {
	var out []Affordance
	switch m.state {
	case StateIdle:
		if m.HasNext() {
			out = append(out, AffordNext)
		}
		return out
	case StateReady:
		if m.opts.AllowOvertime || m.Remaining() > 0 {
			out = append(out, AffordStart)
		}
	case StateRunning:
		out = append(out, AffordPause, AffordStop)
	case StatePaused:
		out = append(out, AffordResumeDeductSelf)
		if m.CanDeductLinked() {
			out = append(out, AffordResumeDeductLinked)
		}
		out = append(out, AffordResumeDiscard, AffordStop)
	case StateStopped:
		if m.opts.AllowOvertime || m.Remaining() > 0 {
			out = append(out, AffordRestart)
		}
		if m.expired && m.HasNext() {
			out = append(out, AffordAdvance)
		}
	}
	if m.HasNext() {
		out = append(out, AffordNext)
	}
	if m.opts.PartyCount > 1 {
		out = append(out, AffordSwitchParty)
	}
	return out
}

func (m *Machine) segmentViews() []SegmentView {
	var views []SegmentView
	for _, party := range m.reg.Parties() {
		for _, seg := range m.reg.List(party) {
			_, linked := m.reg.Linked(seg)
			remaining := seg.RemainingOrNominal()
			views = append(views, SegmentView{
				ID:        seg.ID,
				Name:      seg.Name,
				Party:     party,
				Time:      seg.NominalText,
				Remaining: clockDisplay("", remaining),
				Linked:    linked,
				Active:    seg == m.active,
				Completed: seg.Loaded() && remaining == 0,
			})
		}
	}
	return views
}
