package segment

import "fmt"

// Party tags one side of a two-party proceeding. Single-party runs only use PartyLeft.
type Party string

const (
	PartyLeft  Party = "left"
	PartyRight Party = "right"
)

// Opposing returns the other party.
func (p Party) Opposing() Party {
	if p == PartyRight {
		return PartyLeft
	}
	return PartyRight
}

// ParseParty accepts "left"/"right" and treats the empty string as PartyLeft.
func ParseParty(s string) (Party, error) {
	switch Party(s) {
	case "", PartyLeft:
		return PartyLeft, nil
	case PartyRight:
		return PartyRight, nil
	default:
		return "", fmt.Errorf("unknown party %q", s)
	}
}

// Segment is one named, timed phase of the proceeding
type Segment struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Party       Party  `json:"party"`
	Nominal     int    `json:"nominal_sec"`
	NominalText string `json:"time"`
	LinkedID    *int64 `json:"linked,omitempty"`

	// Remaining is nil until the segment is first loaded. After that it is the
	// authoritative countdown value and survives navigation.
	Remaining *int `json:"remaining_sec,omitempty"`
}

// Loaded reports whether the segment has been loaded at least once.
func (s *Segment) Loaded() bool {
	return s.Remaining != nil
}

// Load initializes Remaining from Nominal on first use and returns the banked value.
func (s *Segment) Load() int {
	if s.Remaining == nil {
		v := s.Nominal
		s.Remaining = &v
	}
	return *s.Remaining
}

// SetRemaining writes the countdown value back to the segment.
func (s *Segment) SetRemaining(v int) {
	s.Remaining = &v
}

// RemainingOrNominal is the value a sidebar shows: the banked time, or the
// configured allotment for segments that were never loaded.
func (s *Segment) RemainingOrNominal() int {
	if s.Remaining != nil {
		return *s.Remaining
	}
	return s.Nominal
}
