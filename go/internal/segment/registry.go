package segment

import (
	"errors"
	"fmt"
)

var (
	ErrNoParties     = errors.New("registry needs one or two parties")
	ErrDuplicateID   = errors.New("duplicate segment id")
	ErrPartyConflict = errors.New("party listed twice")
)

// Roster is one party's ordered segment list as handed over by setup.
type Roster struct {
	Party    Party
	Name     string
	Segments []*Segment
}

// Registry holds the ordered segment lists for a run. It is built once and the
// Engine is the only writer of Segment.Remaining afterwards.
type Registry struct {
	order   []Party
	names   map[Party]string
	lists   map[Party][]*Segment
	byID    map[Party]map[int64]int
	twoSide bool
}

// NewRegistry builds a registry from one roster (single-party) or two
// (two-party, links resolve across to the opposing roster).
func NewRegistry(rosters ...Roster) (*Registry, error) {
	if len(rosters) == 0 || len(rosters) > 2 {
		return nil, ErrNoParties
	}

	r := &Registry{
		names:   make(map[Party]string, len(rosters)),
		lists:   make(map[Party][]*Segment, len(rosters)),
		byID:    make(map[Party]map[int64]int, len(rosters)),
		twoSide: len(rosters) == 2,
	}

	for _, roster := range rosters {
		if _, exists := r.lists[roster.Party]; exists {
			return nil, fmt.Errorf("%w: %s", ErrPartyConflict, roster.Party)
		}
		index := make(map[int64]int, len(roster.Segments))
		for i, seg := range roster.Segments {
			if _, dup := index[seg.ID]; dup {
				return nil, fmt.Errorf("%w: %d in %s", ErrDuplicateID, seg.ID, roster.Party)
			}
			seg.Party = roster.Party
			index[seg.ID] = i
		}
		r.order = append(r.order, roster.Party)
		r.names[roster.Party] = roster.Name
		r.lists[roster.Party] = roster.Segments
		r.byID[roster.Party] = index
	}

	return r, nil
}

// Parties returns the parties in roster order.
func (r *Registry) Parties() []Party {
	out := make([]Party, len(r.order))
	copy(out, r.order)
	return out
}

// PartyCount is 1 or 2.
func (r *Registry) PartyCount() int {
	return len(r.order)
}

// PartyName is the display name of a party ("" when unknown).
func (r *Registry) PartyName(p Party) string {
	return r.names[p]
}

// First returns the party whose list navigation starts in.
func (r *Registry) First() Party {
	return r.order[0]
}

// HasParty reports whether the registry carries a list for p.
func (r *Registry) HasParty(p Party) bool {
	_, ok := r.lists[p]
	return ok
}

// List returns the ordered segments of a party. The slice is shared.
func (r *Registry) List(p Party) []*Segment {
	return r.lists[p]
}

// Len is the number of segments in a party's list.
func (r *Registry) Len(p Party) int {
	return len(r.lists[p])
}

// At returns the segment at index i of party p.
func (r *Registry) At(p Party, i int) (*Segment, bool) {
	list := r.lists[p]
	if i < 0 || i >= len(list) {
		return nil, false
	}
	return list[i], true
}

// Find looks a segment up by id within a party and returns its index.
func (r *Registry) Find(p Party, id int64) (*Segment, int, bool) {
	i, ok := r.byID[p][id]
	if !ok {
		return nil, -1, false
	}
	return r.lists[p][i], i, true
}

// Linked resolves the forward link of seg. Dangling references and links that
// point back at seg itself resolve to no link.
func (r *Registry) Linked(seg *Segment) (*Segment, bool) {
	if seg == nil || seg.LinkedID == nil {
		return nil, false
	}
	target := seg.Party
	if r.twoSide {
		target = seg.Party.Opposing()
	}
	linked, _, ok := r.Find(target, *seg.LinkedID)
	if !ok || linked == seg {
		return nil, false
	}
	return linked, true
}
