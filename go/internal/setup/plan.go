package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mcdev12/trialclock/go/internal/segment"
	"github.com/mcdev12/trialclock/go/internal/timer"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLeftTeam  = "Plaintiff"
	DefaultRightTeam = "Defense"
)

var (
	ErrNoBlocks       = errors.New("plan has no blocks")
	ErrBlockNotFound  = errors.New("block not found")
	ErrDuplicateBlock = errors.New("duplicate block id")
	ErrPartyCount     = errors.New("parties must be 1 or 2")
)

// Block is one segment definition as produced by the setup editor.
type Block struct {
	ID     int64  `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Time   string `json:"time" yaml:"time"`
	Linked *int64 `json:"linked" yaml:"linked,omitempty"`
}

// Plan is the finalized setup handed to a run.
type Plan struct {
	LeftTeam      string  `json:"leftTeam" yaml:"left_team"`
	RightTeam     string  `json:"rightTeam" yaml:"right_team"`
	Advanced      bool    `json:"advanced" yaml:"advanced"`
	Parties       int     `json:"parties,omitempty" yaml:"parties,omitempty"`
	AllowOvertime *bool   `json:"allowOvertime,omitempty" yaml:"allow_overtime,omitempty"`
	Blocks        []Block `json:"blocks" yaml:"blocks"`
}

func linkTo(id int64) *int64 { return &id }

// DefaultPlan is the mock-trial template the editor opens with.
func DefaultPlan() *Plan {
	return &Plan{
		LeftTeam:  DefaultLeftTeam,
		RightTeam: DefaultRightTeam,
		Advanced:  true,
		Parties:   1,
		Blocks: []Block{
			{ID: 1, Name: "Opening Statement", Time: "05:00"},
			{ID: 2, Name: "Direct Examination", Time: "25:00", Linked: linkTo(3)},
			{ID: 3, Name: "Cross Examination", Time: "20:00", Linked: linkTo(2)},
			{ID: 4, Name: "Closing Argument", Time: "05:00"},
		},
	}
}

// DecodeJSON reads a plan from a JSON document.
func DecodeJSON(r io.Reader) (*Plan, error) {
	var p Plan
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	return &p, nil
}

// LoadYAML reads a plan file.
func LoadYAML(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	return &p, nil
}

// PartyCount is the number of parties the plan runs with (1 unless set to 2).
func (p *Plan) PartyCount() int {
	if p.Parties == 0 {
		return 1
	}
	return p.Parties
}

// Options derives engine options, falling back to defaultOvertime when the
// plan does not choose a mode.
func (p *Plan) Options(defaultOvertime bool) timer.Options {
	overtime := defaultOvertime
	if p.AllowOvertime != nil {
		overtime = *p.AllowOvertime
	}
	return timer.Options{AllowOvertime: overtime, PartyCount: p.PartyCount()}
}

// Normalize fills default team names and repairs blocks the way the run view
// expects: unparsable durations fall back to 01:00, links are dropped when
// advanced mode is off, and links to missing blocks degrade to no link.
func (p *Plan) Normalize() {
	if p.LeftTeam == "" {
		p.LeftTeam = DefaultLeftTeam
	}
	if p.RightTeam == "" {
		p.RightTeam = DefaultRightTeam
	}

	ids := make(map[int64]bool, len(p.Blocks))
	for _, b := range p.Blocks {
		ids[b.ID] = true
	}

	for i := range p.Blocks {
		b := &p.Blocks[i]
		if _, err := segment.ParseDuration(b.Time); err != nil {
			log.Warn().Int64("block_id", b.ID).Str("time", b.Time).Msg("unparsable duration, using default")
			b.Time = segment.DefaultDurationText
		}
		if b.Linked == nil {
			continue
		}
		if !p.Advanced {
			b.Linked = nil
			continue
		}
		if !ids[*b.Linked] || (p.PartyCount() == 1 && *b.Linked == b.ID) {
			log.Warn().Int64("block_id", b.ID).Int64("linked", *b.Linked).Msg("dropping dangling link")
			b.Linked = nil
		}
	}
}

// Validate reports structural problems that normalization cannot repair.
func (p *Plan) Validate() error {
	if n := p.PartyCount(); n < 1 || n > 2 {
		return fmt.Errorf("%w: got %d", ErrPartyCount, n)
	}
	if len(p.Blocks) == 0 {
		return ErrNoBlocks
	}
	seen := make(map[int64]bool, len(p.Blocks))
	for _, b := range p.Blocks {
		if seen[b.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateBlock, b.ID)
		}
		seen[b.ID] = true
	}
	return nil
}

// Build normalizes the plan and creates the segment registry for a run. In
// two-party mode every block is duplicated per party and links resolve to the
// same id in the opposing party's list.
func (p *Plan) Build() (*segment.Registry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Normalize()

	rosters := []segment.Roster{{Party: segment.PartyLeft, Name: p.LeftTeam, Segments: p.segments()}}
	if p.PartyCount() == 2 {
		rosters = append(rosters, segment.Roster{Party: segment.PartyRight, Name: p.RightTeam, Segments: p.segments()})
	}

	reg, err := segment.NewRegistry(rosters...)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}
	return reg, nil
}

func (p *Plan) segments() []*segment.Segment {
	out := make([]*segment.Segment, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		seg := &segment.Segment{
			ID:          b.ID,
			Name:        b.Name,
			NominalText: b.Time,
			Nominal:     segment.ParseDurationOr(b.Time, segment.DefaultDuration),
		}
		if b.Linked != nil {
			seg.LinkedID = linkTo(*b.Linked)
		}
		out = append(out, seg)
	}
	return out
}
