package setup

import (
	"fmt"

	"github.com/mcdev12/trialclock/go/internal/segment"
)

// Editing helpers for building a plan before a run starts. They never touch a
// running registry.

// Add appends a block with the next free id and returns it.
func (p *Plan) Add(name, time string) Block {
	var maxID int64
	for _, b := range p.Blocks {
		if b.ID > maxID {
			maxID = b.ID
		}
	}
	if name == "" {
		name = "New Block"
	}
	b := Block{ID: maxID + 1, Name: name, Time: editTime(time)}
	p.Blocks = append(p.Blocks, b)
	return b
}

// Update replaces a block's name, time and link. Times shorter than "m:ss"
// become the default allotment.
func (p *Plan) Update(id int64, name, time string, linked *int64) error {
	i, err := p.index(id)
	if err != nil {
		return err
	}
	b := &p.Blocks[i]
	b.Name = name
	b.Time = editTime(time)
	b.Linked = nil
	if linked != nil && *linked != id {
		b.Linked = linkTo(*linked)
	}
	return nil
}

// Remove deletes a block and clears every link that pointed at it.
func (p *Plan) Remove(id int64) error {
	i, err := p.index(id)
	if err != nil {
		return err
	}
	p.Blocks = append(p.Blocks[:i], p.Blocks[i+1:]...)
	for j := range p.Blocks {
		if l := p.Blocks[j].Linked; l != nil && *l == id {
			p.Blocks[j].Linked = nil
		}
	}
	return nil
}

// Move places a block at position to, shifting the others.
func (p *Plan) Move(id int64, to int) error {
	i, err := p.index(id)
	if err != nil {
		return err
	}
	if to < 0 || to >= len(p.Blocks) {
		return fmt.Errorf("position %d out of range", to)
	}
	b := p.Blocks[i]
	p.Blocks = append(p.Blocks[:i], p.Blocks[i+1:]...)
	p.Blocks = append(p.Blocks[:to], append([]Block{b}, p.Blocks[to:]...)...)
	return nil
}

func (p *Plan) index(id int64) (int, error) {
	for i, b := range p.Blocks {
		if b.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %d", ErrBlockNotFound, id)
}

func editTime(t string) string {
	if len(t) < 3 {
		return segment.DefaultDurationText
	}
	return t
}
