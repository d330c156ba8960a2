package setup

import (
	"errors"
	"testing"
)

func ids(p *Plan) []int64 {
	out := make([]int64, len(p.Blocks))
	for i, b := range p.Blocks {
		out[i] = b.ID
	}
	return out
}

func TestAdd_AssignsNextID(t *testing.T) {
	p := DefaultPlan()
	b := p.Add("", "1")
	if b.ID != 5 || b.Name != "New Block" || b.Time != "01:00" {
		t.Errorf("added block = %+v", b)
	}
	if len(p.Blocks) != 5 {
		t.Errorf("len = %d", len(p.Blocks))
	}
}

func TestUpdate_ShortTimeFallsBack(t *testing.T) {
	p := DefaultPlan()
	if err := p.Update(1, "Opening", "5", nil); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Blocks[0].Time != "01:00" {
		t.Errorf("time = %q", p.Blocks[0].Time)
	}
	if err := p.Update(1, "Opening", "7:30", linkTo(1)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Blocks[0].Time != "7:30" || p.Blocks[0].Linked != nil {
		t.Errorf("block = %+v (self link must be refused)", p.Blocks[0])
	}
	if err := p.Update(99, "x", "01:00", nil); !errors.Is(err, ErrBlockNotFound) {
		t.Errorf("unknown id: %v", err)
	}
}

func TestRemove_ClearsInboundLinks(t *testing.T) {
	p := DefaultPlan()
	if err := p.Remove(2); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := ids(p); len(got) != 3 || got[1] != 3 {
		t.Fatalf("ids = %v", got)
	}
	if p.Blocks[1].Linked != nil {
		t.Error("cross examination still links to removed block")
	}
}

func TestMove_Reorders(t *testing.T) {
	p := DefaultPlan()
	if err := p.Move(4, 0); err != nil {
		t.Fatalf("Move: %v", err)
	}
	want := []int64{4, 1, 2, 3}
	got := ids(p)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
	if err := p.Move(1, 10); err == nil {
		t.Error("out of range move should fail")
	}
}
