package segment

import (
	"errors"
	"testing"
)

func int64p(v int64) *int64 { return &v }

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"05:00", 300, false},
		{"25:00", 1500, false},
		{"00:03", 3, false},
		{"120:30", 7230, false},
		{" 1:05 ", 65, false},
		{"1", 0, true},
		{"", 0, true},
		{"ab:cd", 0, true},
		{"01:60", 0, true},
		{"-1:00", 0, true},
		{":30", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidDuration) {
				t.Errorf("ParseDuration(%q) err = %v, want ErrInvalidDuration", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDuration(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseDurationOr_Fallback(t *testing.T) {
	if got := ParseDurationOr("garbage", DefaultDuration); got != 60 {
		t.Errorf("got %d, want 60", got)
	}
}

func TestFormatClock(t *testing.T) {
	cases := map[int]string{
		0:    "00:00",
		1195: "19:55",
		1490: "24:50",
		-75:  "01:15",
		6000: "100:00",
	}
	for in, want := range cases {
		if got := FormatClock(in); got != want {
			t.Errorf("FormatClock(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestSegment_LoadInitializesOnce(t *testing.T) {
	s := &Segment{ID: 1, Nominal: 300}
	if s.Loaded() {
		t.Fatal("fresh segment should not be loaded")
	}
	if got := s.Load(); got != 300 {
		t.Fatalf("Load() = %d, want 300", got)
	}
	s.SetRemaining(120)
	if got := s.Load(); got != 120 {
		t.Errorf("second Load() = %d, want banked 120", got)
	}
}

func TestRegistry_LinkedSingleParty(t *testing.T) {
	direct := &Segment{ID: 2, Name: "Direct Examination", Nominal: 1500, LinkedID: int64p(3)}
	cross := &Segment{ID: 3, Name: "Cross Examination", Nominal: 1200, LinkedID: int64p(2)}
	dangling := &Segment{ID: 4, Name: "Closing", Nominal: 300, LinkedID: int64p(99)}
	self := &Segment{ID: 5, Name: "Self", Nominal: 60, LinkedID: int64p(5)}

	reg, err := NewRegistry(Roster{Party: PartyLeft, Segments: []*Segment{direct, cross, dangling, self}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if got, ok := reg.Linked(cross); !ok || got != direct {
		t.Errorf("cross should link to direct, got %v %v", got, ok)
	}
	if _, ok := reg.Linked(dangling); ok {
		t.Error("dangling link should resolve to no link")
	}
	if _, ok := reg.Linked(self); ok {
		t.Error("self link should resolve to no link")
	}
}

func TestRegistry_LinkedTwoPartyCrossesOver(t *testing.T) {
	left := []*Segment{{ID: 1, Name: "Direct", LinkedID: int64p(2)}, {ID: 2, Name: "Cross"}}
	right := []*Segment{{ID: 1, Name: "Direct"}, {ID: 2, Name: "Cross", LinkedID: int64p(1)}}

	reg, err := NewRegistry(
		Roster{Party: PartyLeft, Name: "Plaintiff", Segments: left},
		Roster{Party: PartyRight, Name: "Defense", Segments: right},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	got, ok := reg.Linked(left[0])
	if !ok || got != right[1] {
		t.Fatalf("left direct should link to right cross, got %+v", got)
	}
	if got.Party != PartyRight {
		t.Errorf("linked party = %s, want right", got.Party)
	}
	if reg.PartyName(PartyRight) != "Defense" {
		t.Errorf("PartyName = %q", reg.PartyName(PartyRight))
	}
}

func TestRegistry_RejectsDuplicateIDs(t *testing.T) {
	_, err := NewRegistry(Roster{Party: PartyLeft, Segments: []*Segment{{ID: 1}, {ID: 1}}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}
	if _, err := NewRegistry(); !errors.Is(err, ErrNoParties) {
		t.Errorf("err = %v, want ErrNoParties", err)
	}
}
