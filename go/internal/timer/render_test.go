package timer

import (
	"testing"

	"github.com/mcdev12/trialclock/go/internal/segment"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		remaining int
		want      Tier
	}{
		{300, TierNormal},
		{31, TierNormal},
		{30, TierWarning},
		{11, TierWarning},
		{10, TierCritical},
		{1, TierCritical},
		{0, TierCritical},
		{-1, TierOvertime},
		{-10, TierOvertime},
		{-600, TierOvertime},
	}
	for _, tt := range tests {
		if got := TierFor(tt.remaining); got != tt.want {
			t.Errorf("TierFor(%d) = %s, want %s", tt.remaining, got, tt.want)
		}
	}
}

func TestRender_ResumeRecoloursImmediately(t *testing.T) {
	m := newTestMachine(t, false, []*segment.Segment{{ID: 1, Name: "S", Nominal: 40}})
	_ = m.Select(segment.PartyLeft, 1)
	_ = m.Start()
	_ = m.Pause()

	if tier := m.Render().Tier; tier != TierPaused {
		t.Fatalf("paused tier = %s", tier)
	}
	for i := 0; i < 15; i++ {
		_ = m.PauseTick()
	}
	_ = m.Resume(ResumeDeductSelf)

	// 40 - 15 = 25: warning, without waiting for another tick.
	if tier := m.Render().Tier; tier != TierWarning {
		t.Errorf("tier after resume = %s, want warning", tier)
	}
}

func TestRender_PausedShowsBankedAndElapsed(t *testing.T) {
	m := newTestMachine(t, false, trialSegments())
	_ = m.Select(segment.PartyLeft, 3)
	_ = m.Start()
	m.Tick()
	_ = m.Pause()
	_ = m.PauseTick()
	_ = m.PauseTick()

	rs := m.Render()
	if rs.Display.Label != "Time Paused" || rs.Display.Text != "00:02" {
		t.Errorf("display = %+v", rs.Display)
	}
	if rs.Banked == nil || rs.Banked.Text != "19:59" {
		t.Errorf("banked = %+v", rs.Banked)
	}
	if rs.Active == nil || rs.Active.LinkedName != "Direct Examination" {
		t.Errorf("active = %+v", rs.Active)
	}
	want := []Affordance{AffordResumeDeductSelf, AffordResumeDeductLinked, AffordResumeDiscard, AffordStop, AffordNext}
	if len(rs.Affordances) != len(want) {
		t.Fatalf("affordances = %v, want %v", rs.Affordances, want)
	}
	for i := range want {
		if rs.Affordances[i] != want[i] {
			t.Errorf("affordance[%d] = %s, want %s", i, rs.Affordances[i], want[i])
		}
	}
}

func TestRender_SidebarViews(t *testing.T) {
	m := newTestMachine(t, false, trialSegments())
	_ = m.Select(segment.PartyLeft, 2)

	rs := m.Render()
	if len(rs.Segments) != 4 {
		t.Fatalf("segments = %d", len(rs.Segments))
	}
	if !rs.Segments[1].Active || rs.Segments[0].Active {
		t.Error("active flag on wrong segment")
	}
	if !rs.Segments[1].Linked || rs.Segments[0].Linked {
		t.Error("linked flag wrong")
	}
	if rs.Segments[2].Remaining.Text != "20:00" {
		t.Errorf("unloaded segment shows %s, want nominal", rs.Segments[2].Remaining.Text)
	}
	if rs.PartyName != "Plaintiff" {
		t.Errorf("party name = %q", rs.PartyName)
	}
}

func TestRender_IdleOffersNext(t *testing.T) {
	m := newTestMachine(t, false, trialSegments())
	rs := m.Render()
	if rs.Active != nil {
		t.Error("idle render should have no active segment")
	}
	if len(rs.Affordances) != 1 || rs.Affordances[0] != AffordNext {
		t.Errorf("affordances = %v", rs.Affordances)
	}
}
