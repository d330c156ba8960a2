package timer

import (
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trialclock/go/internal/segment"
	"github.com/rs/zerolog"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

type recorder struct {
	ch chan RenderState
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan RenderState, 128)}
}

func (r *recorder) Render(s RenderState) {
	select {
	case r.ch <- s:
	default:
	}
}

func (r *recorder) next(t *testing.T) RenderState {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for render")
		return RenderState{}
	}
}

func (r *recorder) expectQuiet(t *testing.T) {
	t.Helper()
	select {
	case s := <-r.ch:
		t.Fatalf("unexpected render: state=%s display=%s", s.State, s.Display.Text)
	case <-time.After(50 * time.Millisecond):
	}
}

type engineHarness struct {
	engine *Engine
	clock  *clockwork.FakeClock
	rec    *recorder
}

func newHarness(t *testing.T, overtime bool, segs []*segment.Segment) *engineHarness {
	t.Helper()
	reg, err := segment.NewRegistry(segment.Roster{Party: segment.PartyLeft, Name: "Plaintiff", Segments: segs})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	clock := clockwork.NewFakeClock()
	rec := newRecorder()
	e, err := NewEngine(reg, Options{AllowOvertime: overtime}, clock, rec)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return &engineHarness{engine: e, clock: clock, rec: rec}
}

// do applies a transition and consumes the render it produces.
func (h *engineHarness) do(t *testing.T, op func() error) RenderState {
	t.Helper()
	if err := op(); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	return h.rec.next(t)
}

// tick advances the fake clock one second and waits for the resulting render.
func (h *engineHarness) tick(t *testing.T) RenderState {
	t.Helper()
	h.clock.Advance(TickInterval)
	return h.rec.next(t)
}

func TestEngine_CrossExaminationScenario(t *testing.T) {
	segs := trialSegments()
	h := newHarness(t, false, segs)
	e := h.engine

	rs := h.do(t, func() error { return e.Select(segment.PartyLeft, 3) })
	if rs.State != StateReady || rs.Display.Text != "20:00" {
		t.Fatalf("after select: %s %s", rs.State, rs.Display.Text)
	}

	h.do(t, e.Start)
	for i := 0; i < 5; i++ {
		rs = h.tick(t)
	}
	if rs.Display.Text != "19:55" {
		t.Fatalf("after 5 ticks display = %s, want 19:55", rs.Display.Text)
	}

	rs = h.do(t, e.Pause)
	if rs.State != StatePaused || rs.Display.Text != "00:00" {
		t.Fatalf("pause render: %s %s", rs.State, rs.Display.Text)
	}
	if h.engine.countdown.Running() {
		t.Fatal("countdown driver armed during pause")
	}
	for i := 0; i < 10; i++ {
		rs = h.tick(t)
	}
	if rs.Display.Text != "00:10" || rs.Tier != TierPaused {
		t.Fatalf("pause display = %s tier=%s", rs.Display.Text, rs.Tier)
	}

	rs = h.do(t, e.ResumeDeductLinked)
	if rs.State != StateRunning || rs.Display.Text != "19:55" {
		t.Errorf("after resume: %s %s", rs.State, rs.Display.Text)
	}
	if h.engine.pause.Running() {
		t.Error("pause driver still armed after resume")
	}
	if got := segment.FormatClock(*segs[1].Remaining); got != "24:50" {
		t.Errorf("direct examination = %s, want 24:50", got)
	}

	h.do(t, e.Stop)
}

func TestEngine_BoundedAutoStopCancelsClockAtZero(t *testing.T) {
	segs := []*segment.Segment{
		{ID: 1, Name: "Short", Nominal: 3, NominalText: "00:03"},
		{ID: 2, Name: "Next", Nominal: 60, NominalText: "01:00"},
	}
	h := newHarness(t, false, segs)
	e := h.engine

	h.do(t, func() error { return e.Select(segment.PartyLeft, 1) })
	h.do(t, e.Start)

	var rs RenderState
	for i := 0; i < 3; i++ {
		rs = h.tick(t)
	}
	if rs.State != StateStopped || !rs.Expired {
		t.Fatalf("third tick render: state=%s expired=%v", rs.State, rs.Expired)
	}
	if !rs.Has(AffordAdvance) {
		t.Errorf("affordances %v missing advance", rs.Affordances)
	}
	if e.countdown.Running() {
		t.Fatal("countdown driver still armed at zero")
	}

	h.clock.Advance(TickInterval)
	h.rec.expectQuiet(t)
	if *segs[0].Remaining != 0 {
		t.Errorf("remaining = %d after extra tick", *segs[0].Remaining)
	}

	rs = h.do(t, e.Next)
	if rs.Active == nil || rs.Active.ID != 2 || rs.State != StateReady {
		t.Errorf("advance landed on %+v (%s)", rs.Active, rs.State)
	}
}

func TestEngine_OvertimeKeepsTicking(t *testing.T) {
	h := newHarness(t, true, []*segment.Segment{{ID: 1, Name: "S", Nominal: 1}})
	e := h.engine

	h.do(t, func() error { return e.Select(segment.PartyLeft, 1) })
	h.do(t, e.Start)

	var rs RenderState
	for i := 0; i < 4; i++ {
		rs = h.tick(t)
	}
	if rs.State != StateRunning || rs.Display.Seconds != -3 || rs.Display.Text != "00:03" {
		t.Errorf("overtime render: %s %d %s", rs.State, rs.Display.Seconds, rs.Display.Text)
	}
	if rs.Tier != TierOvertime {
		t.Errorf("tier = %s", rs.Tier)
	}
}

func TestEngine_SelectWhilePausedQuiescesPauseClock(t *testing.T) {
	segs := trialSegments()
	h := newHarness(t, false, segs)
	e := h.engine

	h.do(t, func() error { return e.Select(segment.PartyLeft, 1) })
	h.do(t, e.Start)
	h.tick(t)
	h.do(t, e.Pause)
	h.tick(t)

	rs := h.do(t, func() error { return e.Select(segment.PartyLeft, 2) })
	if rs.State != StateReady || rs.PauseElapsed != 0 {
		t.Fatalf("select render: %s elapsed=%d", rs.State, rs.PauseElapsed)
	}
	if e.pause.Running() || e.countdown.Running() {
		t.Fatal("a driver is still armed after select")
	}

	h.clock.Advance(TickInterval)
	h.rec.expectQuiet(t)
	if *segs[0].Remaining != 299 {
		t.Errorf("opening statement bank = %d, want 299", *segs[0].Remaining)
	}
}

func TestEngine_IgnoredTransitionsDoNotRender(t *testing.T) {
	h := newHarness(t, false, trialSegments())
	e := h.engine

	if err := e.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pause from idle: %v", err)
	}
	if err := e.ResumeDeductLinked(); !IsIgnored(err) {
		t.Errorf("resume from idle: %v", err)
	}
	h.rec.expectQuiet(t)
	if e.Snapshot().State != StateIdle {
		t.Error("state changed")
	}
}

func TestEngine_CloseDisarms(t *testing.T) {
	h := newHarness(t, false, trialSegments())
	e := h.engine

	h.do(t, e.Next)
	h.do(t, e.Start)
	e.Close()

	h.clock.Advance(TickInterval)
	h.rec.expectQuiet(t)
	if err := e.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("start after close: %v", err)
	}
}

func TestEngine_AttachSeesEveryLaterRender(t *testing.T) {
	h := newHarness(t, false, trialSegments())
	e := h.engine
	h.do(t, e.Next)

	var joined atomic.Bool
	frames := make(chan RenderState, 256)
	e.AddSink(RenderSinkFunc(func(s RenderState) {
		if joined.Load() {
			frames <- s
		}
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = e.Start()
			_ = e.Stop()
		}
	}()

	err := e.Attach(func(s RenderState) error {
		frames <- s
		joined.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	<-done

	var last RenderState
	for n := len(frames); n > 0; n-- {
		last = <-frames
	}
	if want := e.Snapshot(); last.State != want.State || last.Display != want.Display {
		t.Errorf("observer ended on %s %s, engine is %s %s", last.State, last.Display.Text, want.State, want.Display.Text)
	}

	e.Close()
	if err := e.Attach(func(RenderState) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("attach after close: %v", err)
	}
}
