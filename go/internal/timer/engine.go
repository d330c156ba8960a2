package timer

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trialclock/go/internal/segment"
	"github.com/rs/zerolog/log"
)

// RenderSink is notified with a fresh RenderState after every change. Render is
// called while the engine is locked and must not block or call back into the
// engine.
type RenderSink interface {
	Render(state RenderState)
}

// RenderSinkFunc adapts a function to RenderSink.
type RenderSinkFunc func(state RenderState)

func (f RenderSinkFunc) Render(state RenderState) { f(state) }

// Engine runs a Machine against two clock drivers, the countdown and the pause
// counter. User transitions and driver ticks are serialized by one mutex.
type Engine struct {
	mu        sync.Mutex
	machine   *Machine
	countdown *Driver
	pause     *Driver
	sinks     []RenderSink
	closed    bool
	label     string
}

// NewEngine creates an idle engine. A nil clock means the real clock.
func NewEngine(reg *segment.Registry, opts Options, clock clockwork.Clock, sinks ...RenderSink) (*Engine, error) {
	m, err := NewMachine(reg, opts)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		machine:   m,
		countdown: NewDriver(clock, TickInterval),
		pause:     NewDriver(clock, TickInterval),
		sinks:     sinks,
	}, nil
}

// WithLabel tags the engine's log lines (typically the run id).
func (e *Engine) WithLabel(label string) *Engine {
	e.mu.Lock()
	e.label = label
	e.mu.Unlock()
	return e
}

// AddSink registers another render sink.
func (e *Engine) AddSink(s RenderSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// Snapshot returns the current render state.
func (e *Engine) Snapshot() RenderState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Render()
}

// Attach calls fn with the current render state while the engine is locked.
// No change can be rendered between the snapshot and whatever fn registers,
// so a new observer sees every later render. fn must not block or call back
// into the engine.
func (e *Engine) Attach(fn func(state RenderState) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return fn(e.machine.Render())
}

// Options returns the engine's operating mode.
func (e *Engine) Options() Options {
	return e.machine.Options()
}

func (e *Engine) Select(party segment.Party, id int64) error {
	return e.apply("select", func(m *Machine) error { return m.Select(party, id) })
}

func (e *Engine) Start() error {
	return e.apply("start", (*Machine).Start)
}

func (e *Engine) Pause() error {
	return e.apply("pause", (*Machine).Pause)
}

func (e *Engine) ResumeDiscard() error {
	return e.apply("resume_discard", func(m *Machine) error { return m.Resume(ResumeDiscard) })
}

func (e *Engine) ResumeDeductSelf() error {
	return e.apply("resume_deduct_self", func(m *Machine) error { return m.Resume(ResumeDeductSelf) })
}

func (e *Engine) ResumeDeductLinked() error {
	return e.apply("resume_deduct_linked", func(m *Machine) error { return m.Resume(ResumeDeductLinked) })
}

func (e *Engine) Stop() error {
	return e.apply("stop", (*Machine).Stop)
}

func (e *Engine) Next() error {
	return e.apply("next", (*Machine).Next)
}

func (e *Engine) SwitchParty() error {
	return e.apply("switch_party", (*Machine).SwitchParty)
}

// Close disarms both drivers. Every later transition returns ErrClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.countdown.Stop()
	e.pause.Stop()
}

func (e *Engine) apply(op string, fn func(*Machine) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	from := e.machine.State()
	if err := fn(e.machine); err != nil {
		log.Debug().
			Err(err).
			Str("run", e.label).
			Str("op", op).
			Stringer("state", from).
			Msg("transition ignored")
		return err
	}

	e.reconcile()
	log.Debug().
		Str("run", e.label).
		Str("op", op).
		Stringer("from", from).
		Stringer("to", e.machine.State()).
		Int("remaining", e.machine.Remaining()).
		Msg("transition applied")

	e.notify()
	return nil
}

// reconcile arms exactly the drivers the current state needs. Disarming
// always happens before arming so both kinds are never live together.
func (e *Engine) reconcile() {
	wantCountdown, wantPause := armed(e.machine.State())

	if !wantCountdown {
		e.countdown.Stop()
	}
	if !wantPause {
		e.pause.Stop()
	}
	if wantCountdown && !e.countdown.Running() {
		e.countdown.Start(e.onCountdownTick)
	}
	if wantPause && !e.pause.Running() {
		e.pause.Start(e.onPauseTick)
	}
}

func (e *Engine) onCountdownTick(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !e.countdown.Live(epoch) {
		return
	}

	expired, err := e.machine.Tick()
	if err != nil {
		log.Warn().Err(err).Str("run", e.label).Msg("countdown tick rejected")
		e.reconcile()
		return
	}
	if expired {
		log.Info().
			Str("run", e.label).
			Int64("segment_id", e.machine.Active().ID).
			Str("segment", e.machine.Active().Name).
			Msg("segment time expired")
	}

	e.reconcile()
	e.notify()
}

func (e *Engine) onPauseTick(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !e.pause.Live(epoch) {
		return
	}
	if err := e.machine.PauseTick(); err != nil {
		e.reconcile()
		return
	}
	e.notify()
}

func (e *Engine) notify() {
	state := e.machine.Render()
	for _, s := range e.sinks {
		s.Render(state)
	}
}
