package publish

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/trialclock/go/internal/events"
	"github.com/mcdev12/trialclock/go/internal/session"
	"github.com/mcdev12/trialclock/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// Publisher delivers one event to an external bus.
type Publisher interface {
	Publish(ctx context.Context, ev *events.TimerEvent) error
}

// FanoutConfig tunes the queue between engines and the bus.
type FanoutConfig struct {
	QueueSize      int
	PublishTimeout time.Duration
	// SkipTicks publishes only renders whose state or active segment changed,
	// dropping the per-second countdown frames.
	SkipTicks bool
}

func DefaultFanoutConfig() FanoutConfig {
	return FanoutConfig{
		QueueSize:      1024,
		PublishTimeout: 5 * time.Second,
	}
}

// Fanout queues events from run sinks and publishes them from a single
// goroutine. Engines never wait on the bus: a full queue drops the event.
type Fanout struct {
	publisher Publisher
	factory   *events.Factory
	config    FanoutConfig
	queue     chan *events.TimerEvent
}

func NewFanout(publisher Publisher, factory *events.Factory, config FanoutConfig) *Fanout {
	if config.QueueSize < 1 {
		config.QueueSize = DefaultFanoutConfig().QueueSize
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = DefaultFanoutConfig().PublishTimeout
	}
	return &Fanout{
		publisher: publisher,
		factory:   factory,
		config:    config,
		queue:     make(chan *events.TimerEvent, config.QueueSize),
	}
}

// Attach registers the fanout with a run manager.
func (f *Fanout) Attach(runs *session.Manager) {
	runs.AddSinkFactory(f.Sink)
	runs.AddObserver(f)
}

// Run publishes queued events until ctx is done, then flushes what is left
// with a fresh deadline.
func (f *Fanout) Run(ctx context.Context) error {
	log.Info().Msg("event fanout started")
	for {
		select {
		case <-ctx.Done():
			f.flush()
			log.Info().Msg("event fanout stopped")
			return nil
		case ev := <-f.queue:
			f.publish(context.Background(), ev)
		}
	}
}

func (f *Fanout) flush() {
	for {
		select {
		case ev := <-f.queue:
			f.publish(context.Background(), ev)
		default:
			return
		}
	}
}

func (f *Fanout) publish(parent context.Context, ev *events.TimerEvent) {
	ctx, cancel := context.WithTimeout(parent, f.config.PublishTimeout)
	defer cancel()
	if err := f.publisher.Publish(ctx, ev); err != nil {
		log.Error().
			Err(err).
			Str("run_id", ev.RunID).
			Str("event_type", string(ev.Type)).
			Msg("failed to publish event")
	}
}

func (f *Fanout) enqueue(ev *events.TimerEvent) {
	select {
	case f.queue <- ev:
	default:
		log.Warn().Str("run_id", ev.RunID).Str("event_type", string(ev.Type)).Msg("publish queue full, dropping event")
	}
}

// Sink returns the render sink for one run.
func (f *Fanout) Sink(runID uuid.UUID) timer.RenderSink {
	var prev timer.RenderState
	first := true
	return timer.RenderSinkFunc(func(state timer.RenderState) {
		if !first && f.config.SkipTicks && !changed(prev, state) {
			return
		}
		ev, err := f.factory.Render(runID, state)
		if err != nil {
			log.Error().Err(err).Str("run_id", runID.String()).Msg("failed to build render event")
			return
		}
		f.enqueue(ev)
		for _, derived := range f.factory.Derived(runID, prev, state) {
			f.enqueue(derived)
		}
		prev, first = state, false
	})
}

func changed(prev, next timer.RenderState) bool {
	if prev.State != next.State || prev.Party != next.Party || prev.Expired != next.Expired {
		return true
	}
	if (prev.Active == nil) != (next.Active == nil) {
		return true
	}
	return prev.Active != nil && prev.Active.ID != next.Active.ID
}

// RunCreated implements session.Observer.
func (f *Fanout) RunCreated(run *session.Run) {
	opts := run.Engine.Options()
	payload := events.RunCreatedPayload{
		RunID:         run.ID.String(),
		LeftTeam:      run.Plan.LeftTeam,
		Parties:       opts.PartyCount,
		AllowOvertime: opts.AllowOvertime,
		Segments:      len(run.Plan.Blocks),
		CreatedAt:     run.CreatedAt,
	}
	if opts.PartyCount == 2 {
		payload.RightTeam = run.Plan.RightTeam
	}
	ev, err := f.factory.New(run.ID, events.EventTypeRunCreated, payload)
	if err != nil {
		log.Error().Err(err).Str("run_id", run.ID.String()).Msg("failed to build created event")
		return
	}
	f.enqueue(ev)
}

// RunClosed implements session.Observer.
func (f *Fanout) RunClosed(runID uuid.UUID) {
	ev, err := f.factory.New(runID, events.EventTypeRunClosed, events.RunClosedPayload{
		RunID:    runID.String(),
		ClosedAt: f.factory.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("failed to build closed event")
		return
	}
	f.enqueue(ev)
}
