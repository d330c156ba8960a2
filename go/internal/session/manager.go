package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trialclock/go/internal/setup"
	"github.com/mcdev12/trialclock/go/internal/timer"
	"github.com/rs/zerolog/log"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one live timing session: a plan and the engine driving it.
type Run struct {
	ID        uuid.UUID
	Plan      *setup.Plan
	Engine    *timer.Engine
	CreatedAt time.Time
}

// Summary describes a run for listings.
type Summary struct {
	RunID         string      `json:"run_id"`
	LeftTeam      string      `json:"left_team"`
	RightTeam     string      `json:"right_team,omitempty"`
	Parties       int         `json:"parties"`
	AllowOvertime bool        `json:"allow_overtime"`
	State         timer.State `json:"state"`
	CreatedAt     time.Time   `json:"created_at"`
}

// SinkFactory builds a render sink bound to one run.
type SinkFactory func(runID uuid.UUID) timer.RenderSink

// Observer is told about run lifecycle changes.
type Observer interface {
	RunCreated(run *Run)
	RunClosed(runID uuid.UUID)
}

// Config holds the manager's defaults.
type Config struct {
	// DefaultOvertime applies to plans that do not choose a mode.
	DefaultOvertime bool
	// MaxRuns bounds concurrent runs; zero means unlimited.
	MaxRuns int
}

// Manager owns the live runs in memory.
type Manager struct {
	mu        sync.RWMutex
	runs      map[uuid.UUID]*Run
	clock     clockwork.Clock
	config    Config
	sinks     []SinkFactory
	observers []Observer
}

// NewManager creates an empty manager. A nil clock means the real clock.
func NewManager(config Config, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		runs:   make(map[uuid.UUID]*Run),
		clock:  clock,
		config: config,
	}
}

// AddSinkFactory attaches a sink to every run created afterwards.
func (m *Manager) AddSinkFactory(f SinkFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, f)
}

// AddObserver registers a lifecycle observer.
func (m *Manager) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Create builds a registry from plan and starts a run on it. Observers hear
// about the run before its first render; the first segment of the first party
// is then selected so the run opens Ready.
func (m *Manager) Create(plan *setup.Plan) (*Run, error) {
	reg, err := plan.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	m.mu.Lock()
	if m.config.MaxRuns > 0 && len(m.runs) >= m.config.MaxRuns {
		m.mu.Unlock()
		return nil, fmt.Errorf("run limit of %d reached", m.config.MaxRuns)
	}
	id := uuid.New()
	sinks := make([]timer.RenderSink, 0, len(m.sinks))
	for _, f := range m.sinks {
		sinks = append(sinks, f(id))
	}
	m.mu.Unlock()

	engine, err := timer.NewEngine(reg, plan.Options(m.config.DefaultOvertime), m.clock, sinks...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	engine.WithLabel(id.String())

	run := &Run{ID: id, Plan: plan, Engine: engine, CreatedAt: m.clock.Now().UTC()}

	m.mu.Lock()
	m.runs[id] = run
	observers := append([]Observer(nil), m.observers...)
	total := len(m.runs)
	m.mu.Unlock()

	for _, o := range observers {
		o.RunCreated(run)
	}

	first := reg.First()
	if err := engine.Select(first, reg.List(first)[0].ID); err != nil {
		_ = m.Remove(id)
		return nil, fmt.Errorf("failed to select first segment: %w", err)
	}

	log.Info().
		Str("run_id", id.String()).
		Int("parties", reg.PartyCount()).
		Bool("allow_overtime", engine.Options().AllowOvertime).
		Int("total_runs", total).
		Msg("run created")

	return run, nil
}

// Get returns the run with id.
func (m *Manager) Get(id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

// Remove closes a run's engine and forgets it.
func (m *Manager) Remove(id uuid.UUID) error {
	m.mu.Lock()
	run, ok := m.runs[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	delete(m.runs, id)
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	run.Engine.Close()
	for _, o := range observers {
		o.RunClosed(id)
	}

	log.Info().Str("run_id", id.String()).Msg("run removed")
	return nil
}

// List summarizes every run, oldest first.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	runs := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID.String() < runs[j].ID.String()
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	out := make([]Summary, 0, len(runs))
	for _, run := range runs {
		opts := run.Engine.Options()
		out = append(out, Summary{
			RunID:         run.ID.String(),
			LeftTeam:      run.Plan.LeftTeam,
			RightTeam:     run.Plan.RightTeam,
			Parties:       opts.PartyCount,
			AllowOvertime: opts.AllowOvertime,
			State:         run.Engine.Snapshot().State,
			CreatedAt:     run.CreatedAt,
		})
	}
	return out
}

// Len is the number of live runs.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// CloseAll tears every run down, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]uuid.UUID, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Remove(id); err != nil && !errors.Is(err, ErrRunNotFound) {
			log.Error().Err(err).Str("run_id", id.String()).Msg("failed to close run")
		}
	}
}
