package gateway

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mcdev12/trialclock/go/internal/events"
	"github.com/mcdev12/trialclock/go/internal/session"
	"github.com/mcdev12/trialclock/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// Service is the run gateway: REST commands in, render events out over
// WebSocket.
type Service struct {
	runs        *session.Manager
	connections *ConnectionManager
	factory     *events.Factory
	api         *Handler
	ws          *WebSocketHandler
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{ConnectionConfig: DefaultConnectionConfig()}
}

// NewService wires the gateway into runs: every run created afterwards
// broadcasts its renders, and closing a run disconnects its clients.
func NewService(config Config, runs *session.Manager, factory *events.Factory) *Service {
	connections := NewConnectionManager(config.ConnectionConfig)
	s := &Service{
		runs:        runs,
		connections: connections,
		factory:     factory,
		api:         NewHandler(runs),
		ws:          NewWebSocketHandler(connections, runs, factory),
	}
	runs.AddSinkFactory(s.Sink)
	runs.AddObserver(s)
	return s
}

// Start processes broadcasts until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting run gateway")
	s.connections.Start(ctx)
	log.Info().Msg("run gateway stopped")
	return nil
}

// RegisterRoutes mounts the REST and WebSocket routes.
func (s *Service) RegisterRoutes(r chi.Router) {
	s.api.RegisterRoutes(r)
	s.ws.RegisterRoutes(r)
	log.Info().Msg("run gateway routes registered")
}

// Stats returns statistics about connected clients.
func (s *Service) Stats() ConnectionStats {
	return s.connections.Stats()
}

// Sink returns the render sink for one run. Render runs under the engine
// lock, so the previous state needs no synchronization of its own.
func (s *Service) Sink(runID uuid.UUID) timer.RenderSink {
	var prev timer.RenderState
	return timer.RenderSinkFunc(func(state timer.RenderState) {
		ev, err := s.factory.Render(runID, state)
		if err != nil {
			log.Error().Err(err).Str("run_id", runID.String()).Msg("failed to build render event")
			return
		}
		s.connections.Broadcast(runID, ev)
		for _, derived := range s.factory.Derived(runID, prev, state) {
			s.connections.Broadcast(runID, derived)
		}
		prev = state
	})
}

// RunCreated implements session.Observer.
func (s *Service) RunCreated(*session.Run) {}

// RunClosed implements session.Observer.
func (s *Service) RunClosed(runID uuid.UUID) {
	final, err := s.factory.New(runID, events.EventTypeRunClosed, events.RunClosedPayload{
		RunID:    runID.String(),
		ClosedAt: s.factory.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("failed to build close event")
	}
	s.connections.CloseRun(runID, final)
}

// Routes returns a standalone router with the gateway routes, used by tests
// and by callers that do not share a router.
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()
	s.RegisterRoutes(r)
	return r
}
