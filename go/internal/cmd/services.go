package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/trialclock/go/internal/events"
	"github.com/mcdev12/trialclock/go/internal/gateway"
	"github.com/mcdev12/trialclock/go/internal/publish"
	"github.com/mcdev12/trialclock/go/internal/session"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Runs      *session.Manager
	Gateway   *gateway.Service
	Fanout    *publish.Fanout
	Publisher *publish.JetStreamPublisher
	Checks    map[string]gateway.Checker
}

// setupServices wires runs to the gateway, and to NATS when a URL is set.
// Sinks attach per run at creation, so everything is wired before the first
// run exists.
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	factory := events.NewFactory(nil)
	runs := session.NewManager(session.Config{
		DefaultOvertime: cfg.AllowOvertime,
		MaxRuns:         cfg.MaxRuns,
	}, nil)

	services := &Services{
		Runs:    runs,
		Gateway: gateway.NewService(gateway.Config{ConnectionConfig: cfg.connectionConfig()}, runs, factory),
		Checks:  make(map[string]gateway.Checker),
	}

	if cfg.NATS.URL != "" {
		publisher, err := publish.NewJetStreamPublisher(ctx, cfg.jetStreamConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		services.Publisher = publisher
		services.Fanout = publish.NewFanout(publisher, factory, cfg.fanoutConfig())
		services.Fanout.Attach(runs)
		services.Checks["nats"] = publisher
		log.Info().Str("url", cfg.NATS.URL).Str("stream", cfg.NATS.Stream).Msg("publishing timer events to NATS")
	}

	if cfg.PlanPath != "" {
		plan, err := loadPlan(cfg.PlanPath)
		if err != nil {
			return nil, err
		}
		run, err := runs.Create(plan)
		if err != nil {
			return nil, fmt.Errorf("failed to preload plan: %w", err)
		}
		log.Info().Str("run_id", run.ID.String()).Str("plan", cfg.PlanPath).Msg("preloaded run")
	}

	return services, nil
}

func (s *Services) Close() {
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close NATS connection")
		}
	}
}
