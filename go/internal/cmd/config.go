package main

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mcdev12/trialclock/go/internal/gateway"
	"github.com/mcdev12/trialclock/go/internal/publish"
	"github.com/mcdev12/trialclock/go/internal/setup"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`

	// AllowOvertime is the mode for plans that do not pick one.
	AllowOvertime bool `env:"ALLOW_OVERTIME" envDefault:"false"`
	MaxRuns       int  `env:"MAX_RUNS" envDefault:"0"`
	// PlanPath preloads one run from a YAML plan at startup.
	PlanPath string `env:"PLAN_PATH"`

	NATS NATSConfig `envPrefix:"NATS_"`
	WS   WSConfig   `envPrefix:"WS_"`
}

type NATSConfig struct {
	// URL left empty disables event publishing.
	URL           string        `env:"URL"`
	Stream        string        `env:"STREAM" envDefault:"TRIAL_TIMER_EVENTS"`
	SubjectPrefix string        `env:"SUBJECT_PREFIX" envDefault:"trialclock.runs"`
	MaxAge        time.Duration `env:"MAX_AGE" envDefault:"24h"`
	SkipTicks     bool          `env:"SKIP_TICKS" envDefault:"false"`
	QueueSize     int           `env:"QUEUE_SIZE" envDefault:"1024"`
}

type WSConfig struct {
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"60s"`
	PingInterval time.Duration `env:"PING_INTERVAL" envDefault:"30s"`
	SendBuffer   int           `env:"SEND_BUFFER" envDefault:"64"`
}

func loadConfig() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

func (c *Config) connectionConfig() gateway.ConnectionConfig {
	cc := gateway.DefaultConnectionConfig()
	cc.WriteTimeout = c.WS.WriteTimeout
	cc.ReadTimeout = c.WS.ReadTimeout
	cc.PingInterval = c.WS.PingInterval
	cc.SendBuffer = c.WS.SendBuffer
	return cc
}

func (c *Config) jetStreamConfig() publish.JetStreamConfig {
	js := publish.DefaultJetStreamConfig()
	js.URL = c.NATS.URL
	js.StreamName = c.NATS.Stream
	js.SubjectPrefix = c.NATS.SubjectPrefix
	js.MaxAge = c.NATS.MaxAge
	return js
}

func (c *Config) fanoutConfig() publish.FanoutConfig {
	fc := publish.DefaultFanoutConfig()
	fc.QueueSize = c.NATS.QueueSize
	fc.SkipTicks = c.NATS.SkipTicks
	return fc
}

// loadPlan reads a YAML plan, or returns the default template when path is
// empty.
func loadPlan(path string) (*setup.Plan, error) {
	if path == "" {
		return setup.DefaultPlan(), nil
	}
	return setup.LoadYAML(path)
}

func setupLogging(level string, json bool) {
	if !json {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
