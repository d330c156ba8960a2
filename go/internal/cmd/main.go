package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/trialclock/go/internal/segment"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "trialclock",
		Short: "Segment timer for mock trials and moderated debates",
		Long: `trialclock runs countdown timers over an ordered list of named segments.
Runs are driven over a REST API and watched over WebSocket; pause time can be
discarded, charged to the paused segment, or charged to its linked segment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Msg("could not load .env file")
			}
			return nil
		},
	}

	root.AddCommand(newServeCmd(), newCheckCmd(), newLinkCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var port, plan string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the timer API and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			if plan != "" {
				cfg.PlanPath = plan
			}
			setupLogging(cfg.LogLevel, cfg.LogJSON)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	cmd.Flags().StringVar(&plan, "plan", "", "YAML plan to preload as a run (overrides PLAN_PATH)")
	return cmd
}

func serve(ctx context.Context, cfg *Config) error {
	services, err := setupServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	server := setupServer(cfg.Port, services)

	// The fanout outlives the HTTP context so close events from shutdown
	// still reach the bus.
	fanoutCtx, stopFanout := context.WithCancel(context.Background())
	defer stopFanout()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return services.Gateway.Start(gctx)
	})

	if services.Fanout != nil {
		g.Go(func() error {
			return services.Fanout.Run(fanoutCtx)
		})
	}

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		services.Runs.CloseAll()
		err := server.Shutdown(shutdownCtx)
		stopFanout()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("trialclock shutdown complete")
	return nil
}

func newCheckCmd() *cobra.Command {
	var overtime bool
	cmd := &cobra.Command{
		Use:   "check <plan.yaml>",
		Short: "Validate a plan and print the segments a run would use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging("warn", false)

			plan, err := loadPlan(args[0])
			if err != nil {
				return err
			}
			reg, err := plan.Build()
			if err != nil {
				return err
			}

			opts := plan.Options(overtime)
			mode := "bounded"
			if opts.AllowOvertime {
				mode = "overtime"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d party run, %s mode\n", reg.PartyCount(), mode)
			for _, party := range reg.Parties() {
				fmt.Fprintf(out, "\n%s (%s)\n", reg.PartyName(party), party)
				for _, seg := range reg.List(party) {
					line := fmt.Sprintf("  %3d  %-28s %s", seg.ID, seg.Name, segment.FormatClock(seg.Nominal))
					if linked, ok := reg.Linked(seg); ok {
						line += fmt.Sprintf("  -> %s", linked.Name)
						if linked.Party != seg.Party {
							line += fmt.Sprintf(" (%s)", reg.PartyName(linked.Party))
						}
					}
					fmt.Fprintln(out, strings.TrimRight(line, " "))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&overtime, "overtime", false, "assume overtime mode when the plan does not choose one")
	return cmd
}

func newLinkCmd() *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "link <plan.yaml>",
		Short: "Print the run-view URL that hands a plan over as query parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := loadPlan(args[0])
			if err != nil {
				return err
			}
			if err := plan.Validate(); err != nil {
				return err
			}
			values, err := plan.Encode()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s?%s\n", strings.TrimRight(base, "?"), values.Encode())
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "http://localhost:8080/api/runs", "URL the query string is appended to")
	return cmd
}
