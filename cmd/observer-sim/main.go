package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/workpulse/internal/simulator"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/spf13/cobra"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := simulator.Config{}
	var (
		runTimeout time.Duration
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:           "observer-sim",
		Short:         "Drive simulated observers against a running coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  # Four observers, tracking forced on
  observer-sim --force-start

  # Heavier run against another host
  observer-sim --url http://10.0.0.5:9080 --observers 16 --interactions 1000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWith(os.Stderr, logFormat); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			if cfg.Verbose {
				_ = logger.SetLevelString("debug")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
			defer cancel()

			stats, err := simulator.Run(ctx, &cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"raw=%d ignored=%d throttled=%d sampled=%d forwarded=%d accepted=%d suppressed=%d failed=%d clicks=%d->%d\n",
				stats.Raw, stats.Ignored, stats.Throttled, stats.Sampled, stats.Forwarded,
				stats.Accepted, stats.Suppressed, stats.Failed, stats.ClicksBefore, stats.ClicksAfter)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the coordinator")
	f.IntVar(&cfg.Observers, "observers", simulator.DefaultObservers, "Number of concurrent observers")
	f.IntVar(&cfg.Interactions, "interactions", simulator.DefaultInteractions, "Raw interactions per observer")
	f.DurationVar(&cfg.Timeout, "timeout", simulator.DefaultTimeout, "HTTP request timeout")
	f.DurationVar(&cfg.VerifyTimeout, "verify-timeout", simulator.DefaultVerifyTimeout, "How long to wait for clicks to be applied")
	f.BoolVar(&cfg.ForceStart, "force-start", false, "Force tracking on before interacting")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Log every interaction outcome")
	f.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "Overall run timeout")
	f.StringVar(&logFormat, "log-format", "text", "Log encoding: text or json")
	return cmd
}
