package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	app "github.com/okian/workpulse/internal/app"
	"github.com/okian/workpulse/internal/config"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "workpulse",
		Short:         "Schedule-driven work activity coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCleanupCmd())
	root.AddCommand(newResetCmd())
	return root
}

// loadConfig reads the layered configuration and sets up logging from it.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWith(os.Stderr, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// serviceOptions translates the configuration into service options.
func serviceOptions(cfg *config.Config) ([]app.Option, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	seed, err := cfg.SeedSchedule()
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(logger.Get()),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithIntervals(cfg.TickInterval, cfg.CleanupInterval),
		app.WithRetentionDays(cfg.RetentionDays),
		app.WithLocation(loc),
		app.WithStoreSettings(cfg.StoreSettings()),
		app.WithObserverBuffer(cfg.ObserverBuffer),
		app.WithDeliveryTimeout(cfg.DeliveryTimeout),
	}
	if seed != nil {
		opts = append(opts, app.WithSeedSchedule(seed))
	}
	if cfg.BroadcastRedis {
		opts = append(opts, app.WithRedisBroadcast(nil, cfg.BroadcastChannel))
	}
	return opts, nil
}

// openService opens the configured store without starting the scheduler.
func openService(ctx context.Context) (*app.Service, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := serviceOptions(cfg)
	if err != nil {
		return nil, err
	}
	svc := app.New(opts...)
	if err := svc.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open service: %w", err)
	}
	return svc, nil
}
