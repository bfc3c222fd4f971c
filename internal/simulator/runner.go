package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/workpulse/internal/observer"
	"github.com/okian/workpulse/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Run executes a complete simulation and returns its totals.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	applyDefaults(config)
	log := logger.Get().Named("simulator")
	stats := &Stats{StartTime: time.Now(), Observers: config.Observers}

	log.Info(ctx, "starting observer simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("observers", config.Observers),
		logger.Int("interactions", config.Interactions),
		logger.Bool("forceStart", config.ForceStart))

	client := NewHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Baseline
	before, err := client.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("baseline summary failed: %w", err)
	}
	stats.ClicksBefore = before.Clicks

	if config.ForceStart {
		if _, err := client.ForceStart(ctx); err != nil {
			return nil, fmt.Errorf("force start failed: %w", err)
		}
	}

	// Step 3: Drive the observers concurrently
	var (
		mu     sync.Mutex
		totals observer.Counts
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < config.Observers; i++ {
		g.Go(func() error {
			counts, err := runObserver(gctx, config, client, i)
			if err != nil {
				return err
			}
			mu.Lock()
			totals = addCounts(totals, counts)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("observer run failed: %w", err)
	}
	stats.Raw, stats.Ignored = totals.Raw, totals.Ignored
	stats.Throttled, stats.Sampled = totals.Throttled, totals.Sampled
	stats.Forwarded, stats.Accepted = totals.Forwarded, totals.Accepted
	stats.Suppressed, stats.Failed = totals.Suppressed, totals.Failed

	// Step 4: Verify that the accepted clicks were applied
	if err := verifyClicks(ctx, config, client, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

func applyDefaults(c *Config) {
	if c.Observers < 1 {
		c.Observers = DefaultObservers
	}
	if c.Interactions < 1 {
		c.Interactions = DefaultInteractions
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.VerifyTimeout <= 0 {
		c.VerifyTimeout = DefaultVerifyTimeout
	}
}

// runObserver registers one observer, feeds it interactions and returns its
// counts.
func runObserver(ctx context.Context, config *Config, client *HTTPClient, n int) (observer.Counts, error) {
	log := logger.Get().Named("simulator")
	observerURL := fmt.Sprintf("sim://observer/%d", n)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := OpenStream(streamCtx, config.BaseURL, observerURL)
	if err != nil {
		return observer.Counts{}, err
	}
	defer func() { _ = stream.Close() }()

	agent, err := observer.New(client,
		observer.WithID(stream.ID()),
		observer.WithURL(observerURL),
		observer.WithLogger(log),
	)
	if err != nil {
		return observer.Counts{}, err
	}

	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		stream.Pump(streamCtx, agent)
	}()

	if err := agent.Sync(ctx); err != nil {
		return observer.Counts{}, fmt.Errorf("sync observer %s: %w", agent.ID(), err)
	}

	for _, in := range generateInteractions(config.Interactions, time.Now()) {
		outcome, err := agent.Interact(ctx, in)
		if err != nil && ctx.Err() != nil {
			return observer.Counts{}, ctx.Err()
		}
		if config.Verbose {
			log.Debug(ctx, "interaction",
				logger.String("observer_id", agent.ID()),
				logger.String("type", in.Type),
				logger.String("outcome", outcome.String()))
		}
	}

	cancel()
	_ = stream.Close()
	<-pumped
	return agent.Counts(), nil
}

func addCounts(a, b observer.Counts) observer.Counts {
	return observer.Counts{
		Raw:        a.Raw + b.Raw,
		Ignored:    a.Ignored + b.Ignored,
		Throttled:  a.Throttled + b.Throttled,
		Sampled:    a.Sampled + b.Sampled,
		Forwarded:  a.Forwarded + b.Forwarded,
		Accepted:   a.Accepted + b.Accepted,
		Suppressed: a.Suppressed + b.Suppressed,
		Failed:     a.Failed + b.Failed,
	}
}

// displayFinalStats logs the final simulation statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate float64
	if stats.Forwarded > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Forwarded) * percentageMultiplier
	}

	logger.Get().Named("simulator").Info(ctx, "final statistics",
		logger.Int("observers", stats.Observers),
		logger.Int("raw", stats.Raw),
		logger.Int("ignored", stats.Ignored),
		logger.Int("throttled", stats.Throttled),
		logger.Int("sampled", stats.Sampled),
		logger.Int("forwarded", stats.Forwarded),
		logger.Int("accepted", stats.Accepted),
		logger.Int("suppressed", stats.Suppressed),
		logger.Int("failed", stats.Failed),
		logger.Int("clicksBefore", stats.ClicksBefore),
		logger.Int("clicksAfter", stats.ClicksAfter),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate))
}
