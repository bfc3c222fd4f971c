package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/workpulse/pkg/logger"
)

// verifyClicks polls today's summary until the click count has grown by at
// least the accepted count or the verify timeout passes.
func verifyClicks(ctx context.Context, config *Config, client *HTTPClient, stats *Stats) error {
	log := logger.Get().Named("simulator")
	want := stats.ClicksBefore + stats.Accepted
	deadline := time.Now().Add(config.VerifyTimeout)

	for {
		sum, err := client.Summary(ctx)
		if err != nil {
			return err
		}
		stats.ClicksAfter = sum.Clicks
		if sum.Clicks >= want {
			log.Info(ctx, "clicks verified",
				logger.Int("accepted", stats.Accepted),
				logger.Int("grew", sum.Clicks-stats.ClicksBefore))
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: today's clicks grew by %d, %d were accepted",
				ErrVerification, sum.Clicks-stats.ClicksBefore, stats.Accepted)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(verifyPollInterval):
		}
	}
}
