package broadcast

import (
	"context"

	"github.com/okian/workpulse/internal/domain/types"
)

// Notifier is anything that can deliver a notification.
type Notifier interface {
	Notify(ctx context.Context, n types.Notification) types.DeliveryReport
}

// Fanout sends each notification to several notifiers and merges reports.
type Fanout []Notifier

// Notify delivers n to every member in order.
func (f Fanout) Notify(ctx context.Context, n types.Notification) types.DeliveryReport {
	report := types.DeliveryReport{Action: n.Action}
	for _, member := range f {
		if member == nil {
			continue
		}
		report = report.Merge(member.Notify(ctx, n))
	}
	return report
}
