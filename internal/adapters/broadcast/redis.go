package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/okian/workpulse/internal/domain/types"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/okian/workpulse/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel notifications travel on.
const DefaultChannel = "workpulse:notifications"

// envelope tags a notification with the publishing process.
type envelope struct {
	Origin       string             `json:"origin"`
	Notification types.Notification `json:"notification"`
}

// RedisPublisher forwards notifications to other coordinator processes
// through Redis pub/sub.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	origin  string
	logger  logger.Logger
}

// NewRedisPublisher creates a publisher with a fresh origin id.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger.Get().Named("broadcast.redis"),
	}
}

// Origin identifies this process on the channel.
func (p *RedisPublisher) Origin() string { return p.origin }

// Notify publishes n. A publish error counts as one failed delivery.
func (p *RedisPublisher) Notify(ctx context.Context, n types.Notification) types.DeliveryReport {
	report := types.DeliveryReport{Action: n.Action, Attempted: 1}

	payload, err := json.Marshal(envelope{Origin: p.origin, Notification: n})
	if err == nil {
		err = p.client.Publish(ctx, p.channel, payload).Err()
	}
	if err != nil {
		report.Failed = 1
		metrics.RecordBroadcastDelivery(string(n.Action), "publish_failed")
		p.logger.Debug(ctx, "publish failed", logger.String("channel", p.channel), logger.Error(err))
		return report
	}
	report.Delivered = 1
	metrics.RecordBroadcastDelivery(string(n.Action), "published")
	return report
}

// Relay builds the subscriber side sharing this publisher's origin, so a
// process never re-delivers its own notifications.
func (p *RedisPublisher) Relay(local Notifier) *RedisRelay {
	return &RedisRelay{
		client:  p.client,
		channel: p.channel,
		origin:  p.origin,
		local:   local,
		logger:  p.logger,
	}
}

// RedisRelay delivers statsUpdated notifications published by other
// processes to the local observers.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	local   Notifier
	logger  logger.Logger
}

// Run subscribes and relays until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info(ctx, "relay subscribed", logger.String("channel", r.channel))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.handle(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Warn(ctx, "dropping malformed relay message", logger.Error(err))
		return
	}
	if env.Origin == r.origin {
		return
	}
	// Start and stop belong to the local controller.
	if env.Notification.Action != types.ActionStatsUpdated {
		metrics.RecordBroadcastDelivery(string(env.Notification.Action), "relay_skipped")
		return
	}
	r.local.Notify(ctx, env.Notification)
}
