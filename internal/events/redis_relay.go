package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRelay forwards local events to a Redis channel so other
// processes (dashboards, schedulers) observe cache and limit changes.
type RedisRelay struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisRelay creates the relay. A nil client disables publishing.
func NewRedisRelay(client *redis.Client, channel string, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, logger: logger}
}

// Attach subscribes the relay to every event type on the dispatcher.
func (r *RedisRelay) Attach(dispatcher Dispatcher) {
	for _, t := range []EventType{EventMetricsUpdated, EventSLAReset, EventLimitsRecalibrated} {
		dispatcher.Subscribe(t, r.publish)
	}
}

func (r *RedisRelay) publish(ctx context.Context, event Event) error {
	if r.client == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		r.logger.Warn("event relay publish failed",
			zap.String("type", string(event.Type)), zap.Error(err))
		return err
	}
	return nil
}
