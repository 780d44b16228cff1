package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is the Pub/Sub channel shared by all instances.
const DefaultChannel = "wager_events"

// RedisRelay publishes deliveries to a Redis Pub/Sub channel so every
// instance can hand them to its own Hub.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisRelay creates a relay on channel.
func NewRedisRelay(client redis.UniversalClient, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{client: client, channel: channel}
}

// Name implements Sink.
func (r *RedisRelay) Name() string { return "redis" }

// Deliver publishes d on the relay channel.
func (r *RedisRelay) Deliver(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode delivery: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", r.channel, err)
	}
	return nil
}

// Subscribe confirms the subscription and then forwards every message on the
// relay channel to local until ctx is cancelled. It blocks; run it in its own
// goroutine. ready, if not nil, is closed once the subscription is active.
func (r *RedisRelay) Subscribe(ctx context.Context, local Sink, ready chan<- struct{}) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	log.Info().Str("channel", r.channel).Msg("Redis relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var d Delivery
			if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
				log.Warn().Err(err).Str("channel", r.channel).Msg("Dropping malformed relay message")
				continue
			}
			if err := local.Deliver(ctx, d); err != nil {
				log.Error().Err(err).Str("event_id", d.Event.ID).Msg("Failed to deliver relayed event")
			}
		}
	}
}

var _ Sink = (*RedisRelay)(nil)
