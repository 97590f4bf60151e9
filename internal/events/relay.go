package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"beast-crm/internal/logging"
)

// Relay carries envelopes between instances over Redis pub/sub. Each instance
// keeps its own registry; Run feeds whatever arrives on the channel into it.
type Relay struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	log     *slog.Logger
}

func NewRelay(rdb *redis.Client, channel string, hub *Hub, log *slog.Logger) *Relay {
	if log == nil {
		log = logging.Discard()
	}
	return &Relay{rdb: rdb, channel: channel, hub: hub, log: log}
}

// Publish returns the number of instances subscribed to the channel.
func (r *Relay) Publish(ctx context.Context, env Envelope) (int64, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("encode envelope: %w", err)
	}
	n, err := r.rdb.Publish(ctx, r.channel, data).Result()
	if err != nil {
		return 0, fmt.Errorf("redis publish: %w", err)
	}
	return n, nil
}

// Run blocks until ctx is cancelled or the subscription ends. ready, when not
// nil, is closed once the subscription is confirmed by Redis.
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	r.log.Info("event relay subscribed", slog.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Type == "" {
				r.log.Warn("dropping malformed relay message", logging.Err(err))
				continue
			}
			r.hub.Deliver(ctx, env)
		}
	}
}
