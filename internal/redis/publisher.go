package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher fans booking events out on a Redis pub/sub channel for the
// external notifier to consume. Delivery is fire-and-forget: a failed
// publish is reported to the caller for logging and nothing more.
type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(client *redis.Client, channel string) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
	}
}

type eventEnvelope struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

func (p *Publisher) Notify(ctx context.Context, event string, payload map[string]any) error {
	data, err := json.Marshal(eventEnvelope{
		Event:   event,
		Payload: payload,
		At:      time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event, err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", event, err)
	}

	return nil
}
