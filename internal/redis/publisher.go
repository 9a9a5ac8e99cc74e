package redisclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/opd-token-allocation/internal/allocation"
)

// EventPublisher pushes engine events onto a Redis pub/sub channel so
// front-desk displays and notifiers can follow queue changes.
type EventPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewEventPublisher(client redis.UniversalClient, channel string) *EventPublisher {
	return &EventPublisher{client: client, channel: channel}
}

func (p *EventPublisher) Channel() string {
	return p.channel
}

func (p *EventPublisher) Publish(ctx context.Context, ev allocation.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", ev.EventType, p.channel, err)
	}
	return nil
}

// Subscribe decodes events from the channel until ctx is done or the
// subscription fails. Malformed messages are skipped.
func (p *EventPublisher) Subscribe(ctx context.Context, fn func(allocation.Event)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev allocation.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			fn(ev)
		}
	}
}
