package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"live-session-service/internal/domain"
)

// EventPublisher mirrors every session event onto a Redis pub/sub channel
// named session:{id}, as a {type, payload} JSON envelope. Peer instances (or
// any external consumer) can subscribe to follow a session without holding a
// websocket to this process.
type EventPublisher struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

type envelope struct {
	Type    domain.EventType `json:"type"`
	Payload domain.Event     `json:"payload"`
}

func (p *EventPublisher) Publish(ctx context.Context, sessionID string, event domain.Event) error {
	data, err := json.Marshal(envelope{Type: event.Type(), Payload: event})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(sessionID), data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Channel returns the pub/sub channel name for a session.
func Channel(sessionID string) string {
	return "session:" + sessionID
}
