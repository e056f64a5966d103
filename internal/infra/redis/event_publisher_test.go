package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"live-session-service/internal/domain"
)

func TestEventPublisherMirrorsEnvelope(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	publisher := NewEventPublisher(client)

	ctx := context.Background()
	sub := client.Subscribe(ctx, Channel("abc123"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	event := domain.UserJoined{UserID: "b@y.com", Name: "Bob"}
	if err := publisher.Publish(ctx, "abc123", event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var envelope struct {
			Type    domain.EventType  `json:"type"`
			Payload domain.UserJoined `json:"payload"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if envelope.Type != domain.EventUserJoined {
			t.Fatalf("expected user-joined type, got %s", envelope.Type)
		}
		if envelope.Payload.UserID != "b@y.com" || envelope.Payload.Name != "Bob" {
			t.Fatalf("unexpected payload: %+v", envelope.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for mirrored event")
	}
}
