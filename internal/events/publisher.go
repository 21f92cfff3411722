// Package events publishes alert run summaries on Redis pub/sub, the same
// channel-per-event-type convention the gateway already forwards over SSE.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	EventSavedSearchRun = "EVENT_SAVED_SEARCH_RUN"
	EventDeadlineRun    = "EVENT_DEADLINE_ALERT_RUN"
)

// Envelope is the JSON published on each channel.
type Envelope struct {
	Type    string    `json:"type"`
	RunID   string    `json:"runId"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// RedisPublisher publishes envelopes with PUBLISH.
type RedisPublisher struct {
	rdb redis.Cmdable
	now func() time.Time
}

// NewRedisPublisher returns a publisher using rdb.
func NewRedisPublisher(rdb redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, now: time.Now}
}

// Publish sends payload on the channel named eventType.
func (p *RedisPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	b, err := json.Marshal(Envelope{
		Type:    eventType,
		RunID:   uuid.NewString(),
		At:      p.now().UTC(),
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := p.rdb.Publish(ctx, eventType, b).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}
