package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naijaedu/alerts-service/internal/events"
	"naijaedu/alerts-service/internal/model"
)

func TestPublish_EnvelopeOnEventChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, events.EventSavedSearchRun)
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	p := events.NewRedisPublisher(rdb)
	require.NoError(t, p.Publish(ctx, events.EventSavedSearchRun, model.RunSummary{Checked: 3, Sent: 1}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, events.EventSavedSearchRun, msg.Channel)

	var env struct {
		Type    string           `json:"type"`
		RunID   string           `json:"runId"`
		At      time.Time        `json:"at"`
		Payload model.RunSummary `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
	assert.Equal(t, events.EventSavedSearchRun, env.Type)
	assert.NotEmpty(t, env.RunID)
	assert.False(t, env.At.IsZero())
	assert.Equal(t, 3, env.Payload.Checked)
	assert.Equal(t, 1, env.Payload.Sent)
}

func TestPublish_BackendDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer rdb.Close()

	err := events.NewRedisPublisher(rdb).Publish(context.Background(), events.EventDeadlineRun, map[string]int{"sent": 1})
	assert.Error(t, err)
}
