package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (c *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublishUsesEventAsRoutingKey(t *testing.T) {
	ch := &recordingChannel{}
	p := newPublisher(ch, "assessment.events", nil)
	p.now = func() time.Time { return time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC) }

	err := p.Publish(context.Background(), "attempt.submitted", map[string]int{"score": 3})
	require.NoError(t, err)

	assert.Equal(t, "assessment.events", ch.exchange)
	assert.Equal(t, "attempt.submitted", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var env struct {
		Type    string         `json:"type"`
		Payload map[string]int `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(ch.msg.Body, &env))
	assert.Equal(t, "attempt.submitted", env.Type)
	assert.Equal(t, 3, env.Payload["score"])

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublishWrapsChannelErrors(t *testing.T) {
	ch := &recordingChannel{err: errors.New("channel closed")}
	p := newPublisher(ch, "assessment.events", nil)

	err := p.Publish(context.Background(), "attempt.request.created", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt.request.created")
}
