package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharecrop/internal/models"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	declareErr error
	publishErr error
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if c.declareErr != nil {
		return amqp.Queue{}, c.declareErr
	}
	c.declared = append(c.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func TestPublishNotification(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewPublisherWithChannel(ch, "notifications")
	require.NoError(t, err)
	assert.Equal(t, []string{"notifications"}, ch.declared)

	n := models.Notification{ID: "n1", UserID: "farmer", Type: models.NotificationNewOrder, Title: "New Order Received"}
	require.NoError(t, p.PublishNotification(context.Background(), n))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "notifications", ch.keys[0])
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "new_order", msg.Type)

	var decoded models.Notification
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "farmer", decoded.UserID)
}

func TestPublisherErrors(t *testing.T) {
	_, err := NewPublisherWithChannel(&fakeChannel{declareErr: errors.New("access refused")}, "q")
	assert.Error(t, err)

	p, err := NewPublisherWithChannel(&fakeChannel{publishErr: errors.New("channel closed")}, "q")
	require.NoError(t, err)
	err = p.PublishNotification(context.Background(), models.Notification{ID: "n1"})
	assert.ErrorContains(t, err, "n1")
}
