package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader MessageReader
	log    *logger.Logger
}

// NewConsumer creates a consumer for topic in the given group.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, log: log}
}

func NewConsumerWithReader(reader MessageReader, log *logger.Logger) *Consumer {
	return &Consumer{reader: reader, log: log}
}

// ConsumePurchases decodes purchase events and hands them to handler until
// ctx is cancelled. Undecodable messages and handler errors are logged and
// skipped.
func (c *Consumer) ConsumePurchases(ctx context.Context, handler func(ctx context.Context, event models.PurchaseEvent) error) error {
	c.log.Info("KAFKA", "Purchase consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		var event models.PurchaseEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message at offset %d: %v", msg.Offset, err))
			continue
		}

		c.log.LogKafka("RECEIVE", msg.Topic, "order="+event.OrderID)
		if err := handler(ctx, event); err != nil {
			c.log.Error("KAFKA", fmt.Sprintf("Handler failed for order %s: %v", event.OrderID, err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
