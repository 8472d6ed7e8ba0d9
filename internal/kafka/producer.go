package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"sharecrop/internal/config"
	"sharecrop/internal/logger"
	"sharecrop/internal/models"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes marketplace events. Each message carries its own topic.
type Producer struct {
	Writer MessageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// Publish encodes value as JSON and writes it to topic under key.
func (p *Producer) Publish(ctx context.Context, topic, key string, value any) error {
	msgBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}

	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s bytes=%d", key, len(msgBytes)))

	return p.Writer.WriteMessages(ctx,
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

// PublishOrderCreated streams a committed purchase.
func (p *Producer) PublishOrderCreated(ctx context.Context, event models.PurchaseEvent) error {
	return p.Publish(ctx, p.Topics.OrderCreated, event.OrderID, event)
}

// PublishFarmOrderCreated streams the farmer-side order of a purchase.
func (p *Producer) PublishFarmOrderCreated(ctx context.Context, order models.FarmOrder) error {
	return p.Publish(ctx, p.Topics.FarmOrderCreated, order.ID, order)
}

func (p *Producer) PublishOrderUpdated(ctx context.Context, event models.StatusChangeEvent) error {
	return p.Publish(ctx, p.Topics.OrderUpdated, event.ID, event)
}

func (p *Producer) PublishFarmOrderUpdated(ctx context.Context, event models.StatusChangeEvent) error {
	return p.Publish(ctx, p.Topics.FarmOrderUpdated, event.ID, event)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
