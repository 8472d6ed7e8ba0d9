package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"sharecrop/internal/analytics"
	"sharecrop/internal/config"
	"sharecrop/internal/kafka"
	"sharecrop/internal/logger"
	"sharecrop/internal/models"
)

// analytics-worker copies order-created events from kafka into clickhouse.
func main() {
	log := logger.NewLogger()
	defer log.Close()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := analytics.NewSink(cfg.ClickHouse)
	if err != nil {
		log.Fatal("CLICKHOUSE", fmt.Sprintf("Failed to connect: %v", err))
	}
	defer sink.Close()
	if err := sink.EnsureSchema(ctx); err != nil {
		log.Fatal("CLICKHOUSE", fmt.Sprintf("Failed to create schema: %v", err))
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderCreated, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	log.Info("APP", fmt.Sprintf("Recording purchases from %s", cfg.Kafka.Topics.OrderCreated))
	err = consumer.ConsumePurchases(ctx, func(ctx context.Context, event models.PurchaseEvent) error {
		if err := sink.RecordPurchase(ctx, event); err != nil {
			return err
		}
		log.Debug("ANALYTICS", fmt.Sprintf("recorded order %s", event.OrderID))
		return nil
	})
	if err != nil {
		log.Fatal("KAFKA", err.Error())
	}
	log.Info("APP", "Analytics worker stopped")
}
