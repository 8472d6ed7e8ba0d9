package notify

import (
	"context"
	"fmt"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
)

type QueuePublisher interface {
	PublishNotification(ctx context.Context, n models.Notification) error
}

// Dispatcher delivers notifications that are already persisted: live to
// the hub and, when configured, onto the notification queue.
type Dispatcher struct {
	Hub    *Hub
	Queue  QueuePublisher
	Logger *logger.Logger
}

func NewDispatcher(hub *Hub, queue QueuePublisher, log *logger.Logger) *Dispatcher {
	return &Dispatcher{Hub: hub, Queue: queue, Logger: log}
}

func (d *Dispatcher) Notify(ctx context.Context, n models.Notification) error {
	if d.Hub != nil {
		delivered := d.Hub.Publish(n)
		d.Logger.Debug("NOTIFY", fmt.Sprintf("Notification %s delivered to %d live client(s) of %s", n.ID, delivered, n.UserID))
	}
	if d.Queue == nil {
		return nil
	}
	if err := d.Queue.PublishNotification(ctx, n); err != nil {
		return fmt.Errorf("queue notification %s: %w", n.ID, err)
	}
	return nil
}
