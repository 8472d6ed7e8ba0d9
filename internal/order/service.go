package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
	"sharecrop/internal/store"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrFarmOrderNotFound = errors.New("farm order not found")
	ErrForbidden         = errors.New("not allowed to access this order")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type KafkaPublisher interface {
	PublishOrderUpdated(ctx context.Context, event models.StatusChangeEvent) error
	PublishFarmOrderUpdated(ctx context.Context, event models.StatusChangeEvent) error
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// OrderService manages orders after they were placed: buyer orders,
// rentals and the farmer side of farmer-created listings.
type OrderService struct {
	Store    *store.Store
	Kafka    KafkaPublisher
	Notifier Notifier
	Logger   *logger.Logger
	now      func() time.Time
}

func NewOrderService(st *store.Store, kafka KafkaPublisher, notifier Notifier, log *logger.Logger) *OrderService {
	return &OrderService{Store: st, Kafka: kafka, Notifier: notifier, Logger: log, now: time.Now}
}

// ---------------- ORDERS ----------------

// ListOrders returns the buyer's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, buyerID string) ([]models.Order, error) {
	orders, err := s.Store.UserOrders(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

// GetOrder returns an order visible to the requester (its buyer or farmer).
func (s *OrderService) GetOrder(ctx context.Context, requesterID, id string) (*models.Order, error) {
	orders, err := s.Store.Orders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		if orders[i].BuyerID != requesterID && orders[i].FarmerID != requesterID {
			return nil, ErrForbidden
		}
		return &orders[i], nil
	}
	return nil, fmt.Errorf("%s: %w", id, ErrOrderNotFound)
}

// UpdateStatus moves an order along its lifecycle. Cancelling an order also
// cancels its farm order while the farmer can still act on it.
func (s *OrderService) UpdateStatus(ctx context.Context, actorID, id string, next models.OrderStatus) (*models.Order, error) {
	var updated models.Order
	var from models.OrderStatus
	var farmOrderChange *models.StatusChangeEvent

	err := s.Store.Update(ctx, func(tx *store.Tx) error {
		farmOrderChange = nil
		orders, err := tx.Orders()
		if err != nil {
			return err
		}
		idx := -1
		for i := range orders {
			if orders[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%s: %w", id, ErrOrderNotFound)
		}
		o := orders[idx]
		if o.BuyerID != actorID && o.FarmerID != actorID {
			return ErrForbidden
		}
		if !o.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
		}

		from = o.Status
		o.Status = next
		orders[idx] = o
		updated = o
		if err := tx.PutOrders(orders); err != nil {
			return err
		}

		if next != models.OrderCancelled {
			return nil
		}
		farmOrders, err := tx.FarmOrders()
		if err != nil {
			return err
		}
		for i := range farmOrders {
			fo := &farmOrders[i]
			if fo.OrderID != id || !fo.Status.CanTransitionTo(models.FarmOrderCancelled) {
				continue
			}
			farmOrderChange = &models.StatusChangeEvent{
				ID: fo.ID, Kind: "farm_order", From: string(fo.Status), To: string(models.FarmOrderCancelled),
				ActorID: actorID, OccurredAt: s.now().UTC(),
			}
			fo.Status = models.FarmOrderCancelled
			fo.UpdatedAt = s.now().UTC()
			return tx.PutFarmOrders(farmOrders)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("ORDER", fmt.Sprintf("Order %s moved %s -> %s by %s", id, from, next, actorID))
	s.publishOrder(ctx, models.StatusChangeEvent{
		ID: id, Kind: "order", From: string(from), To: string(next), ActorID: actorID, OccurredAt: s.now().UTC(),
	})
	if farmOrderChange != nil {
		s.publishFarmOrder(ctx, *farmOrderChange)
	}
	return &updated, nil
}

func (s *OrderService) CancelOrder(ctx context.Context, actorID, id string) (*models.Order, error) {
	return s.UpdateStatus(ctx, actorID, id, models.OrderCancelled)
}

// ListRentedFields returns the renter's rented fields.
func (s *OrderService) ListRentedFields(ctx context.Context, renterID string) ([]models.RentedField, error) {
	return s.Store.UserRentedFields(ctx, renterID)
}

// ---------------- FARM ORDERS ----------------

// ListFarmOrders returns the farmer's orders, newest first, optionally
// limited to one status.
func (s *OrderService) ListFarmOrders(ctx context.Context, farmerID string, status models.FarmOrderStatus) ([]models.FarmOrder, error) {
	all, err := s.Store.FarmerFarmOrders(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	out := make([]models.FarmOrder, 0, len(all))
	for _, fo := range all {
		if status == "" || fo.Status == status {
			out = append(out, fo)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Respond accepts or rejects a pending farm order.
func (s *OrderService) Respond(ctx context.Context, farmer models.Identity, farmOrderID string, accept bool) (*models.FarmOrder, error) {
	next := models.FarmOrderRejected
	if accept {
		next = models.FarmOrderAccepted
	}
	return s.Advance(ctx, farmer, farmOrderID, next)
}

// Advance moves a farm order to next and tells the buyer about it.
func (s *OrderService) Advance(ctx context.Context, farmer models.Identity, farmOrderID string, next models.FarmOrderStatus) (*models.FarmOrder, error) {
	var updated models.FarmOrder
	var from models.FarmOrderStatus
	var note models.Notification
	now := s.now().UTC()

	err := s.Store.Update(ctx, func(tx *store.Tx) error {
		farmOrders, err := tx.FarmOrders()
		if err != nil {
			return err
		}
		idx := -1
		for i := range farmOrders {
			if farmOrders[i].ID == farmOrderID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%s: %w", farmOrderID, ErrFarmOrderNotFound)
		}
		fo := farmOrders[idx]
		if fo.FarmerID != farmer.ID {
			return ErrForbidden
		}
		if !fo.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, fo.Status, next)
		}

		from = fo.Status
		fo.Status = next
		fo.UpdatedAt = now
		farmOrders[idx] = fo
		updated = fo
		if err := tx.PutFarmOrders(farmOrders); err != nil {
			return err
		}

		note = statusNotification(fo, farmer, now)
		notes, err := tx.Notifications(fo.BuyerID)
		if err != nil {
			return err
		}
		return tx.PutNotifications(fo.BuyerID, append(notes, note))
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("ORDER", fmt.Sprintf("Farm order %s moved %s -> %s by %s", farmOrderID, from, next, farmer.ID))
	s.publishFarmOrder(ctx, models.StatusChangeEvent{
		ID: farmOrderID, Kind: "farm_order", From: string(from), To: string(next), ActorID: farmer.ID, OccurredAt: now,
	})
	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, note); err != nil {
			s.Logger.Warn("ORDER", fmt.Sprintf("Failed to dispatch status notification: %v", err))
		}
	}
	return &updated, nil
}

func statusNotification(fo models.FarmOrder, farmer models.Identity, now time.Time) models.Notification {
	farmerName := farmer.Name
	if farmerName == "" {
		farmerName = "The farmer"
	}
	var title string
	switch fo.Status {
	case models.FarmOrderAccepted:
		title = "Order Accepted"
	case models.FarmOrderRejected:
		title = "Order Rejected"
	case models.FarmOrderShipped:
		title = "Order Shipped"
	case models.FarmOrderDelivered:
		title = "Order Delivered"
	default:
		title = "Order Updated"
	}
	return models.Notification{
		ID:        uuid.New().String(),
		UserID:    fo.BuyerID,
		Type:      models.NotificationOrderStatus,
		Title:     title,
		Message:   fmt.Sprintf("%s marked your order for \"%s\" as %s", farmerName, fo.ListingName, fo.Status),
		OrderID:   fo.OrderID,
		ListingID: fo.ListingID,
		CreatedAt: now,
	}
}

// FarmerStats summarizes a farmer's orders.
type FarmerStats struct {
	TotalOrders     int                            `json:"total_orders"`
	TotalRevenue    int64                          `json:"total_revenue"`
	PendingOrders   int                            `json:"pending_orders"`
	DeliveredOrders int                            `json:"delivered_orders"`
	ByStatus        map[models.FarmOrderStatus]int `json:"by_status"`
}

// Stats counts the farmer's orders by status. Revenue is in coins and
// ignores rejected and cancelled orders.
func (s *OrderService) Stats(ctx context.Context, farmerID string) (*FarmerStats, error) {
	orders, err := s.Store.FarmerFarmOrders(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	stats := &FarmerStats{ByStatus: make(map[models.FarmOrderStatus]int)}
	for _, fo := range orders {
		stats.TotalOrders++
		stats.ByStatus[fo.Status]++
		switch fo.Status {
		case models.FarmOrderPending:
			stats.PendingOrders++
		case models.FarmOrderDelivered:
			stats.DeliveredOrders++
		}
		if fo.Status != models.FarmOrderRejected && fo.Status != models.FarmOrderCancelled {
			stats.TotalRevenue += fo.TotalPrice
		}
	}
	return stats, nil
}

func (s *OrderService) publishOrder(ctx context.Context, event models.StatusChangeEvent) {
	if s.Kafka == nil {
		return
	}
	if err := s.Kafka.PublishOrderUpdated(ctx, event); err != nil {
		s.Logger.Warn("ORDER", fmt.Sprintf("Kafka publish error (order updated): %v", err))
	}
}

func (s *OrderService) publishFarmOrder(ctx context.Context, event models.StatusChangeEvent) {
	if s.Kafka == nil {
		return
	}
	if err := s.Kafka.PublishFarmOrderUpdated(ctx, event); err != nil {
		s.Logger.Warn("ORDER", fmt.Sprintf("Kafka publish error (farm order updated): %v", err))
	}
}
