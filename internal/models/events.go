package models

import "time"

// PurchaseEvent is published after a purchase commits.
type PurchaseEvent struct {
	OrderID        string         `json:"order_id"`
	ListingID      string         `json:"listing_id"`
	BuyerID        string         `json:"buyer_id"`
	FarmerID       string         `json:"farmer_id"`
	Quantity       float64        `json:"quantity"`
	TotalCost      string         `json:"total_cost"`
	Coins          int64          `json:"coins"`
	ShippingMethod ShippingMethod `json:"shipping_method"`
	FarmerCreated  bool           `json:"farmer_created"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

func NewPurchaseEvent(o Order, farmerCreated bool) PurchaseEvent {
	return PurchaseEvent{
		OrderID:        o.ID,
		ListingID:      o.ListingID,
		BuyerID:        o.BuyerID,
		FarmerID:       o.FarmerID,
		Quantity:       o.Quantity,
		TotalCost:      o.TotalCost.StringFixed(2),
		Coins:          o.CoinsCharged,
		ShippingMethod: o.ShippingMethod,
		FarmerCreated:  farmerCreated,
		OccurredAt:     o.CreatedAt,
	}
}

// StatusChangeEvent is published when an order or farm order changes status.
type StatusChangeEvent struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
