package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
)

type ShippingMethod string

const (
	ShippingNone     ShippingMethod = ""
	ShippingPickup   ShippingMethod = "pickup"
	ShippingDelivery ShippingMethod = "delivery"
)

func ParseShippingMethod(raw string) (ShippingMethod, error) {
	switch ShippingMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case ShippingPickup:
		return ShippingPickup, nil
	case ShippingDelivery:
		return ShippingDelivery, nil
	case ShippingNone:
		return ShippingNone, nil
	}
	return ShippingNone, fmt.Errorf("unknown shipping method %q", raw)
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderActive    OrderStatus = "active"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderActive, OrderCancelled},
	OrderActive:    {OrderCompleted, OrderCancelled},
}

// CanTransitionTo reports whether an order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is the buyer-side record of a purchase. Only Status changes after creation.
type Order struct {
	ID             string          `json:"id"`
	ListingID      string          `json:"listing_id"`
	ListingName    string          `json:"listing_name"`
	BuyerID        string          `json:"buyer_id"`
	FarmerID       string          `json:"farmer_id"`
	FarmerName     string          `json:"farmer_name,omitempty"`
	Quantity       float64         `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	CoinsCharged   int64           `json:"coins_charged"`
	ShippingMethod ShippingMethod  `json:"shipping_method"`
	Status         OrderStatus     `json:"status"`
	Location       string          `json:"location,omitempty"`
	CropType       string          `json:"crop_type,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
}

type RentedField struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	RenterID    string          `json:"renter_id"`
	Name        string          `json:"name"`
	FarmerID    string          `json:"farmer_id"`
	FarmerName  string          `json:"farmer_name,omitempty"`
	Location    string          `json:"location,omitempty"`
	CropType    string          `json:"crop_type,omitempty"`
	AreaRented  float64         `json:"area_rented"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	MonthlyRent decimal.Decimal `json:"monthly_rent"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Coordinates *orb.Point      `json:"coordinates,omitempty"`
}

type FarmOrderStatus string

const (
	FarmOrderPending   FarmOrderStatus = "pending"
	FarmOrderAccepted  FarmOrderStatus = "accepted"
	FarmOrderRejected  FarmOrderStatus = "rejected"
	FarmOrderShipped   FarmOrderStatus = "shipped"
	FarmOrderDelivered FarmOrderStatus = "delivered"
	FarmOrderCancelled FarmOrderStatus = "cancelled"
)

var farmOrderTransitions = map[FarmOrderStatus][]FarmOrderStatus{
	FarmOrderPending:  {FarmOrderAccepted, FarmOrderRejected, FarmOrderCancelled},
	FarmOrderAccepted: {FarmOrderShipped, FarmOrderCancelled},
	FarmOrderShipped:  {FarmOrderDelivered},
}

func (s FarmOrderStatus) CanTransitionTo(next FarmOrderStatus) bool {
	for _, allowed := range farmOrderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FarmOrder is the farmer-facing view of a purchase of a farmer-created listing.
type FarmOrder struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	ListingID      string          `json:"listing_id"`
	ListingName    string          `json:"listing_name"`
	BuyerID        string          `json:"buyer_id"`
	BuyerName      string          `json:"buyer_name"`
	FarmerID       string          `json:"farmer_id"`
	Quantity       float64         `json:"quantity"`
	TotalPrice     int64           `json:"total_price"`
	ShippingMethod ShippingMethod  `json:"shipping_method"`
	Status         FarmOrderStatus `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at,omitempty"`
}

type NotificationType string

const (
	NotificationNewOrder    NotificationType = "new_order"
	NotificationOrderStatus NotificationType = "order_status"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	OrderID   string           `json:"order_id,omitempty"`
	ListingID string           `json:"listing_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
