package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
	"sharecrop/internal/store"
)

const (
	defaultFarmerName = "Farm Owner"
	defaultLocation   = "Unknown Location"
	defaultCropType   = "Mixed Crops"
)

// Request is a buyer's intent to rent part of a listing.
type Request struct {
	Listing  models.Listing        `json:"listing"`
	Quantity float64               `json:"quantity"`
	Shipping models.ShippingMethod `json:"shipping"`
	Buyer    models.Identity       `json:"buyer"`
}

// Result is everything a successful purchase created.
type Result struct {
	Order          models.Order         `json:"order"`
	RentedField    models.RentedField   `json:"rented_field"`
	FarmOrder      *models.FarmOrder    `json:"farm_order,omitempty"`
	Notification   *models.Notification `json:"notification,omitempty"`
	CoinsRemaining int64                `json:"coins_remaining"`
	Listings       []models.Listing     `json:"listings,omitempty"`
}

// Reloader rebuilds the buyer's aggregated listings after a purchase.
type Reloader interface {
	Load(ctx context.Context, viewerID string) ([]models.Listing, error)
}

type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event models.PurchaseEvent) error
	PublishFarmOrderCreated(ctx context.Context, order models.FarmOrder) error
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type AnalyticsSink interface {
	RecordPurchase(ctx context.Context, event models.PurchaseEvent) error
}

type Settings struct {
	CoinValue         int64
	RentalTermMonths  int
	HighlightDuration time.Duration
}

// Workflow runs purchases. Events, Notifier and Analytics are optional and
// only run after the purchase has been committed.
type Workflow struct {
	Store       *store.Store
	Guard       Guard
	Reloader    Reloader
	Highlighter *Highlighter
	Events      EventPublisher
	Notifier    Notifier
	Analytics   AnalyticsSink
	Logger      *logger.Logger

	coinValue  decimal.Decimal
	termMonths int
	now        func() time.Time
}

func NewWorkflow(st *store.Store, guard Guard, reloader Reloader, log *logger.Logger, settings Settings) *Workflow {
	if guard == nil {
		guard = NewMemoryGuard()
	}
	if settings.CoinValue <= 0 {
		settings.CoinValue = 100
	}
	if settings.RentalTermMonths <= 0 {
		settings.RentalTermMonths = 6
	}
	if settings.HighlightDuration <= 0 {
		settings.HighlightDuration = 3 * time.Second
	}
	return &Workflow{
		Store:       st,
		Guard:       guard,
		Reloader:    reloader,
		Highlighter: NewHighlighter(settings.HighlightDuration),
		Logger:      log,
		coinValue:   decimal.NewFromInt(settings.CoinValue),
		termMonths:  settings.RentalTermMonths,
		now:         time.Now,
	}
}

// Quote prices a request without buying anything.
func (w *Workflow) Quote(listing models.Listing, quantity float64) Quote {
	return NewQuote(listing.UnitPrice, quantity, w.coinValue)
}

// Purchase validates the request and commits every record it produces in a
// single batch. Any error leaves the store untouched.
func (w *Workflow) Purchase(ctx context.Context, req Request) (*Result, error) {
	listing := req.Listing
	owner := uuid.New().String()

	ok, err := w.Guard.Acquire(ctx, listing.ID, owner)
	if err != nil {
		return nil, fmt.Errorf("acquire purchase guard: %w", err)
	}
	if !ok {
		w.Logger.LogPurchase("REJECT", listing.ID, "purchase already in progress")
		return nil, ErrAlreadyInProgress
	}
	defer func() {
		if err := w.Guard.Release(context.WithoutCancel(ctx), listing.ID, owner); err != nil {
			w.Logger.Warn("PURCHASE", fmt.Sprintf("Failed to release guard for %s: %v", listing.ID, err))
		}
	}()

	if err := w.validate(req); err != nil {
		w.Logger.LogPurchase("REJECT", listing.ID, err.Error())
		return nil, err
	}

	quote := w.Quote(listing, req.Quantity)
	result, err := w.commit(ctx, req, quote)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrInvalidQuantity) {
			w.Logger.LogPurchase("REJECT", listing.ID, err.Error())
			return nil, err
		}
		w.Logger.Error("PURCHASE", fmt.Sprintf("Failed to persist purchase of %s: %v", listing.ID, err))
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	w.Highlighter.Flash(listing.ID)
	w.Logger.LogPurchase("COMPLETE", listing.ID, fmt.Sprintf("buyer=%s qty=%g total=%s coins=%d",
		req.Buyer.ID, req.Quantity, quote.TotalCost.StringFixed(2), quote.RequiredCoins))

	w.publish(ctx, result, farmerCreated(listing))

	if w.Reloader != nil {
		listings, err := w.Reloader.Load(ctx, req.Buyer.ID)
		if err != nil {
			w.Logger.Warn("PURCHASE", fmt.Sprintf("Failed to reload listings after purchase: %v", err))
		} else {
			result.Listings = listings
		}
	}
	return result, nil
}

func (w *Workflow) validate(req Request) error {
	if req.Buyer.ID == "" {
		return ErrBuyerRequired
	}
	if req.Shipping == models.ShippingNone || !req.Listing.SupportsShipping(req.Shipping) {
		return ErrShippingNotSelected
	}
	if req.Listing.FarmerID != "" && req.Listing.FarmerID == req.Buyer.ID {
		return ErrSelfPurchase
	}
	if req.Quantity < 1 || req.Quantity > req.Listing.AvailableArea() {
		return ErrInvalidQuantity
	}
	return nil
}

func (w *Workflow) commit(ctx context.Context, req Request, quote Quote) (*Result, error) {
	listing := req.Listing
	buyer := req.Buyer
	now := w.now().UTC()
	result := &Result{}

	err := w.Store.Update(ctx, func(tx *store.Tx) error {
		coins, err := tx.Coins(buyer.ID)
		if err != nil {
			return err
		}
		if !quote.Affordable(coins, w.coinValue) {
			return fmt.Errorf("%w: need %d coins, have %d", ErrInsufficientFunds, quote.RequiredCoins, coins)
		}

		order := w.buildOrder(req, quote, now)
		rented := w.buildRentedField(order, listing)

		orders, err := tx.Orders()
		if err != nil {
			return err
		}
		if err := tx.PutOrders(append(orders, order)); err != nil {
			return err
		}

		rentals, err := tx.RentedFields()
		if err != nil {
			return err
		}
		if err := tx.PutRentedFields(append(rentals, rented)); err != nil {
			return err
		}

		if err := w.markPurchased(tx, listing, req.Quantity); err != nil {
			return err
		}

		remaining := coins - quote.RequiredCoins
		if err := tx.PutCoins(buyer.ID, remaining); err != nil {
			return err
		}

		result.Order = order
		result.RentedField = rented
		result.CoinsRemaining = remaining

		if !farmerCreated(listing) {
			return nil
		}

		farmOrder := w.buildFarmOrder(order, buyer, now)
		farmOrders, err := tx.FarmOrders()
		if err != nil {
			return err
		}
		if err := tx.PutFarmOrders(append(farmOrders, farmOrder)); err != nil {
			return err
		}

		note := w.buildFarmerNotification(farmOrder, now)
		notes, err := tx.Notifications(note.UserID)
		if err != nil {
			return err
		}
		if err := tx.PutNotifications(note.UserID, append(notes, note)); err != nil {
			return err
		}

		result.FarmOrder = &farmOrder
		result.Notification = &note
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// markPurchased updates the listing in the collection that owns it. Seed
// listings get a stored copy, which outranks the seed on the next load.
// Availability is checked against the committed copy, not the caller's.
func (w *Workflow) markPurchased(tx *store.Tx, listing models.Listing, quantity float64) error {
	apply := func(l *models.Listing) error {
		if quantity > l.AvailableArea() {
			return fmt.Errorf("%w: %g m² requested, %g m² left", ErrInvalidQuantity, quantity, l.AvailableArea())
		}
		l.IsPurchased = true
		l.OccupiedArea += quantity
		return nil
	}

	if farmerCreated(listing) {
		fields, err := tx.FarmerFields()
		if err != nil {
			return err
		}
		for i := range fields {
			if fields[i].ID == listing.ID {
				if err := apply(&fields[i]); err != nil {
					return err
				}
				return tx.PutFarmerFields(fields)
			}
		}
		return fmt.Errorf("farmer field %s: %w", listing.ID, store.ErrNotFound)
	}

	fields, err := tx.Fields()
	if err != nil {
		return err
	}
	for i := range fields {
		if fields[i].ID == listing.ID {
			if err := apply(&fields[i]); err != nil {
				return err
			}
			return tx.PutFields(fields)
		}
	}

	copied := listing
	copied.Source = models.SourceStored
	copied.IsOwnField = false
	if err := apply(&copied); err != nil {
		return err
	}
	return tx.PutFields(append(fields, copied))
}

func farmerCreated(l models.Listing) bool {
	return l.IsFarmerCreated || l.Source == models.SourceFarmerCreated
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func (w *Workflow) buildOrder(req Request, quote Quote, now time.Time) models.Order {
	l := req.Listing
	return models.Order{
		ID:             uuid.New().String(),
		ListingID:      l.ID,
		ListingName:    l.Name,
		BuyerID:        req.Buyer.ID,
		FarmerID:       l.FarmerID,
		FarmerName:     orDefault(l.FarmerName, defaultFarmerName),
		Quantity:       req.Quantity,
		UnitPrice:      l.UnitPrice,
		TotalCost:      quote.TotalCost,
		CoinsCharged:   quote.RequiredCoins,
		ShippingMethod: req.Shipping,
		Status:         models.OrderConfirmed,
		Location:       orDefault(l.Location, defaultLocation),
		CropType:       orDefault(l.Category, defaultCropType),
		Notes:          fmt.Sprintf("Purchased via marketplace. Shipping: %s", req.Shipping),
		CreatedAt:      now,
		StartDate:      now,
		EndDate:        now.AddDate(0, w.termMonths, 0),
	}
}

func (w *Workflow) buildRentedField(order models.Order, l models.Listing) models.RentedField {
	var coords *orb.Point
	if l.Coordinates != nil {
		p := *l.Coordinates
		coords = &p
	}
	return models.RentedField{
		ID:          l.ID,
		OrderID:     order.ID,
		RenterID:    order.BuyerID,
		Name:        l.Name,
		FarmerID:    l.FarmerID,
		FarmerName:  order.FarmerName,
		Location:    order.Location,
		CropType:    order.CropType,
		AreaRented:  order.Quantity,
		TotalCost:   order.TotalCost,
		MonthlyRent: MonthlyRent(order.TotalCost, w.termMonths),
		StartDate:   order.StartDate,
		EndDate:     order.EndDate,
		Status:      "active",
		Progress:    0,
		Coordinates: coords,
	}
}

func (w *Workflow) buildFarmOrder(order models.Order, buyer models.Identity, now time.Time) models.FarmOrder {
	return models.FarmOrder{
		ID:             uuid.New().String(),
		OrderID:        order.ID,
		ListingID:      order.ListingID,
		ListingName:    order.ListingName,
		BuyerID:        buyer.ID,
		BuyerName:      orDefault(buyer.Name, buyer.ID),
		FarmerID:       order.FarmerID,
		Quantity:       order.Quantity,
		TotalPrice:     order.CoinsCharged,
		ShippingMethod: order.ShippingMethod,
		Status:         models.FarmOrderPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// FarmerMessage is the notification text a farmer receives for a new order.
func FarmerMessage(buyerName string, quantity float64, listingName string, coins int64) string {
	return fmt.Sprintf("%s purchased %gm² of your field \"%s\" for $%d", buyerName, quantity, listingName, coins)
}

func (w *Workflow) buildFarmerNotification(fo models.FarmOrder, now time.Time) models.Notification {
	return models.Notification{
		ID:        uuid.New().String(),
		UserID:    fo.FarmerID,
		Type:      models.NotificationNewOrder,
		Title:     "New Order Received",
		Message:   FarmerMessage(fo.BuyerName, fo.Quantity, fo.ListingName, fo.TotalPrice),
		OrderID:   fo.OrderID,
		ListingID: fo.ListingID,
		CreatedAt: now,
	}
}

func (w *Workflow) publish(ctx context.Context, result *Result, farmerCreated bool) {
	event := models.NewPurchaseEvent(result.Order, farmerCreated)

	if w.Events != nil {
		if err := w.Events.PublishOrderCreated(ctx, event); err != nil {
			w.Logger.Warn("PURCHASE", fmt.Sprintf("Kafka publish error (order created): %v", err))
		}
		if result.FarmOrder != nil {
			if err := w.Events.PublishFarmOrderCreated(ctx, *result.FarmOrder); err != nil {
				w.Logger.Warn("PURCHASE", fmt.Sprintf("Kafka publish error (farm order created): %v", err))
			}
		}
	}
	if w.Notifier != nil && result.Notification != nil {
		if err := w.Notifier.Notify(ctx, *result.Notification); err != nil {
			w.Logger.Warn("PURCHASE", fmt.Sprintf("Failed to dispatch farmer notification: %v", err))
		}
	}
	if w.Analytics != nil {
		if err := w.Analytics.RecordPurchase(ctx, event); err != nil {
			w.Logger.Warn("PURCHASE", fmt.Sprintf("Failed to record purchase analytics: %v", err))
		}
	}
}
