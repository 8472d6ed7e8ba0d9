package listing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sharecrop/internal/catalog"
	"sharecrop/internal/logger"
	"sharecrop/internal/models"
	"sharecrop/internal/store"
)

var ErrListingNotFound = errors.New("listing not found")

// Aggregate merges the three listing sources into one list keyed by id and
// annotates it for viewerID.
//
// When an id appears more than once the entry with the higher source
// priority wins; on equal priority the later entry wins. The output keeps
// the order in which ids first appeared.
func Aggregate(
	viewerID string,
	seed, stored, farmerCreated []models.Listing,
	userOrders []models.Order,
	userRentedFields []models.RentedField,
) []models.Listing {
	merged := make([]models.Listing, 0, len(seed)+len(stored)+len(farmerCreated))
	index := make(map[string]int)

	add := func(items []models.Listing, src models.ListingSource) {
		for _, l := range items {
			l.Source = src
			if i, ok := index[l.ID]; ok {
				if src.Priority() >= merged[i].Source.Priority() {
					merged[i] = l
				}
				continue
			}
			index[l.ID] = len(merged)
			merged = append(merged, l)
		}
	}
	add(seed, models.SourceSeed)
	add(stored, models.SourceStored)
	add(farmerCreated, models.SourceFarmerCreated)

	purchased := make(map[string]struct{}, len(userOrders)+len(userRentedFields))
	for _, o := range userOrders {
		purchased[o.ListingID] = struct{}{}
	}
	for _, r := range userRentedFields {
		purchased[r.ID] = struct{}{}
	}

	authored := make(map[string]struct{}, len(farmerCreated))
	for _, f := range farmerCreated {
		authored[f.ID] = struct{}{}
	}

	for i := range merged {
		l := &merged[i]
		_, l.IsPurchased = purchased[l.ID]
		_, l.IsFarmerCreated = authored[l.ID]
		l.IsOwnField = viewerID != "" && l.FarmerID == viewerID
	}
	return merged
}

// Aggregator loads the sources for a viewer and aggregates them.
type Aggregator struct {
	catalog catalog.Provider
	store   *store.Store
	log     *logger.Logger

	mu     sync.Mutex
	onLoad func([]models.Listing)
}

func NewAggregator(provider catalog.Provider, st *store.Store, log *logger.Logger) *Aggregator {
	return &Aggregator{catalog: provider, store: st, log: log}
}

// OnLoad registers the single load callback, replacing any previous one.
// Passing nil clears it.
func (a *Aggregator) OnLoad(cb func([]models.Listing)) {
	a.mu.Lock()
	a.onLoad = cb
	a.mu.Unlock()
}

// Load builds the aggregated list for viewerID and hands it to the load
// callback. A failing seed catalog is logged and treated as empty; store
// errors are returned.
func (a *Aggregator) Load(ctx context.Context, viewerID string) ([]models.Listing, error) {
	listings, err := a.build(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	cb := a.onLoad
	a.mu.Unlock()
	if cb != nil {
		cb(listings)
	}
	return listings, nil
}

// Find returns the viewer's view of the listing with id.
func (a *Aggregator) Find(ctx context.Context, viewerID, id string) (*models.Listing, error) {
	listings, err := a.build(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		if listings[i].ID == id {
			return &listings[i], nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, ErrListingNotFound)
}

func (a *Aggregator) build(ctx context.Context, viewerID string) ([]models.Listing, error) {
	seed := a.loadSeed(ctx)

	stored, err := a.store.Fields(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stored fields: %w", err)
	}
	farmerCreated, err := a.store.FarmerFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("load farmer fields: %w", err)
	}

	var orders []models.Order
	var rented []models.RentedField
	if viewerID != "" {
		if orders, err = a.store.UserOrders(ctx, viewerID); err != nil {
			return nil, fmt.Errorf("load orders: %w", err)
		}
		if rented, err = a.store.UserRentedFields(ctx, viewerID); err != nil {
			return nil, fmt.Errorf("load rented fields: %w", err)
		}
	}

	listings := Aggregate(viewerID, seed, stored, farmerCreated, orders, rented)
	a.log.LogListing("LOAD", fmt.Sprintf("viewer=%s seed=%d stored=%d farmer=%d total=%d",
		viewerID, len(seed), len(stored), len(farmerCreated), len(listings)))
	return listings, nil
}

func (a *Aggregator) loadSeed(ctx context.Context) []models.Listing {
	if a.catalog == nil {
		return nil
	}
	resp, err := a.catalog.GetListings(ctx)
	if err != nil {
		a.log.Error("LISTING", fmt.Sprintf("Failed to load seed catalog, continuing without it: %v", err))
		return nil
	}
	return NormalizeAll(resp.Data.Listings, models.SourceSeed, a.log)
}
