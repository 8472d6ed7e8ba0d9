package listing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
	"sharecrop/internal/store"
)

// ValidationErrors maps form field names to messages.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Geocoder turns coordinates into a place name. Implementations fall back
// to a formatted coordinate string instead of failing.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) string
}

// FieldForm is the farmer's create-field submission.
type FieldForm struct {
	Name           string               `json:"productName"`
	Category       string               `json:"category"`
	Type           string               `json:"type,omitempty"`
	Description    string               `json:"description"`
	FieldSize      float64              `json:"fieldSize"`
	SellingPrice   float64              `json:"price"`
	PricePerM2     *float64             `json:"price_per_m2,omitempty"`
	HarvestDates   []models.HarvestDate `json:"harvestDates"`
	Latitude       *float64             `json:"latitude"`
	Longitude      *float64             `json:"longitude"`
	ShippingOption string               `json:"shippingOption,omitempty"`
	FarmID         string               `json:"farmId,omitempty"`
	Products       []models.Product     `json:"products,omitempty"`
}

// Validate reports every problem with the form at once.
func (f FieldForm) Validate() error {
	errs := ValidationErrors{}
	if strings.TrimSpace(f.Name) == "" {
		errs["productName"] = "Product name is required"
	}
	if strings.TrimSpace(f.Category) == "" || f.Category == "Select Category" {
		errs["category"] = "Category is required"
	}
	if strings.TrimSpace(f.Description) == "" {
		errs["description"] = "Description is required"
	}
	if f.FieldSize <= 0 {
		errs["fieldSize"] = "Field size is required"
	}
	if f.SellingPrice <= 0 && f.PricePerM2 == nil {
		errs["price"] = "Selling price is required"
	}
	if (f.PricePerM2 != nil && *f.PricePerM2 < 0) || f.SellingPrice < 0 {
		errs["price"] = "Price cannot be negative"
	}
	hasHarvest := false
	for _, h := range f.HarvestDates {
		if strings.TrimSpace(h.Date) != "" {
			hasHarvest = true
			break
		}
	}
	if !hasHarvest {
		errs["harvestDates"] = "At least one harvest date is required"
	}
	if f.Latitude == nil {
		errs["latitude"] = "Latitude is required"
	} else if *f.Latitude < -90 || *f.Latitude > 90 {
		errs["latitude"] = "Latitude must be between -90 and 90"
	}
	if f.Longitude == nil {
		errs["longitude"] = "Longitude is required"
	} else if *f.Longitude < -180 || *f.Longitude > 180 {
		errs["longitude"] = "Longitude must be between -180 and 180"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// FarmForm is the add-farm submission.
type FarmForm struct {
	Name        string   `json:"farmName"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

func (f FarmForm) Validate() error {
	errs := ValidationErrors{}
	if strings.TrimSpace(f.Name) == "" {
		errs["farmName"] = "Farm name is required"
	}
	if strings.TrimSpace(f.Location) == "" {
		errs["location"] = "Location is required"
	}
	if strings.TrimSpace(f.Description) == "" {
		errs["description"] = "Description is required"
	}
	if (f.Latitude == nil) != (f.Longitude == nil) {
		errs["coordinates"] = "Latitude and longitude must be given together"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Authoring creates farmer-owned fields and farms.
type Authoring struct {
	store    *store.Store
	geocoder Geocoder
	log      *logger.Logger
	now      func() time.Time
}

func NewAuthoring(st *store.Store, geocoder Geocoder, log *logger.Logger) *Authoring {
	return &Authoring{store: st, geocoder: geocoder, log: log, now: time.Now}
}

// CreateField validates the form, resolves a place name and stores the
// result as a farmer-created listing.
func (a *Authoring) CreateField(ctx context.Context, farmer models.Identity, form FieldForm) (models.Listing, error) {
	if farmer.ID == "" {
		return models.Listing{}, ValidationErrors{"farmer": "Farmer identity is required"}
	}
	if err := form.Validate(); err != nil {
		return models.Listing{}, err
	}

	lat, lng := *form.Latitude, *form.Longitude
	location := fmt.Sprintf("%.4f, %.4f", lat, lng)
	if a.geocoder != nil {
		location = a.geocoder.ReverseGeocode(ctx, lat, lng)
	}

	pricePerM2 := form.SellingPrice / form.FieldSize
	if form.PricePerM2 != nil {
		pricePerM2 = *form.PricePerM2
	}

	harvest := make([]any, 0, len(form.HarvestDates))
	for _, h := range form.HarvestDates {
		if strings.TrimSpace(h.Date) != "" {
			harvest = append(harvest, map[string]any{"date": h.Date, "label": h.Label})
		}
	}
	products := make([]any, 0, len(form.Products))
	for _, p := range form.Products {
		products = append(products, map[string]any{"name": p.Name, "category": p.Category})
	}

	raw := map[string]any{
		"id":             uuid.New().String(),
		"productName":    form.Name,
		"category":       form.Category,
		"type":           form.Type,
		"description":    form.Description,
		"farmerId":       farmer.ID,
		"farmerName":     farmer.Name,
		"location":       location,
		"coordinates":    []any{lng, lat},
		"total_area":     form.FieldSize,
		"occupied_area":  0.0,
		"price_per_m2":   pricePerM2,
		"harvestDates":   harvest,
		"products":       products,
		"shippingOption": form.ShippingOption,
		"created_at":     a.now().UTC().Format(time.RFC3339),
	}
	if form.FarmID != "" {
		raw["farmId"] = form.FarmID
	}

	field, err := Normalize(raw, models.SourceFarmerCreated)
	if err != nil {
		return models.Listing{}, err
	}
	field.IsFarmerCreated = true
	field.IsOwnField = true

	if err := a.store.AddFarmerField(ctx, field); err != nil {
		return models.Listing{}, fmt.Errorf("store farmer field: %w", err)
	}
	a.log.LogListing("CREATE", fmt.Sprintf("farmer %s created field %s (%s)", farmer.ID, field.ID, field.Name))
	return field, nil
}

// AddFarm stores a new farm owned by owner.
func (a *Authoring) AddFarm(ctx context.Context, owner models.Identity, form FarmForm) (models.Farm, error) {
	if owner.ID == "" {
		return models.Farm{}, ValidationErrors{"owner": "Owner identity is required"}
	}
	if err := form.Validate(); err != nil {
		return models.Farm{}, err
	}

	farm := models.Farm{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(form.Name),
		OwnerID:     owner.ID,
		Location:    strings.TrimSpace(form.Location),
		Description: strings.TrimSpace(form.Description),
		CreatedAt:   a.now().UTC(),
	}
	if form.Latitude != nil && form.Longitude != nil {
		raw := map[string]any{"latitude": *form.Latitude, "longitude": *form.Longitude}
		farm.Coordinates = coordinates(raw)
	}

	if err := a.store.AddFarm(ctx, farm); err != nil {
		return models.Farm{}, fmt.Errorf("store farm: %w", err)
	}
	a.log.LogListing("FARM", fmt.Sprintf("owner %s added farm %s", owner.ID, farm.ID))
	return farm, nil
}
