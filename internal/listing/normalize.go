package listing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
)

var (
	ErrMissingID     = errors.New("listing has no id")
	ErrNegativePrice = errors.New("listing price is negative")
)

// DefaultUnitPrice applies when a record carries no price at all.
var DefaultUnitPrice = decimal.RequireFromString("0.55")

// Field-name synonyms seen across catalog records, form submissions and
// canonical JSON. The first present key wins.
var (
	idKeys           = []string{"id"}
	nameKeys         = []string{"name", "productName", "product_name", "title"}
	categoryKeys     = []string{"category"}
	typeKeys         = []string{"type"}
	descriptionKeys  = []string{"description"}
	locationKeys     = []string{"location"}
	farmerIDKeys     = []string{"farmer_id", "farmerId", "created_by", "createdBy", "owner_id"}
	farmerNameKeys   = []string{"farmer_name", "farmerName", "farmer"}
	totalAreaKeys    = []string{"total_area", "fieldSize", "field_size", "available_area"}
	occupiedKeys     = []string{"occupied_area", "sold_area", "occupiedArea"}
	priceKeys        = []string{"price_per_m2", "pricePerM2", "price"}
	pickupKeys       = []string{"shipping_pickup", "pickupAvailable"}
	deliveryKeys     = []string{"shipping_delivery", "deliveryAvailable"}
	harvestListKeys  = []string{"harvest_dates", "harvestDates"}
	harvestDateKeys  = []string{"harvest_date"}
	farmIDKeys       = []string{"farm_id", "farmId"}
	productsKeys     = []string{"products"}
	createdAtKeys    = []string{"created_at", "createdAt"}
	longitudeKeys    = []string{"longitude", "lng"}
	latitudeKeys     = []string{"latitude", "lat"}
	coordinatesKeys  = []string{"coordinates"}
	shippingOptsKeys = []string{"shippingOption"}
)

// Normalize converts a raw record into the canonical Listing. Occupied area
// is clamped to the total area; a negative price is rejected.
func Normalize(raw map[string]any, src models.ListingSource) (models.Listing, error) {
	l := models.Listing{Source: src}

	id, ok := str(raw, idKeys...)
	if !ok || id == "" {
		return l, ErrMissingID
	}
	l.ID = id
	l.Name, _ = str(raw, nameKeys...)
	l.Category, _ = str(raw, categoryKeys...)
	l.Type, _ = str(raw, typeKeys...)
	l.Description, _ = str(raw, descriptionKeys...)
	l.Location, _ = str(raw, locationKeys...)
	l.FarmerID, _ = str(raw, farmerIDKeys...)
	l.FarmerName, _ = str(raw, farmerNameKeys...)
	l.Coordinates = coordinates(raw)

	l.TotalArea, _ = number(raw, totalAreaKeys...)
	if l.TotalArea < 0 {
		l.TotalArea = 0
	}
	l.OccupiedArea, _ = number(raw, occupiedKeys...)
	if l.OccupiedArea < 0 {
		l.OccupiedArea = 0
	}
	if l.OccupiedArea > l.TotalArea {
		l.OccupiedArea = l.TotalArea
	}

	unitPrice, ok, err := parsePrice(raw)
	if err != nil {
		return l, fmt.Errorf("listing %s: %w", l.ID, err)
	}
	if !ok {
		unitPrice = DefaultUnitPrice
	}
	if unitPrice.IsNegative() {
		return l, fmt.Errorf("listing %s: %w", l.ID, ErrNegativePrice)
	}
	l.UnitPrice = unitPrice

	l.PickupAvailable, l.DeliveryAvailable = shipping(raw)
	l.HarvestDates = harvestDates(raw)
	l.Products = products(raw)

	if farmID, ok := str(raw, farmIDKeys...); ok && farmID != "" {
		l.FarmID = &farmID
	}
	if created, ok := str(raw, createdAtKeys...); ok {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			l.CreatedAt = t
		}
	}
	return l, nil
}

// NormalizeAll normalizes a batch, logging and skipping records that fail.
func NormalizeAll(raws []map[string]any, src models.ListingSource, log *logger.Logger) []models.Listing {
	out := make([]models.Listing, 0, len(raws))
	for i, raw := range raws {
		l, err := Normalize(raw, src)
		if err != nil {
			log.Warn("LISTING", fmt.Sprintf("skipping %s record %d: %v", src, i, err))
			continue
		}
		out = append(out, l)
	}
	return out
}

func lookup(raw map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func str(raw map[string]any, keys ...string) (string, bool) {
	v, ok := lookup(raw, keys...)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	}
	return fmt.Sprint(v), true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func number(raw map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			if f, ok := toFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func boolean(raw map[string]any, keys ...string) (bool, bool) {
	v, ok := lookup(raw, keys...)
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		return b, err == nil
	}
	return false, false
}

func parsePrice(raw map[string]any) (decimal.Decimal, bool, error) {
	v, ok := lookup(raw, priceKeys...)
	if !ok {
		return decimal.Zero, false, nil
	}
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("parse price %q: %w", t, err)
		}
		return d, true, nil
	default:
		f, ok := toFloat(v)
		if !ok {
			return decimal.Zero, false, fmt.Errorf("unsupported price value %v", v)
		}
		return decimal.NewFromFloat(f), true, nil
	}
}

func coordinates(raw map[string]any) *orb.Point {
	if v, ok := lookup(raw, coordinatesKeys...); ok {
		if pair, ok := v.([]any); ok && len(pair) == 2 {
			lng, okLng := toFloat(pair[0])
			lat, okLat := toFloat(pair[1])
			if okLng && okLat {
				return &orb.Point{lng, lat}
			}
		}
		if pair, ok := v.([]float64); ok && len(pair) == 2 {
			return &orb.Point{pair[0], pair[1]}
		}
	}
	lng, okLng := number(raw, longitudeKeys...)
	lat, okLat := number(raw, latitudeKeys...)
	if okLng && okLat {
		return &orb.Point{lng, lat}
	}
	return nil
}

// shipping resolves the two capability flags. A record that says nothing
// about shipping offers both methods.
func shipping(raw map[string]any) (pickup, delivery bool) {
	pickup, hasPickup := boolean(raw, pickupKeys...)
	delivery, hasDelivery := boolean(raw, deliveryKeys...)
	if hasPickup || hasDelivery {
		return pickup, delivery
	}
	if opt, ok := str(raw, shippingOptsKeys...); ok && opt != "" {
		return !strings.EqualFold(opt, "Shipping"), !strings.EqualFold(opt, "Pickup")
	}
	return true, true
}

func harvestDates(raw map[string]any) []models.HarvestDate {
	var out []models.HarvestDate
	if v, ok := lookup(raw, harvestListKeys...); ok {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				switch t := item.(type) {
				case string:
					if t != "" {
						out = append(out, models.HarvestDate{Date: t})
					}
				case map[string]any:
					date, _ := str(t, "date")
					label, _ := str(t, "label")
					if date != "" {
						out = append(out, models.HarvestDate{Date: date, Label: label})
					}
				}
			}
		}
	}
	if len(out) == 0 {
		if date, ok := str(raw, harvestDateKeys...); ok && date != "" {
			out = append(out, models.HarvestDate{Date: date})
		}
	}
	return out
}

func products(raw map[string]any) []models.Product {
	v, ok := lookup(raw, productsKeys...)
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []models.Product
	for _, item := range list {
		switch t := item.(type) {
		case string:
			out = append(out, models.Product{Name: t})
		case map[string]any:
			name, _ := str(t, "name", "productName")
			category, _ := str(t, "category")
			if name != "" {
				out = append(out, models.Product{Name: name, Category: category})
			}
		}
	}
	return out
}
