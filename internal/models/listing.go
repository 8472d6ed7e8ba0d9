package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
)

// ListingSource tags where a listing came from. Higher values win when the
// aggregator sees the same id from several sources.
type ListingSource int

const (
	SourceSeed ListingSource = iota
	SourceStored
	SourceFarmerCreated
)

func (s ListingSource) String() string {
	switch s {
	case SourceSeed:
		return "seed"
	case SourceStored:
		return "stored"
	case SourceFarmerCreated:
		return "farmer_created"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Priority is the merge rank of the source: Seed < Stored < FarmerCreated.
func (s ListingSource) Priority() int {
	return int(s)
}

func (s ListingSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ListingSource) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseListingSource(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseListingSource(raw string) (ListingSource, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "seed", "":
		return SourceSeed, nil
	case "stored":
		return SourceStored, nil
	case "farmer_created":
		return SourceFarmerCreated, nil
	}
	return SourceSeed, fmt.Errorf("unknown listing source %q", raw)
}

type HarvestDate struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
}

type Product struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// Listing is the canonical field offered on the map. Every ingestion path
// converts into this shape before anything else touches it.
type Listing struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Type              string          `json:"type,omitempty"`
	Description       string          `json:"description,omitempty"`
	FarmerID          string          `json:"farmer_id"`
	FarmerName        string          `json:"farmer_name,omitempty"`
	Location          string          `json:"location,omitempty"`
	Coordinates       *orb.Point      `json:"coordinates,omitempty"`
	TotalArea         float64         `json:"total_area"`
	OccupiedArea      float64         `json:"occupied_area"`
	UnitPrice         decimal.Decimal `json:"price_per_m2"`
	IsFarmerCreated   bool            `json:"is_farmer_created"`
	IsOwnField        bool            `json:"is_own_field"`
	IsPurchased       bool            `json:"is_purchased"`
	PickupAvailable   bool            `json:"shipping_pickup"`
	DeliveryAvailable bool            `json:"shipping_delivery"`
	HarvestDates      []HarvestDate   `json:"harvest_dates,omitempty"`
	FarmID            *string         `json:"farm_id,omitempty"`
	Products          []Product       `json:"products,omitempty"`
	Source            ListingSource   `json:"source"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ValidCoordinates reports whether p is a usable [lng, lat] pair.
func ValidCoordinates(p *orb.Point) bool {
	if p == nil {
		return false
	}
	lng, lat := p.Lon(), p.Lat()
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// Renderable is false when the listing cannot be placed on the map.
func (l Listing) Renderable() bool {
	return ValidCoordinates(l.Coordinates)
}

// AvailableArea is the area still for sale.
func (l Listing) AvailableArea() float64 {
	if l.OccupiedArea >= l.TotalArea {
		return 0
	}
	return l.TotalArea - l.OccupiedArea
}

// SupportsShipping reports whether the listing offers method.
func (l Listing) SupportsShipping(method ShippingMethod) bool {
	switch method {
	case ShippingPickup:
		return l.PickupAvailable
	case ShippingDelivery:
		return l.DeliveryAvailable
	}
	return false
}

type Farm struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	OwnerID     string     `json:"owner_id"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	Coordinates *orb.Point `json:"coordinates,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
