package listing

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
)

func TestNormalize_SynonymFields(t *testing.T) {
	raw := map[string]any{
		"id":                "42",
		"productName":       "Golden Wheat",
		"category":          "Grains",
		"farmerId":          "farmer_1",
		"farmerName":        "Tom",
		"longitude":         -97.6,
		"latitude":          38.8,
		"fieldSize":         5000.0,
		"sold_area":         1000.0,
		"pricePerM2":        0.25,
		"pickupAvailable":   true,
		"deliveryAvailable": false,
		"harvest_date":      "2026-07-01",
		"farmId":            "farm-9",
	}

	l, err := Normalize(raw, models.SourceSeed)
	require.NoError(t, err)

	assert.Equal(t, "42", l.ID)
	assert.Equal(t, "Golden Wheat", l.Name)
	assert.Equal(t, "farmer_1", l.FarmerID)
	assert.Equal(t, "Tom", l.FarmerName)
	assert.Equal(t, &orb.Point{-97.6, 38.8}, l.Coordinates)
	assert.Equal(t, 5000.0, l.TotalArea)
	assert.Equal(t, 1000.0, l.OccupiedArea)
	assert.Equal(t, "0.25", l.UnitPrice.String())
	assert.True(t, l.PickupAvailable)
	assert.False(t, l.DeliveryAvailable)
	assert.Equal(t, []models.HarvestDate{{Date: "2026-07-01"}}, l.HarvestDates)
	require.NotNil(t, l.FarmID)
	assert.Equal(t, "farm-9", *l.FarmID)
	assert.Equal(t, models.SourceSeed, l.Source)
}

func TestNormalize_CreatedByAndNumericID(t *testing.T) {
	raw := map[string]any{
		"id":             1712345678901.0,
		"name":           "Orchard",
		"created_by":     "farmer_3",
		"farmer":         "Ellen",
		"available_area": 800.0,
		"price":          1.2,
		"coordinates":    []any{-120.3, 47.4},
	}

	l, err := Normalize(raw, models.SourceStored)
	require.NoError(t, err)
	assert.Equal(t, "1712345678901", l.ID)
	assert.Equal(t, "farmer_3", l.FarmerID)
	assert.Equal(t, "Ellen", l.FarmerName)
	assert.Equal(t, 800.0, l.TotalArea)
	assert.Equal(t, "1.2", l.UnitPrice.String())
	assert.True(t, l.Renderable())
	assert.True(t, l.PickupAvailable, "no shipping info offers both methods")
	assert.True(t, l.DeliveryAvailable)
}

func TestNormalize_ClampsAndRejects(t *testing.T) {
	l, err := Normalize(map[string]any{"id": "a", "total_area": 100.0, "occupied_area": 250.0}, models.SourceSeed)
	require.NoError(t, err)
	assert.Equal(t, 100.0, l.OccupiedArea)
	assert.True(t, l.UnitPrice.Equal(DefaultUnitPrice))

	_, err = Normalize(map[string]any{"id": "b", "price_per_m2": -1.0}, models.SourceSeed)
	assert.ErrorIs(t, err, ErrNegativePrice)

	_, err = Normalize(map[string]any{"name": "no id"}, models.SourceSeed)
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestNormalize_InvalidCoordinatesKeptButNotRenderable(t *testing.T) {
	l, err := Normalize(map[string]any{"id": "c", "coordinates": []any{200.0, 10.0}}, models.SourceSeed)
	require.NoError(t, err)
	require.NotNil(t, l.Coordinates)
	assert.False(t, l.Renderable())

	l, err = Normalize(map[string]any{"id": "d"}, models.SourceSeed)
	require.NoError(t, err)
	assert.Nil(t, l.Coordinates)
	assert.False(t, l.Renderable())
}

func TestNormalize_ShippingOption(t *testing.T) {
	l, err := Normalize(map[string]any{"id": "e", "shippingOption": "Pickup"}, models.SourceFarmerCreated)
	require.NoError(t, err)
	assert.True(t, l.PickupAvailable)
	assert.False(t, l.DeliveryAvailable)

	l, err = Normalize(map[string]any{"id": "f", "shippingOption": "Shipping"}, models.SourceFarmerCreated)
	require.NoError(t, err)
	assert.False(t, l.PickupAvailable)
	assert.True(t, l.DeliveryAvailable)
}

func TestNormalize_CanonicalRoundTrip(t *testing.T) {
	farmID := "farm-1"
	original := models.Listing{
		ID:                "rt-1",
		Name:              "Round Trip",
		Category:          "Vegetables",
		FarmerID:          "farmer_1",
		Coordinates:       &orb.Point{10, 20},
		TotalArea:         100,
		OccupiedArea:      10,
		UnitPrice:         DefaultUnitPrice,
		PickupAvailable:   true,
		DeliveryAvailable: false,
		HarvestDates:      []models.HarvestDate{{Date: "2026-01-01", Label: "Main"}},
		FarmID:            &farmID,
		Products:          []models.Product{{Name: "kale", Category: "Vegetables"}},
	}
	data, err := json.Marshal(original)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	l, err := Normalize(raw, models.SourceStored)
	require.NoError(t, err)
	assert.Equal(t, original.ID, l.ID)
	assert.Equal(t, original.Coordinates, l.Coordinates)
	assert.True(t, original.UnitPrice.Equal(l.UnitPrice))
	assert.Equal(t, original.HarvestDates, l.HarvestDates)
	assert.Equal(t, original.Products, l.Products)
	assert.False(t, l.DeliveryAvailable)
	assert.Equal(t, farmID, *l.FarmID)
}

func TestNormalizeAll_SkipsBadRecords(t *testing.T) {
	var buf bytes.Buffer
	out := NormalizeAll([]map[string]any{
		{"id": "ok"},
		{"name": "missing id"},
	}, models.SourceSeed, logger.NewWriterLogger(&buf))

	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].ID)
	assert.Contains(t, buf.String(), "skipping seed record 1")
}
