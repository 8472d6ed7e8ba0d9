package listing

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
	"sharecrop/internal/store"
)

type stubGeocoder struct {
	name string
}

func (g stubGeocoder) ReverseGeocode(_ context.Context, lat, lng float64) string {
	if g.name == "" {
		return fmt.Sprintf("%.4f, %.4f", lat, lng)
	}
	return g.name
}

func ptr(f float64) *float64 { return &f }

func validForm() FieldForm {
	return FieldForm{
		Name:           "Kale Beds",
		Category:       "Vegetables",
		Description:    "Raised kale beds",
		FieldSize:      200,
		SellingPrice:   100,
		HarvestDates:   []models.HarvestDate{{Date: "2026-09-01", Label: "Main"}},
		Latitude:       ptr(37.7749),
		Longitude:      ptr(-122.4194),
		ShippingOption: "Pickup",
	}
}

func newTestAuthoring(geo Geocoder) (*Authoring, *store.Store) {
	var buf bytes.Buffer
	log := logger.NewWriterLogger(&buf)
	st := store.New(store.NewMemoryKV(), log, 1250)
	a := NewAuthoring(st, geo, log)
	a.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return a, st
}

func TestCreateField_StoresFarmerCreatedListing(t *testing.T) {
	ctx := context.Background()
	a, st := newTestAuthoring(stubGeocoder{name: "San Francisco, California"})

	field, err := a.CreateField(ctx, models.Identity{ID: "farmer_1", Name: "John Farmer"}, validForm())
	require.NoError(t, err)

	assert.NotEmpty(t, field.ID)
	assert.Equal(t, "farmer_1", field.FarmerID)
	assert.Equal(t, "John Farmer", field.FarmerName)
	assert.Equal(t, "San Francisco, California", field.Location)
	assert.Equal(t, "0.5", field.UnitPrice.String())
	assert.Equal(t, 200.0, field.TotalArea)
	assert.True(t, field.PickupAvailable)
	assert.False(t, field.DeliveryAvailable)
	assert.True(t, field.Renderable())
	assert.Equal(t, models.SourceFarmerCreated, field.Source)

	stored, err := st.FarmerFields(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, field.ID, stored[0].ID)
}

func TestCreateField_LocationFallsBackToCoordinates(t *testing.T) {
	a, _ := newTestAuthoring(stubGeocoder{})
	field, err := a.CreateField(context.Background(), models.Identity{ID: "farmer_1"}, validForm())
	require.NoError(t, err)
	assert.Equal(t, "37.7749, -122.4194", field.Location)
}

func TestCreateField_ExplicitUnitPrice(t *testing.T) {
	form := validForm()
	form.PricePerM2 = ptr(0.75)
	a, _ := newTestAuthoring(nil)
	field, err := a.CreateField(context.Background(), models.Identity{ID: "farmer_1"}, form)
	require.NoError(t, err)
	assert.Equal(t, "0.75", field.UnitPrice.String())
}

func TestCreateField_Validation(t *testing.T) {
	a, st := newTestAuthoring(nil)

	_, err := a.CreateField(context.Background(), models.Identity{ID: "farmer_1"}, FieldForm{Category: "Select Category"})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	for _, key := range []string{"productName", "category", "description", "fieldSize", "price", "harvestDates", "latitude", "longitude"} {
		assert.Contains(t, verrs, key)
	}

	form := validForm()
	form.Latitude = ptr(123)
	_, err = a.CreateField(context.Background(), models.Identity{ID: "farmer_1"}, form)
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "latitude")

	fields, err := st.FarmerFields(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestAddFarm(t *testing.T) {
	ctx := context.Background()
	a, st := newTestAuthoring(nil)

	farm, err := a.AddFarm(ctx, models.Identity{ID: "farmer_1"}, FarmForm{
		Name:        "Green Acres",
		Location:    "Salinas",
		Description: "Family farm",
		Latitude:    ptr(36.6),
		Longitude:   ptr(-121.6),
	})
	require.NoError(t, err)
	assert.Equal(t, "farmer_1", farm.OwnerID)
	require.NotNil(t, farm.Coordinates)
	assert.Equal(t, -121.6, farm.Coordinates.Lon())

	farms, err := st.UserFarms(ctx, "farmer_1")
	require.NoError(t, err)
	assert.Len(t, farms, 1)

	_, err = a.AddFarm(ctx, models.Identity{ID: "farmer_1"}, FarmForm{})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "farmName")
}
