package session

import (
	"context"
	"io"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
	"sharecrop/internal/popup"
	"sharecrop/internal/purchase"
)

// blockingGeocoder answers only when released, or when the lookup is abandoned.
type blockingGeocoder struct {
	release chan string
}

func (g *blockingGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) string {
	select {
	case name := <-g.release:
		return name
	case <-ctx.Done():
		return "cancelled"
	}
}

type MockPurchaser struct {
	mock.Mock
}

func (m *MockPurchaser) Purchase(ctx context.Context, req purchase.Request) (*purchase.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.Result), args.Error(1)
}

func field(id string) models.Listing {
	return models.Listing{ID: id, Name: "Field " + id, Location: "Somewhere", Coordinates: &orb.Point{0, 0}, TotalArea: 100, PickupAvailable: true}
}

func newTestSession(geo Geocoder, p Purchaser) *Session {
	s := New(models.Identity{ID: "buyer_1", Name: "Alice"}, geo, p, logger.NewWriterLogger(io.Discard), popup.DefaultWidth, popup.DefaultHeight)
	s.MoveViewport(popup.Viewport{Zoom: 3, Width: 1000, Height: 800})
	return s
}

func TestSelect_ToggleAndReplace(t *testing.T) {
	s := newTestSession(nil, nil)

	st := s.Select(field("a"))
	require.NotNil(t, st.Selected)
	assert.Equal(t, "a", st.Selected.ID)
	require.NotNil(t, st.Popup)
	assert.Equal(t, "Somewhere", st.PlaceName)

	s.SetQuantity(5)
	st = s.Select(field("b"))
	assert.Equal(t, "b", st.Selected.ID, "new selection replaces the old one")
	assert.Equal(t, 1.0, st.Quantity)

	st = s.Select(field("b"))
	assert.Nil(t, st.Selected, "selecting the same listing closes it")
	assert.Nil(t, st.Popup)
}

func TestSelect_InvalidCoordinatesHasNoPopup(t *testing.T) {
	s := newTestSession(nil, nil)
	l := field("a")
	l.Coordinates = &orb.Point{0, 120}

	st := s.Select(l)
	require.NotNil(t, st.Selected)
	assert.Nil(t, st.Popup)
}

func TestMoveViewport_RecomputesPopup(t *testing.T) {
	s := newTestSession(nil, nil)
	s.Select(field("a"))

	st := s.MoveViewport(popup.Viewport{Zoom: 3, Width: 1000, Height: 800})
	require.NotNil(t, st.Popup)
	assert.Equal(t, popup.Position{Left: 500, Top: 400, Anchor: popup.AnchorAboveCenter}, *st.Popup)

	st = s.MoveViewport(popup.Viewport{Longitude: 10, Zoom: 3, Width: 1000, Height: 800})
	require.NotNil(t, st.Popup)
	assert.Less(t, st.Popup.Left, 500.0, "marker moves left when the map pans east")

	s.Close()
	st = s.MoveViewport(popup.Viewport{Zoom: 3, Width: 1000, Height: 800})
	assert.Nil(t, st.Popup)
}

func TestSelect_PlaceNameLookup(t *testing.T) {
	geo := &blockingGeocoder{release: make(chan string, 1)}
	s := newTestSession(geo, nil)

	st := s.Select(field("a"))
	assert.True(t, st.PlaceLoading)

	geo.release <- "Null Island"
	s.Wait()

	st = s.State()
	assert.False(t, st.PlaceLoading)
	assert.Equal(t, "Null Island", st.PlaceName)
}

func TestSelect_StaleLookupDiscarded(t *testing.T) {
	geo := &blockingGeocoder{release: make(chan string, 1)}
	s := newTestSession(geo, nil)

	s.Select(field("a"))
	s.Close()
	s.Wait()

	st := s.State()
	assert.Nil(t, st.Selected)
	assert.Empty(t, st.PlaceName, "result for a closed selection is dropped")
	assert.False(t, st.PlaceLoading)
}

func TestBuy_ResetsTransientStateOnError(t *testing.T) {
	p := new(MockPurchaser)
	s := newTestSession(nil, p)

	_, err := s.Buy(context.Background())
	assert.ErrorIs(t, err, ErrNothingSelected)

	s.Select(field("a"))
	s.SetQuantity(10)
	s.SetShipping(models.ShippingPickup)

	p.On("Purchase", mock.Anything, mock.MatchedBy(func(r purchase.Request) bool {
		return r.Listing.ID == "a" && r.Quantity == 10 && r.Shipping == models.ShippingPickup && r.Buyer.ID == "buyer_1"
	})).Return(nil, purchase.ErrInsufficientFunds).Once()

	_, err = s.Buy(context.Background())
	assert.ErrorIs(t, err, purchase.ErrInsufficientFunds)

	st := s.State()
	assert.Equal(t, 1.0, st.Quantity)
	assert.Equal(t, models.ShippingNone, st.Shipping)
	require.NotNil(t, st.Selected, "the popup stays open after an error")
	p.AssertExpectations(t)
}

func TestBuy_RefreshesSelectedListing(t *testing.T) {
	p := new(MockPurchaser)
	s := newTestSession(nil, p)
	s.Select(field("a"))
	s.SetShipping(models.ShippingPickup)

	refreshed := field("a")
	refreshed.IsPurchased = true
	refreshed.OccupiedArea = 1
	p.On("Purchase", mock.Anything, mock.Anything).Return(&purchase.Result{Listings: []models.Listing{field("z"), refreshed}}, nil)

	_, err := s.Buy(context.Background())
	require.NoError(t, err)

	st := s.State()
	require.NotNil(t, st.Selected)
	assert.True(t, st.Selected.IsPurchased)
	assert.Equal(t, models.ShippingNone, st.Shipping)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil, nil, logger.NewWriterLogger(io.Discard), popup.DefaultWidth, popup.DefaultHeight)
	a := r.Get(models.Identity{ID: "a"})
	assert.Same(t, a, r.Get(models.Identity{ID: "a"}))
	assert.NotSame(t, a, r.Get(models.Identity{ID: "b"}))
	assert.Equal(t, 2, r.Len())

	a.Select(field("x"))
	r.Drop("a")
	assert.Equal(t, 1, r.Len())
	assert.Nil(t, a.State().Selected)
}
