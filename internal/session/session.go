package session

import (
	"context"
	"errors"
	"sync"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
	"sharecrop/internal/popup"
	"sharecrop/internal/purchase"
)

var ErrNothingSelected = errors.New("no listing selected")

type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) string
}

type Purchaser interface {
	Purchase(ctx context.Context, req purchase.Request) (*purchase.Result, error)
}

// State is a snapshot of the session as the map client renders it.
type State struct {
	Viewport     popup.Viewport        `json:"viewport"`
	Selected     *models.Listing       `json:"selected,omitempty"`
	Quantity     float64               `json:"quantity"`
	Shipping     models.ShippingMethod `json:"shipping"`
	Popup        *popup.Position       `json:"popup"`
	PlaceName    string                `json:"place_name,omitempty"`
	PlaceLoading bool                  `json:"place_loading"`
}

// Session holds one viewer's map state. At most one listing is selected.
type Session struct {
	Viewer models.Identity

	geocoder  Geocoder
	purchaser Purchaser
	log       *logger.Logger
	popupW    float64
	popupH    float64

	mu           sync.Mutex
	viewport     popup.Viewport
	selected     *models.Listing
	quantity     float64
	shipping     models.ShippingMethod
	position     *popup.Position
	placeName    string
	placeLoading bool
	generation   uint64
	cancelLookup context.CancelFunc
	lookups      sync.WaitGroup
}

func New(viewer models.Identity, geocoder Geocoder, purchaser Purchaser, log *logger.Logger, popupW, popupH float64) *Session {
	return &Session{
		Viewer:    viewer,
		geocoder:  geocoder,
		purchaser: purchaser,
		log:       log,
		popupW:    popupW,
		popupH:    popupH,
		quantity:  1,
	}
}

// Select shows listing. Selecting the listing that is already shown closes
// it instead. Any pending place-name lookup for the previous selection is
// abandoned.
func (s *Session) Select(listing models.Listing) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != nil && s.selected.ID == listing.ID {
		s.clearLocked()
		return s.stateLocked()
	}

	s.clearLocked()
	l := listing
	s.selected = &l
	s.position = popup.Placement(s.selected, s.viewport, s.popupW, s.popupH)

	if s.geocoder != nil && l.Renderable() {
		s.startLookupLocked(l)
	} else {
		s.placeName = l.Location
	}
	return s.stateLocked()
}

func (s *Session) startLookupLocked(l models.Listing) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelLookup = cancel
	s.placeLoading = true
	gen := s.generation
	lat, lng := l.Coordinates.Lat(), l.Coordinates.Lon()

	s.lookups.Add(1)
	go func() {
		defer s.lookups.Done()
		name := s.geocoder.ReverseGeocode(ctx, lat, lng)

		s.mu.Lock()
		defer s.mu.Unlock()
		if ctx.Err() != nil || gen != s.generation {
			s.log.Debug("SESSION", "discarding place name for stale selection "+l.ID)
			return
		}
		s.placeName = name
		s.placeLoading = false
	}()
}

// Close discards the selection and any in-progress quantity or shipping choice.
func (s *Session) Close() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	return s.stateLocked()
}

// MoveViewport records the new viewport and recomputes the popup.
func (s *Session) MoveViewport(vp popup.Viewport) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = vp
	s.position = popup.Placement(s.selected, vp, s.popupW, s.popupH)
	return s.stateLocked()
}

func (s *Session) SetQuantity(q float64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantity = q
	return s.stateLocked()
}

func (s *Session) SetShipping(m models.ShippingMethod) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipping = m
	return s.stateLocked()
}

// Refresh swaps the selected listing for a newer copy of the same listing.
func (s *Session) Refresh(listing models.Listing) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != nil && s.selected.ID == listing.ID {
		l := listing
		s.selected = &l
	}
	return s.stateLocked()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Buy purchases the selected listing with the current quantity and shipping.
// Quantity and shipping reset whether or not the purchase succeeds.
func (s *Session) Buy(ctx context.Context) (*purchase.Result, error) {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return nil, ErrNothingSelected
	}
	req := purchase.Request{
		Listing:  *s.selected,
		Quantity: s.quantity,
		Shipping: s.shipping,
		Buyer:    s.Viewer,
	}
	s.mu.Unlock()

	result, err := s.purchaser.Purchase(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantity = 1
	s.shipping = models.ShippingNone
	if err != nil {
		return nil, err
	}
	if s.selected != nil && s.selected.ID == req.Listing.ID {
		for i := range result.Listings {
			if result.Listings[i].ID == req.Listing.ID {
				refreshed := result.Listings[i]
				s.selected = &refreshed
				break
			}
		}
	}
	return result, nil
}

// Wait blocks until pending place-name lookups have finished.
func (s *Session) Wait() {
	s.lookups.Wait()
}

func (s *Session) clearLocked() {
	if s.cancelLookup != nil {
		s.cancelLookup()
		s.cancelLookup = nil
	}
	s.generation++
	s.selected = nil
	s.position = nil
	s.quantity = 1
	s.shipping = models.ShippingNone
	s.placeName = ""
	s.placeLoading = false
}

func (s *Session) stateLocked() State {
	st := State{
		Viewport:     s.viewport,
		Quantity:     s.quantity,
		Shipping:     s.shipping,
		PlaceName:    s.placeName,
		PlaceLoading: s.placeLoading,
	}
	if s.selected != nil {
		l := *s.selected
		st.Selected = &l
	}
	if s.position != nil {
		p := *s.position
		st.Popup = &p
	}
	return st
}
