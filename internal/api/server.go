package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sharecrop/internal/analytics"
	"sharecrop/internal/auth"
	"sharecrop/internal/geocode"
	"sharecrop/internal/listing"
	"sharecrop/internal/logger"
	"sharecrop/internal/notify"
	"sharecrop/internal/order"
	"sharecrop/internal/purchase"
	"sharecrop/internal/session"
	"sharecrop/internal/store"
	"sharecrop/internal/voucher"
)

// Geocoder is the geocoding client as the API uses it.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) string
	Search(ctx context.Context, query string) ([]geocode.Place, error)
}

// AnalyticsReader serves farmer purchase summaries.
type AnalyticsReader interface {
	FarmerSummary(ctx context.Context, farmerID string) (*analytics.FarmerSummary, error)
	DailySales(ctx context.Context, farmerID string, days int) ([]analytics.DailySales, error)
}

// Handler holds every service the HTTP API exposes. Geocoder and Analytics
// are optional.
type Handler struct {
	Store         *store.Store
	Listings      *listing.Aggregator
	Authoring     *listing.Authoring
	Purchases     *purchase.Workflow
	Orders        *order.OrderService
	Notifications *notify.Service
	Hub           *notify.Hub
	Sessions      *session.Registry
	Vouchers      *voucher.Generator
	VoucherPDF    *voucher.PDFRenderer
	Geocoder      Geocoder
	Analytics     AnalyticsReader
	Logger        *logger.Logger

	PopupWidth  float64
	PopupHeight float64
}

// Router builds the chi router. Everything under /api requires a bearer token.
func (h *Handler) Router(verifier auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	// --- Public Routes ---
	r.Get("/health", h.Health)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, h.Logger))

		r.Route("/api", func(r chi.Router) {
			r.Route("/listings", func(r chi.Router) {
				r.Get("/", h.ListListings)
				r.Get("/suggest", h.SuggestListings)
				r.Get("/filter", h.FilterListings)
				r.Get("/{listingId}", h.GetListing)
				r.Post("/", h.CreateListing)
			})
			r.Get("/farms", h.ListFarms)
			r.Post("/farms", h.CreateFarm)

			r.Post("/purchase", h.Purchase)
			r.Post("/popup", h.Popup)
			r.Get("/wallet", h.Wallet)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.ListOrders)
				r.Get("/{orderId}", h.GetOrder)
				r.Get("/{orderId}/voucher", h.OrderVoucher)
				r.Put("/{orderId}/status", h.UpdateOrderStatus)
				r.Delete("/{orderId}", h.CancelOrder)
			})
			r.Post("/vouchers/verify", h.VerifyVoucher)
			r.Get("/rented-fields", h.ListRentedFields)

			r.Route("/farm-orders", func(r chi.Router) {
				r.Get("/", h.ListFarmOrders)
				r.Get("/stats", h.FarmOrderStats)
				r.Put("/{farmOrderId}/respond", h.RespondFarmOrder)
				r.Put("/{farmOrderId}/status", h.AdvanceFarmOrder)
			})
			r.Get("/analytics/summary", h.AnalyticsSummary)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.ListNotifications)
				r.Get("/stream", h.StreamNotifications)
				r.Put("/{notificationId}/read", h.MarkNotificationRead)
			})

			r.Route("/session", func(r chi.Router) {
				r.Get("/", h.SessionState)
				r.Post("/select", h.SessionSelect)
				r.Post("/close", h.SessionClose)
				r.Put("/viewport", h.SessionViewport)
				r.Put("/quantity", h.SessionQuantity)
				r.Put("/shipping", h.SessionShipping)
				r.Post("/buy", h.SessionBuy)
				r.Delete("/", h.SessionDrop)
			})

			r.Get("/geocode/reverse", h.ReverseGeocode)
			r.Get("/geocode/search", h.SearchPlaces)
		})
	})

	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.Logger.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}
