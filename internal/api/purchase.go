package api

import (
	"fmt"
	"net/http"

	"sharecrop/internal/models"
	"sharecrop/internal/popup"
	"sharecrop/internal/purchase"
	"sharecrop/internal/utils"
)

type purchaseRequest struct {
	ListingID string  `json:"listing_id"`
	Quantity  float64 `json:"quantity"`
	Shipping  string  `json:"shipping"`
}

// Purchase buys part of a listing. Price and ownership come from the
// aggregated listing, never from the request body.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "Purchase", err)
		return
	}
	shipping, err := models.ParseShippingMethod(req.Shipping)
	if err != nil {
		h.fail(w, "Purchase", fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	buyer := caller(r)
	l, err := h.Listings.Find(r.Context(), buyer.ID, req.ListingID)
	if err != nil {
		h.fail(w, "Purchase", err)
		return
	}

	result, err := h.Purchases.Purchase(r.Context(), purchase.Request{
		Listing:  *l,
		Quantity: req.Quantity,
		Shipping: shipping,
		Buyer:    buyer,
	})
	if err != nil {
		h.fail(w, "Purchase", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Successfully purchased", result)
}

type popupRequest struct {
	// Either a listing and the current viewport...
	ListingID string          `json:"listing_id,omitempty"`
	Viewport  *popup.Viewport `json:"viewport,omitempty"`
	// ...or a marker already projected to screen pixels.
	Point          *popup.ScreenPoint `json:"point,omitempty"`
	ViewportWidth  float64            `json:"viewport_width,omitempty"`
	ViewportHeight float64            `json:"viewport_height,omitempty"`

	PopupWidth  float64 `json:"popup_width,omitempty"`
	PopupHeight float64 `json:"popup_height,omitempty"`
}

func (h *Handler) Popup(w http.ResponseWriter, r *http.Request) {
	var req popupRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "Popup", err)
		return
	}
	pw, ph := req.PopupWidth, req.PopupHeight
	if pw <= 0 {
		pw = h.PopupWidth
	}
	if ph <= 0 {
		ph = h.PopupHeight
	}

	switch {
	case req.Point != nil:
		pos := popup.ComputePosition(*req.Point, req.ViewportWidth, req.ViewportHeight, pw, ph)
		utils.WriteSuccess(w, http.StatusOK, "Popup placed", pos)
	case req.ListingID != "" && req.Viewport != nil:
		l, err := h.Listings.Find(r.Context(), caller(r).ID, req.ListingID)
		if err != nil {
			h.fail(w, "Popup", err)
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "Popup placed", popup.Placement(l, *req.Viewport, pw, ph))
	default:
		h.fail(w, "Popup", fmt.Errorf("%w: point or listing_id with viewport is required", errBadRequest))
	}
}

func (h *Handler) Wallet(w http.ResponseWriter, r *http.Request) {
	uid := caller(r).ID
	coins, err := h.Store.Coins(r.Context(), uid)
	if err != nil {
		h.fail(w, "Wallet", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Wallet loaded", models.Wallet{UserID: uid, Coins: coins})
}
