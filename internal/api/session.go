package api

import (
	"fmt"
	"net/http"

	"sharecrop/internal/models"
	"sharecrop/internal/popup"
	"sharecrop/internal/utils"
)

func (h *Handler) SessionState(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "Session", h.Sessions.Get(caller(r)).State())
}

func (h *Handler) SessionSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ListingID string `json:"listing_id"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, "SessionSelect", err)
		return
	}
	viewer := caller(r)
	l, err := h.Listings.Find(r.Context(), viewer.ID, req.ListingID)
	if err != nil {
		h.fail(w, "SessionSelect", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Session", h.Sessions.Get(viewer).Select(*l))
}

func (h *Handler) SessionClose(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "Session", h.Sessions.Get(caller(r)).Close())
}

func (h *Handler) SessionViewport(w http.ResponseWriter, r *http.Request) {
	var vp popup.Viewport
	if err := decode(r, &vp); err != nil {
		h.fail(w, "SessionViewport", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Session", h.Sessions.Get(caller(r)).MoveViewport(vp))
}

func (h *Handler) SessionQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity float64 `json:"quantity"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, "SessionQuantity", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Session", h.Sessions.Get(caller(r)).SetQuantity(req.Quantity))
}

func (h *Handler) SessionShipping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Shipping string `json:"shipping"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, "SessionShipping", err)
		return
	}
	method, err := models.ParseShippingMethod(req.Shipping)
	if err != nil {
		h.fail(w, "SessionShipping", fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Session", h.Sessions.Get(caller(r)).SetShipping(method))
}

// SessionBuy purchases the session's selection. The selection is replaced
// with the current listing before buying.
func (h *Handler) SessionBuy(w http.ResponseWriter, r *http.Request) {
	viewer := caller(r)
	s := h.Sessions.Get(viewer)
	if sel := s.State().Selected; sel != nil {
		current, err := h.Listings.Find(r.Context(), viewer.ID, sel.ID)
		if err != nil {
			h.fail(w, "SessionBuy", err)
			return
		}
		s.Refresh(*current)
	}
	result, err := s.Buy(r.Context())
	if err != nil {
		h.fail(w, "SessionBuy", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Successfully purchased", map[string]any{
		"result":  result,
		"session": s.State(),
	})
}

func (h *Handler) SessionDrop(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Drop(caller(r).ID)
	w.WriteHeader(http.StatusNoContent)
}
