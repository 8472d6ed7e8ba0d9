package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"sharecrop/internal/geocode"
	"sharecrop/internal/models"
	"sharecrop/internal/utils"
)

func (h *Handler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil || !models.ValidCoordinates(&orb.Point{lng, lat}) {
		h.fail(w, "ReverseGeocode", fmt.Errorf("%w: lat and lng must be valid coordinates", errBadRequest))
		return
	}
	if h.Geocoder == nil {
		utils.WriteSuccess(w, http.StatusOK, "Place name", map[string]string{"place_name": geocode.Fallback(lat, lng)})
		return
	}
	name := h.Geocoder.ReverseGeocode(r.Context(), lat, lng)
	utils.WriteSuccess(w, http.StatusOK, "Place name", map[string]string{"place_name": name})
}

func (h *Handler) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.fail(w, "SearchPlaces", fmt.Errorf("%w: q is required", errBadRequest))
		return
	}
	if h.Geocoder == nil {
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("SearchPlaces failed", "geocoder is not configured"))
		return
	}
	places, err := h.Geocoder.Search(r.Context(), q)
	if err != nil {
		h.fail(w, "SearchPlaces", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Places", places)
}
