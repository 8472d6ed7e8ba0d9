package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sharecrop/internal/listing"
	"sharecrop/internal/search"
	"sharecrop/internal/utils"
)

// listParam accepts both ?k=a&k=b and ?k=a,b.
func listParam(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func facets(r *http.Request) search.Facets {
	return search.Facets{
		Categories: listParam(r, "category"),
		Products:   listParam(r, "product"),
	}
}

func (h *Handler) ListListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.Listings.Load(r.Context(), caller(r).ID)
	if err != nil {
		h.fail(w, "ListListings", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Listings loaded", listings)
}

func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.Listings.Find(r.Context(), caller(r).ID, chi.URLParam(r, "listingId"))
	if err != nil {
		h.fail(w, "GetListing", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Listing found", l)
}

func (h *Handler) FilterListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.Listings.Load(r.Context(), caller(r).ID)
	if err != nil {
		h.fail(w, "FilterListings", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Listings filtered", search.Filter(listings, facets(r)))
}

func (h *Handler) SuggestListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.Listings.Load(r.Context(), caller(r).ID)
	if err != nil {
		h.fail(w, "SuggestListings", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Suggestions", search.Suggest(listings, facets(r), r.URL.Query().Get("q")))
}

func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var form listing.FieldForm
	if err := decode(r, &form); err != nil {
		h.fail(w, "CreateListing", err)
		return
	}
	field, err := h.Authoring.CreateField(r.Context(), caller(r), form)
	if err != nil {
		h.fail(w, "CreateListing", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Field created", field)
}

func (h *Handler) ListFarms(w http.ResponseWriter, r *http.Request) {
	farms, err := h.Store.UserFarms(r.Context(), caller(r).ID)
	if err != nil {
		h.fail(w, "ListFarms", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Farms loaded", farms)
}

func (h *Handler) CreateFarm(w http.ResponseWriter, r *http.Request) {
	var form listing.FarmForm
	if err := decode(r, &form); err != nil {
		h.fail(w, "CreateFarm", err)
		return
	}
	farm, err := h.Authoring.AddFarm(r.Context(), caller(r), form)
	if err != nil {
		h.fail(w, "CreateFarm", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Farm added", farm)
}
