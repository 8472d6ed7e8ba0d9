package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"sharecrop/internal/auth"
	"sharecrop/internal/geocode"
	"sharecrop/internal/listing"
	"sharecrop/internal/models"
	"sharecrop/internal/order"
	"sharecrop/internal/purchase"
	"sharecrop/internal/session"
	"sharecrop/internal/utils"
	"sharecrop/internal/voucher"
)

var errBadRequest = errors.New("bad request")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var validation listing.ValidationErrors
	switch {
	case errors.As(err, &validation),
		errors.Is(err, purchase.ErrShippingNotSelected),
		errors.Is(err, purchase.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, session.ErrNothingSelected),
		errors.Is(err, voucher.ErrInvalidVoucher):
		return http.StatusBadRequest
	case errors.Is(err, purchase.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, purchase.ErrSelfPurchase),
		errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, purchase.ErrAlreadyInProgress),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, voucher.ErrNotPickup),
		errors.Is(err, voucher.ErrNotRedeemable):
		return http.StatusConflict
	case errors.Is(err, listing.ErrListingNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrFarmOrderNotFound),
		errors.Is(err, geocode.ErrNoResults):
		return http.StatusNotFound
	case errors.Is(err, purchase.ErrBuyerRequired):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Validation failures carry the
// per-field messages in data.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s: %v", op, err))
	}

	resp := utils.ErrorResponse(op+" failed", err.Error())
	var validation listing.ValidationErrors
	if errors.As(err, &validation) {
		resp.Data = validation
	}
	utils.WriteJSON(w, status, resp)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

// caller returns the authenticated identity. Middleware guarantees one on
// every /api route.
func caller(r *http.Request) models.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}
