package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sharecrop/internal/models"
	"sharecrop/internal/utils"
	"sharecrop/internal/voucher"
)

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListOrders(r.Context(), caller(r).ID)
	if err != nil {
		h.fail(w, "ListOrders", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Orders loaded", orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetOrder(r.Context(), caller(r).ID, chi.URLParam(r, "orderId"))
	if err != nil {
		h.fail(w, "GetOrder", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Order found", o)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "UpdateOrderStatus", err)
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), caller(r).ID, chi.URLParam(r, "orderId"), models.OrderStatus(req.Status))
	if err != nil {
		h.fail(w, "UpdateOrderStatus", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Order updated", o)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.CancelOrder(r.Context(), caller(r).ID, chi.URLParam(r, "orderId"))
	if err != nil {
		h.fail(w, "CancelOrder", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Order cancelled", o)
}

// OrderVoucher renders the pickup voucher of the caller's own order as a PNG
// QR code. ?format=token returns the sealed token as JSON instead.
func (h *Handler) OrderVoucher(w http.ResponseWriter, r *http.Request) {
	buyer := caller(r)
	o, err := h.Orders.GetOrder(r.Context(), buyer.ID, chi.URLParam(r, "orderId"))
	if err != nil {
		h.fail(w, "OrderVoucher", err)
		return
	}
	v, err := h.Vouchers.Issue(*o)
	if err != nil {
		h.fail(w, "OrderVoucher", err)
		return
	}

	if r.URL.Query().Get("format") == "token" {
		token, err := h.Vouchers.Seal(v)
		if err != nil {
			h.fail(w, "OrderVoucher", err)
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "Voucher issued", map[string]string{"code": v.Code, "token": token})
		return
	}

	size := 256
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s >= 64 && s <= 1024 {
		size = s
	}
	png, err := h.Vouchers.QR(v, size)
	if err != nil {
		h.fail(w, "OrderVoucher", err)
		return
	}

	if r.URL.Query().Get("format") == "pdf" && h.VoucherPDF != nil {
		pdf, err := h.VoucherPDF.Render(v, *o, png)
		if err != nil {
			h.fail(w, "OrderVoucher", err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=voucher-%s.pdf", o.ID))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=voucher-%s.png", o.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// VerifyVoucher lets the farmer check a scanned voucher belongs to one of
// their orders.
func (h *Handler) VerifyVoucher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, "VerifyVoucher", err)
		return
	}
	v, err := h.Vouchers.Open(req.Token)
	if err != nil {
		h.fail(w, "VerifyVoucher", err)
		return
	}
	o, err := h.Orders.GetOrder(r.Context(), caller(r).ID, v.OrderID)
	if err != nil {
		h.fail(w, "VerifyVoucher", err)
		return
	}
	if o.FarmerID != caller(r).ID {
		h.fail(w, "VerifyVoucher", voucher.ErrInvalidVoucher)
		return
	}
	if o.Status == models.OrderCancelled {
		h.fail(w, "VerifyVoucher", voucher.ErrNotRedeemable)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Voucher valid", map[string]any{"voucher": v, "order": o})
}

func (h *Handler) ListRentedFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.Orders.ListRentedFields(r.Context(), caller(r).ID)
	if err != nil {
		h.fail(w, "ListRentedFields", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Rented fields loaded", fields)
}

func (h *Handler) ListFarmOrders(w http.ResponseWriter, r *http.Request) {
	status := models.FarmOrderStatus(r.URL.Query().Get("status"))
	if status == "all" {
		status = ""
	}
	orders, err := h.Orders.ListFarmOrders(r.Context(), caller(r).ID, status)
	if err != nil {
		h.fail(w, "ListFarmOrders", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Farm orders loaded", orders)
}

func (h *Handler) FarmOrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Orders.Stats(r.Context(), caller(r).ID)
	if err != nil {
		h.fail(w, "FarmOrderStats", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Farm order stats", stats)
}

func (h *Handler) RespondFarmOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Accept bool `json:"accept"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, "RespondFarmOrder", err)
		return
	}
	fo, err := h.Orders.Respond(r.Context(), caller(r), chi.URLParam(r, "farmOrderId"), req.Accept)
	if err != nil {
		h.fail(w, "RespondFarmOrder", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Farm order updated", fo)
}

func (h *Handler) AdvanceFarmOrder(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "AdvanceFarmOrder", err)
		return
	}
	fo, err := h.Orders.Advance(r.Context(), caller(r), chi.URLParam(r, "farmOrderId"), models.FarmOrderStatus(req.Status))
	if err != nil {
		h.fail(w, "AdvanceFarmOrder", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Farm order updated", fo)
}

func (h *Handler) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	if h.Analytics == nil {
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("AnalyticsSummary failed", "analytics is not enabled"))
		return
	}
	farmerID := caller(r).ID
	summary, err := h.Analytics.FarmerSummary(r.Context(), farmerID)
	if err != nil {
		h.fail(w, "AnalyticsSummary", err)
		return
	}

	days := 30
	if d, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && d > 0 && d <= 365 {
		days = d
	}
	daily, err := h.Analytics.DailySales(r.Context(), farmerID, days)
	if err != nil {
		h.fail(w, "AnalyticsSummary", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Purchase summary", map[string]any{
		"summary": summary,
		"daily":   daily,
	})
}
