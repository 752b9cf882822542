package web

import (
	"context"
	"net/http"
	"strconv"

	"rental-manager/internal/app"
)

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req app.OrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req app.OrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdateOrder(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.ListOrders(r.Context(), app.OrderListRequest{
		EventFrom:     q.Get("event_from"),
		EventTo:       q.Get("event_to"),
		Status:        q.Get("status"),
		PaymentStatus: q.Get("payment_status"),
		Search:        q.Get("search"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.ConfirmOrder)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.CancelOrder)
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.CompleteOrder)
}

// transition runs one of the status-change operations against the {id} order.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, orderID int64) (*app.OrderResult, error)) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	result, err := fn(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) orderDossier(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetOrderDossier(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		writeError(w, r, "invalid product_id parameter", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	req := app.AvailabilityRequest{ProductID: productID, Date: q.Get("date")}
	if v := q.Get("exclude_order_id"); v != "" {
		excludeID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, "invalid exclude_order_id parameter", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req.ExcludeOrderID = &excludeID
	}
	result, err := h.svc.CheckAvailability(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
