package web

import (
	"net/http"

	"rental-manager/internal/app"
)

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(w, r)
	if !ok {
		return
	}
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.OrderID = orderID
	result, err := h.svc.AddPayment(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := idParam(w, r)
	if !ok {
		return
	}
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdatePayment(r.Context(), paymentID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeletePayment(r.Context(), paymentID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListPayments(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
