package web

import (
	"net/http"
	"strconv"

	"rental-manager/internal/app"
)

func periodFromQuery(r *http.Request) app.PeriodRequest {
	q := r.URL.Query()
	return app.PeriodRequest{From: q.Get("from"), To: q.Get("to")}
}

func (h *Handler) financeSummary(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetFinanceSummary(r.Context(), periodFromQuery(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) monthlySeries(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetMonthlySeries(r.Context(), periodFromQuery(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, "invalid limit parameter", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		limit = n
	}
	result, err := h.svc.GetTopProducts(r.Context(), periodFromQuery(r), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) orderRows(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetOrderRows(r.Context(), periodFromQuery(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
