package api

import "net/http"

// Every date based report takes ?from=&to= and defaults to the last 30 days.

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	from, to, _, err := dateRange(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	summary, err := h.svc.Reports.Sales(r.Context(), from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) purchaseReport(w http.ResponseWriter, r *http.Request) {
	from, to, _, err := dateRange(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	summary, err := h.svc.Reports.Purchases(r.Context(), from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) paymentReport(w http.ResponseWriter, r *http.Request) {
	from, to, _, err := dateRange(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	summary, err := h.svc.Reports.Payments(r.Context(), from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) lowStockReport(w http.ResponseWriter, r *http.Request) {
	h.lowStockMedicines(w, r)
}

func (h *Handler) expiryReport(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		respondError(w, r, err)
		return
	}
	report, err := h.svc.Reports.ExpiringSoon(r.Context(), int(days))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) inventoryReport(w http.ResponseWriter, r *http.Request) {
	value, err := h.svc.Reports.Inventory(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, value)
}

func (h *Handler) receivablesReport(w http.ResponseWriter, r *http.Request) {
	receivables, err := h.svc.Reports.Receivables(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, receivables)
}
