package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"medledger/m/domain"
	"medledger/m/internal/ledger"
)

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// Invoice handlers

type invoiceLineRequest struct {
	MedicineID int64 `json:"medicineId" validate:"required,gt=0"`
	Qty        int64 `json:"qty" validate:"required,gt=0"`
}

type invoiceRequest struct {
	InvoiceNo       string               `json:"invoiceNo" validate:"required,max=50"`
	Date            *time.Time           `json:"date"`
	CustomerID      int64                `json:"customerId" validate:"required,gt=0"`
	DiscountPercent decimal.Decimal      `json:"discountPercent"`
	DiscountAmount  decimal.Decimal      `json:"discountAmount"`
	Notes           *string              `json:"notes" validate:"omitempty,max=1000"`
	Items           []invoiceLineRequest `json:"items" validate:"required,min=1,dive"`
}

type invoicePatchRequest struct {
	CustomerID      *int64           `json:"customerId" validate:"omitempty,gt=0"`
	DiscountPercent *decimal.Decimal `json:"discountPercent"`
	DiscountAmount  *decimal.Decimal `json:"discountAmount"`
	Notes           *string          `json:"notes" validate:"omitempty,max=1000"`
}

// listInvoices narrows to ?from=&to= when either bound is given.
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	from, to, given, err := dateRange(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var invoices []domain.Invoice
	if given {
		invoices, err = h.svc.Invoices.ListByDateRange(r.Context(), from, to)
	} else {
		invoices, err = h.svc.Invoices.List(r.Context())
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, invoices)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	in := ledger.NewInvoice{
		InvoiceNo:       req.InvoiceNo,
		Date:            derefTime(req.Date),
		CustomerID:      req.CustomerID,
		DiscountPercent: req.DiscountPercent,
		DiscountAmount:  req.DiscountAmount,
		Notes:           req.Notes,
		Items:           make([]ledger.InvoiceLine, len(req.Items)),
	}
	for i, item := range req.Items {
		in.Items[i] = ledger.InvoiceLine{MedicineID: item.MedicineID, Qty: item.Qty}
	}
	inv, err := h.svc.Invoices.Create(r.Context(), in, actorID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, inv)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	inv, err := h.svc.Invoices.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (h *Handler) getInvoiceByNumber(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Invoices.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req invoicePatchRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	inv, err := h.svc.Invoices.Update(r.Context(), id, ledger.InvoicePatch{
		CustomerID:      req.CustomerID,
		DiscountPercent: req.DiscountPercent,
		DiscountAmount:  req.DiscountAmount,
		Notes:           req.Notes,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.svc.Invoices.Delete(r.Context(), id, actorID(r))
	respondDeleted(w, r, ok, err, "Invoice", id)
}

func (h *Handler) invoicePayments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	payments, err := h.svc.Payments.ListByInvoice(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payments)
}

func (h *Handler) invoicePaymentSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	summary, err := h.svc.Payments.Summary(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Purchase handlers

type purchaseLineRequest struct {
	MedicineID int64           `json:"medicineId" validate:"required,gt=0"`
	Qty        int64           `json:"qty" validate:"required,gt=0"`
	Price      decimal.Decimal `json:"price"`
}

type purchaseRequest struct {
	SupplierID int64                 `json:"supplierId" validate:"required,gt=0"`
	InvoiceNo  string                `json:"invoiceNo" validate:"required,max=50"`
	Date       *time.Time            `json:"date"`
	Items      []purchaseLineRequest `json:"items" validate:"required,min=1,dive"`
}

type purchasePatchRequest struct {
	InvoiceNo *string    `json:"invoiceNo" validate:"omitempty,max=50"`
	Date      *time.Time `json:"date"`
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	from, to, given, err := dateRange(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var purchases []domain.Purchase
	if given {
		purchases, err = h.svc.Purchases.ListByDateRange(r.Context(), from, to)
	} else {
		purchases, err = h.svc.Purchases.List(r.Context())
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, purchases)
}

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	in := ledger.NewPurchase{
		SupplierID: req.SupplierID,
		InvoiceNo:  req.InvoiceNo,
		Date:       derefTime(req.Date),
		Items:      make([]ledger.PurchaseLine, len(req.Items)),
	}
	for i, item := range req.Items {
		in.Items[i] = ledger.PurchaseLine{MedicineID: item.MedicineID, Qty: item.Qty, Price: item.Price}
	}
	p, err := h.svc.Purchases.Create(r.Context(), in, actorID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handler) getPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.svc.Purchases.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) getPurchaseByNumber(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Purchases.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) updatePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req purchasePatchRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.svc.Purchases.Update(r.Context(), id, ledger.PurchasePatch{InvoiceNo: req.InvoiceNo, Date: req.Date})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) deletePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.svc.Purchases.Delete(r.Context(), id, actorID(r))
	respondDeleted(w, r, ok, err, "Purchase", id)
}

// Payment handlers

type paymentRequest struct {
	InvoiceID int64           `json:"invoiceId" validate:"required,gt=0"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"required"`
	Date      *time.Time      `json:"date"`
}

type paymentPatchRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Method *string          `json:"method"`
	Date   *time.Time       `json:"date"`
}

// listPayments filters by ?method=, ?receivedBy= or a date range, in that
// order of precedence.
func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	receivedBy, err := queryInt(r, "receivedBy", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	from, to, given, err := dateRange(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var payments []domain.Payment
	switch {
	case strings.TrimSpace(q.Get("method")) != "":
		payments, err = h.svc.Payments.ListByMethod(r.Context(), q.Get("method"))
	case receivedBy > 0:
		payments, err = h.svc.Payments.ListByReceiver(r.Context(), receivedBy)
	case given:
		payments, err = h.svc.Payments.ListByDateRange(r.Context(), from, to)
	default:
		payments, err = h.svc.Payments.List(r.Context())
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payments)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.svc.Payments.Create(r.Context(), ledger.NewPayment{
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
		Method:    req.Method,
		Date:      derefTime(req.Date),
	}, actorID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.svc.Payments.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req paymentPatchRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.svc.Payments.Update(r.Context(), id, ledger.PaymentPatch{Amount: req.Amount, Method: req.Method, Date: req.Date})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.svc.Payments.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err, "Payment", id)
}

// Stock movement handlers

type movementRequest struct {
	MedicineID    int64                `json:"medicineId" validate:"required,gt=0"`
	ChangeQty     int64                `json:"changeQty" validate:"ne=0"`
	Reason        string               `json:"reason" validate:"required,max=255"`
	ReferenceType domain.ReferenceType `json:"referenceType"`
	ReferenceID   *int64               `json:"referenceId"`
}

// listMovements filters by ?referenceType=&referenceId=, ?createdBy= or a
// date range.
func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	refID, err := queryInt(r, "referenceId", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	createdBy, err := queryInt(r, "createdBy", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	from, to, given, err := dateRange(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var movements []domain.StockMovement
	refType := domain.ReferenceType(strings.ToUpper(strings.TrimSpace(q.Get("referenceType"))))
	switch {
	case refType != "":
		if !refType.Valid() {
			respondError(w, r, domain.Validation("INVALID_REFERENCE_TYPE", "unknown reference type "+string(refType), "referenceType"))
			return
		}
		if refID > 0 {
			movements, err = h.svc.Stock.ByReference(r.Context(), refType, refID)
		} else {
			movements, err = h.svc.Stock.ByType(r.Context(), refType)
		}
	case createdBy > 0:
		movements, err = h.svc.Stock.ByCreator(r.Context(), createdBy)
	case given:
		movements, err = h.svc.Stock.ByDateRange(r.Context(), from, to)
	default:
		movements, err = h.svc.Stock.List(r.Context())
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, movements)
}

func (h *Handler) recordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	mv, err := h.svc.Stock.Record(r.Context(), ledger.Movement{
		MedicineID:    req.MedicineID,
		ChangeQty:     req.ChangeQty,
		Reason:        req.Reason,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
	}, actorID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, mv)
}

func (h *Handler) getMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	mv, err := h.svc.Stock.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mv)
}

func (h *Handler) reverseMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.svc.Stock.Reverse(r.Context(), id, actorID(r)); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) stockSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.Stock.Summaries(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

func (h *Handler) medicineHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	history, err := h.svc.Stock.History(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// medicineStockSummary accepts optional ?from= and ?to= bounds.
func (h *Handler) medicineStockSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var from, to *time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		t, err := parseDate(raw, "from", false)
		if err != nil {
			respondError(w, r, err)
			return
		}
		from = &t
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		t, err := parseDate(raw, "to", true)
		if err != nil {
			respondError(w, r, err)
			return
		}
		to = &t
	}
	summary, err := h.svc.Stock.Summary(r.Context(), id, from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) reconcileMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	rec, err := h.svc.Stock.Reconcile(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
