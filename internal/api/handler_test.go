package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medledger/m/domain"
	"medledger/m/internal/api"
	"medledger/m/internal/auth"
	"medledger/m/internal/store"
	"medledger/m/internal/testutil"
)

type errorBody struct {
	Message        string            `json:"message"`
	ErrorCode      string            `json:"errorCode"`
	StatusCode     int               `json:"statusCode"`
	Errors         map[string]string `json:"errors"`
	AdditionalData map[string]any    `json:"additionalData"`
	TraceID        string            `json:"traceId"`
}

type harness struct {
	t      *testing.T
	store  *store.Store
	router http.Handler
	token  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := testutil.NewStore(t)
	h := api.New(api.NewServices(s, "handler-secret", time.Hour, 10), zap.NewNop())
	return &harness{t: t, store: s, router: h.Router()}
}

// login registers an account and keeps its token for later requests.
func (hs *harness) login() auth.Session {
	hs.t.Helper()
	rec := hs.do(http.MethodPost, "/auth/register", map[string]any{
		"email":     "owner@example.com",
		"password":  "s3cret!",
		"firstName": "Efua",
	})
	require.Equal(hs.t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess auth.Session
	decode(hs.t, rec, &sess)
	hs.token = sess.Token
	return sess
}

func (hs *harness) request(method, path string, body any) *http.Request {
	hs.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(hs.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if hs.token != "" {
		req.Header.Set("Authorization", "Bearer "+hs.token)
	}
	return req
}

func (hs *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, req)
	return rec
}

func (hs *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	hs.t.Helper()
	return hs.serve(hs.request(method, path, body))
}

// mustDo asserts the status and decodes the reply into out when non-nil.
func (hs *harness) mustDo(status int, method, path string, body, out any) {
	hs.t.Helper()
	rec := hs.do(method, path, body)
	require.Equal(hs.t, status, rec.Code, rec.Body.String())
	if out != nil {
		decode(hs.t, rec, out)
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	decode(t, rec, &body)
	assert.Equal(t, rec.Code, body.StatusCode)
	return body
}

// stockedMedicine creates a category and a medicine with opening stock.
func (hs *harness) stockedMedicine(name string, qty int64, price string) domain.Medicine {
	hs.t.Helper()
	var cat domain.Category
	hs.mustDo(http.StatusCreated, http.MethodPost, "/api/categories", map[string]any{"name": "Cat " + name}, &cat)
	var med domain.Medicine
	hs.mustDo(http.StatusCreated, http.MethodPost, "/api/medicines", map[string]any{
		"name":            name,
		"batch":           "LOT-1",
		"categoryId":      cat.ID,
		"expiryDate":      time.Now().AddDate(1, 0, 0).UTC().Format(time.RFC3339),
		"price":           price,
		"openingQuantity": qty,
	}, &med)
	return med
}

func (hs *harness) customer(name string) domain.Customer {
	hs.t.Helper()
	var c domain.Customer
	hs.mustDo(http.StatusCreated, http.MethodPost, "/api/customers", map[string]any{"name": name}, &c)
	return c
}

func TestHealth(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodGet, "/api/medicines", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_TOKEN", decodeError(t, rec).ErrorCode)

	hs.token = "junk"
	rec = hs.do(http.MethodGet, "/api/medicines", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeError(t, rec).ErrorCode)
	hs.token = ""

	sess := hs.login()
	assert.Equal(t, "owner@example.com", sess.User.Email)
	assert.NotContains(t, hs.do(http.MethodGet, "/auth/me", nil).Body.String(), "password")

	var me domain.User
	hs.mustDo(http.StatusOK, http.MethodGet, "/auth/me", nil, &me)
	assert.Equal(t, sess.User.ID, me.ID)

	rec = hs.do(http.MethodPost, "/auth/register", map[string]any{"email": "owner@example.com", "password": "s3cret!"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = hs.do(http.MethodPost, "/auth/login", map[string]any{"email": "owner@example.com", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, rec).ErrorCode)

	hs.mustDo(http.StatusOK, http.MethodPost, "/auth/change-password",
		map[string]any{"currentPassword": "s3cret!", "newPassword": "better-secret"}, nil)

	var again auth.Session
	hs.mustDo(http.StatusOK, http.MethodPost, "/auth/login",
		map[string]any{"email": "owner@example.com", "password": "better-secret"}, &again)
	assert.Equal(t, sess.User.ID, again.User.ID)
}

func TestDisabledUserLosesAccess(t *testing.T) {
	hs := newHarness(t)
	sess := hs.login()
	hs.mustDo(http.StatusOK, http.MethodGet, "/auth/me", nil, nil)

	ctx := context.Background()
	u, err := hs.store.Repos().Users.FindByID(ctx, sess.User.ID)
	require.NoError(t, err)
	u.IsActive = false
	require.NoError(t, hs.store.Repos().Users.Update(ctx, u))

	rec := hs.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "ACCOUNT_DISABLED", decodeError(t, rec).ErrorCode)
}

func TestRequestValidation(t *testing.T) {
	hs := newHarness(t)
	hs.login()

	rec := hs.do(http.MethodPost, "/api/invoices", map[string]any{"invoiceNo": "", "customerId": 0, "items": []any{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.ErrorCode)
	assert.Contains(t, body.Errors, "invoiceNo")
	assert.Contains(t, body.Errors, "customerId")
	assert.Contains(t, body.Errors, "items")

	rec = hs.do(http.MethodPost, "/api/invoices", map[string]any{
		"invoiceNo":  "S-1",
		"customerId": 1,
		"items":      []any{map[string]any{"medicineId": 1, "qty": 0}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Errors, "items[0].qty")

	rec = hs.do(http.MethodPost, "/api/categories", "{")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MALFORMED_BODY", decodeError(t, rec).ErrorCode)

	rec = hs.do(http.MethodPost, "/api/categories", `{"name":"Analgesics","colour":"red"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MALFORMED_BODY", decodeError(t, rec).ErrorCode)

	rec = hs.do(http.MethodGet, "/api/medicines/abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", decodeError(t, rec).ErrorCode)

	rec = hs.do(http.MethodGet, "/api/invoices?from=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DATE", decodeError(t, rec).ErrorCode)
}

func TestErrorMapping(t *testing.T) {
	hs := newHarness(t)
	hs.login()

	rec := hs.do(http.MethodGet, "/api/medicines/9999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "MEDICINE_NOT_FOUND", body.ErrorCode)
	assert.Equal(t, "Medicine", body.AdditionalData["resourceName"])

	hs.mustDo(http.StatusCreated, http.MethodPost, "/api/categories", map[string]any{"name": "Antibiotics"}, nil)
	rec = hs.do(http.MethodPost, "/api/categories", map[string]any{"name": "Antibiotics"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_RESOURCE", decodeError(t, rec).ErrorCode)

	rec = hs.do(http.MethodDelete, "/api/customers/4242", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CUSTOMER_NOT_FOUND", decodeError(t, rec).ErrorCode)
}

func TestRequestIDEcho(t *testing.T) {
	hs := newHarness(t)
	hs.login()

	req := hs.request(http.MethodGet, "/api/invoices/777", nil)
	req.Header.Set("X-Request-ID", "trace-abc")
	rec := hs.serve(req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "trace-abc", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "trace-abc", decodeError(t, rec).TraceID)

	rec = hs.do(http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSaleFlow(t *testing.T) {
	hs := newHarness(t)
	hs.login()
	med := hs.stockedMedicine("Amoxicillin 500mg", 10, "2.50")
	assert.Equal(t, int64(10), med.Quantity)
	cust := hs.customer("Kofi Mensah")

	var inv domain.Invoice
	hs.mustDo(http.StatusCreated, http.MethodPost, "/api/invoices", map[string]any{
		"invoiceNo":  "S-100",
		"customerId": cust.ID,
		"items":      []any{map[string]any{"medicineId": med.ID, "qty": 3}},
	}, &inv)
	assert.True(t, decimal.RequireFromString("7.5").Equal(inv.Total), inv.Total.String())
	require.Len(t, inv.Items, 1)

	var current domain.Medicine
	hs.mustDo(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/medicines/%d", med.ID), nil, &current)
	assert.Equal(t, int64(7), current.Quantity)

	rec := hs.do(http.MethodPost, "/api/invoices", map[string]any{
		"invoiceNo":  "S-101",
		"customerId": cust.ID,
		"items":      []any{map[string]any{"medicineId": med.ID, "qty": 100}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INSUFFICIENT_STOCK", body.ErrorCode)
	assert.EqualValues(t, 7, body.AdditionalData["available"])

	rec = hs.do(http.MethodPost, "/api/invoices", map[string]any{
		"invoiceNo":  "S-100",
		"customerId": cust.ID,
		"items":      []any{map[string]any{"medicineId": med.ID, "qty": 1}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = hs.do(http.MethodPost, "/api/payments", map[string]any{"invoiceId": inv.ID, "amount": "10", "method": "cash"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PAYMENT_AMOUNT_EXCEEDS_BALANCE", decodeError(t, rec).ErrorCode)

	rec = hs.do(http.MethodPost, "/api/payments", map[string]any{"invoiceId": inv.ID, "amount": "1", "method": "barter"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PAYMENT_METHOD", decodeError(t, rec).ErrorCode)

	hs.mustDo(http.StatusCreated, http.MethodPost, "/api/payments",
		map[string]any{"invoiceId": inv.ID, "amount": "5", "method": "Cash"}, nil)

	var summary domain.PaymentSummary
	hs.mustDo(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/invoices/%d/payment-summary", inv.ID), nil, &summary)
	assert.True(t, decimal.RequireFromString("2.5").Equal(summary.RemainingBalance), summary.RemainingBalance.String())
	assert.False(t, summary.IsFullyPaid)

	var byNumber domain.Invoice
	hs.mustDo(http.StatusOK, http.MethodGet, "/api/invoices/number/S-100", nil, &byNumber)
	assert.Equal(t, inv.ID, byNumber.ID)

	var history []domain.StockMovement
	hs.mustDo(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/medicines/%d/stock-movements", med.ID), nil, &history)
	assert.Len(t, history, 2)

	hs.mustDo(http.StatusNoContent, http.MethodDelete, fmt.Sprintf("/api/invoices/%d", inv.ID), nil, nil)
	hs.mustDo(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/medicines/%d", med.ID), nil, &current)
	assert.Equal(t, int64(10), current.Quantity)

	rec = hs.do(http.MethodDelete, fmt.Sprintf("/api/invoices/%d", inv.ID), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "INVOICE_NOT_FOUND", decodeError(t, rec).ErrorCode)

	var rec2 domain.Reconciliation
	hs.mustDo(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/medicines/%d/reconcile", med.ID), nil, &rec2)
	assert.True(t, rec2.Consistent)
}

func TestStockMovementEndpoints(t *testing.T) {
	hs := newHarness(t)
	hs.login()
	med := hs.stockedMedicine("Paracetamol 500mg", 4, "0.80")

	var mv domain.StockMovement
	hs.mustDo(http.StatusCreated, http.MethodPost, "/api/stock-movements",
		map[string]any{"medicineId": med.ID, "changeQty": -3, "reason": "Damaged in transit"}, &mv)
	assert.Equal(t, domain.RefAdjustment, mv.ReferenceType)

	rec := hs.do(http.MethodPost, "/api/stock-movements",
		map[string]any{"medicineId": med.ID, "changeQty": -2, "reason": "Expired"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", decodeError(t, rec).ErrorCode)

	var byType []domain.StockMovement
	hs.mustDo(http.StatusOK, http.MethodGet, "/api/stock-movements?referenceType=adjustment", nil, &byType)
	assert.Len(t, byType, 2)

	rec = hs.do(http.MethodGet, "/api/stock-movements?referenceType=GIFT", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var summary domain.StockSummary
	hs.mustDo(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/medicines/%d/stock-summary", med.ID), nil, &summary)
	assert.Equal(t, int64(1), summary.CurrentStock)
	assert.Equal(t, int64(4), summary.TotalIn)
	assert.Equal(t, int64(3), summary.TotalOut)

	hs.mustDo(http.StatusNoContent, http.MethodDelete, fmt.Sprintf("/api/stock-movements/%d", mv.ID), nil, nil)
	var current domain.Medicine
	hs.mustDo(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/medicines/%d", med.ID), nil, &current)
	assert.Equal(t, int64(4), current.Quantity)

	rec = hs.do(http.MethodPut, fmt.Sprintf("/api/medicines/%d", med.ID), map[string]any{
		"name":            current.Name,
		"batch":           current.Batch,
		"categoryId":      current.CategoryID,
		"expiryDate":      current.ExpiryDate.Format(time.RFC3339),
		"price":           "0.90",
		"openingQuantity": 50,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "QUANTITY_NOT_EDITABLE", decodeError(t, rec).ErrorCode)
}

func TestReportEndpoints(t *testing.T) {
	hs := newHarness(t)
	hs.login()
	med := hs.stockedMedicine("Ibuprofen 200mg", 3, "4.00")
	cust := hs.customer("Ama Serwaa")
	hs.mustDo(http.StatusCreated, http.MethodPost, "/api/invoices", map[string]any{
		"invoiceNo":  "S-200",
		"customerId": cust.ID,
		"items":      []any{map[string]any{"medicineId": med.ID, "qty": 2}},
	}, nil)

	var receivables []map[string]any
	hs.mustDo(http.StatusOK, http.MethodGet, "/api/reports/receivables", nil, &receivables)
	require.Len(t, receivables, 1)
	assert.Equal(t, "S-200", receivables[0]["invoiceNo"])

	var low []domain.Medicine
	hs.mustDo(http.StatusOK, http.MethodGet, "/api/reports/low-stock", nil, &low)
	require.Len(t, low, 1)
	assert.Equal(t, med.ID, low[0].ID)

	for _, path := range []string{
		"/api/reports/sales",
		"/api/reports/purchases",
		"/api/reports/payments",
		"/api/reports/expiring?days=400",
		"/api/reports/inventory",
	} {
		rec := hs.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path+": "+rec.Body.String())
	}

	rec := hs.do(http.MethodGet, "/api/reports/sales?from=2025-02-01&to=2025-01-01", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DATE_RANGE", decodeError(t, rec).ErrorCode)
}
