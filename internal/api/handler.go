package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"medledger/m/domain"
	"medledger/m/internal/auth"
	"medledger/m/internal/catalog"
	"medledger/m/internal/ledger"
	"medledger/m/internal/logger"
	"medledger/m/internal/report"
	"medledger/m/internal/store"
)

type ctxKey string

const ctxUserID ctxKey = "userID"

// Services are the application services the handlers delegate to.
type Services struct {
	Auth              *auth.Service
	Categories        *catalog.CategoryService
	Medicines         *catalog.MedicineService
	Customers         *catalog.CustomerService
	Suppliers         *catalog.SupplierService
	SupplierMedicines *catalog.SupplierMedicineService
	Stock             *ledger.StockLedger
	Invoices          *ledger.InvoiceService
	Purchases         *ledger.PurchaseService
	Payments          *ledger.PaymentService
	Reports           *report.Service
}

// NewServices wires every service to one store.
func NewServices(s *store.Store, secret string, tokenTTL time.Duration, lowStockThreshold int64) Services {
	return Services{
		Auth:              auth.New(s, secret, tokenTTL),
		Categories:        catalog.NewCategoryService(s),
		Medicines:         catalog.NewMedicineService(s),
		Customers:         catalog.NewCustomerService(s),
		Suppliers:         catalog.NewSupplierService(s),
		SupplierMedicines: catalog.NewSupplierMedicineService(s),
		Stock:             ledger.NewStockLedger(s),
		Invoices:          ledger.NewInvoiceService(s),
		Purchases:         ledger.NewPurchaseService(s),
		Payments:          ledger.NewPaymentService(s),
		Reports:           report.New(s, lowStockThreshold),
	}
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	svc      Services
	log      *zap.Logger
	validate *validator.Validate
}

// New constructs a Handler.
func New(svc Services, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log, validate: newValidator()}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Get("/me", h.me)
			protected.Post("/change-password", h.changePassword)
		})
	})

	r.Route("/api", func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/categories", func(r chi.Router) {
			r.Get("/", h.listCategories)
			r.Post("/", h.createCategory)
			r.Get("/{id}", h.getCategory)
			r.Put("/{id}", h.updateCategory)
			r.Delete("/{id}", h.deleteCategory)
			r.Get("/{id}/medicines", h.listCategoryMedicines)
		})

		pr.Route("/medicines", func(r chi.Router) {
			r.Get("/", h.listMedicines)
			r.Post("/", h.createMedicine)
			r.Get("/expiring", h.expiringMedicines)
			r.Get("/low-stock", h.lowStockMedicines)
			r.Get("/barcode/{code}", h.getMedicineByBarcode)
			r.Get("/{id}", h.getMedicine)
			r.Put("/{id}", h.updateMedicine)
			r.Delete("/{id}", h.deleteMedicine)
			r.Get("/{id}/stock-movements", h.medicineHistory)
			r.Get("/{id}/stock-summary", h.medicineStockSummary)
			r.Get("/{id}/reconcile", h.reconcileMedicine)
			r.Get("/{id}/suppliers", h.medicineSuppliers)
		})

		pr.Route("/customers", func(r chi.Router) {
			r.Get("/", h.listCustomers)
			r.Post("/", h.createCustomer)
			r.Get("/{id}", h.getCustomer)
			r.Put("/{id}", h.updateCustomer)
			r.Delete("/{id}", h.deleteCustomer)
			r.Get("/{id}/invoices", h.customerInvoices)
		})

		pr.Route("/suppliers", func(r chi.Router) {
			r.Get("/", h.listSuppliers)
			r.Post("/", h.createSupplier)
			r.Get("/{id}", h.getSupplier)
			r.Put("/{id}", h.updateSupplier)
			r.Delete("/{id}", h.deleteSupplier)
			r.Get("/{id}/medicines", h.supplierOffers)
			r.Get("/{id}/purchases", h.supplierPurchases)
		})

		pr.Route("/supplier-medicines", func(r chi.Router) {
			r.Post("/", h.createSupplierMedicine)
			r.Get("/{id}", h.getSupplierMedicine)
			r.Put("/{id}", h.updateSupplierMedicine)
			r.Delete("/{id}", h.deleteSupplierMedicine)
		})

		pr.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.listInvoices)
			r.Post("/", h.createInvoice)
			r.Get("/number/{number}", h.getInvoiceByNumber)
			r.Get("/{id}", h.getInvoice)
			r.Put("/{id}", h.updateInvoice)
			r.Delete("/{id}", h.deleteInvoice)
			r.Get("/{id}/payments", h.invoicePayments)
			r.Get("/{id}/payment-summary", h.invoicePaymentSummary)
		})

		pr.Route("/purchases", func(r chi.Router) {
			r.Get("/", h.listPurchases)
			r.Post("/", h.createPurchase)
			r.Get("/number/{number}", h.getPurchaseByNumber)
			r.Get("/{id}", h.getPurchase)
			r.Put("/{id}", h.updatePurchase)
			r.Delete("/{id}", h.deletePurchase)
		})

		pr.Route("/payments", func(r chi.Router) {
			r.Get("/", h.listPayments)
			r.Post("/", h.createPayment)
			r.Get("/{id}", h.getPayment)
			r.Put("/{id}", h.updatePayment)
			r.Delete("/{id}", h.deletePayment)
		})

		pr.Route("/stock-movements", func(r chi.Router) {
			r.Get("/", h.listMovements)
			r.Post("/", h.recordMovement)
			r.Get("/summary", h.stockSummaries)
			r.Get("/{id}", h.getMovement)
			r.Delete("/{id}", h.reverseMovement)
		})

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/sales", h.salesReport)
			r.Get("/purchases", h.purchaseReport)
			r.Get("/payments", h.paymentReport)
			r.Get("/low-stock", h.lowStockReport)
			r.Get("/expiring", h.expiryReport)
			r.Get("/inventory", h.inventoryReport)
			r.Get("/receivables", h.receivablesReport)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger tags the request with an id, puts a request scoped logger in
// the context and logs the outcome.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		ctx, l := logger.WithRequestID(r.Context(), h.log, id)
		w.Header().Set("X-Request-ID", id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		}
		if status >= http.StatusInternalServerError {
			l.Error("request", fields...)
			return
		}
		l.Info("request", fields...)
	})
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, r, domain.Unauthorized("MISSING_TOKEN", "missing bearer token"))
			return
		}
		userID, err := h.svc.Auth.Authenticate(r.Context(), strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			respondError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.Int64("user_id", userID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorID is the authenticated user behind the request.
func actorID(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxUserID).(int64)
	return id
}
