package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"medledger/m/domain"
)

// Category handlers

type categoryRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Categories.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.svc.Categories.Create(r.Context(), &domain.Category{Name: req.Name, Description: req.Description})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.svc.Categories.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req categoryRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.svc.Categories.Update(r.Context(), &domain.Category{ID: id, Name: req.Name, Description: req.Description})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.svc.Categories.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err, "Category", id)
}

func (h *Handler) listCategoryMedicines(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	medicines, err := h.svc.Medicines.ListByCategory(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, medicines)
}

// Medicine handlers

type medicineRequest struct {
	Name            string          `json:"name" validate:"required,max=200"`
	Batch           string          `json:"batch" validate:"required,max=100"`
	CategoryID      int64           `json:"categoryId" validate:"required,gt=0"`
	ExpiryDate      time.Time       `json:"expiryDate" validate:"required"`
	Price           decimal.Decimal `json:"price"`
	Barcode         *string         `json:"barcode" validate:"omitempty,max=64"`
	OpeningQuantity int64           `json:"openingQuantity" validate:"gte=0"`
}

func (req medicineRequest) medicine(id int64) *domain.Medicine {
	return &domain.Medicine{
		ID:         id,
		Name:       req.Name,
		Batch:      req.Batch,
		CategoryID: req.CategoryID,
		ExpiryDate: req.ExpiryDate,
		Price:      req.Price,
		Barcode:    req.Barcode,
	}
}

// listMedicines searches with ?q= and filters with ?categoryId=.
func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	var (
		medicines []domain.Medicine
		err       error
	)
	categoryID, err := queryInt(r, "categoryId", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if categoryID > 0 {
		medicines, err = h.svc.Medicines.ListByCategory(r.Context(), categoryID)
	} else {
		medicines, err = h.svc.Medicines.Search(r.Context(), r.URL.Query().Get("q"))
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, medicines)
}

func (h *Handler) createMedicine(w http.ResponseWriter, r *http.Request) {
	var req medicineRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	m, err := h.svc.Medicines.Create(r.Context(), req.medicine(0), req.OpeningQuantity, actorID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	m, err := h.svc.Medicines.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *Handler) getMedicineByBarcode(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Medicines.GetByBarcode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *Handler) updateMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req medicineRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.OpeningQuantity != 0 {
		respondError(w, r, domain.Validation("QUANTITY_NOT_EDITABLE", "quantity changes must be recorded as stock movements", "openingQuantity"))
		return
	}
	m, err := h.svc.Medicines.Update(r.Context(), req.medicine(id))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.svc.Medicines.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err, "Medicine", id)
}

func (h *Handler) expiringMedicines(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		respondError(w, r, err)
		return
	}
	medicines, err := h.svc.Medicines.ExpiringWithin(r.Context(), int(days))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, medicines)
}

func (h *Handler) lowStockMedicines(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryInt(r, "threshold", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	medicines, err := h.svc.Reports.LowStock(r.Context(), threshold)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, medicines)
}

func (h *Handler) medicineSuppliers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	links, err := h.svc.SupplierMedicines.ListByMedicine(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, links)
}

// Customer handlers

type customerRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
	Address *string `json:"address" validate:"omitempty,max=500"`
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.svc.Customers.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, customers)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.svc.Customers.Create(r.Context(), &domain.Customer{Name: req.Name, Phone: req.Phone, Address: req.Address})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.svc.Customers.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req customerRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.svc.Customers.Update(r.Context(), &domain.Customer{ID: id, Name: req.Name, Phone: req.Phone, Address: req.Address})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.svc.Customers.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err, "Customer", id)
}

func (h *Handler) customerInvoices(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	invoices, err := h.svc.Invoices.ListByCustomer(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, invoices)
}

// Supplier handlers

type supplierRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Contact string `json:"contact" validate:"max=200"`
	Address string `json:"address" validate:"max=500"`
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.svc.Suppliers.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, suppliers)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	sp, err := h.svc.Suppliers.Create(r.Context(), &domain.Supplier{Name: req.Name, Contact: req.Contact, Address: req.Address})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sp)
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	sp, err := h.svc.Suppliers.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sp)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req supplierRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	sp, err := h.svc.Suppliers.Update(r.Context(), &domain.Supplier{ID: id, Name: req.Name, Contact: req.Contact, Address: req.Address})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sp)
}

func (h *Handler) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.svc.Suppliers.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err, "Supplier", id)
}

func (h *Handler) supplierOffers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	links, err := h.svc.SupplierMedicines.ListBySupplier(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, links)
}

func (h *Handler) supplierPurchases(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	purchases, err := h.svc.Purchases.ListBySupplier(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, purchases)
}

// Supplier medicine handlers

type supplierMedicineRequest struct {
	SupplierID           int64           `json:"supplierId" validate:"required,gt=0"`
	MedicineID           int64           `json:"medicineId" validate:"required,gt=0"`
	DefaultPurchasePrice decimal.Decimal `json:"defaultPurchasePrice"`
	LeadTimeDays         int             `json:"leadTimeDays" validate:"gte=0"`
}

func (req supplierMedicineRequest) link(id int64) *domain.SupplierMedicine {
	return &domain.SupplierMedicine{
		ID:                   id,
		SupplierID:           req.SupplierID,
		MedicineID:           req.MedicineID,
		DefaultPurchasePrice: req.DefaultPurchasePrice,
		LeadTimeDays:         req.LeadTimeDays,
	}
}

func (h *Handler) createSupplierMedicine(w http.ResponseWriter, r *http.Request) {
	var req supplierMedicineRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	link, err := h.svc.SupplierMedicines.Create(r.Context(), req.link(0))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, link)
}

func (h *Handler) getSupplierMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	link, err := h.svc.SupplierMedicines.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, link)
}

func (h *Handler) updateSupplierMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req supplierMedicineRequest
	if err := h.bind(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	link, err := h.svc.SupplierMedicines.Update(r.Context(), req.link(id))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, link)
}

func (h *Handler) deleteSupplierMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.svc.SupplierMedicines.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err, "Supplier medicine", id)
}
