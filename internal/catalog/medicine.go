// Package catalog manages the reference data the ledger depends on:
// categories, medicines, customers, suppliers and supplier offers.
package catalog

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"medledger/m/domain"
	"medledger/m/internal/ledger"
	"medledger/m/internal/logger"
	"medledger/m/internal/store"
)

type CategoryService struct {
	store *store.Store
}

func NewCategoryService(s *store.Store) *CategoryService {
	return &CategoryService{store: s}
}

func (s *CategoryService) Create(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, domain.Validation("NAME_REQUIRED", "category name is required", "name")
	}
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		taken, err := r.Categories.ExistsByName(ctx, c.Name, 0)
		if err != nil {
			return err
		}
		if taken {
			return domain.Duplicate("Category", "name", c.Name)
		}
		return r.Categories.Add(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*domain.Category, error) {
	return s.store.Repos().Categories.FindByID(ctx, id)
}

func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	return s.store.Repos().Categories.List(ctx)
}

func (s *CategoryService) Update(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, domain.Validation("NAME_REQUIRED", "category name is required", "name")
	}
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		current, err := r.Categories.FindByID(ctx, c.ID)
		if err != nil {
			return err
		}
		taken, err := r.Categories.ExistsByName(ctx, c.Name, c.ID)
		if err != nil {
			return err
		}
		if taken {
			return domain.Duplicate("Category", "name", c.Name)
		}
		c.CreatedAt = current.CreatedAt
		return r.Categories.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete refuses to remove a category that still has medicines.
func (s *CategoryService) Delete(ctx context.Context, id int64) (bool, error) {
	return guardedDelete(ctx, s.store, func(r *store.Repos) (bool, error) {
		if _, err := r.Categories.FindByID(ctx, id); err != nil {
			return false, err
		}
		n, err := r.Categories.CountMedicines(ctx, id)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, domain.BusinessRule("CATEGORY_IN_USE", "category still has medicines",
				map[string]any{"categoryId": id, "medicines": n})
		}
		return r.Categories.Delete(ctx, id)
	})
}

// guardedDelete runs fn in a transaction and reports a missing row as false
// rather than an error.
func guardedDelete(ctx context.Context, s *store.Store, fn func(r *store.Repos) (bool, error)) (bool, error) {
	var ok bool
	err := s.InTx(ctx, func(r *store.Repos) error {
		var err error
		ok, err = fn(r)
		return err
	})
	if domain.KindOf(err) == domain.KindNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

type MedicineService struct {
	store *store.Store
}

func NewMedicineService(s *store.Store) *MedicineService {
	return &MedicineService{store: s}
}

func normalizeMedicine(m *domain.Medicine) error {
	m.Name = strings.TrimSpace(m.Name)
	m.Batch = strings.TrimSpace(m.Batch)
	if m.Barcode != nil {
		code := strings.TrimSpace(*m.Barcode)
		if code == "" {
			m.Barcode = nil
		} else {
			m.Barcode = &code
		}
	}
	var fields []string
	if m.Name == "" {
		fields = append(fields, "name")
	}
	if m.Batch == "" {
		fields = append(fields, "batch")
	}
	if m.ExpiryDate.IsZero() {
		fields = append(fields, "expiryDate")
	}
	if len(fields) > 0 {
		return domain.Validation("REQUIRED_FIELDS", "name, batch and expiry date are required", fields...)
	}
	if m.Price.IsNegative() {
		return domain.Validation("INVALID_PRICE", "price must not be negative", "price")
	}
	return nil
}

func checkMedicineKeys(ctx context.Context, r *store.Repos, m *domain.Medicine) error {
	taken, err := r.Medicines.ExistsByName(ctx, m.Name, m.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.Duplicate("Medicine", "name", m.Name)
	}
	if m.Barcode != nil {
		taken, err := r.Medicines.ExistsByBarcode(ctx, *m.Barcode, m.ID)
		if err != nil {
			return err
		}
		if taken {
			return domain.Duplicate("Medicine", "barcode", *m.Barcode)
		}
	}
	_, err = r.Categories.FindByID(ctx, m.CategoryID)
	return err
}

// Create adds a medicine to the catalog. A positive openingQty is booked as an
// ADJUSTMENT movement in the same transaction.
func (s *MedicineService) Create(ctx context.Context, m *domain.Medicine, openingQty, actorID int64) (*domain.Medicine, error) {
	if err := normalizeMedicine(m); err != nil {
		return nil, err
	}
	if openingQty < 0 {
		return nil, domain.Validation("INVALID_QUANTITY", "opening quantity must not be negative", "openingQuantity")
	}
	m.ID = 0

	err := s.store.InTx(ctx, func(r *store.Repos) error {
		if err := checkMedicineKeys(ctx, r, m); err != nil {
			return err
		}
		if err := r.Medicines.Add(ctx, m); err != nil {
			return err
		}
		if openingQty == 0 {
			return nil
		}
		_, err := ledger.Apply(ctx, r, ledger.Movement{
			MedicineID:    m.ID,
			ChangeQty:     openingQty,
			Reason:        "Opening stock",
			ReferenceType: domain.RefAdjustment,
		}, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("medicine created",
		zap.Int64("medicine_id", m.ID),
		zap.String("name", m.Name),
		zap.Int64("opening_qty", openingQty),
	)
	return s.Get(ctx, m.ID)
}

func (s *MedicineService) Get(ctx context.Context, id int64) (*domain.Medicine, error) {
	return s.store.Repos().Medicines.FindByID(ctx, id)
}

func (s *MedicineService) GetByBarcode(ctx context.Context, barcode string) (*domain.Medicine, error) {
	return s.store.Repos().Medicines.FindByBarcode(ctx, strings.TrimSpace(barcode))
}

func (s *MedicineService) List(ctx context.Context) ([]domain.Medicine, error) {
	return s.store.Repos().Medicines.List(ctx)
}

func (s *MedicineService) ListByCategory(ctx context.Context, categoryID int64) ([]domain.Medicine, error) {
	repos := s.store.Repos()
	if _, err := repos.Categories.FindByID(ctx, categoryID); err != nil {
		return nil, err
	}
	return repos.Medicines.ListByCategory(ctx, categoryID)
}

// ExpiringWithin lists medicines that expire in the next days days, already
// expired ones included.
func (s *MedicineService) ExpiringWithin(ctx context.Context, days int) ([]domain.Medicine, error) {
	if days < 0 {
		return nil, domain.Validation("INVALID_DAYS", "days must not be negative", "days")
	}
	return s.store.Repos().Medicines.ListExpiringBefore(ctx, time.Now().AddDate(0, 0, days))
}

func (s *MedicineService) LowStock(ctx context.Context, threshold int64) ([]domain.Medicine, error) {
	if threshold < 0 {
		return nil, domain.Validation("INVALID_THRESHOLD", "threshold must not be negative", "threshold")
	}
	return s.store.Repos().Medicines.ListLowStock(ctx, threshold)
}

func (s *MedicineService) Search(ctx context.Context, query string) ([]domain.Medicine, error) {
	if strings.TrimSpace(query) == "" {
		return s.List(ctx)
	}
	return s.store.Repos().Medicines.Search(ctx, query)
}

// Update rewrites the catalog fields. Quantity is not writable here; stock
// changes go through the ledger.
func (s *MedicineService) Update(ctx context.Context, m *domain.Medicine) (*domain.Medicine, error) {
	if err := normalizeMedicine(m); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		if _, err := r.Medicines.FindByID(ctx, m.ID); err != nil {
			return err
		}
		if err := checkMedicineKeys(ctx, r, m); err != nil {
			return err
		}
		return r.Medicines.Update(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, m.ID)
}

// Delete removes a medicine nothing refers to. Sold, purchased or adjusted
// medicines stay for the history.
func (s *MedicineService) Delete(ctx context.Context, id int64) (bool, error) {
	return guardedDelete(ctx, s.store, func(r *store.Repos) (bool, error) {
		if _, err := r.Medicines.FindByID(ctx, id); err != nil {
			return false, err
		}
		used, err := r.Medicines.IsReferenced(ctx, id)
		if err != nil {
			return false, err
		}
		if used {
			return false, domain.BusinessRule("MEDICINE_IN_USE", "medicine is referenced by sales, purchases, stock movements or supplier offers",
				map[string]any{"medicineId": id})
		}
		return r.Medicines.Delete(ctx, id)
	})
}
