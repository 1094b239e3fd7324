package catalog

import (
	"context"
	"strings"

	"medledger/m/domain"
	"medledger/m/internal/store"
)

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

type CustomerService struct {
	store *store.Store
}

func NewCustomerService(s *store.Store) *CustomerService {
	return &CustomerService{store: s}
}

func checkCustomerKeys(ctx context.Context, r *store.Repos, c *domain.Customer) error {
	taken, err := r.Customers.ExistsByName(ctx, c.Name, c.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.Duplicate("Customer", "name", c.Name)
	}
	if c.Phone == nil {
		return nil
	}
	taken, err = r.Customers.ExistsByPhone(ctx, *c.Phone, c.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.Duplicate("Customer", "phone", *c.Phone)
	}
	return nil
}

func normalizeCustomer(c *domain.Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = trimOptional(c.Phone)
	c.Address = trimOptional(c.Address)
	if c.Name == "" {
		return domain.Validation("NAME_REQUIRED", "customer name is required", "name")
	}
	return nil
}

func (s *CustomerService) Create(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	if err := normalizeCustomer(c); err != nil {
		return nil, err
	}
	c.ID = 0
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		if err := checkCustomerKeys(ctx, r, c); err != nil {
			return err
		}
		return r.Customers.Add(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CustomerService) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	return s.store.Repos().Customers.FindByID(ctx, id)
}

func (s *CustomerService) List(ctx context.Context) ([]domain.Customer, error) {
	return s.store.Repos().Customers.List(ctx)
}

// Search matches the name or phone number.
func (s *CustomerService) Search(ctx context.Context, query string) ([]domain.Customer, error) {
	if strings.TrimSpace(query) == "" {
		return s.List(ctx)
	}
	return s.store.Repos().Customers.Search(ctx, query)
}

func (s *CustomerService) Update(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	if err := normalizeCustomer(c); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		current, err := r.Customers.FindByID(ctx, c.ID)
		if err != nil {
			return err
		}
		if err := checkCustomerKeys(ctx, r, c); err != nil {
			return err
		}
		c.CreatedAt = current.CreatedAt
		return r.Customers.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete refuses to remove a customer with invoices.
func (s *CustomerService) Delete(ctx context.Context, id int64) (bool, error) {
	return guardedDelete(ctx, s.store, func(r *store.Repos) (bool, error) {
		if _, err := r.Customers.FindByID(ctx, id); err != nil {
			return false, err
		}
		n, err := r.Invoices.CountByCustomer(ctx, id)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, domain.BusinessRule("CUSTOMER_HAS_INVOICES", "customer still has invoices",
				map[string]any{"customerId": id, "invoices": n})
		}
		return r.Customers.Delete(ctx, id)
	})
}

type SupplierService struct {
	store *store.Store
}

func NewSupplierService(s *store.Store) *SupplierService {
	return &SupplierService{store: s}
}

func normalizeSupplier(sp *domain.Supplier) error {
	sp.Name = strings.TrimSpace(sp.Name)
	sp.Contact = strings.TrimSpace(sp.Contact)
	sp.Address = strings.TrimSpace(sp.Address)
	if sp.Name == "" {
		return domain.Validation("NAME_REQUIRED", "supplier name is required", "name")
	}
	return nil
}

func (s *SupplierService) Create(ctx context.Context, sp *domain.Supplier) (*domain.Supplier, error) {
	if err := normalizeSupplier(sp); err != nil {
		return nil, err
	}
	sp.ID = 0
	if err := s.store.Repos().Suppliers.Add(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *SupplierService) Get(ctx context.Context, id int64) (*domain.Supplier, error) {
	return s.store.Repos().Suppliers.FindByID(ctx, id)
}

func (s *SupplierService) List(ctx context.Context) ([]domain.Supplier, error) {
	return s.store.Repos().Suppliers.List(ctx)
}

func (s *SupplierService) Update(ctx context.Context, sp *domain.Supplier) (*domain.Supplier, error) {
	if err := normalizeSupplier(sp); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		current, err := r.Suppliers.FindByID(ctx, sp.ID)
		if err != nil {
			return err
		}
		sp.CreatedAt = current.CreatedAt
		return r.Suppliers.Update(ctx, sp)
	})
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// Delete refuses to remove a supplier with purchases. Its offers go with it.
func (s *SupplierService) Delete(ctx context.Context, id int64) (bool, error) {
	return guardedDelete(ctx, s.store, func(r *store.Repos) (bool, error) {
		if _, err := r.Suppliers.FindByID(ctx, id); err != nil {
			return false, err
		}
		n, err := r.Purchases.CountBySupplier(ctx, id)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, domain.BusinessRule("SUPPLIER_HAS_PURCHASES", "supplier still has purchases",
				map[string]any{"supplierId": id, "purchases": n})
		}
		return r.Suppliers.Delete(ctx, id)
	})
}

// SupplierMedicineService manages which supplier delivers which medicine, at
// what default price and lead time.
type SupplierMedicineService struct {
	store *store.Store
}

func NewSupplierMedicineService(s *store.Store) *SupplierMedicineService {
	return &SupplierMedicineService{store: s}
}

func (s *SupplierMedicineService) check(ctx context.Context, r *store.Repos, sm *domain.SupplierMedicine) error {
	if sm.DefaultPurchasePrice.IsNegative() {
		return domain.Validation("INVALID_PRICE", "default purchase price must not be negative", "defaultPurchasePrice")
	}
	if sm.LeadTimeDays < 0 {
		return domain.Validation("INVALID_LEAD_TIME", "lead time must not be negative", "leadTimeDays")
	}
	if _, err := r.Suppliers.FindByID(ctx, sm.SupplierID); err != nil {
		return err
	}
	if _, err := r.Medicines.FindByID(ctx, sm.MedicineID); err != nil {
		return err
	}
	taken, err := r.SupplierMedicines.Exists(ctx, sm.SupplierID, sm.MedicineID, sm.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.Duplicate("Supplier medicine", "supplier and medicine", map[string]int64{
			"supplierId": sm.SupplierID,
			"medicineId": sm.MedicineID,
		})
	}
	return nil
}

func (s *SupplierMedicineService) Create(ctx context.Context, sm *domain.SupplierMedicine) (*domain.SupplierMedicine, error) {
	sm.ID = 0
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		if err := s.check(ctx, r, sm); err != nil {
			return err
		}
		return r.SupplierMedicines.Add(ctx, sm)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, sm.ID)
}

func (s *SupplierMedicineService) Get(ctx context.Context, id int64) (*domain.SupplierMedicine, error) {
	return s.store.Repos().SupplierMedicines.FindByID(ctx, id)
}

func (s *SupplierMedicineService) ListBySupplier(ctx context.Context, supplierID int64) ([]domain.SupplierMedicine, error) {
	repos := s.store.Repos()
	if _, err := repos.Suppliers.FindByID(ctx, supplierID); err != nil {
		return nil, err
	}
	return repos.SupplierMedicines.ListBySupplier(ctx, supplierID)
}

func (s *SupplierMedicineService) ListByMedicine(ctx context.Context, medicineID int64) ([]domain.SupplierMedicine, error) {
	repos := s.store.Repos()
	if _, err := repos.Medicines.FindByID(ctx, medicineID); err != nil {
		return nil, err
	}
	return repos.SupplierMedicines.ListByMedicine(ctx, medicineID)
}

func (s *SupplierMedicineService) Update(ctx context.Context, sm *domain.SupplierMedicine) (*domain.SupplierMedicine, error) {
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		if _, err := r.SupplierMedicines.FindByID(ctx, sm.ID); err != nil {
			return err
		}
		if err := s.check(ctx, r, sm); err != nil {
			return err
		}
		return r.SupplierMedicines.Update(ctx, sm)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, sm.ID)
}

func (s *SupplierMedicineService) Delete(ctx context.Context, id int64) (bool, error) {
	return s.store.Repos().SupplierMedicines.Delete(ctx, id)
}
