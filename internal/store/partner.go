package store

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"medledger/m/domain"
)

type CustomerRepo struct {
	ext sqlx.ExtContext
}

const customerColumns = `SELECT id, name, phone, address, created_at FROM customers`

func (r *CustomerRepo) FindByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	if err := get(ctx, r.ext, &c, customerColumns+` WHERE id = ?`, id); err != nil {
		return nil, translate(err, "Customer", id)
	}
	return &c, nil
}

func (r *CustomerRepo) List(ctx context.Context) ([]domain.Customer, error) {
	customers := []domain.Customer{}
	if err := selectAll(ctx, r.ext, &customers, customerColumns+` ORDER BY name`); err != nil {
		return nil, translate(err, "Customer", nil)
	}
	return customers, nil
}

func (r *CustomerRepo) Search(ctx context.Context, query string) ([]domain.Customer, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	customers := []domain.Customer{}
	if err := selectAll(ctx, r.ext, &customers, customerColumns+` WHERE LOWER(name) LIKE ? OR COALESCE(phone, '') LIKE ? ORDER BY name LIMIT 50`, like, like); err != nil {
		return nil, translate(err, "Customer", nil)
	}
	return customers, nil
}

func (r *CustomerRepo) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	return exists(ctx, r.ext, `SELECT id FROM customers WHERE LOWER(name) = LOWER(?) AND id <> ?`, name, excludeID)
}

func (r *CustomerRepo) ExistsByPhone(ctx context.Context, phone string, excludeID int64) (bool, error) {
	return exists(ctx, r.ext, `SELECT id FROM customers WHERE phone = ? AND id <> ?`, phone, excludeID)
}

func (r *CustomerRepo) Add(ctx context.Context, c *domain.Customer) error {
	c.CreatedAt = now()
	id, err := insert(ctx, r.ext, `INSERT INTO customers (name, phone, address, created_at) VALUES (?, ?, ?, ?)`,
		c.Name, c.Phone, c.Address, c.CreatedAt)
	if err != nil {
		return translate(err, "Customer", nil)
	}
	c.ID = id
	return nil
}

func (r *CustomerRepo) Update(ctx context.Context, c *domain.Customer) error {
	n, err := exec(ctx, r.ext, `UPDATE customers SET name = ?, phone = ?, address = ? WHERE id = ?`,
		c.Name, c.Phone, c.Address, c.ID)
	if err != nil {
		return translate(err, "Customer", c.ID)
	}
	if n == 0 {
		return domain.NotFound("Customer", c.ID)
	}
	return nil
}

func (r *CustomerRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.ext, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return false, translate(err, "Customer", id)
	}
	return n > 0, nil
}

type SupplierRepo struct {
	ext sqlx.ExtContext
}

const supplierColumns = `SELECT id, name, contact, address, created_at, updated_at FROM suppliers`

func (r *SupplierRepo) FindByID(ctx context.Context, id int64) (*domain.Supplier, error) {
	var s domain.Supplier
	if err := get(ctx, r.ext, &s, supplierColumns+` WHERE id = ?`, id); err != nil {
		return nil, translate(err, "Supplier", id)
	}
	return &s, nil
}

func (r *SupplierRepo) List(ctx context.Context) ([]domain.Supplier, error) {
	suppliers := []domain.Supplier{}
	if err := selectAll(ctx, r.ext, &suppliers, supplierColumns+` ORDER BY name`); err != nil {
		return nil, translate(err, "Supplier", nil)
	}
	return suppliers, nil
}

func (r *SupplierRepo) Add(ctx context.Context, s *domain.Supplier) error {
	ts := now()
	s.CreatedAt, s.UpdatedAt = ts, ts
	id, err := insert(ctx, r.ext, `INSERT INTO suppliers (name, contact, address, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		s.Name, s.Contact, s.Address, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return translate(err, "Supplier", nil)
	}
	s.ID = id
	return nil
}

func (r *SupplierRepo) Update(ctx context.Context, s *domain.Supplier) error {
	s.UpdatedAt = now()
	n, err := exec(ctx, r.ext, `UPDATE suppliers SET name = ?, contact = ?, address = ?, updated_at = ? WHERE id = ?`,
		s.Name, s.Contact, s.Address, s.UpdatedAt, s.ID)
	if err != nil {
		return translate(err, "Supplier", s.ID)
	}
	if n == 0 {
		return domain.NotFound("Supplier", s.ID)
	}
	return nil
}

func (r *SupplierRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.ext, `DELETE FROM suppliers WHERE id = ?`, id)
	if err != nil {
		return false, translate(err, "Supplier", id)
	}
	return n > 0, nil
}

type SupplierMedicineRepo struct {
	ext sqlx.ExtContext
}

const supplierMedicineColumns = `SELECT sm.id, sm.supplier_id, COALESCE(s.name, '') AS supplier_name,
	sm.medicine_id, COALESCE(m.name, '') AS medicine_name, sm.default_purchase_price, sm.lead_time_days
	FROM supplier_medicines sm
	LEFT JOIN suppliers s ON s.id = sm.supplier_id
	LEFT JOIN medicines m ON m.id = sm.medicine_id`

func (r *SupplierMedicineRepo) FindByID(ctx context.Context, id int64) (*domain.SupplierMedicine, error) {
	var sm domain.SupplierMedicine
	if err := get(ctx, r.ext, &sm, supplierMedicineColumns+` WHERE sm.id = ?`, id); err != nil {
		return nil, translate(err, "Supplier medicine", id)
	}
	return &sm, nil
}

func (r *SupplierMedicineRepo) Exists(ctx context.Context, supplierID, medicineID, excludeID int64) (bool, error) {
	return exists(ctx, r.ext, `SELECT id FROM supplier_medicines WHERE supplier_id = ? AND medicine_id = ? AND id <> ?`,
		supplierID, medicineID, excludeID)
}

func (r *SupplierMedicineRepo) ListBySupplier(ctx context.Context, supplierID int64) ([]domain.SupplierMedicine, error) {
	return r.list(ctx, ` WHERE sm.supplier_id = ? ORDER BY m.name`, supplierID)
}

func (r *SupplierMedicineRepo) ListByMedicine(ctx context.Context, medicineID int64) ([]domain.SupplierMedicine, error) {
	return r.list(ctx, ` WHERE sm.medicine_id = ? ORDER BY s.name`, medicineID)
}

func (r *SupplierMedicineRepo) list(ctx context.Context, tail string, args ...any) ([]domain.SupplierMedicine, error) {
	links := []domain.SupplierMedicine{}
	if err := selectAll(ctx, r.ext, &links, supplierMedicineColumns+tail, args...); err != nil {
		return nil, translate(err, "Supplier medicine", nil)
	}
	return links, nil
}

func (r *SupplierMedicineRepo) Add(ctx context.Context, sm *domain.SupplierMedicine) error {
	id, err := insert(ctx, r.ext, `INSERT INTO supplier_medicines (supplier_id, medicine_id, default_purchase_price, lead_time_days) VALUES (?, ?, ?, ?)`,
		sm.SupplierID, sm.MedicineID, sm.DefaultPurchasePrice, sm.LeadTimeDays)
	if err != nil {
		return translate(err, "Supplier medicine", nil)
	}
	sm.ID = id
	return nil
}

func (r *SupplierMedicineRepo) Update(ctx context.Context, sm *domain.SupplierMedicine) error {
	n, err := exec(ctx, r.ext, `UPDATE supplier_medicines SET supplier_id = ?, medicine_id = ?, default_purchase_price = ?, lead_time_days = ? WHERE id = ?`,
		sm.SupplierID, sm.MedicineID, sm.DefaultPurchasePrice, sm.LeadTimeDays, sm.ID)
	if err != nil {
		return translate(err, "Supplier medicine", sm.ID)
	}
	if n == 0 {
		return domain.NotFound("Supplier medicine", sm.ID)
	}
	return nil
}

func (r *SupplierMedicineRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.ext, `DELETE FROM supplier_medicines WHERE id = ?`, id)
	if err != nil {
		return false, translate(err, "Supplier medicine", id)
	}
	return n > 0, nil
}

type UserRepo struct {
	ext sqlx.ExtContext
}

const userColumns = `SELECT id, email, password, first_name, last_name, is_active, created_at FROM users`

func (r *UserRepo) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := get(ctx, r.ext, &u, userColumns+` WHERE id = ?`, id); err != nil {
		return nil, translate(err, "User", id)
	}
	return &u, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := get(ctx, r.ext, &u, userColumns+` WHERE email = ?`, strings.ToLower(email)); err != nil {
		return nil, translate(err, "User", email)
	}
	return &u, nil
}

func (r *UserRepo) Add(ctx context.Context, u *domain.User) error {
	u.CreatedAt = now()
	u.Email = strings.ToLower(u.Email)
	id, err := insert(ctx, r.ext, `INSERT INTO users (email, password, first_name, last_name, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Email, u.Password, u.FirstName, u.LastName, u.IsActive, u.CreatedAt)
	if err != nil {
		return translate(err, "User", nil)
	}
	u.ID = id
	return nil
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	n, err := exec(ctx, r.ext, `UPDATE users SET email = ?, password = ?, first_name = ?, last_name = ?, is_active = ? WHERE id = ?`,
		strings.ToLower(u.Email), u.Password, u.FirstName, u.LastName, u.IsActive, u.ID)
	if err != nil {
		return translate(err, "User", u.ID)
	}
	if n == 0 {
		return domain.NotFound("User", u.ID)
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.ext, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, translate(err, "User", id)
	}
	return n > 0, nil
}
