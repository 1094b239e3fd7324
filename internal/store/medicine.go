package store

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"medledger/m/domain"
)

type CategoryRepo struct {
	ext sqlx.ExtContext
}

const categoryColumns = `SELECT id, name, description, created_at FROM categories`

func (r *CategoryRepo) FindByID(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	if err := get(ctx, r.ext, &c, categoryColumns+` WHERE id = ?`, id); err != nil {
		return nil, translate(err, "Category", id)
	}
	return &c, nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	categories := []domain.Category{}
	if err := selectAll(ctx, r.ext, &categories, categoryColumns+` ORDER BY name`); err != nil {
		return nil, translate(err, "Category", nil)
	}
	return categories, nil
}

// ExistsByName reports whether another category already uses name.
func (r *CategoryRepo) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	return exists(ctx, r.ext, `SELECT id FROM categories WHERE LOWER(name) = LOWER(?) AND id <> ?`, name, excludeID)
}

func (r *CategoryRepo) Add(ctx context.Context, c *domain.Category) error {
	c.CreatedAt = now()
	id, err := insert(ctx, r.ext, `INSERT INTO categories (name, description, created_at) VALUES (?, ?, ?)`,
		c.Name, c.Description, c.CreatedAt)
	if err != nil {
		return translate(err, "Category", nil)
	}
	c.ID = id
	return nil
}

func (r *CategoryRepo) Update(ctx context.Context, c *domain.Category) error {
	n, err := exec(ctx, r.ext, `UPDATE categories SET name = ?, description = ? WHERE id = ?`, c.Name, c.Description, c.ID)
	if err != nil {
		return translate(err, "Category", c.ID)
	}
	if n == 0 {
		return domain.NotFound("Category", c.ID)
	}
	return nil
}

func (r *CategoryRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.ext, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return false, translate(err, "Category", id)
	}
	return n > 0, nil
}

// CountMedicines returns how many medicines belong to the category.
func (r *CategoryRepo) CountMedicines(ctx context.Context, id int64) (int64, error) {
	var n int64
	if err := get(ctx, r.ext, &n, `SELECT COUNT(*) FROM medicines WHERE category_id = ?`, id); err != nil {
		return 0, translate(err, "Category", id)
	}
	return n, nil
}

type MedicineRepo struct {
	ext sqlx.ExtContext
}

const medicineColumns = `SELECT m.id, m.name, m.batch, m.category_id, COALESCE(c.name, '') AS category_name,
	m.expiry_date, m.quantity, m.price, m.barcode, m.created_at, m.updated_at
	FROM medicines m
	LEFT JOIN categories c ON c.id = m.category_id`

func (r *MedicineRepo) FindByID(ctx context.Context, id int64) (*domain.Medicine, error) {
	var m domain.Medicine
	if err := get(ctx, r.ext, &m, medicineColumns+` WHERE m.id = ?`, id); err != nil {
		return nil, translate(err, "Medicine", id)
	}
	return &m, nil
}

func (r *MedicineRepo) FindByBarcode(ctx context.Context, barcode string) (*domain.Medicine, error) {
	var m domain.Medicine
	if err := get(ctx, r.ext, &m, medicineColumns+` WHERE m.barcode = ?`, barcode); err != nil {
		return nil, translate(err, "Medicine", barcode)
	}
	return &m, nil
}

func (r *MedicineRepo) FindByName(ctx context.Context, name string) (*domain.Medicine, error) {
	var m domain.Medicine
	if err := get(ctx, r.ext, &m, medicineColumns+` WHERE LOWER(m.name) = LOWER(?)`, name); err != nil {
		return nil, translate(err, "Medicine", name)
	}
	return &m, nil
}

func (r *MedicineRepo) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	return exists(ctx, r.ext, `SELECT id FROM medicines WHERE LOWER(name) = LOWER(?) AND id <> ?`, name, excludeID)
}

func (r *MedicineRepo) ExistsByBarcode(ctx context.Context, barcode string, excludeID int64) (bool, error) {
	return exists(ctx, r.ext, `SELECT id FROM medicines WHERE barcode = ? AND id <> ?`, barcode, excludeID)
}

func (r *MedicineRepo) List(ctx context.Context) ([]domain.Medicine, error) {
	return r.list(ctx, ` ORDER BY m.name`)
}

func (r *MedicineRepo) ListByCategory(ctx context.Context, categoryID int64) ([]domain.Medicine, error) {
	return r.list(ctx, ` WHERE m.category_id = ? ORDER BY m.name`, categoryID)
}

// ListExpiringBefore returns medicines whose expiry date is not after cutoff.
func (r *MedicineRepo) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.Medicine, error) {
	return r.list(ctx, ` WHERE m.expiry_date <= ? ORDER BY m.expiry_date, m.name`, utc(cutoff))
}

// ListLowStock returns medicines whose quantity is at or below threshold.
func (r *MedicineRepo) ListLowStock(ctx context.Context, threshold int64) ([]domain.Medicine, error) {
	return r.list(ctx, ` WHERE m.quantity <= ? ORDER BY m.quantity, m.name`, threshold)
}

// Search matches name, batch or barcode case-insensitively.
func (r *MedicineRepo) Search(ctx context.Context, query string) ([]domain.Medicine, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	return r.list(ctx, ` WHERE LOWER(m.name) LIKE ? OR LOWER(m.batch) LIKE ? OR LOWER(COALESCE(m.barcode, '')) LIKE ?
		ORDER BY m.name LIMIT 50`, like, like, like)
}

func (r *MedicineRepo) list(ctx context.Context, tail string, args ...any) ([]domain.Medicine, error) {
	medicines := []domain.Medicine{}
	if err := selectAll(ctx, r.ext, &medicines, medicineColumns+tail, args...); err != nil {
		return nil, translate(err, "Medicine", nil)
	}
	return medicines, nil
}

// Add inserts the catalog row. Quantity starts at zero; opening stock is
// booked through the stock ledger.
func (r *MedicineRepo) Add(ctx context.Context, m *domain.Medicine) error {
	ts := now()
	m.CreatedAt, m.UpdatedAt = ts, ts
	m.Quantity = 0
	id, err := insert(ctx, r.ext, `INSERT INTO medicines (name, batch, category_id, expiry_date, quantity, price, barcode, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		m.Name, m.Batch, m.CategoryID, utc(m.ExpiryDate), m.Price, m.Barcode, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return translate(err, "Medicine", nil)
	}
	m.ID = id
	return nil
}

// Update writes the catalog fields. Quantity is left alone.
func (r *MedicineRepo) Update(ctx context.Context, m *domain.Medicine) error {
	m.UpdatedAt = now()
	n, err := exec(ctx, r.ext, `UPDATE medicines SET name = ?, batch = ?, category_id = ?, expiry_date = ?, price = ?, barcode = ?, updated_at = ?
		WHERE id = ?`,
		m.Name, m.Batch, m.CategoryID, utc(m.ExpiryDate), m.Price, m.Barcode, m.UpdatedAt, m.ID)
	if err != nil {
		return translate(err, "Medicine", m.ID)
	}
	if n == 0 {
		return domain.NotFound("Medicine", m.ID)
	}
	return nil
}

func (r *MedicineRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.ext, `DELETE FROM medicines WHERE id = ?`, id)
	if err != nil {
		return false, translate(err, "Medicine", id)
	}
	return n > 0, nil
}

// AdjustQuantity applies delta in a single guarded statement so concurrent
// writers cannot drive the quantity below zero. It reports false when the
// medicine is missing or the guard rejected the change.
func (r *MedicineRepo) AdjustQuantity(ctx context.Context, id, delta int64, at time.Time) (bool, error) {
	n, err := exec(ctx, r.ext, `UPDATE medicines SET quantity = quantity + ?, updated_at = ?
		WHERE id = ? AND quantity + ? >= 0`, delta, utc(at), id, delta)
	if err != nil {
		return false, translate(err, "Medicine", id)
	}
	return n == 1, nil
}

// IsReferenced reports whether any sale, purchase, movement or supplier link
// points at the medicine.
func (r *MedicineRepo) IsReferenced(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.ext, `SELECT medicine_id FROM invoice_items WHERE medicine_id = ?
		UNION ALL SELECT medicine_id FROM purchase_items WHERE medicine_id = ?
		UNION ALL SELECT medicine_id FROM stock_movements WHERE medicine_id = ?
		UNION ALL SELECT medicine_id FROM supplier_medicines WHERE medicine_id = ?`, id, id, id, id)
}
