package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"medledger/m/domain"
)

type PurchaseRepo struct {
	ext sqlx.ExtContext
}

const purchaseColumns = `SELECT p.id, p.supplier_id, COALESCE(s.name, '') AS supplier_name, p.invoice_no, p.date, p.total,
	p.created_by, COALESCE(TRIM(u.first_name || ' ' || u.last_name), '') AS created_by_name, p.created_at
	FROM purchases p
	LEFT JOIN suppliers s ON s.id = p.supplier_id
	LEFT JOIN users u ON u.id = p.created_by`

func (r *PurchaseRepo) FindByID(ctx context.Context, id int64) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := get(ctx, r.ext, &p, purchaseColumns+` WHERE p.id = ?`, id); err != nil {
		return nil, translate(err, "Purchase", id)
	}
	return &p, nil
}

// Lock reads the bare purchase row and, on postgres, holds a row lock until
// the surrounding transaction ends.
func (r *PurchaseRepo) Lock(ctx context.Context, id int64) (*domain.Purchase, error) {
	query := `SELECT id, supplier_id, invoice_no, date, total, created_by, created_at
		FROM purchases WHERE id = ?`
	if isPostgres(r.ext) {
		query += ` FOR UPDATE`
	}
	var p domain.Purchase
	if err := get(ctx, r.ext, &p, query, id); err != nil {
		return nil, translate(err, "Purchase", id)
	}
	return &p, nil
}

func (r *PurchaseRepo) FindByNumber(ctx context.Context, invoiceNo string) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := get(ctx, r.ext, &p, purchaseColumns+` WHERE p.invoice_no = ?`, invoiceNo); err != nil {
		return nil, translate(err, "Purchase", invoiceNo)
	}
	return &p, nil
}

// ExistsByNumber checks the purchase numbering namespace, ignoring excludeID.
func (r *PurchaseRepo) ExistsByNumber(ctx context.Context, invoiceNo string, excludeID int64) (bool, error) {
	return exists(ctx, r.ext, `SELECT id FROM purchases WHERE invoice_no = ? AND id <> ?`, invoiceNo, excludeID)
}

func (r *PurchaseRepo) List(ctx context.Context) ([]domain.Purchase, error) {
	return r.list(ctx, ` ORDER BY p.date DESC, p.id DESC`)
}

func (r *PurchaseRepo) ListBySupplier(ctx context.Context, supplierID int64) ([]domain.Purchase, error) {
	return r.list(ctx, ` WHERE p.supplier_id = ? ORDER BY p.date DESC, p.id DESC`, supplierID)
}

func (r *PurchaseRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Purchase, error) {
	return r.list(ctx, ` WHERE p.date >= ? AND p.date <= ? ORDER BY p.date DESC, p.id DESC`, utc(from), utc(to))
}

func (r *PurchaseRepo) list(ctx context.Context, tail string, args ...any) ([]domain.Purchase, error) {
	purchases := []domain.Purchase{}
	if err := selectAll(ctx, r.ext, &purchases, purchaseColumns+tail, args...); err != nil {
		return nil, translate(err, "Purchase", nil)
	}
	return purchases, nil
}

func (r *PurchaseRepo) CountBySupplier(ctx context.Context, supplierID int64) (int64, error) {
	var n int64
	if err := get(ctx, r.ext, &n, `SELECT COUNT(*) FROM purchases WHERE supplier_id = ?`, supplierID); err != nil {
		return 0, translate(err, "Purchase", nil)
	}
	return n, nil
}

// Add inserts the purchase header only.
func (r *PurchaseRepo) Add(ctx context.Context, p *domain.Purchase) error {
	p.CreatedAt = now()
	p.Date = utc(p.Date)
	id, err := insert(ctx, r.ext, `INSERT INTO purchases (supplier_id, invoice_no, date, total, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.SupplierID, p.InvoiceNo, p.Date, p.Total, p.CreatedBy, p.CreatedAt)
	if err != nil {
		return translate(err, "Purchase", nil)
	}
	p.ID = id
	return nil
}

// Update writes the number and date; items and totals are fixed at creation.
func (r *PurchaseRepo) Update(ctx context.Context, p *domain.Purchase) error {
	p.Date = utc(p.Date)
	n, err := exec(ctx, r.ext, `UPDATE purchases SET invoice_no = ?, date = ? WHERE id = ?`, p.InvoiceNo, p.Date, p.ID)
	if err != nil {
		return translate(err, "Purchase", p.ID)
	}
	if n == 0 {
		return domain.NotFound("Purchase", p.ID)
	}
	return nil
}

func (r *PurchaseRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.ext, `DELETE FROM purchases WHERE id = ?`, id)
	if err != nil {
		return false, translate(err, "Purchase", id)
	}
	return n > 0, nil
}

func (r *PurchaseRepo) AddItem(ctx context.Context, item *domain.PurchaseItem) error {
	id, err := insert(ctx, r.ext, `INSERT INTO purchase_items (purchase_id, medicine_id, qty, price, subtotal) VALUES (?, ?, ?, ?, ?)`,
		item.PurchaseID, item.MedicineID, item.Qty, item.Price, item.Subtotal)
	if err != nil {
		return translate(err, "Purchase item", nil)
	}
	item.ID = id
	return nil
}

const purchaseItemColumns = `SELECT pi.id, pi.purchase_id, pi.medicine_id, COALESCE(m.name, '') AS medicine_name, pi.qty, pi.price, pi.subtotal
	FROM purchase_items pi
	LEFT JOIN medicines m ON m.id = pi.medicine_id`

func (r *PurchaseRepo) Items(ctx context.Context, purchaseID int64) ([]domain.PurchaseItem, error) {
	items := []domain.PurchaseItem{}
	if err := selectAll(ctx, r.ext, &items, purchaseItemColumns+` WHERE pi.purchase_id = ? ORDER BY pi.id`, purchaseID); err != nil {
		return nil, translate(err, "Purchase item", nil)
	}
	return items, nil
}

func (r *PurchaseRepo) ItemsByPurchases(ctx context.Context, ids []int64) (map[int64][]domain.PurchaseItem, error) {
	out := make(map[int64][]domain.PurchaseItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(purchaseItemColumns+` WHERE pi.purchase_id IN (?) ORDER BY pi.id`, ids)
	if err != nil {
		return nil, err
	}
	var rows []domain.PurchaseItem
	if err := selectAll(ctx, r.ext, &rows, query, args...); err != nil {
		return nil, translate(err, "Purchase item", nil)
	}
	for _, row := range rows {
		out[row.PurchaseID] = append(out[row.PurchaseID], row)
	}
	return out, nil
}
