package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"medledger/m/domain"
)

type InvoiceRepo struct {
	ext sqlx.ExtContext
}

const invoiceColumns = `SELECT i.id, i.invoice_no, i.date, i.customer_id, COALESCE(c.name, '') AS customer_name,
	i.subtotal, i.discount_percent, i.discount_amount, i.total, i.created_by,
	COALESCE(TRIM(u.first_name || ' ' || u.last_name), '') AS created_by_name, i.created_at, i.notes
	FROM invoices i
	LEFT JOIN customers c ON c.id = i.customer_id
	LEFT JOIN users u ON u.id = i.created_by`

// FindByID returns the invoice header without items or payments.
func (r *InvoiceRepo) FindByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := get(ctx, r.ext, &inv, invoiceColumns+` WHERE i.id = ?`, id); err != nil {
		return nil, translate(err, "Invoice", id)
	}
	return &inv, nil
}

func (r *InvoiceRepo) FindByNumber(ctx context.Context, invoiceNo string) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := get(ctx, r.ext, &inv, invoiceColumns+` WHERE i.invoice_no = ?`, invoiceNo); err != nil {
		return nil, translate(err, "Invoice", invoiceNo)
	}
	return &inv, nil
}

// Lock reads the bare invoice row and, on postgres, holds a row lock until the
// surrounding transaction ends.
func (r *InvoiceRepo) Lock(ctx context.Context, id int64) (*domain.Invoice, error) {
	query := `SELECT id, invoice_no, date, customer_id, subtotal, discount_percent, discount_amount, total, created_by, created_at, notes
		FROM invoices WHERE id = ?`
	if isPostgres(r.ext) {
		query += ` FOR UPDATE`
	}
	var inv domain.Invoice
	if err := get(ctx, r.ext, &inv, query, id); err != nil {
		return nil, translate(err, "Invoice", id)
	}
	return &inv, nil
}

func (r *InvoiceRepo) ExistsByNumber(ctx context.Context, invoiceNo string) (bool, error) {
	return exists(ctx, r.ext, `SELECT id FROM invoices WHERE invoice_no = ?`, invoiceNo)
}

func (r *InvoiceRepo) List(ctx context.Context) ([]domain.Invoice, error) {
	return r.list(ctx, ` ORDER BY i.date DESC, i.id DESC`)
}

// ListByDateRange returns invoices dated within [from, to].
func (r *InvoiceRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Invoice, error) {
	return r.list(ctx, ` WHERE i.date >= ? AND i.date <= ? ORDER BY i.date DESC, i.id DESC`, utc(from), utc(to))
}

func (r *InvoiceRepo) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Invoice, error) {
	return r.list(ctx, ` WHERE i.customer_id = ? ORDER BY i.date DESC, i.id DESC`, customerID)
}

func (r *InvoiceRepo) list(ctx context.Context, tail string, args ...any) ([]domain.Invoice, error) {
	invoices := []domain.Invoice{}
	if err := selectAll(ctx, r.ext, &invoices, invoiceColumns+tail, args...); err != nil {
		return nil, translate(err, "Invoice", nil)
	}
	return invoices, nil
}

func (r *InvoiceRepo) CountByCustomer(ctx context.Context, customerID int64) (int64, error) {
	var n int64
	if err := get(ctx, r.ext, &n, `SELECT COUNT(*) FROM invoices WHERE customer_id = ?`, customerID); err != nil {
		return 0, translate(err, "Invoice", nil)
	}
	return n, nil
}

// Add inserts the invoice header only.
func (r *InvoiceRepo) Add(ctx context.Context, inv *domain.Invoice) error {
	inv.CreatedAt = now()
	inv.Date = utc(inv.Date)
	id, err := insert(ctx, r.ext, `INSERT INTO invoices (invoice_no, date, customer_id, subtotal, discount_percent, discount_amount, total, created_by, created_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.InvoiceNo, inv.Date, inv.CustomerID, inv.Subtotal, inv.DiscountPercent, inv.DiscountAmount, inv.Total,
		inv.CreatedBy, inv.CreatedAt, inv.Notes)
	if err != nil {
		return translate(err, "Invoice", nil)
	}
	inv.ID = id
	return nil
}

// Update writes the mutable header fields.
func (r *InvoiceRepo) Update(ctx context.Context, inv *domain.Invoice) error {
	n, err := exec(ctx, r.ext, `UPDATE invoices SET customer_id = ?, discount_percent = ?, discount_amount = ?, total = ?, notes = ? WHERE id = ?`,
		inv.CustomerID, inv.DiscountPercent, inv.DiscountAmount, inv.Total, inv.Notes, inv.ID)
	if err != nil {
		return translate(err, "Invoice", inv.ID)
	}
	if n == 0 {
		return domain.NotFound("Invoice", inv.ID)
	}
	return nil
}

// Delete removes the invoice; items and payments cascade.
func (r *InvoiceRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.ext, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return false, translate(err, "Invoice", id)
	}
	return n > 0, nil
}

func (r *InvoiceRepo) AddItem(ctx context.Context, item *domain.InvoiceItem) error {
	id, err := insert(ctx, r.ext, `INSERT INTO invoice_items (invoice_id, medicine_id, qty, price, subtotal) VALUES (?, ?, ?, ?, ?)`,
		item.InvoiceID, item.MedicineID, item.Qty, item.Price, item.Subtotal)
	if err != nil {
		return translate(err, "Invoice item", nil)
	}
	item.ID = id
	return nil
}

const invoiceItemColumns = `SELECT ii.id, ii.invoice_id, ii.medicine_id, COALESCE(m.name, '') AS medicine_name, ii.qty, ii.price, ii.subtotal
	FROM invoice_items ii
	LEFT JOIN medicines m ON m.id = ii.medicine_id`

func (r *InvoiceRepo) Items(ctx context.Context, invoiceID int64) ([]domain.InvoiceItem, error) {
	items := []domain.InvoiceItem{}
	if err := selectAll(ctx, r.ext, &items, invoiceItemColumns+` WHERE ii.invoice_id = ? ORDER BY ii.id`, invoiceID); err != nil {
		return nil, translate(err, "Invoice item", nil)
	}
	return items, nil
}

// ItemsByInvoices loads the lines of several invoices at once, keyed by invoice.
func (r *InvoiceRepo) ItemsByInvoices(ctx context.Context, ids []int64) (map[int64][]domain.InvoiceItem, error) {
	out := make(map[int64][]domain.InvoiceItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(invoiceItemColumns+` WHERE ii.invoice_id IN (?) ORDER BY ii.id`, ids)
	if err != nil {
		return nil, err
	}
	var rows []domain.InvoiceItem
	if err := selectAll(ctx, r.ext, &rows, query, args...); err != nil {
		return nil, translate(err, "Invoice item", nil)
	}
	for _, row := range rows {
		out[row.InvoiceID] = append(out[row.InvoiceID], row)
	}
	return out, nil
}

type PaymentRepo struct {
	ext sqlx.ExtContext
}

const paymentColumns = `SELECT p.id, p.invoice_id, COALESCE(i.invoice_no, '') AS invoice_no, p.amount, p.method, p.date,
	p.received_by, COALESCE(TRIM(u.first_name || ' ' || u.last_name), '') AS received_by_name, p.created_at
	FROM payments p
	LEFT JOIN invoices i ON i.id = p.invoice_id
	LEFT JOIN users u ON u.id = p.received_by`

func (r *PaymentRepo) FindByID(ctx context.Context, id int64) (*domain.Payment, error) {
	var p domain.Payment
	if err := get(ctx, r.ext, &p, paymentColumns+` WHERE p.id = ?`, id); err != nil {
		return nil, translate(err, "Payment", id)
	}
	return &p, nil
}

func (r *PaymentRepo) List(ctx context.Context) ([]domain.Payment, error) {
	return r.list(ctx, ` ORDER BY p.date DESC, p.id DESC`)
}

func (r *PaymentRepo) ListByInvoice(ctx context.Context, invoiceID int64) ([]domain.Payment, error) {
	return r.list(ctx, ` WHERE p.invoice_id = ? ORDER BY p.date, p.id`, invoiceID)
}

func (r *PaymentRepo) ListByMethod(ctx context.Context, method domain.PaymentMethod) ([]domain.Payment, error) {
	return r.list(ctx, ` WHERE p.method = ? ORDER BY p.date DESC, p.id DESC`, string(method))
}

func (r *PaymentRepo) ListByReceiver(ctx context.Context, userID int64) ([]domain.Payment, error) {
	return r.list(ctx, ` WHERE p.received_by = ? ORDER BY p.date DESC, p.id DESC`, userID)
}

func (r *PaymentRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Payment, error) {
	return r.list(ctx, ` WHERE p.date >= ? AND p.date <= ? ORDER BY p.date DESC, p.id DESC`, utc(from), utc(to))
}

func (r *PaymentRepo) list(ctx context.Context, tail string, args ...any) ([]domain.Payment, error) {
	payments := []domain.Payment{}
	if err := selectAll(ctx, r.ext, &payments, paymentColumns+tail, args...); err != nil {
		return nil, translate(err, "Payment", nil)
	}
	return payments, nil
}

// TotalPaid sums the payments recorded against an invoice, skipping
// excludeID so an edited payment is not counted twice.
func (r *PaymentRepo) TotalPaid(ctx context.Context, invoiceID, excludeID int64) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := selectAll(ctx, r.ext, &amounts, `SELECT amount FROM payments WHERE invoice_id = ? AND id <> ?`, invoiceID, excludeID); err != nil {
		return decimal.Zero, translate(err, "Payment", nil)
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total, nil
}

func (r *PaymentRepo) Add(ctx context.Context, p *domain.Payment) error {
	p.CreatedAt = now()
	p.Date = utc(p.Date)
	id, err := insert(ctx, r.ext, `INSERT INTO payments (invoice_id, amount, method, date, received_by, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.InvoiceID, p.Amount, string(p.Method), p.Date, p.ReceivedBy, p.CreatedAt)
	if err != nil {
		return translate(err, "Payment", nil)
	}
	p.ID = id
	return nil
}

func (r *PaymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	p.Date = utc(p.Date)
	n, err := exec(ctx, r.ext, `UPDATE payments SET amount = ?, method = ?, date = ? WHERE id = ?`,
		p.Amount, string(p.Method), p.Date, p.ID)
	if err != nil {
		return translate(err, "Payment", p.ID)
	}
	if n == 0 {
		return domain.NotFound("Payment", p.ID)
	}
	return nil
}

func (r *PaymentRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.ext, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return false, translate(err, "Payment", id)
	}
	return n > 0, nil
}
