package migrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Column types differ between the two supported engines; the schema below is
// written once with these tokens and expanded per driver.
var dialects = map[string]*strings.Replacer{
	"sqlite": strings.NewReplacer(
		"{{PK}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{MONEY}}", "TEXT",
		"{{TS}}", "DATETIME",
		"{{BOOL}}", "INTEGER",
	),
	"postgres": strings.NewReplacer(
		"{{PK}}", "BIGSERIAL PRIMARY KEY",
		"{{MONEY}}", "NUMERIC(18,2)",
		"{{TS}}", "TIMESTAMPTZ",
		"{{BOOL}}", "BOOLEAN",
	),
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{PK}},
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		is_active {{BOOL}} NOT NULL DEFAULT TRUE,
		created_at {{TS}} NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS categories (
		id {{PK}},
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at {{TS}} NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS medicines (
		id {{PK}},
		name TEXT NOT NULL UNIQUE,
		batch TEXT NOT NULL,
		category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE RESTRICT,
		expiry_date {{TS}} NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		price {{MONEY}} NOT NULL,
		barcode TEXT UNIQUE,
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_medicines_category ON medicines(category_id);`,
	`CREATE TABLE IF NOT EXISTS customers (
		id {{PK}},
		name TEXT NOT NULL UNIQUE,
		phone TEXT UNIQUE,
		address TEXT,
		created_at {{TS}} NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id {{PK}},
		name TEXT NOT NULL,
		contact TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS supplier_medicines (
		id {{PK}},
		supplier_id INTEGER NOT NULL REFERENCES suppliers(id) ON DELETE CASCADE,
		medicine_id INTEGER NOT NULL REFERENCES medicines(id) ON DELETE RESTRICT,
		default_purchase_price {{MONEY}} NOT NULL,
		lead_time_days INTEGER NOT NULL DEFAULT 0,
		UNIQUE (supplier_id, medicine_id)
	);`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id {{PK}},
		invoice_no TEXT NOT NULL UNIQUE,
		date {{TS}} NOT NULL,
		customer_id INTEGER NOT NULL REFERENCES customers(id) ON DELETE RESTRICT,
		subtotal {{MONEY}} NOT NULL,
		discount_percent {{MONEY}} NOT NULL,
		discount_amount {{MONEY}} NOT NULL,
		total {{MONEY}} NOT NULL,
		created_by INTEGER NOT NULL REFERENCES users(id),
		created_at {{TS}} NOT NULL,
		notes TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_date ON invoices(date);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id);`,
	`CREATE TABLE IF NOT EXISTS invoice_items (
		id {{PK}},
		invoice_id INTEGER NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		medicine_id INTEGER NOT NULL REFERENCES medicines(id) ON DELETE RESTRICT,
		qty INTEGER NOT NULL CHECK (qty > 0),
		price {{MONEY}} NOT NULL,
		subtotal {{MONEY}} NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items(invoice_id);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id {{PK}},
		invoice_id INTEGER NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		amount {{MONEY}} NOT NULL,
		method TEXT NOT NULL,
		date {{TS}} NOT NULL,
		received_by INTEGER NOT NULL REFERENCES users(id),
		created_at {{TS}} NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments(invoice_id);`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id {{PK}},
		supplier_id INTEGER NOT NULL REFERENCES suppliers(id) ON DELETE RESTRICT,
		invoice_no TEXT NOT NULL UNIQUE,
		date {{TS}} NOT NULL,
		total {{MONEY}} NOT NULL,
		created_by INTEGER NOT NULL REFERENCES users(id),
		created_at {{TS}} NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_supplier ON purchases(supplier_id);`,
	`CREATE TABLE IF NOT EXISTS purchase_items (
		id {{PK}},
		purchase_id INTEGER NOT NULL REFERENCES purchases(id) ON DELETE CASCADE,
		medicine_id INTEGER NOT NULL REFERENCES medicines(id) ON DELETE RESTRICT,
		qty INTEGER NOT NULL CHECK (qty > 0),
		price {{MONEY}} NOT NULL,
		subtotal {{MONEY}} NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_purchase_items_purchase ON purchase_items(purchase_id);`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		id {{PK}},
		medicine_id INTEGER NOT NULL REFERENCES medicines(id) ON DELETE RESTRICT,
		change_qty INTEGER NOT NULL,
		reason TEXT NOT NULL,
		reference_type TEXT NOT NULL,
		reference_id INTEGER,
		created_by INTEGER NOT NULL REFERENCES users(id),
		created_at {{TS}} NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_medicine ON stock_movements(medicine_id);`,
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_reference ON stock_movements(reference_type, reference_id);`,
}

// Run creates the database schema required by the ledger.
func Run(ctx context.Context, db *sqlx.DB) error {
	dialect, ok := dialects[db.DriverName()]
	if !ok {
		return fmt.Errorf("migrations: unsupported driver %q", db.DriverName())
	}
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, dialect.Replace(stmt)); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
