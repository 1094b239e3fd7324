package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"medledger/m/domain"
)

// Repository is the capability every entity table offers.
type Repository[T any] interface {
	FindByID(ctx context.Context, id int64) (*T, error)
	Add(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id int64) (bool, error)
}

var (
	_ Repository[domain.Category]         = (*CategoryRepo)(nil)
	_ Repository[domain.Medicine]         = (*MedicineRepo)(nil)
	_ Repository[domain.Customer]         = (*CustomerRepo)(nil)
	_ Repository[domain.Supplier]         = (*SupplierRepo)(nil)
	_ Repository[domain.SupplierMedicine] = (*SupplierMedicineRepo)(nil)
	_ Repository[domain.Invoice]          = (*InvoiceRepo)(nil)
	_ Repository[domain.Purchase]         = (*PurchaseRepo)(nil)
	_ Repository[domain.Payment]          = (*PaymentRepo)(nil)
	_ Repository[domain.StockMovement]    = (*MovementRepo)(nil)
	_ Repository[domain.User]             = (*UserRepo)(nil)
)

// Repos groups repositories that share one connection or transaction.
type Repos struct {
	Users             *UserRepo
	Categories        *CategoryRepo
	Medicines         *MedicineRepo
	Customers         *CustomerRepo
	Suppliers         *SupplierRepo
	SupplierMedicines *SupplierMedicineRepo
	Invoices          *InvoiceRepo
	Purchases         *PurchaseRepo
	Payments          *PaymentRepo
	Movements         *MovementRepo
}

func newRepos(ext sqlx.ExtContext) *Repos {
	return &Repos{
		Users:             &UserRepo{ext: ext},
		Categories:        &CategoryRepo{ext: ext},
		Medicines:         &MedicineRepo{ext: ext},
		Customers:         &CustomerRepo{ext: ext},
		Suppliers:         &SupplierRepo{ext: ext},
		SupplierMedicines: &SupplierMedicineRepo{ext: ext},
		Invoices:          &InvoiceRepo{ext: ext},
		Purchases:         &PurchaseRepo{ext: ext},
		Payments:          &PaymentRepo{ext: ext},
		Movements:         &MovementRepo{ext: ext},
	}
}

// Store owns the database handle.
type Store struct {
	db *sqlx.DB
}

// New wraps db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Repos returns repositories bound to the pool rather than a transaction.
// With the single-connection sqlite setup they must not be used from inside
// an InTx callback.
func (s *Store) Repos() *Repos {
	return newRepos(s.db)
}

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back on an error or a panic.
func (s *Store) InTx(ctx context.Context, fn func(r *Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(newRepos(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

var now = func() time.Time {
	return time.Now().UTC()
}

// utc normalizes times so that sqlite text comparisons order correctly.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func isPostgres(ext sqlx.ExtContext) bool {
	return ext.DriverName() == "postgres"
}

func get(ctx context.Context, ext sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, ext, dest, ext.Rebind(query), args...)
}

func selectAll(ctx context.Context, ext sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, ext, dest, ext.Rebind(query), args...)
}

func exec(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (int64, error) {
	res, err := ext.ExecContext(ctx, ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func insert(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (int64, error) {
	var id int64
	if err := ext.QueryRowxContext(ctx, ext.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func exists(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (bool, error) {
	var n int64
	if err := get(ctx, ext, &n, "SELECT COUNT(*) FROM ("+query+") q", args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

// translate maps driver errors onto the domain taxonomy. resource names the
// entity in the message; id is used for not-found errors.
func translate(err error, resource string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(resource, id)
	}
	switch constraintOf(err) {
	case constraintUnique:
		return &domain.Error{
			Kind:    domain.KindDuplicate,
			Code:    "DUPLICATE_RESOURCE",
			Message: fmt.Sprintf("%s violates a unique constraint", resource),
			Details: map[string]any{"resourceName": resource},
		}
	case constraintForeignKey:
		return domain.BusinessRule("REFERENCE_CONSTRAINT",
			fmt.Sprintf("%s references or is referenced by another record", resource),
			map[string]any{"resourceName": resource})
	}
	return fmt.Errorf("%s: %w", resource, err)
}

type constraint int

const (
	constraintNone constraint = iota
	constraintUnique
	constraintForeignKey
)

func constraintOf(err error) constraint {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return constraintUnique
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return constraintForeignKey
		}
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			msg := se.Error()
			switch {
			case strings.Contains(msg, "UNIQUE constraint failed"):
				return constraintUnique
			case strings.Contains(msg, "FOREIGN KEY constraint failed"):
				return constraintForeignKey
			}
		}
		return constraintNone
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case "23505":
			return constraintUnique
		case "23503":
			return constraintForeignKey
		}
	}
	return constraintNone
}
