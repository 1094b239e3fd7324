// Package testutil provides fixtures shared by the package tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"medledger/m/domain"
	"medledger/m/internal/database"
	"medledger/m/internal/migrations"
	"medledger/m/internal/store"
)

var seq atomic.Int64

// NewStore opens a private in-memory sqlite database with the schema applied.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	ctx := context.Background()
	db, err := database.Connect(ctx, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Run(ctx, db))
	return store.New(db)
}

// CreateUser inserts an active user and returns its id.
func CreateUser(t testing.TB, s *store.Store) int64 {
	t.Helper()
	u := &domain.User{
		Email:     fmt.Sprintf("clerk%d@example.com", seq.Add(1)),
		Password:  "x",
		FirstName: "Test",
		LastName:  "Clerk",
		IsActive:  true,
	}
	require.NoError(t, s.Repos().Users.Add(context.Background(), u))
	return u.ID
}

// CreateCategory inserts a uniquely named category.
func CreateCategory(t testing.TB, s *store.Store) *domain.Category {
	t.Helper()
	c := &domain.Category{Name: fmt.Sprintf("Category %d", seq.Add(1))}
	require.NoError(t, s.Repos().Categories.Add(context.Background(), c))
	return c
}

// CreateCustomer inserts a uniquely named customer.
func CreateCustomer(t testing.TB, s *store.Store) *domain.Customer {
	t.Helper()
	c := &domain.Customer{Name: fmt.Sprintf("Customer %d", seq.Add(1))}
	require.NoError(t, s.Repos().Customers.Add(context.Background(), c))
	return c
}

// CreateSupplier inserts a uniquely named supplier.
func CreateSupplier(t testing.TB, s *store.Store) *domain.Supplier {
	t.Helper()
	sp := &domain.Supplier{Name: fmt.Sprintf("Supplier %d", seq.Add(1)), Contact: "555-0100"}
	require.NoError(t, s.Repos().Suppliers.Add(context.Background(), sp))
	return sp
}

// CreateMedicine inserts a medicine priced at price and, when qty > 0, books
// the opening stock as an adjustment movement by actor.
func CreateMedicine(t testing.TB, s *store.Store, actor int64, qty int64, price string) *domain.Medicine {
	t.Helper()
	ctx := context.Background()
	cat := CreateCategory(t, s)
	m := &domain.Medicine{
		Name:       fmt.Sprintf("Medicine %d", seq.Add(1)),
		Batch:      "B-1",
		CategoryID: cat.ID,
		ExpiryDate: time.Now().AddDate(1, 0, 0),
		Price:      decimal.RequireFromString(price),
	}
	err := s.InTx(ctx, func(r *store.Repos) error {
		if err := r.Medicines.Add(ctx, m); err != nil {
			return err
		}
		if qty == 0 {
			return nil
		}
		if _, err := r.Medicines.AdjustQuantity(ctx, m.ID, qty, time.Now()); err != nil {
			return err
		}
		return r.Movements.Add(ctx, &domain.StockMovement{
			MedicineID:    m.ID,
			ChangeQty:     qty,
			Reason:        "Opening stock",
			ReferenceType: domain.RefAdjustment,
			CreatedBy:     actor,
		})
	})
	require.NoError(t, err)
	m.Quantity = qty
	return m
}

// Quantity reads the current on-hand quantity of a medicine.
func Quantity(t testing.TB, s *store.Store, medicineID int64) int64 {
	t.Helper()
	m, err := s.Repos().Medicines.FindByID(context.Background(), medicineID)
	require.NoError(t, err)
	return m.Quantity
}
