package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medledger/m/domain"
	"medledger/m/internal/catalog"
	"medledger/m/internal/ledger"
	"medledger/m/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestCategoryService(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)
	svc := catalog.NewCategoryService(s)

	analgesics, err := svc.Create(ctx, &domain.Category{Name: "  Analgesics "})
	require.NoError(t, err)
	assert.Equal(t, "Analgesics", analgesics.Name)
	assert.NotZero(t, analgesics.ID)

	_, err = svc.Create(ctx, &domain.Category{Name: "analgesics"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = svc.Create(ctx, &domain.Category{Name: " "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	t.Run("rename", func(t *testing.T) {
		other, err := svc.Create(ctx, &domain.Category{Name: "Antibiotics"})
		require.NoError(t, err)

		_, err = svc.Update(ctx, &domain.Category{ID: other.ID, Name: "Analgesics"})
		assert.ErrorIs(t, err, domain.ErrDuplicate)

		updated, err := svc.Update(ctx, &domain.Category{ID: other.ID, Name: "Antibacterials", Description: strPtr("broad spectrum")})
		require.NoError(t, err)
		got, err := svc.Get(ctx, updated.ID)
		require.NoError(t, err)
		assert.Equal(t, "Antibacterials", got.Name)
		require.NotNil(t, got.Description)
		assert.Equal(t, "broad spectrum", *got.Description)

		_, err = svc.Update(ctx, &domain.Category{ID: 999, Name: "Ghost"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		meds := catalog.NewMedicineService(s)
		actor := testutil.CreateUser(t, s)
		_, err := meds.Create(ctx, &domain.Medicine{
			Name: "Paracetamol 500mg", Batch: "P-1", CategoryID: analgesics.ID,
			ExpiryDate: time.Now().AddDate(1, 0, 0), Price: decimal.RequireFromString("0.50"),
		}, 0, actor)
		require.NoError(t, err)

		_, err = svc.Delete(ctx, analgesics.ID)
		require.ErrorIs(t, err, domain.ErrBusinessRule)

		empty, err := svc.Create(ctx, &domain.Category{Name: "Empty"})
		require.NoError(t, err)
		ok, err := svc.Delete(ctx, empty.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = svc.Delete(ctx, empty.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMedicineService_Create(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)
	actor := testutil.CreateUser(t, s)
	cat := testutil.CreateCategory(t, s)
	svc := catalog.NewMedicineService(s)

	newMed := func(name, barcode string) *domain.Medicine {
		m := &domain.Medicine{
			Name:       name,
			Batch:      "LOT-7",
			CategoryID: cat.ID,
			ExpiryDate: time.Now().AddDate(0, 6, 0),
			Price:      decimal.RequireFromString("3.20"),
		}
		if barcode != "" {
			m.Barcode = &barcode
		}
		return m
	}

	med, err := svc.Create(ctx, newMed("Amoxicillin 250mg", "8901234567890"), 40, actor)
	require.NoError(t, err)
	assert.Equal(t, int64(40), med.Quantity)
	assert.Equal(t, cat.Name, med.CategoryName)

	history, err := ledger.NewStockLedger(s).History(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(40), history[0].ChangeQty)
	assert.Equal(t, domain.RefAdjustment, history[0].ReferenceType)
	assert.Equal(t, "Opening stock", history[0].Reason)

	byCode, err := svc.GetByBarcode(ctx, "8901234567890")
	require.NoError(t, err)
	assert.Equal(t, med.ID, byCode.ID)

	tests := []struct {
		name    string
		med     *domain.Medicine
		opening int64
		wantErr error
	}{
		{"duplicate name", newMed("amoxicillin 250MG", ""), 0, domain.ErrDuplicate},
		{"duplicate barcode", newMed("Amoxicillin 500mg", "8901234567890"), 0, domain.ErrDuplicate},
		{"unknown category", func() *domain.Medicine { m := newMed("Ibuprofen", ""); m.CategoryID = 404; return m }(), 0, domain.ErrNotFound},
		{"negative price", func() *domain.Medicine { m := newMed("Ibuprofen", ""); m.Price = decimal.NewFromInt(-1); return m }(), 0, domain.ErrValidation},
		{"missing batch", func() *domain.Medicine { m := newMed("Ibuprofen", ""); m.Batch = ""; return m }(), 0, domain.ErrValidation},
		{"negative opening stock", newMed("Ibuprofen", ""), -5, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.med, tt.opening, actor)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	blank, err := svc.Create(ctx, newMed("Cetirizine", "   "), 0, actor)
	require.NoError(t, err)
	assert.Nil(t, blank.Barcode)
	assert.Equal(t, int64(0), blank.Quantity)
}

func TestMedicineService_UpdateKeepsQuantity(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)
	actor := testutil.CreateUser(t, s)
	svc := catalog.NewMedicineService(s)
	med := testutil.CreateMedicine(t, s, actor, 12, "2.00")

	med.Price = decimal.RequireFromString("2.75")
	med.Quantity = 999
	updated, err := svc.Update(ctx, med)
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("2.75")))
	assert.Equal(t, int64(12), updated.Quantity)

	other := testutil.CreateMedicine(t, s, actor, 0, "1.00")
	other.Name = med.Name
	_, err = svc.Update(ctx, other)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestMedicineService_Delete(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)
	actor := testutil.CreateUser(t, s)
	svc := catalog.NewMedicineService(s)

	stocked := testutil.CreateMedicine(t, s, actor, 5, "1.00")
	_, err := svc.Delete(ctx, stocked.ID)
	require.ErrorIs(t, err, domain.ErrBusinessRule)

	unused := testutil.CreateMedicine(t, s, actor, 0, "1.00")
	ok, err := svc.Delete(ctx, unused.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Delete(ctx, unused.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMedicineService_Queries(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)
	actor := testutil.CreateUser(t, s)
	cat := testutil.CreateCategory(t, s)
	svc := catalog.NewMedicineService(s)

	soon, err := svc.Create(ctx, &domain.Medicine{
		Name: "Insulin Glargine", Batch: "IG-2", CategoryID: cat.ID,
		ExpiryDate: time.Now().AddDate(0, 0, 10), Price: decimal.RequireFromString("25"),
	}, 3, actor)
	require.NoError(t, err)
	_, err = svc.Create(ctx, &domain.Medicine{
		Name: "Vitamin C", Batch: "VC-9", CategoryID: cat.ID,
		ExpiryDate: time.Now().AddDate(2, 0, 0), Price: decimal.RequireFromString("4"),
	}, 50, actor)
	require.NoError(t, err)

	expiring, err := svc.ExpiringWithin(ctx, 30)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, soon.ID, expiring[0].ID)

	_, err = svc.ExpiringWithin(ctx, -1)
	assert.ErrorIs(t, err, domain.ErrValidation)

	low, err := svc.LowStock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Insulin Glargine", low[0].Name)

	found, err := svc.Search(ctx, "vitamin")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Vitamin C", found[0].Name)

	byCategory, err := svc.ListByCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.Len(t, byCategory, 2)

	_, err = svc.ListByCategory(ctx, 321)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCustomerService(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)
	svc := catalog.NewCustomerService(s)

	jane, err := svc.Create(ctx, &domain.Customer{Name: "Jane Doe", Phone: strPtr("0712 000 111")})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &domain.Customer{Name: "jane doe"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	_, err = svc.Create(ctx, &domain.Customer{Name: "John Doe", Phone: strPtr("0712 000 111")})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	noPhone, err := svc.Create(ctx, &domain.Customer{Name: "Walk-in", Phone: strPtr("  ")})
	require.NoError(t, err)
	assert.Nil(t, noPhone.Phone)

	found, err := svc.Search(ctx, "000 111")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, jane.ID, found[0].ID)

	jane.Address = strPtr("12 Market Street")
	updated, err := svc.Update(ctx, jane)
	require.NoError(t, err)
	require.NotNil(t, updated.Address)

	t.Run("delete blocked by invoices", func(t *testing.T) {
		actor := testutil.CreateUser(t, s)
		med := testutil.CreateMedicine(t, s, actor, 3, "1.00")
		_, err := ledger.NewInvoiceService(s).Create(ctx, ledger.NewInvoice{
			InvoiceNo:  "INV-C1",
			CustomerID: jane.ID,
			Items:      []ledger.InvoiceLine{{MedicineID: med.ID, Qty: 1}},
		}, actor)
		require.NoError(t, err)

		_, err = svc.Delete(ctx, jane.ID)
		assert.ErrorIs(t, err, domain.ErrBusinessRule)

		ok, err := svc.Delete(ctx, noPhone.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestSupplierService(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)
	svc := catalog.NewSupplierService(s)

	acme, err := svc.Create(ctx, &domain.Supplier{Name: "Acme Pharma", Contact: "orders@acme.test"})
	require.NoError(t, err)
	idle, err := svc.Create(ctx, &domain.Supplier{Name: "Idle Traders"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &domain.Supplier{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	acme.Address = "Industrial Area"
	_, err = svc.Update(ctx, acme)
	require.NoError(t, err)
	got, err := svc.Get(ctx, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, "Industrial Area", got.Address)

	actor := testutil.CreateUser(t, s)
	med := testutil.CreateMedicine(t, s, actor, 0, "1.00")
	_, err = ledger.NewPurchaseService(s).Create(ctx, ledger.NewPurchase{
		SupplierID: acme.ID,
		InvoiceNo:  "PO-S1",
		Items:      []ledger.PurchaseLine{{MedicineID: med.ID, Qty: 4, Price: decimal.NewFromInt(1)}},
	}, actor)
	require.NoError(t, err)

	_, err = svc.Delete(ctx, acme.ID)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)

	ok, err := svc.Delete(ctx, idle.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSupplierMedicineService(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)
	actor := testutil.CreateUser(t, s)
	supplier := testutil.CreateSupplier(t, s)
	med := testutil.CreateMedicine(t, s, actor, 0, "5.00")
	svc := catalog.NewSupplierMedicineService(s)

	link, err := svc.Create(ctx, &domain.SupplierMedicine{
		SupplierID:           supplier.ID,
		MedicineID:           med.ID,
		DefaultPurchasePrice: decimal.RequireFromString("3.40"),
		LeadTimeDays:         7,
	})
	require.NoError(t, err)
	assert.Equal(t, supplier.Name, link.SupplierName)
	assert.Equal(t, med.Name, link.MedicineName)

	_, err = svc.Create(ctx, &domain.SupplierMedicine{SupplierID: supplier.ID, MedicineID: med.ID})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	_, err = svc.Create(ctx, &domain.SupplierMedicine{SupplierID: 77, MedicineID: med.ID})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Create(ctx, &domain.SupplierMedicine{SupplierID: supplier.ID, MedicineID: med.ID, LeadTimeDays: -1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	link.LeadTimeDays = 3
	updated, err := svc.Update(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.LeadTimeDays)

	bySupplier, err := svc.ListBySupplier(ctx, supplier.ID)
	require.NoError(t, err)
	assert.Len(t, bySupplier, 1)
	byMedicine, err := svc.ListByMedicine(ctx, med.ID)
	require.NoError(t, err)
	assert.Len(t, byMedicine, 1)

	_, err = catalog.NewMedicineService(s).Delete(ctx, med.ID)
	assert.ErrorIs(t, err, domain.ErrBusinessRule, "an offered medicine is referenced")

	ok, err := svc.Delete(ctx, link.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
