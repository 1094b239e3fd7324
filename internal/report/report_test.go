package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medledger/m/domain"
	"medledger/m/internal/ledger"
	"medledger/m/internal/report"
	"medledger/m/internal/testutil"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, money(want).Equal(got), "expected %s, got %s", want, got)
}

func TestSalesPurchasesAndPayments(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)
	actor := testutil.CreateUser(t, s)
	customer := testutil.CreateCustomer(t, s)
	supplier := testutil.CreateSupplier(t, s)
	med := testutil.CreateMedicine(t, s, actor, 100, "10.00")

	invoices := ledger.NewInvoiceService(s)
	payments := ledger.NewPaymentService(s)
	day1 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 5, 2, 15, 30, 0, 0, time.UTC)

	sell := func(no string, date time.Time, qty int64, pct string) *domain.Invoice {
		inv, err := invoices.Create(ctx, ledger.NewInvoice{
			InvoiceNo:       no,
			Date:            date,
			CustomerID:      customer.ID,
			DiscountPercent: money(pct),
			Items:           []ledger.InvoiceLine{{MedicineID: med.ID, Qty: qty}},
		}, actor)
		require.NoError(t, err)
		return inv
	}
	first := sell("S-1", day1, 2, "0")
	sell("S-2", day1.Add(2*time.Hour), 3, "10")
	third := sell("S-3", day2, 5, "0")

	_, err := payments.Create(ctx, ledger.NewPayment{InvoiceID: first.ID, Amount: money("20"), Method: "cash", Date: day1}, actor)
	require.NoError(t, err)
	_, err = payments.Create(ctx, ledger.NewPayment{InvoiceID: third.ID, Amount: money("30"), Method: "card", Date: day2}, actor)
	require.NoError(t, err)

	_, err = ledger.NewPurchaseService(s).Create(ctx, ledger.NewPurchase{
		SupplierID: supplier.ID,
		InvoiceNo:  "P-1",
		Date:       day2,
		Items:      []ledger.PurchaseLine{{MedicineID: med.ID, Qty: 10, Price: money("6.50")}},
	}, actor)
	require.NoError(t, err)

	svc := report.New(s, 10)
	from, to := day1.Add(-time.Hour), day2.Add(time.Hour)

	t.Run("sales", func(t *testing.T) {
		sales, err := svc.Sales(ctx, from, to)
		require.NoError(t, err)
		assert.Equal(t, 3, sales.InvoiceCount)
		assertMoney(t, "97", sales.TotalSales)
		assertMoney(t, "3", sales.TotalDiscount)
		assertMoney(t, "32.33", sales.AverageSale)
		require.Len(t, sales.Daily, 2)
		assert.Equal(t, "2025-05-01", sales.Daily[0].Date)
		assert.Equal(t, 2, sales.Daily[0].InvoiceCount)
		assertMoney(t, "47", sales.Daily[0].Total)
		assertMoney(t, "50", sales.Daily[1].Total)
	})

	t.Run("purchases", func(t *testing.T) {
		purchases, err := svc.Purchases(ctx, from, to)
		require.NoError(t, err)
		assert.Equal(t, 1, purchases.PurchaseCount)
		assertMoney(t, "65", purchases.TotalPurchases)
		require.Len(t, purchases.BySupplier, 1)
		assert.Equal(t, supplier.Name, purchases.BySupplier[0].SupplierName)
	})

	t.Run("payments", func(t *testing.T) {
		summary, err := svc.Payments(ctx, from, to)
		require.NoError(t, err)
		assertMoney(t, "50", summary.TotalCollected)
		require.Len(t, summary.ByMethod, len(domain.PaymentMethods))
		for _, mt := range summary.ByMethod {
			switch mt.Method {
			case domain.PaymentCash:
				assertMoney(t, "20", mt.Total)
				assert.Equal(t, 1, mt.Count)
			case domain.PaymentCard:
				assertMoney(t, "30", mt.Total)
			default:
				assert.True(t, mt.Total.IsZero())
			}
		}
	})

	t.Run("receivables", func(t *testing.T) {
		open, err := svc.Receivables(ctx)
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, "S-2", open[0].InvoiceNo)
		assertMoney(t, "27", open[0].Outstanding)
		assert.Equal(t, "S-3", open[1].InvoiceNo)
		assertMoney(t, "20", open[1].Outstanding)
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := svc.Sales(ctx, to, from)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestStockReports(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)
	actor := testutil.CreateUser(t, s)
	testutil.CreateMedicine(t, s, actor, 40, "2.50")
	scarce := testutil.CreateMedicine(t, s, actor, 4, "12.00")

	soon := time.Now().AddDate(0, 0, 5)
	_, err := s.DB().ExecContext(ctx, `UPDATE medicines SET expiry_date = ? WHERE id = ?`, soon.UTC(), scarce.ID)
	require.NoError(t, err)

	svc := report.New(s, 10)

	low, err := svc.LowStock(ctx, 0)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, scarce.ID, low[0].ID)

	low, err = svc.LowStock(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, low, 2)

	expiring, err := svc.ExpiringSoon(ctx, 30)
	require.NoError(t, err)
	require.Len(t, expiring.Items, 1)
	assert.Equal(t, scarce.ID, expiring.Items[0].ID)
	assert.InDelta(t, 4, expiring.Items[0].DaysLeft, 1)
	assertMoney(t, "48", expiring.TotalValueAtRisk)

	_, err = svc.ExpiringSoon(ctx, -3)
	assert.ErrorIs(t, err, domain.ErrValidation)

	inv, err := svc.Inventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inv.MedicineCount)
	assert.Equal(t, int64(44), inv.TotalUnits)
	assertMoney(t, "148", inv.TotalValue)
	assert.Len(t, inv.ByCategory, 2)
}
