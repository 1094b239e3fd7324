// Package report aggregates sales, purchases, payments and stock for read-only
// dashboards. Totals are computed in Go from decimal amounts.
package report

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"medledger/m/domain"
	"medledger/m/internal/store"
)

const dayLayout = "2006-01-02"

type DailySales struct {
	Date         string          `json:"date"`
	Total        decimal.Decimal `json:"total"`
	InvoiceCount int             `json:"invoiceCount"`
}

type SalesSummary struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	TotalSales    decimal.Decimal `json:"totalSales"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
	InvoiceCount  int             `json:"invoiceCount"`
	AverageSale   decimal.Decimal `json:"averageSale"`
	Daily         []DailySales    `json:"daily"`
}

type SupplierTotal struct {
	SupplierID    int64           `json:"supplierId"`
	SupplierName  string          `json:"supplierName"`
	Total         decimal.Decimal `json:"total"`
	PurchaseCount int             `json:"purchaseCount"`
}

type PurchaseSummary struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	TotalPurchases decimal.Decimal `json:"totalPurchases"`
	PurchaseCount  int             `json:"purchaseCount"`
	BySupplier     []SupplierTotal `json:"bySupplier"`
}

type MethodTotal struct {
	Method domain.PaymentMethod `json:"method"`
	Total  decimal.Decimal      `json:"total"`
	Count  int                  `json:"count"`
}

type PaymentSummary struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	TotalCollected decimal.Decimal `json:"totalCollected"`
	ByMethod       []MethodTotal   `json:"byMethod"`
}

type ExpiringItem struct {
	domain.Medicine
	DaysLeft    int             `json:"daysLeft"`
	ValueAtRisk decimal.Decimal `json:"valueAtRisk"`
}

type ExpiryReport struct {
	Days             int             `json:"days"`
	Items            []ExpiringItem  `json:"items"`
	TotalValueAtRisk decimal.Decimal `json:"totalValueAtRisk"`
}

type CategoryValue struct {
	CategoryID   int64           `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	Units        int64           `json:"units"`
	Value        decimal.Decimal `json:"value"`
}

type InventoryValue struct {
	MedicineCount int             `json:"medicineCount"`
	TotalUnits    int64           `json:"totalUnits"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	ByCategory    []CategoryValue `json:"byCategory"`
}

type Receivable struct {
	InvoiceID    int64           `json:"invoiceId"`
	InvoiceNo    string          `json:"invoiceNo"`
	CustomerName string          `json:"customerName"`
	Date         time.Time       `json:"date"`
	Total        decimal.Decimal `json:"total"`
	Paid         decimal.Decimal `json:"paid"`
	Outstanding  decimal.Decimal `json:"outstanding"`
}

type Service struct {
	store             *store.Store
	lowStockThreshold int64
	now               func() time.Time
}

// New builds a report service. lowStockThreshold is used when a caller does
// not pass a positive threshold.
func New(s *store.Store, lowStockThreshold int64) *Service {
	return &Service{store: s, lowStockThreshold: lowStockThreshold, now: time.Now}
}

func checkRange(from, to time.Time) error {
	if to.Before(from) {
		return domain.Validation("INVALID_DATE_RANGE", "start date must not be after end date", "from", "to")
	}
	return nil
}

func (s *Service) Sales(ctx context.Context, from, to time.Time) (*SalesSummary, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	invoices, err := s.store.Repos().Invoices.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	out := &SalesSummary{From: from, To: to, TotalSales: decimal.Zero, TotalDiscount: decimal.Zero, AverageSale: decimal.Zero, Daily: []DailySales{}}
	days := map[string]*DailySales{}
	for _, inv := range invoices {
		out.TotalSales = out.TotalSales.Add(inv.Total)
		out.TotalDiscount = out.TotalDiscount.Add(inv.DiscountAmount)
		out.InvoiceCount++

		key := inv.Date.UTC().Format(dayLayout)
		d, ok := days[key]
		if !ok {
			d = &DailySales{Date: key, Total: decimal.Zero}
			days[key] = d
		}
		d.Total = d.Total.Add(inv.Total)
		d.InvoiceCount++
	}
	if out.InvoiceCount > 0 {
		out.AverageSale = out.TotalSales.Div(decimal.NewFromInt(int64(out.InvoiceCount))).Round(2)
	}
	for _, d := range days {
		out.Daily = append(out.Daily, *d)
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })
	return out, nil
}

func (s *Service) Purchases(ctx context.Context, from, to time.Time) (*PurchaseSummary, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	purchases, err := s.store.Repos().Purchases.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	out := &PurchaseSummary{From: from, To: to, TotalPurchases: decimal.Zero, BySupplier: []SupplierTotal{}}
	bySupplier := map[int64]*SupplierTotal{}
	for _, p := range purchases {
		out.TotalPurchases = out.TotalPurchases.Add(p.Total)
		out.PurchaseCount++

		st, ok := bySupplier[p.SupplierID]
		if !ok {
			st = &SupplierTotal{SupplierID: p.SupplierID, SupplierName: p.SupplierName, Total: decimal.Zero}
			bySupplier[p.SupplierID] = st
		}
		st.Total = st.Total.Add(p.Total)
		st.PurchaseCount++
	}
	for _, st := range bySupplier {
		out.BySupplier = append(out.BySupplier, *st)
	}
	sort.Slice(out.BySupplier, func(i, j int) bool {
		if !out.BySupplier[i].Total.Equal(out.BySupplier[j].Total) {
			return out.BySupplier[i].Total.GreaterThan(out.BySupplier[j].Total)
		}
		return out.BySupplier[i].SupplierID < out.BySupplier[j].SupplierID
	})
	return out, nil
}

// Payments totals collected amounts per method. Every method appears, zero
// totals included.
func (s *Service) Payments(ctx context.Context, from, to time.Time) (*PaymentSummary, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	payments, err := s.store.Repos().Payments.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	totals := make(map[domain.PaymentMethod]*MethodTotal, len(domain.PaymentMethods))
	out := &PaymentSummary{From: from, To: to, TotalCollected: decimal.Zero, ByMethod: make([]MethodTotal, len(domain.PaymentMethods))}
	for i, m := range domain.PaymentMethods {
		out.ByMethod[i] = MethodTotal{Method: m, Total: decimal.Zero}
		totals[m] = &out.ByMethod[i]
	}
	for _, p := range payments {
		out.TotalCollected = out.TotalCollected.Add(p.Amount)
		if mt, ok := totals[p.Method]; ok {
			mt.Total = mt.Total.Add(p.Amount)
			mt.Count++
		}
	}
	return out, nil
}

func (s *Service) LowStock(ctx context.Context, threshold int64) ([]domain.Medicine, error) {
	if threshold <= 0 {
		threshold = s.lowStockThreshold
	}
	return s.store.Repos().Medicines.ListLowStock(ctx, threshold)
}

// ExpiringSoon lists stock expiring within days together with the sale value
// that would be lost. Already expired medicines report negative days left.
func (s *Service) ExpiringSoon(ctx context.Context, days int) (*ExpiryReport, error) {
	if days < 0 {
		return nil, domain.Validation("INVALID_DAYS", "days must not be negative", "days")
	}
	now := s.now()
	medicines, err := s.store.Repos().Medicines.ListExpiringBefore(ctx, now.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}

	out := &ExpiryReport{Days: days, Items: make([]ExpiringItem, 0, len(medicines)), TotalValueAtRisk: decimal.Zero}
	for _, m := range medicines {
		value := m.Price.Mul(decimal.NewFromInt(m.Quantity))
		out.Items = append(out.Items, ExpiringItem{
			Medicine:    m,
			DaysLeft:    int(math.Floor(m.ExpiryDate.Sub(now).Hours() / 24)),
			ValueAtRisk: value,
		})
		out.TotalValueAtRisk = out.TotalValueAtRisk.Add(value)
	}
	return out, nil
}

// Inventory values current stock at catalog price.
func (s *Service) Inventory(ctx context.Context) (*InventoryValue, error) {
	medicines, err := s.store.Repos().Medicines.List(ctx)
	if err != nil {
		return nil, err
	}

	out := &InventoryValue{MedicineCount: len(medicines), TotalValue: decimal.Zero, ByCategory: []CategoryValue{}}
	byCategory := map[int64]*CategoryValue{}
	for _, m := range medicines {
		value := m.Price.Mul(decimal.NewFromInt(m.Quantity))
		out.TotalUnits += m.Quantity
		out.TotalValue = out.TotalValue.Add(value)

		cv, ok := byCategory[m.CategoryID]
		if !ok {
			cv = &CategoryValue{CategoryID: m.CategoryID, CategoryName: m.CategoryName, Value: decimal.Zero}
			byCategory[m.CategoryID] = cv
		}
		cv.Units += m.Quantity
		cv.Value = cv.Value.Add(value)
	}
	for _, cv := range byCategory {
		out.ByCategory = append(out.ByCategory, *cv)
	}
	sort.Slice(out.ByCategory, func(i, j int) bool { return out.ByCategory[i].CategoryName < out.ByCategory[j].CategoryName })
	return out, nil
}

// Receivables lists invoices that are not fully paid, oldest first.
func (s *Service) Receivables(ctx context.Context) ([]Receivable, error) {
	repos := s.store.Repos()
	invoices, err := repos.Invoices.List(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := repos.Payments.List(ctx)
	if err != nil {
		return nil, err
	}
	paid := map[int64]decimal.Decimal{}
	for _, p := range payments {
		paid[p.InvoiceID] = paid[p.InvoiceID].Add(p.Amount)
	}

	out := []Receivable{}
	for _, inv := range invoices {
		outstanding := inv.Total.Sub(paid[inv.ID])
		if !outstanding.IsPositive() {
			continue
		}
		out = append(out, Receivable{
			InvoiceID:    inv.ID,
			InvoiceNo:    inv.InvoiceNo,
			CustomerName: inv.CustomerName,
			Date:         inv.Date,
			Total:        inv.Total,
			Paid:         paid[inv.ID],
			Outstanding:  outstanding,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].InvoiceID < out[j].InvoiceID
	})
	return out, nil
}
