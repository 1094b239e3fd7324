package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medledger/m/domain"
	"medledger/m/internal/logger"
	"medledger/m/internal/store"
)

var hundred = decimal.NewFromInt(100)

// ResolveDiscount applies the discount policy to subtotal: a positive percent
// wins over an amount, otherwise a positive amount is used as given.
func ResolveDiscount(subtotal, percent, amount decimal.Decimal) (discount, total decimal.Decimal) {
	switch {
	case percent.IsPositive():
		discount = subtotal.Mul(percent).Div(hundred).Round(2)
	case amount.IsPositive():
		discount = amount
	default:
		discount = decimal.Zero
	}
	return discount, subtotal.Sub(discount)
}

type InvoiceLine struct {
	MedicineID int64
	Qty        int64
}

type NewInvoice struct {
	InvoiceNo       string
	Date            time.Time
	CustomerID      int64
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	Notes           *string
	Items           []InvoiceLine
}

// InvoicePatch carries the mutable invoice fields; nil means unchanged.
type InvoicePatch struct {
	CustomerID      *int64
	DiscountPercent *decimal.Decimal
	DiscountAmount  *decimal.Decimal
	Notes           *string
}

type InvoiceService struct {
	store *store.Store
}

func NewInvoiceService(s *store.Store) *InvoiceService {
	return &InvoiceService{store: s}
}

func validateDiscount(percent, amount decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return domain.Validation("INVALID_DISCOUNT_PERCENT", "discount percent must be between 0 and 100", "discountPercent")
	}
	if amount.IsNegative() {
		return domain.Validation("INVALID_DISCOUNT_AMOUNT", "discount amount must not be negative", "discountAmount")
	}
	return nil
}

// Create books a sale: the header, its lines priced from the catalog, and one
// outgoing movement per line. Nothing is written unless every line fits.
func (s *InvoiceService) Create(ctx context.Context, in NewInvoice, actorID int64) (*domain.Invoice, error) {
	in.InvoiceNo = strings.TrimSpace(in.InvoiceNo)
	if in.InvoiceNo == "" {
		return nil, domain.Validation("INVOICE_NO_REQUIRED", "invoice number is required", "invoiceNo")
	}
	if len(in.Items) == 0 {
		return nil, domain.Validation("ITEMS_REQUIRED", "an invoice needs at least one item", "items")
	}
	for i, item := range in.Items {
		if item.Qty <= 0 {
			return nil, domain.Validation("INVALID_QUANTITY", "quantity must be greater than zero", fmt.Sprintf("items[%d].qty", i))
		}
	}
	if err := validateDiscount(in.DiscountPercent, in.DiscountAmount); err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		in.Date = time.Now()
	}

	var id int64
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		taken, err := r.Invoices.ExistsByNumber(ctx, in.InvoiceNo)
		if err != nil {
			return err
		}
		if taken {
			return domain.Duplicate("Invoice", "invoice number", in.InvoiceNo)
		}
		if _, err := r.Customers.FindByID(ctx, in.CustomerID); err != nil {
			return err
		}

		requested := make(map[int64]int64, len(in.Items))
		lines := make([]domain.InvoiceItem, 0, len(in.Items))
		subtotal := decimal.Zero
		for _, item := range in.Items {
			med, err := r.Medicines.FindByID(ctx, item.MedicineID)
			if err != nil {
				return err
			}
			requested[med.ID] += item.Qty
			if med.Quantity < requested[med.ID] {
				return domain.InsufficientStock(med.Name, med.Quantity, requested[med.ID])
			}
			line := domain.InvoiceItem{
				MedicineID:   med.ID,
				MedicineName: med.Name,
				Qty:          item.Qty,
				Price:        med.Price,
				Subtotal:     med.Price.Mul(decimal.NewFromInt(item.Qty)),
			}
			subtotal = subtotal.Add(line.Subtotal)
			lines = append(lines, line)
		}

		discount, total := ResolveDiscount(subtotal, in.DiscountPercent, in.DiscountAmount)
		if total.IsNegative() {
			return domain.Validation("DISCOUNT_EXCEEDS_SUBTOTAL", "discount must not exceed the invoice subtotal", "discountAmount")
		}

		inv := &domain.Invoice{
			InvoiceNo:       in.InvoiceNo,
			Date:            in.Date,
			CustomerID:      in.CustomerID,
			Subtotal:        subtotal,
			DiscountPercent: in.DiscountPercent,
			DiscountAmount:  discount,
			Total:           total,
			CreatedBy:       actorID,
			Notes:           in.Notes,
		}
		if err := r.Invoices.Add(ctx, inv); err != nil {
			return err
		}
		id = inv.ID

		for i := range lines {
			lines[i].InvoiceID = inv.ID
			if err := r.Invoices.AddItem(ctx, &lines[i]); err != nil {
				return err
			}
			ref := inv.ID
			if _, err := Apply(ctx, r, Movement{
				MedicineID:    lines[i].MedicineID,
				ChangeQty:     -lines[i].Qty,
				Reason:        fmt.Sprintf("Sold via invoice %s", inv.InvoiceNo),
				ReferenceType: domain.RefInvoice,
				ReferenceID:   &ref,
			}, actorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("invoice created",
		zap.Int64("invoice_id", id),
		zap.String("invoice_no", in.InvoiceNo),
		zap.Int("items", len(in.Items)),
		zap.Int64("actor_id", actorID),
	)
	return s.Get(ctx, id)
}

// Get returns the invoice with its items and payments.
func (s *InvoiceService) Get(ctx context.Context, id int64) (*domain.Invoice, error) {
	repos := s.store.Repos()
	inv, err := repos.Invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return hydrateInvoice(ctx, repos, inv)
}

func (s *InvoiceService) GetByNumber(ctx context.Context, invoiceNo string) (*domain.Invoice, error) {
	repos := s.store.Repos()
	inv, err := repos.Invoices.FindByNumber(ctx, invoiceNo)
	if err != nil {
		return nil, err
	}
	return hydrateInvoice(ctx, repos, inv)
}

func hydrateInvoice(ctx context.Context, repos *store.Repos, inv *domain.Invoice) (*domain.Invoice, error) {
	items, err := repos.Invoices.Items(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	payments, err := repos.Payments.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Items, inv.Payments = items, payments
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context) ([]domain.Invoice, error) {
	repos := s.store.Repos()
	invoices, err := repos.Invoices.List(ctx)
	if err != nil {
		return nil, err
	}
	return withInvoiceItems(ctx, repos, invoices)
}

func (s *InvoiceService) ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Invoice, error) {
	if to.Before(from) {
		return nil, domain.Validation("INVALID_DATE_RANGE", "start date must not be after end date", "from", "to")
	}
	repos := s.store.Repos()
	invoices, err := repos.Invoices.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return withInvoiceItems(ctx, repos, invoices)
}

func (s *InvoiceService) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Invoice, error) {
	repos := s.store.Repos()
	if _, err := repos.Customers.FindByID(ctx, customerID); err != nil {
		return nil, err
	}
	invoices, err := repos.Invoices.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return withInvoiceItems(ctx, repos, invoices)
}

func withInvoiceItems(ctx context.Context, repos *store.Repos, invoices []domain.Invoice) ([]domain.Invoice, error) {
	ids := make([]int64, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	items, err := repos.Invoices.ItemsByInvoices(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Items = items[invoices[i].ID]
		if invoices[i].Items == nil {
			invoices[i].Items = []domain.InvoiceItem{}
		}
	}
	return invoices, nil
}

// Update changes the customer, discount or notes. A discount change
// recomputes the total from the stored subtotal; lines and stock are never
// touched.
func (s *InvoiceService) Update(ctx context.Context, id int64, patch InvoicePatch) (*domain.Invoice, error) {
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		inv, err := r.Invoices.Lock(ctx, id)
		if err != nil {
			return err
		}

		if patch.CustomerID != nil {
			if _, err := r.Customers.FindByID(ctx, *patch.CustomerID); err != nil {
				return err
			}
			inv.CustomerID = *patch.CustomerID
		}
		if patch.Notes != nil {
			inv.Notes = patch.Notes
		}

		if patch.DiscountPercent != nil || patch.DiscountAmount != nil {
			percent, amount := inv.DiscountPercent, inv.DiscountAmount
			if patch.DiscountPercent != nil {
				percent = *patch.DiscountPercent
			}
			if patch.DiscountAmount != nil {
				amount = *patch.DiscountAmount
			}
			if err := validateDiscount(percent, amount); err != nil {
				return err
			}
			discount, total := ResolveDiscount(inv.Subtotal, percent, amount)
			if total.IsNegative() {
				return domain.Validation("DISCOUNT_EXCEEDS_SUBTOTAL", "discount must not exceed the invoice subtotal", "discountAmount")
			}
			paid, err := r.Payments.TotalPaid(ctx, inv.ID, 0)
			if err != nil {
				return err
			}
			if total.LessThan(paid) {
				return domain.BusinessRule("INVOICE_TOTAL_BELOW_PAID",
					fmt.Sprintf("new total %s is less than the %s already paid", total.StringFixed(2), paid.StringFixed(2)),
					map[string]any{"invoiceId": inv.ID, "newTotal": total, "totalPaid": paid})
			}
			inv.DiscountPercent, inv.DiscountAmount, inv.Total = percent, discount, total
		}

		return r.Invoices.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("invoice updated", zap.Int64("invoice_id", id))
	return s.Get(ctx, id)
}

// Delete restores the stock of every line with compensating movements and
// removes the invoice with its items and payments. It reports false when the
// invoice does not exist.
func (s *InvoiceService) Delete(ctx context.Context, id, actorID int64) (bool, error) {
	var (
		invoiceNo string
		missing   bool
	)
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		inv, err := r.Invoices.Lock(ctx, id)
		if err != nil {
			missing = domain.KindOf(err) == domain.KindNotFound
			return err
		}
		invoiceNo = inv.InvoiceNo

		items, err := r.Invoices.Items(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			ref := inv.ID
			if _, err := Apply(ctx, r, Movement{
				MedicineID:    item.MedicineID,
				ChangeQty:     item.Qty,
				Reason:        fmt.Sprintf("Invoice %s deleted - stock restored", inv.InvoiceNo),
				ReferenceType: domain.RefInvoiceDelete,
				ReferenceID:   &ref,
			}, actorID); err != nil {
				return err
			}
		}
		ok, err := r.Invoices.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			missing = true
			return domain.NotFound("Invoice", id)
		}
		return nil
	})
	if missing {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	logger.FromContext(ctx).Info("invoice deleted",
		zap.Int64("invoice_id", id),
		zap.String("invoice_no", invoiceNo),
		zap.Int64("actor_id", actorID),
	)
	return true, nil
}
