package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medledger/m/domain"
	"medledger/m/internal/logger"
	"medledger/m/internal/store"
)

type NewPayment struct {
	InvoiceID int64
	Amount    decimal.Decimal
	Method    string
	Date      time.Time
}

type PaymentPatch struct {
	Amount *decimal.Decimal
	Method *string
	Date   *time.Time
}

type PaymentService struct {
	store *store.Store
}

func NewPaymentService(s *store.Store) *PaymentService {
	return &PaymentService{store: s}
}

func exceedsBalance(inv *domain.Invoice, amount, remaining decimal.Decimal) error {
	return domain.BusinessRule("PAYMENT_AMOUNT_EXCEEDS_BALANCE",
		fmt.Sprintf("payment amount %s exceeds remaining balance %s", amount.StringFixed(2), remaining.StringFixed(2)),
		map[string]any{"invoiceNo": inv.InvoiceNo, "paymentAmount": amount, "remainingBalance": remaining})
}

// Create records a payment against an invoice. The cumulative amount paid
// can never exceed the invoice total.
func (s *PaymentService) Create(ctx context.Context, in NewPayment, actorID int64) (*domain.Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, domain.Validation("INVALID_PAYMENT_AMOUNT", "payment amount must be greater than zero", "amount")
	}
	if in.Date.IsZero() {
		in.Date = time.Now()
	}

	var id int64
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		inv, err := r.Invoices.Lock(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		paid, err := r.Payments.TotalPaid(ctx, inv.ID, 0)
		if err != nil {
			return err
		}
		remaining := inv.Total.Sub(paid)
		if in.Amount.GreaterThan(remaining) {
			return exceedsBalance(inv, in.Amount, remaining)
		}
		method, err := domain.ParsePaymentMethod(in.Method)
		if err != nil {
			return err
		}

		p := &domain.Payment{
			InvoiceID:  inv.ID,
			Amount:     in.Amount,
			Method:     method,
			Date:       in.Date,
			ReceivedBy: actorID,
		}
		if err := r.Payments.Add(ctx, p); err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("payment recorded",
		zap.Int64("payment_id", id),
		zap.Int64("invoice_id", in.InvoiceID),
		zap.String("amount", in.Amount.String()),
		zap.Int64("actor_id", actorID),
	)
	return s.Get(ctx, id)
}

func (s *PaymentService) Get(ctx context.Context, id int64) (*domain.Payment, error) {
	return s.store.Repos().Payments.FindByID(ctx, id)
}

func (s *PaymentService) List(ctx context.Context) ([]domain.Payment, error) {
	return s.store.Repos().Payments.List(ctx)
}

func (s *PaymentService) ListByInvoice(ctx context.Context, invoiceID int64) ([]domain.Payment, error) {
	repos := s.store.Repos()
	if _, err := repos.Invoices.FindByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return repos.Payments.ListByInvoice(ctx, invoiceID)
}

func (s *PaymentService) ListByMethod(ctx context.Context, method string) ([]domain.Payment, error) {
	m, err := domain.ParsePaymentMethod(method)
	if err != nil {
		return nil, err
	}
	return s.store.Repos().Payments.ListByMethod(ctx, m)
}

func (s *PaymentService) ListByReceiver(ctx context.Context, userID int64) ([]domain.Payment, error) {
	return s.store.Repos().Payments.ListByReceiver(ctx, userID)
}

func (s *PaymentService) ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Payment, error) {
	if to.Before(from) {
		return nil, domain.Validation("INVALID_DATE_RANGE", "start date must not be after end date", "from", "to")
	}
	return s.store.Repos().Payments.ListByDateRange(ctx, from, to)
}

// Update changes amount, method or date. The balance check leaves the
// payment's own current amount out of the already-paid total.
func (s *PaymentService) Update(ctx context.Context, id int64, patch PaymentPatch) (*domain.Payment, error) {
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		p, err := r.Payments.FindByID(ctx, id)
		if err != nil {
			return err
		}

		if patch.Amount != nil && !patch.Amount.Equal(p.Amount) {
			if !patch.Amount.IsPositive() {
				return domain.Validation("INVALID_PAYMENT_AMOUNT", "payment amount must be greater than zero", "amount")
			}
			inv, err := r.Invoices.Lock(ctx, p.InvoiceID)
			if err != nil {
				return err
			}
			others, err := r.Payments.TotalPaid(ctx, inv.ID, p.ID)
			if err != nil {
				return err
			}
			remaining := inv.Total.Sub(others)
			if patch.Amount.GreaterThan(remaining) {
				return exceedsBalance(inv, *patch.Amount, remaining)
			}
			p.Amount = *patch.Amount
		}
		if patch.Method != nil && *patch.Method != "" {
			method, err := domain.ParsePaymentMethod(*patch.Method)
			if err != nil {
				return err
			}
			p.Method = method
		}
		if patch.Date != nil {
			p.Date = *patch.Date
		}
		return r.Payments.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("payment updated", zap.Int64("payment_id", id))
	return s.Get(ctx, id)
}

// Delete removes a payment. Freeing balance needs no check.
func (s *PaymentService) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := s.store.Repos().Payments.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		logger.FromContext(ctx).Info("payment deleted", zap.Int64("payment_id", id))
	}
	return ok, nil
}

// Summary reports how much of an invoice has been paid.
func (s *PaymentService) Summary(ctx context.Context, invoiceID int64) (*domain.PaymentSummary, error) {
	repos := s.store.Repos()
	inv, err := repos.Invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	payments, err := repos.Payments.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	remaining := inv.Total.Sub(paid)
	return &domain.PaymentSummary{
		InvoiceID:        inv.ID,
		InvoiceNo:        inv.InvoiceNo,
		InvoiceTotal:     inv.Total,
		TotalPaid:        paid,
		RemainingBalance: remaining,
		IsFullyPaid:      !remaining.IsPositive(),
		Payments:         payments,
	}, nil
}
