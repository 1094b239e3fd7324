// Package ledger keeps medicine quantities, sales, purchases and payments
// consistent with each other. Every multi-row mutation runs inside one
// store transaction.
package ledger

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"medledger/m/domain"
	"medledger/m/internal/logger"
	"medledger/m/internal/store"
)

// Movement describes one signed quantity change to book.
type Movement struct {
	MedicineID    int64
	ChangeQty     int64
	Reason        string
	ReferenceType domain.ReferenceType
	ReferenceID   *int64
}

// Apply is the only path that changes a medicine's quantity. It runs inside
// the caller's transaction. The guarded update serializes concurrent writers
// per medicine and the movement row is written alongside it.
func Apply(ctx context.Context, r *store.Repos, mv Movement, actorID int64) (*domain.StockMovement, error) {
	med, err := r.Medicines.FindByID(ctx, mv.MedicineID)
	if err != nil {
		return nil, err
	}

	at := time.Now()
	ok, err := r.Medicines.AdjustQuantity(ctx, mv.MedicineID, mv.ChangeQty, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.InsufficientStock(med.Name, med.Quantity, -mv.ChangeQty)
	}

	row := &domain.StockMovement{
		MedicineID:    mv.MedicineID,
		MedicineName:  med.Name,
		ChangeQty:     mv.ChangeQty,
		Reason:        mv.Reason,
		ReferenceType: mv.ReferenceType,
		ReferenceID:   mv.ReferenceID,
		CreatedBy:     actorID,
		CreatedAt:     at,
	}
	if err := r.Movements.Add(ctx, row); err != nil {
		return nil, err
	}
	balance := med.Quantity + mv.ChangeQty
	row.BalanceAfter = &balance
	return row, nil
}

// StockLedger exposes the movement log of every medicine.
type StockLedger struct {
	store *store.Store
}

func NewStockLedger(s *store.Store) *StockLedger {
	return &StockLedger{store: s}
}

// Record books a manual movement. The reference type defaults to ADJUSTMENT.
func (l *StockLedger) Record(ctx context.Context, mv Movement, actorID int64) (*domain.StockMovement, error) {
	mv.Reason = strings.TrimSpace(mv.Reason)
	if mv.ReferenceType == "" {
		mv.ReferenceType = domain.RefAdjustment
	}
	if mv.ChangeQty == 0 {
		return nil, domain.Validation("INVALID_CHANGE_QTY", "change quantity must not be zero", "changeQty")
	}
	if mv.Reason == "" {
		return nil, domain.Validation("REASON_REQUIRED", "reason is required", "reason")
	}
	if !mv.ReferenceType.Valid() {
		return nil, domain.Validation("INVALID_REFERENCE_TYPE", "unknown reference type "+string(mv.ReferenceType), "referenceType")
	}

	var out *domain.StockMovement
	err := l.store.InTx(ctx, func(r *store.Repos) error {
		var err error
		out, err = Apply(ctx, r, mv, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("stock movement recorded",
		zap.Int64("movement_id", out.ID),
		zap.Int64("medicine_id", out.MedicineID),
		zap.Int64("change_qty", out.ChangeQty),
		zap.String("reference_type", string(out.ReferenceType)),
	)
	return out, nil
}

// Reverse subtracts a movement's change from its medicine and deletes the
// row. Unlike invoice and purchase deletion no compensating entry is written,
// so the history loses the row. A reversal that would leave negative stock is
// refused, as is reversing a sale or purchase line whose document still
// exists; delete the document instead.
func (l *StockLedger) Reverse(ctx context.Context, movementID, actorID int64) error {
	var mv *domain.StockMovement
	err := l.store.InTx(ctx, func(r *store.Repos) error {
		var err error
		mv, err = r.Movements.FindByID(ctx, movementID)
		if err != nil {
			return err
		}
		if err := checkUnowned(ctx, r, mv); err != nil {
			return err
		}
		med, err := r.Medicines.FindByID(ctx, mv.MedicineID)
		if err != nil {
			return err
		}
		ok, err := r.Medicines.AdjustQuantity(ctx, mv.MedicineID, -mv.ChangeQty, time.Now())
		if err != nil {
			return err
		}
		if !ok {
			return domain.InsufficientStock(med.Name, med.Quantity, mv.ChangeQty)
		}
		_, err = r.Movements.Delete(ctx, movementID)
		return err
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Warn("stock movement reversed and removed from history",
		zap.Int64("movement_id", movementID),
		zap.Int64("medicine_id", mv.MedicineID),
		zap.Int64("change_qty", mv.ChangeQty),
		zap.Int64("actor_id", actorID),
	)
	return nil
}

func checkUnowned(ctx context.Context, r *store.Repos, mv *domain.StockMovement) error {
	if mv.ReferenceID == nil {
		return nil
	}
	var err error
	switch mv.ReferenceType {
	case domain.RefInvoice:
		_, err = r.Invoices.Lock(ctx, *mv.ReferenceID)
	case domain.RefPurchase:
		_, err = r.Purchases.Lock(ctx, *mv.ReferenceID)
	default:
		return nil
	}
	if domain.KindOf(err) == domain.KindNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	return domain.BusinessRule("MOVEMENT_OWNED_BY_DOCUMENT",
		"movement belongs to an existing "+strings.ToLower(string(mv.ReferenceType))+"; delete the document instead",
		map[string]any{"referenceType": mv.ReferenceType, "referenceId": *mv.ReferenceID})
}

func (l *StockLedger) Get(ctx context.Context, id int64) (*domain.StockMovement, error) {
	return l.store.Repos().Movements.FindByID(ctx, id)
}

func (l *StockLedger) List(ctx context.Context) ([]domain.StockMovement, error) {
	return l.store.Repos().Movements.List(ctx)
}

// History returns a medicine's movements oldest first, each carrying the
// balance it left behind. Balances are derived backwards from the current
// quantity.
func (l *StockLedger) History(ctx context.Context, medicineID int64) ([]domain.StockMovement, error) {
	repos := l.store.Repos()
	med, err := repos.Medicines.FindByID(ctx, medicineID)
	if err != nil {
		return nil, err
	}
	movements, err := repos.Movements.ListByMedicine(ctx, medicineID)
	if err != nil {
		return nil, err
	}
	balance := med.Quantity
	for i := len(movements) - 1; i >= 0; i-- {
		b := balance
		movements[i].BalanceAfter = &b
		balance -= movements[i].ChangeQty
	}
	return movements, nil
}

// ByType lists every movement of one reference type.
func (l *StockLedger) ByType(ctx context.Context, refType domain.ReferenceType) ([]domain.StockMovement, error) {
	return l.store.Repos().Movements.ListByType(ctx, refType)
}

func (l *StockLedger) ByReference(ctx context.Context, refType domain.ReferenceType, refID int64) ([]domain.StockMovement, error) {
	return l.store.Repos().Movements.ListByReference(ctx, refType, refID)
}

func (l *StockLedger) ByDateRange(ctx context.Context, from, to time.Time) ([]domain.StockMovement, error) {
	if to.Before(from) {
		return nil, domain.Validation("INVALID_DATE_RANGE", "start date must not be after end date", "from", "to")
	}
	return l.store.Repos().Movements.ListByDateRange(ctx, from, to)
}

func (l *StockLedger) ByCreator(ctx context.Context, userID int64) ([]domain.StockMovement, error) {
	return l.store.Repos().Movements.ListByCreator(ctx, userID)
}

// Summary totals a medicine's inflow and outflow, optionally within a window.
func (l *StockLedger) Summary(ctx context.Context, medicineID int64, from, to *time.Time) (*domain.StockSummary, error) {
	repos := l.store.Repos()
	med, err := repos.Medicines.FindByID(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	var movements []domain.StockMovement
	if from != nil || to != nil {
		start, end := time.Time{}, time.Now()
		if from != nil {
			start = *from
		}
		if to != nil {
			end = *to
		}
		movements, err = repos.Movements.ListByMedicineBetween(ctx, medicineID, start, end)
	} else {
		movements, err = repos.Movements.ListByMedicine(ctx, medicineID)
	}
	if err != nil {
		return nil, err
	}

	return summarize(med, movements), nil
}

// Summaries returns Summary for every medicine in the catalog.
func (l *StockLedger) Summaries(ctx context.Context) ([]domain.StockSummary, error) {
	repos := l.store.Repos()
	medicines, err := repos.Medicines.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StockSummary, 0, len(medicines))
	for i := range medicines {
		movements, err := repos.Movements.ListByMedicine(ctx, medicines[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *summarize(&medicines[i], movements))
	}
	return out, nil
}

func summarize(med *domain.Medicine, movements []domain.StockMovement) *domain.StockSummary {
	s := &domain.StockSummary{
		MedicineID:   med.ID,
		MedicineName: med.Name,
		CurrentStock: med.Quantity,
	}
	for _, mv := range movements {
		if mv.ChangeQty > 0 {
			s.TotalIn += mv.ChangeQty
		} else {
			s.TotalOut -= mv.ChangeQty
		}
		if s.LastMovementDate == nil || mv.CreatedAt.After(*s.LastMovementDate) {
			at := mv.CreatedAt
			s.LastMovementDate = &at
		}
	}
	return s
}

// Reconcile compares a medicine's quantity with the sum of its movements.
func (l *StockLedger) Reconcile(ctx context.Context, medicineID int64) (*domain.Reconciliation, error) {
	var out *domain.Reconciliation
	err := l.store.InTx(ctx, func(r *store.Repos) error {
		med, err := r.Medicines.FindByID(ctx, medicineID)
		if err != nil {
			return err
		}
		sum, rows, err := r.Movements.SumByMedicine(ctx, medicineID)
		if err != nil {
			return err
		}
		out = &domain.Reconciliation{
			MedicineID:   medicineID,
			Quantity:     med.Quantity,
			MovementSum:  sum,
			Consistent:   sum == med.Quantity,
			MovementRows: rows,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Consistent {
		logger.FromContext(ctx).Warn("stock ledger out of balance",
			zap.Int64("medicine_id", medicineID),
			zap.Int64("quantity", out.Quantity),
			zap.Int64("movement_sum", out.MovementSum),
		)
	}
	return out, nil
}
