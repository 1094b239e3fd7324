package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"medledger/m/domain"
)

type MovementRepo struct {
	ext sqlx.ExtContext
}

const movementColumns = `SELECT sm.id, sm.medicine_id, COALESCE(m.name, '') AS medicine_name, sm.change_qty, sm.reason,
	sm.reference_type, sm.reference_id, sm.created_by,
	COALESCE(TRIM(u.first_name || ' ' || u.last_name), '') AS created_by_name, sm.created_at
	FROM stock_movements sm
	LEFT JOIN medicines m ON m.id = sm.medicine_id
	LEFT JOIN users u ON u.id = sm.created_by`

func (r *MovementRepo) FindByID(ctx context.Context, id int64) (*domain.StockMovement, error) {
	var mv domain.StockMovement
	if err := get(ctx, r.ext, &mv, movementColumns+` WHERE sm.id = ?`, id); err != nil {
		return nil, translate(err, "Stock movement", id)
	}
	return &mv, nil
}

func (r *MovementRepo) List(ctx context.Context) ([]domain.StockMovement, error) {
	return r.list(ctx, ` ORDER BY sm.id DESC`)
}

// ListByMedicine returns a medicine's movements in creation order.
func (r *MovementRepo) ListByMedicine(ctx context.Context, medicineID int64) ([]domain.StockMovement, error) {
	return r.list(ctx, ` WHERE sm.medicine_id = ? ORDER BY sm.id`, medicineID)
}

// ListByMedicineBetween is ListByMedicine restricted to [from, to].
func (r *MovementRepo) ListByMedicineBetween(ctx context.Context, medicineID int64, from, to time.Time) ([]domain.StockMovement, error) {
	return r.list(ctx, ` WHERE sm.medicine_id = ? AND sm.created_at >= ? AND sm.created_at <= ? ORDER BY sm.id`,
		medicineID, utc(from), utc(to))
}

func (r *MovementRepo) ListByReference(ctx context.Context, refType domain.ReferenceType, refID int64) ([]domain.StockMovement, error) {
	return r.list(ctx, ` WHERE sm.reference_type = ? AND sm.reference_id = ? ORDER BY sm.id`, string(refType), refID)
}

func (r *MovementRepo) ListByType(ctx context.Context, refType domain.ReferenceType) ([]domain.StockMovement, error) {
	return r.list(ctx, ` WHERE sm.reference_type = ? ORDER BY sm.id`, string(refType))
}

func (r *MovementRepo) ListByCreator(ctx context.Context, userID int64) ([]domain.StockMovement, error) {
	return r.list(ctx, ` WHERE sm.created_by = ? ORDER BY sm.id DESC`, userID)
}

func (r *MovementRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.StockMovement, error) {
	return r.list(ctx, ` WHERE sm.created_at >= ? AND sm.created_at <= ? ORDER BY sm.id`, utc(from), utc(to))
}

func (r *MovementRepo) list(ctx context.Context, tail string, args ...any) ([]domain.StockMovement, error) {
	movements := []domain.StockMovement{}
	if err := selectAll(ctx, r.ext, &movements, movementColumns+tail, args...); err != nil {
		return nil, translate(err, "Stock movement", nil)
	}
	return movements, nil
}

// SumByMedicine returns the signed total of a medicine's movements and how
// many rows contributed to it.
func (r *MovementRepo) SumByMedicine(ctx context.Context, medicineID int64) (sum, rows int64, err error) {
	var out struct {
		Sum  int64 `db:"total"`
		Rows int64 `db:"row_count"`
	}
	if err := get(ctx, r.ext, &out, `SELECT COALESCE(SUM(change_qty), 0) AS total, COUNT(*) AS row_count
		FROM stock_movements WHERE medicine_id = ?`, medicineID); err != nil {
		return 0, 0, translate(err, "Stock movement", nil)
	}
	return out.Sum, out.Rows, nil
}

func (r *MovementRepo) Add(ctx context.Context, mv *domain.StockMovement) error {
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = now()
	}
	mv.CreatedAt = utc(mv.CreatedAt)
	id, err := insert(ctx, r.ext, `INSERT INTO stock_movements (medicine_id, change_qty, reason, reference_type, reference_id, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mv.MedicineID, mv.ChangeQty, mv.Reason, string(mv.ReferenceType), mv.ReferenceID, mv.CreatedBy, mv.CreatedAt)
	if err != nil {
		return translate(err, "Stock movement", nil)
	}
	mv.ID = id
	return nil
}

// Update is refused: movements are append-only.
func (r *MovementRepo) Update(ctx context.Context, mv *domain.StockMovement) error {
	return domain.BusinessRule("STOCK_MOVEMENT_IMMUTABLE", "stock movements cannot be modified",
		map[string]any{"movementId": mv.ID})
}

func (r *MovementRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.ext, `DELETE FROM stock_movements WHERE id = ?`, id)
	if err != nil {
		return false, translate(err, "Stock movement", id)
	}
	return n > 0, nil
}
