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

// PurchaseLine carries the negotiated unit cost; it is stored as given.
type PurchaseLine struct {
	MedicineID int64
	Qty        int64
	Price      decimal.Decimal
}

type NewPurchase struct {
	SupplierID int64
	InvoiceNo  string
	Date       time.Time
	Items      []PurchaseLine
}

type PurchasePatch struct {
	InvoiceNo *string
	Date      *time.Time
}

type PurchaseService struct {
	store *store.Store
}

func NewPurchaseService(s *store.Store) *PurchaseService {
	return &PurchaseService{store: s}
}

// Create books a supplier delivery and one incoming movement per line.
func (s *PurchaseService) Create(ctx context.Context, in NewPurchase, actorID int64) (*domain.Purchase, error) {
	in.InvoiceNo = strings.TrimSpace(in.InvoiceNo)
	if in.InvoiceNo == "" {
		return nil, domain.Validation("INVOICE_NO_REQUIRED", "purchase invoice number is required", "invoiceNo")
	}
	if len(in.Items) == 0 {
		return nil, domain.Validation("ITEMS_REQUIRED", "a purchase needs at least one item", "items")
	}
	for i, item := range in.Items {
		if item.Qty <= 0 {
			return nil, domain.Validation("INVALID_QUANTITY", "quantity must be greater than zero", fmt.Sprintf("items[%d].qty", i))
		}
		if item.Price.IsNegative() {
			return nil, domain.Validation("INVALID_PRICE", "price must not be negative", fmt.Sprintf("items[%d].price", i))
		}
	}
	if in.Date.IsZero() {
		in.Date = time.Now()
	}

	var id int64
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		taken, err := r.Purchases.ExistsByNumber(ctx, in.InvoiceNo, 0)
		if err != nil {
			return err
		}
		if taken {
			return domain.Duplicate("Purchase", "invoice number", in.InvoiceNo)
		}
		if _, err := r.Suppliers.FindByID(ctx, in.SupplierID); err != nil {
			return err
		}

		lines := make([]domain.PurchaseItem, 0, len(in.Items))
		total := decimal.Zero
		for _, item := range in.Items {
			med, err := r.Medicines.FindByID(ctx, item.MedicineID)
			if err != nil {
				return err
			}
			line := domain.PurchaseItem{
				MedicineID:   med.ID,
				MedicineName: med.Name,
				Qty:          item.Qty,
				Price:        item.Price,
				Subtotal:     item.Price.Mul(decimal.NewFromInt(item.Qty)),
			}
			total = total.Add(line.Subtotal)
			lines = append(lines, line)
		}

		p := &domain.Purchase{
			SupplierID: in.SupplierID,
			InvoiceNo:  in.InvoiceNo,
			Date:       in.Date,
			Total:      total,
			CreatedBy:  actorID,
		}
		if err := r.Purchases.Add(ctx, p); err != nil {
			return err
		}
		id = p.ID

		for i := range lines {
			lines[i].PurchaseID = p.ID
			if err := r.Purchases.AddItem(ctx, &lines[i]); err != nil {
				return err
			}
			ref := p.ID
			if _, err := Apply(ctx, r, Movement{
				MedicineID:    lines[i].MedicineID,
				ChangeQty:     lines[i].Qty,
				Reason:        fmt.Sprintf("Purchased via purchase %s", p.InvoiceNo),
				ReferenceType: domain.RefPurchase,
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

	logger.FromContext(ctx).Info("purchase created",
		zap.Int64("purchase_id", id),
		zap.String("invoice_no", in.InvoiceNo),
		zap.Int("items", len(in.Items)),
		zap.Int64("actor_id", actorID),
	)
	return s.Get(ctx, id)
}

func (s *PurchaseService) Get(ctx context.Context, id int64) (*domain.Purchase, error) {
	repos := s.store.Repos()
	p, err := repos.Purchases.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Items, err = repos.Purchases.Items(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PurchaseService) GetByNumber(ctx context.Context, invoiceNo string) (*domain.Purchase, error) {
	repos := s.store.Repos()
	p, err := repos.Purchases.FindByNumber(ctx, invoiceNo)
	if err != nil {
		return nil, err
	}
	if p.Items, err = repos.Purchases.Items(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PurchaseService) List(ctx context.Context) ([]domain.Purchase, error) {
	repos := s.store.Repos()
	purchases, err := repos.Purchases.List(ctx)
	if err != nil {
		return nil, err
	}
	return withPurchaseItems(ctx, repos, purchases)
}

func (s *PurchaseService) ListBySupplier(ctx context.Context, supplierID int64) ([]domain.Purchase, error) {
	repos := s.store.Repos()
	if _, err := repos.Suppliers.FindByID(ctx, supplierID); err != nil {
		return nil, err
	}
	purchases, err := repos.Purchases.ListBySupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	return withPurchaseItems(ctx, repos, purchases)
}

func (s *PurchaseService) ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Purchase, error) {
	if to.Before(from) {
		return nil, domain.Validation("INVALID_DATE_RANGE", "start date must not be after end date", "from", "to")
	}
	repos := s.store.Repos()
	purchases, err := repos.Purchases.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return withPurchaseItems(ctx, repos, purchases)
}

func withPurchaseItems(ctx context.Context, repos *store.Repos, purchases []domain.Purchase) ([]domain.Purchase, error) {
	ids := make([]int64, len(purchases))
	for i, p := range purchases {
		ids[i] = p.ID
	}
	items, err := repos.Purchases.ItemsByPurchases(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range purchases {
		purchases[i].Items = items[purchases[i].ID]
		if purchases[i].Items == nil {
			purchases[i].Items = []domain.PurchaseItem{}
		}
	}
	return purchases, nil
}

// Update changes the purchase number or date only.
func (s *PurchaseService) Update(ctx context.Context, id int64, patch PurchasePatch) (*domain.Purchase, error) {
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		p, err := r.Purchases.Lock(ctx, id)
		if err != nil {
			return err
		}
		if patch.InvoiceNo != nil {
			no := strings.TrimSpace(*patch.InvoiceNo)
			if no == "" {
				return domain.Validation("INVOICE_NO_REQUIRED", "purchase invoice number is required", "invoiceNo")
			}
			taken, err := r.Purchases.ExistsByNumber(ctx, no, id)
			if err != nil {
				return err
			}
			if taken {
				return domain.Duplicate("Purchase", "invoice number", no)
			}
			p.InvoiceNo = no
		}
		if patch.Date != nil {
			p.Date = *patch.Date
		}
		return r.Purchases.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("purchase updated", zap.Int64("purchase_id", id))
	return s.Get(ctx, id)
}

// Delete takes the purchased quantities back out of stock with compensating
// movements and removes the purchase. If any line's stock has already been
// consumed the whole deletion fails with InsufficientStock.
func (s *PurchaseService) Delete(ctx context.Context, id, actorID int64) (bool, error) {
	var (
		invoiceNo string
		missing   bool
	)
	err := s.store.InTx(ctx, func(r *store.Repos) error {
		p, err := r.Purchases.Lock(ctx, id)
		if err != nil {
			missing = domain.KindOf(err) == domain.KindNotFound
			return err
		}
		invoiceNo = p.InvoiceNo

		items, err := r.Purchases.Items(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			ref := p.ID
			if _, err := Apply(ctx, r, Movement{
				MedicineID:    item.MedicineID,
				ChangeQty:     -item.Qty,
				Reason:        fmt.Sprintf("Purchase %s deleted - stock restored", p.InvoiceNo),
				ReferenceType: domain.RefPurchaseDelete,
				ReferenceID:   &ref,
			}, actorID); err != nil {
				return err
			}
		}
		ok, err := r.Purchases.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			missing = true
			return domain.NotFound("Purchase", id)
		}
		return nil
	})
	if missing {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	logger.FromContext(ctx).Info("purchase deleted",
		zap.Int64("purchase_id", id),
		zap.String("invoice_no", invoiceNo),
		zap.Int64("actor_id", actorID),
	)
	return true, nil
}
