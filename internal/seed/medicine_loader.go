// Package seed bootstraps a fresh database from a catalog CSV.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medledger/m/domain"
	"medledger/m/internal/ledger"
	"medledger/m/internal/logger"
	"medledger/m/internal/store"
)

// SystemEmail owns stock movements written by the loader. The account is
// disabled so it cannot log in.
const SystemEmail = "system@medledger.local"

const (
	colName = iota
	colBatch
	colCategory
	colExpiry
	colPrice
	colBarcode
	colQuantity
	columnCount
)

// EnsureSystemUser returns the id of the loader account, creating it on first
// use.
func EnsureSystemUser(ctx context.Context, s *store.Store) (int64, error) {
	users := s.Repos().Users
	u, err := users.FindByEmail(ctx, SystemEmail)
	if err == nil {
		return u.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}
	u = &domain.User{Email: SystemEmail, Password: "!", FirstName: "System", IsActive: false}
	if err := users.Add(ctx, u); err != nil {
		return 0, err
	}
	return u.ID, nil
}

type row struct {
	line     int
	medicine domain.Medicine
	category string
	quantity int64
}

func parseRow(record []string) (row, error) {
	if len(record) < columnCount {
		return row{}, fmt.Errorf("expected %d columns, got %d", columnCount, len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}
	r := row{category: record[colCategory]}
	r.medicine.Name = record[colName]
	r.medicine.Batch = record[colBatch]
	if r.medicine.Name == "" || r.medicine.Batch == "" || r.category == "" {
		return row{}, errors.New("name, batch and category are required")
	}

	expiry, err := time.Parse("2006-01-02", record[colExpiry])
	if err != nil {
		return row{}, fmt.Errorf("expiry: %w", err)
	}
	r.medicine.ExpiryDate = expiry

	price, err := decimal.NewFromString(record[colPrice])
	if err != nil || price.IsNegative() {
		return row{}, fmt.Errorf("invalid price %q", record[colPrice])
	}
	r.medicine.Price = price

	if record[colBarcode] != "" {
		code := record[colBarcode]
		r.medicine.Barcode = &code
	}

	if record[colQuantity] != "" {
		qty, err := strconv.ParseInt(record[colQuantity], 10, 64)
		if err != nil || qty < 0 {
			return row{}, fmt.Errorf("invalid quantity %q", record[colQuantity])
		}
		r.quantity = qty
	}
	return r, nil
}

// LoadCatalog ingests name,batch,category,expiry,price,barcode,quantity rows.
// Missing categories are created, opening stock is booked as an adjustment by
// actorID, and medicines whose name or barcode already exists are skipped.
// It returns the number of medicines inserted.
func LoadCatalog(ctx context.Context, s *store.Store, csvPath string, actorID int64) (int, error) {
	log := logger.FromContext(ctx).With(zap.String("path", csvPath))

	file, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("read catalog header: %w", err)
	}

	var rows []row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("unreadable catalog row", zap.Int("line", line), zap.Error(err))
			continue
		}
		r, err := parseRow(record)
		if err != nil {
			log.Warn("skipping catalog row", zap.Int("line", line), zap.Error(err))
			continue
		}
		r.line = line
		rows = append(rows, r)
	}

	inserted := 0
	err = s.InTx(ctx, func(repos *store.Repos) error {
		categories, err := repos.Categories.List(ctx)
		if err != nil {
			return err
		}
		byName := make(map[string]int64, len(categories))
		for _, c := range categories {
			byName[strings.ToLower(c.Name)] = c.ID
		}

		for _, r := range rows {
			skip, err := exists(ctx, repos, &r.medicine)
			if err != nil {
				return err
			}
			if skip {
				log.Debug("medicine already in catalog", zap.Int("line", r.line), zap.String("name", r.medicine.Name))
				continue
			}

			catID, ok := byName[strings.ToLower(r.category)]
			if !ok {
				c := &domain.Category{Name: r.category}
				if err := repos.Categories.Add(ctx, c); err != nil {
					return err
				}
				catID = c.ID
				byName[strings.ToLower(r.category)] = catID
			}
			r.medicine.CategoryID = catID

			if err := repos.Medicines.Add(ctx, &r.medicine); err != nil {
				return fmt.Errorf("line %d: %w", r.line, err)
			}
			if r.quantity > 0 {
				if _, err := ledger.Apply(ctx, repos, ledger.Movement{
					MedicineID:    r.medicine.ID,
					ChangeQty:     r.quantity,
					Reason:        "Opening stock",
					ReferenceType: domain.RefAdjustment,
				}, actorID); err != nil {
					return fmt.Errorf("line %d: %w", r.line, err)
				}
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info("seeded medicine catalog", zap.Int("rows", len(rows)), zap.Int("inserted", inserted))
	return inserted, nil
}

func exists(ctx context.Context, repos *store.Repos, m *domain.Medicine) (bool, error) {
	taken, err := repos.Medicines.ExistsByName(ctx, m.Name, 0)
	if err != nil || taken {
		return taken, err
	}
	if m.Barcode == nil {
		return false, nil
	}
	return repos.Medicines.ExistsByBarcode(ctx, *m.Barcode, 0)
}
