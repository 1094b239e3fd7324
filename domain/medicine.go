package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups medicines in the catalog.
type Category struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Medicine is a sellable catalog entry. Quantity is the authoritative on-hand
// count and only changes through stock movements.
type Medicine struct {
	ID           int64           `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Batch        string          `db:"batch" json:"batch"`
	CategoryID   int64           `db:"category_id" json:"categoryId"`
	CategoryName string          `db:"category_name" json:"categoryName,omitempty"`
	ExpiryDate   time.Time       `db:"expiry_date" json:"expiryDate"`
	Quantity     int64           `db:"quantity" json:"quantity"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Barcode      *string         `db:"barcode" json:"barcode,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}
