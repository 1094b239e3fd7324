package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a sales invoice. Total = Subtotal - DiscountAmount.
type Invoice struct {
	ID              int64           `db:"id" json:"id"`
	InvoiceNo       string          `db:"invoice_no" json:"invoiceNo"`
	Date            time.Time       `db:"date" json:"date"`
	CustomerID      int64           `db:"customer_id" json:"customerId"`
	CustomerName    string          `db:"customer_name" json:"customerName,omitempty"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discountPercent"`
	DiscountAmount  decimal.Decimal `db:"discount_amount" json:"discountAmount"`
	Total           decimal.Decimal `db:"total" json:"total"`
	CreatedBy       int64           `db:"created_by" json:"createdBy"`
	CreatedByName   string          `db:"created_by_name" json:"createdByName,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	Items           []InvoiceItem   `db:"-" json:"items"`
	Payments        []Payment       `db:"-" json:"payments,omitempty"`
}

type InvoiceItem struct {
	ID           int64           `db:"id" json:"id"`
	InvoiceID    int64           `db:"invoice_id" json:"invoiceId"`
	MedicineID   int64           `db:"medicine_id" json:"medicineId"`
	MedicineName string          `db:"medicine_name" json:"medicineName,omitempty"`
	Qty          int64           `db:"qty" json:"qty"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Subtotal     decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// Purchase is a supplier delivery that increases stock.
type Purchase struct {
	ID            int64           `db:"id" json:"id"`
	SupplierID    int64           `db:"supplier_id" json:"supplierId"`
	SupplierName  string          `db:"supplier_name" json:"supplierName,omitempty"`
	InvoiceNo     string          `db:"invoice_no" json:"invoiceNo"`
	Date          time.Time       `db:"date" json:"date"`
	Total         decimal.Decimal `db:"total" json:"total"`
	CreatedBy     int64           `db:"created_by" json:"createdBy"`
	CreatedByName string          `db:"created_by_name" json:"createdByName,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	Items         []PurchaseItem  `db:"-" json:"items"`
}

type PurchaseItem struct {
	ID           int64           `db:"id" json:"id"`
	PurchaseID   int64           `db:"purchase_id" json:"purchaseId"`
	MedicineID   int64           `db:"medicine_id" json:"medicineId"`
	MedicineName string          `db:"medicine_name" json:"medicineName,omitempty"`
	Qty          int64           `db:"qty" json:"qty"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Subtotal     decimal.Decimal `db:"subtotal" json:"subtotal"`
}
