package domain

import "time"

// ReferenceType tags the business event behind a stock movement.
type ReferenceType string

const (
	RefInvoice        ReferenceType = "INVOICE"
	RefPurchase       ReferenceType = "PURCHASE"
	RefInvoiceDelete  ReferenceType = "INVOICE_DELETE"
	RefPurchaseDelete ReferenceType = "PURCHASE_DELETE"
	RefAdjustment     ReferenceType = "ADJUSTMENT"
	RefTransfer       ReferenceType = "TRANSFER"
)

func (t ReferenceType) Valid() bool {
	switch t {
	case RefInvoice, RefPurchase, RefInvoiceDelete, RefPurchaseDelete, RefAdjustment, RefTransfer:
		return true
	}
	return false
}

// StockMovement is an append-only ledger row explaining one signed change to
// a medicine's quantity.
type StockMovement struct {
	ID            int64         `db:"id" json:"id"`
	MedicineID    int64         `db:"medicine_id" json:"medicineId"`
	MedicineName  string        `db:"medicine_name" json:"medicineName,omitempty"`
	ChangeQty     int64         `db:"change_qty" json:"changeQty"`
	Reason        string        `db:"reason" json:"reason"`
	ReferenceType ReferenceType `db:"reference_type" json:"referenceType"`
	ReferenceID   *int64        `db:"reference_id" json:"referenceId,omitempty"`
	CreatedBy     int64         `db:"created_by" json:"createdBy"`
	CreatedByName string        `db:"created_by_name" json:"createdByName,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
	BalanceAfter  *int64        `db:"-" json:"balanceAfterMovement,omitempty"`
}

// StockSummary aggregates movements for one medicine.
type StockSummary struct {
	MedicineID       int64      `json:"medicineId"`
	MedicineName     string     `json:"medicineName"`
	CurrentStock     int64      `json:"currentStock"`
	TotalIn          int64      `json:"totalIn"`
	TotalOut         int64      `json:"totalOut"`
	LastMovementDate *time.Time `json:"lastMovementDate,omitempty"`
}

// Reconciliation compares a medicine's quantity with its movement log.
type Reconciliation struct {
	MedicineID   int64 `json:"medicineId"`
	Quantity     int64 `json:"quantity"`
	MovementSum  int64 `json:"movementSum"`
	Consistent   bool  `json:"consistent"`
	MovementRows int64 `json:"movementRows"`
}
