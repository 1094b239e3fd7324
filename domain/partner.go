package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Address   *string   `db:"address" json:"address,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Supplier struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Contact   string    `db:"contact" json:"contact"`
	Address   string    `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// SupplierMedicine links a supplier to a medicine it can deliver.
type SupplierMedicine struct {
	ID                   int64           `db:"id" json:"id"`
	SupplierID           int64           `db:"supplier_id" json:"supplierId"`
	SupplierName         string          `db:"supplier_name" json:"supplierName,omitempty"`
	MedicineID           int64           `db:"medicine_id" json:"medicineId"`
	MedicineName         string          `db:"medicine_name" json:"medicineName,omitempty"`
	DefaultPurchasePrice decimal.Decimal `db:"default_purchase_price" json:"defaultPurchasePrice"`
	LeadTimeDays         int             `db:"lead_time_days" json:"leadTimeDays"`
}

type User struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Password  string    `db:"password" json:"-"`
	FirstName string    `db:"first_name" json:"firstName"`
	LastName  string    `db:"last_name" json:"lastName"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
