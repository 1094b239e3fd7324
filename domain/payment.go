package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is the closed set of tender types accepted against an invoice.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentCredit       PaymentMethod = "credit"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCheck        PaymentMethod = "check"
	PaymentMobileMoney  PaymentMethod = "mobile_money"
)

// PaymentMethods lists every accepted method in display order.
var PaymentMethods = []PaymentMethod{
	PaymentCash,
	PaymentCard,
	PaymentCredit,
	PaymentBankTransfer,
	PaymentCheck,
	PaymentMobileMoney,
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentCredit, PaymentBankTransfer, PaymentCheck, PaymentMobileMoney:
		return true
	}
	return false
}

// ParsePaymentMethod matches s case-insensitively against the accepted set.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		names := make([]string, len(PaymentMethods))
		for i, pm := range PaymentMethods {
			names[i] = string(pm)
		}
		return "", Validation("INVALID_PAYMENT_METHOD",
			"invalid payment method. Valid methods are: "+strings.Join(names, ", "))
	}
	return m, nil
}

type Payment struct {
	ID             int64           `db:"id" json:"id"`
	InvoiceID      int64           `db:"invoice_id" json:"invoiceId"`
	InvoiceNo      string          `db:"invoice_no" json:"invoiceNo,omitempty"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Method         PaymentMethod   `db:"method" json:"method"`
	Date           time.Time       `db:"date" json:"date"`
	ReceivedBy     int64           `db:"received_by" json:"receivedBy"`
	ReceivedByName string          `db:"received_by_name" json:"receivedByName,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

// PaymentSummary is the balance view of one invoice.
type PaymentSummary struct {
	InvoiceID        int64           `json:"invoiceId"`
	InvoiceNo        string          `json:"invoiceNo"`
	InvoiceTotal     decimal.Decimal `json:"invoiceTotal"`
	TotalPaid        decimal.Decimal `json:"totalPaid"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
	IsFullyPaid      bool            `json:"isFullyPaid"`
	Payments         []Payment       `json:"payments"`
}
