package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type PaymentKind string

const (
	PaymentKindTotal    PaymentKind = "TOTAL"
	PaymentKindPartial  PaymentKind = "PARTIAL"
	PaymentKindAdvance  PaymentKind = "ADVANCE"
	PaymentKindDiscount PaymentKind = "DISCOUNT"
)

func (k PaymentKind) Valid() bool {
	switch k {
	case PaymentKindTotal, PaymentKindPartial, PaymentKindAdvance, PaymentKindDiscount:
		return true
	default:
		return false
	}
}

// MovesMoney reports whether the payment debits an account. Discounts
// only lower the invoice balance.
func (k PaymentKind) MovesMoney() bool {
	return k != PaymentKindDiscount
}

type InvoicePayment struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID    `gorm:"not null;index" json:"user_id"`
	InvoiceID snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	AccountID *snowflake.ID   `gorm:"index" json:"account_id,omitempty"`
	Date      time.Time       `gorm:"type:date;not null" json:"date"`
	Amount    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Kind      PaymentKind     `gorm:"type:varchar(10);not null" json:"kind"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (InvoicePayment) TableName() string { return "invoice_payments" }
