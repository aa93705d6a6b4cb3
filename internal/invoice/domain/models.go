// Package domain contains the credit-card invoice models and the engine
// contract shared by the charge and payment modules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of a billing cycle.
type InvoiceStatus string

const (
	InvoiceStatusOpen    InvoiceStatus = "OPEN"
	InvoiceStatusClosed  InvoiceStatus = "CLOSED"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusOpen, InvoiceStatusClosed, InvoiceStatusPartial, InvoiceStatusPaid:
		return true
	default:
		return false
	}
}

// AcceptsCharges reports whether new charges may land on an invoice in
// this state.
func (s InvoiceStatus) AcceptsCharges() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusPartial
}

// Invoice is one billing cycle of a card, keyed by (card, year, month).
type Invoice struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID      snowflake.ID  `gorm:"not null;index" json:"user_id"`
	CardID      snowflake.ID  `gorm:"not null;uniqueIndex:ux_invoices_card_period,priority:1" json:"card_id"`
	Year        int           `gorm:"not null;uniqueIndex:ux_invoices_card_period,priority:2" json:"year"`
	Month       int           `gorm:"not null;uniqueIndex:ux_invoices_card_period,priority:3" json:"month"`
	ClosingDate *time.Time    `gorm:"type:date" json:"closing_date,omitempty"`
	DueDate     *time.Time    `gorm:"type:date" json:"due_date,omitempty"`
	Status      InvoiceStatus `gorm:"type:varchar(10);not null;default:'OPEN'" json:"status"`
	ClosedAt    *time.Time    `json:"closed_at,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Period returns the invoice's (year, month) key.
func (i Invoice) Period() (int, time.Month) {
	return i.Year, time.Month(i.Month)
}

type Totals struct {
	Charges  decimal.Decimal `json:"total_charges"`
	Payments decimal.Decimal `json:"total_payments"`
	Balance  decimal.Decimal `json:"balance"`
}

// InvoiceView is the wire shape of an invoice with its computed totals.
type InvoiceView struct {
	Invoice
	CardName string `json:"card_name"`
	Totals
}

// Transition records a status change produced by a recompute.
type Transition struct {
	InvoiceID snowflake.ID
	From      InvoiceStatus
	To        InvoiceStatus
}

func (t Transition) Changed() bool {
	return t.From != t.To
}

// StatementCharge is a charge line read for statement rendering.
type StatementCharge struct {
	ID                snowflake.ID
	Date              time.Time
	Description       string
	TotalAmount       decimal.Decimal
	InstallmentNumber int
	InstallmentsTotal int
}

// StatementPayment is a payment line read for statement rendering.
type StatementPayment struct {
	ID     snowflake.ID
	Date   time.Time
	Kind   string
	Amount decimal.Decimal
}

type Statement struct {
	Invoice  InvoiceView
	Charges  []StatementCharge
	Payments []StatementPayment
}
