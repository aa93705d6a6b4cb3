package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CardCharge is one installment of a card purchase. InvoiceID is derived
// from (card, date) and never chosen by the caller.
type CardCharge struct {
	ID                      snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID                  snowflake.ID    `gorm:"not null;index" json:"user_id"`
	CardID                  snowflake.ID    `gorm:"not null;index" json:"card_id"`
	InvoiceID               snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	PurchaseID              snowflake.ID    `gorm:"not null;index" json:"purchase_id"`
	Date                    time.Time       `gorm:"type:date;not null" json:"date"`
	Description             string          `gorm:"type:varchar(200);not null" json:"description"`
	TotalAmount             decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	InstallmentNumber       int             `gorm:"not null;default:1" json:"installment_number"`
	InstallmentsTotal       int             `gorm:"not null;default:1" json:"installments_total"`
	CategoryID              *snowflake.ID   `gorm:"index" json:"category_id,omitempty"`
	RecurringCardPurchaseID *snowflake.ID   `gorm:"index" json:"recurring_card_purchase_id,omitempty"`
	TagIDs                  []snowflake.ID  `gorm:"-" json:"tag_ids"`
	CreatedAt               time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt               time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CardCharge) TableName() string { return "card_charges" }

type CardChargeTag struct {
	CardChargeID snowflake.ID `gorm:"primaryKey"`
	TagID        snowflake.ID `gorm:"primaryKey;index"`
}

// TableName sets the database table name.
func (CardChargeTag) TableName() string { return "card_charge_tags" }
