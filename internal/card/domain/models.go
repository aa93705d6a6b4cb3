package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CreditCard is the issuer-level entity invoices hang off. ClosingDay and
// DueDay are kept in 1..28 and clamped per month by the calendar.
type CreditCard struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID     snowflake.ID    `gorm:"not null;uniqueIndex:ux_credit_cards_user_name,priority:1" json:"user_id"`
	Name       string          `gorm:"type:varchar(100);not null;uniqueIndex:ux_credit_cards_user_name,priority:2" json:"name"`
	Brand      string          `gorm:"type:varchar(50)" json:"brand"`
	Limit      decimal.Decimal `gorm:"column:credit_limit;type:decimal(14,2);not null;default:0" json:"limit"`
	ClosingDay int             `gorm:"not null" json:"closing_day"`
	DueDay     int             `gorm:"not null" json:"due_day"`
	Active     bool            `gorm:"not null" json:"active"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CreditCard) TableName() string { return "credit_cards" }
