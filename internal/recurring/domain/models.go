package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
)

type Frequency string

const FrequencyMonthly Frequency = "MONTHLY"

// RecurringTransaction posts one account movement per month on NextDate.
type RecurringTransaction struct {
	ID          snowflake.ID                  `gorm:"primaryKey" json:"id"`
	UserID      snowflake.ID                  `gorm:"not null;index" json:"user_id"`
	AccountID   snowflake.ID                  `gorm:"not null;index" json:"account_id"`
	Type        accountdomain.TransactionType `gorm:"type:varchar(8);not null" json:"type"`
	Description string                        `gorm:"type:varchar(200);not null" json:"description"`
	Amount      decimal.Decimal               `gorm:"type:decimal(14,2);not null" json:"amount"`
	CategoryID  *snowflake.ID                 `gorm:"index" json:"category_id,omitempty"`
	Frequency   Frequency                     `gorm:"type:varchar(10);not null" json:"frequency"`
	DayOfMonth  int                           `gorm:"not null" json:"day_of_month"`
	StartDate   time.Time                     `gorm:"type:date;not null" json:"start_date"`
	NextDate    time.Time                     `gorm:"type:date;not null;index" json:"next_date"`
	Active      bool                          `gorm:"not null" json:"active"`
	EndDate     *time.Time                    `gorm:"type:date" json:"end_date,omitempty"`
	CreatedAt   time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (RecurringTransaction) TableName() string { return "recurring_transactions" }

// RecurringCardPurchase allocates one card purchase per month on NextDate.
type RecurringCardPurchase struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID            snowflake.ID    `gorm:"not null;index" json:"user_id"`
	CardID            snowflake.ID    `gorm:"not null;index" json:"card_id"`
	Description       string          `gorm:"type:varchar(200);not null" json:"description"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	InstallmentsTotal int             `gorm:"not null;default:1" json:"installments_total"`
	CategoryID        *snowflake.ID   `gorm:"index" json:"category_id,omitempty"`
	Frequency         Frequency       `gorm:"type:varchar(10);not null" json:"frequency"`
	DayOfMonth        int             `gorm:"not null" json:"day_of_month"`
	NextDate          time.Time       `gorm:"type:date;not null;index" json:"next_date"`
	Active            bool            `gorm:"not null" json:"active"`
	EndDate           *time.Time      `gorm:"type:date" json:"end_date,omitempty"`
	CreatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (RecurringCardPurchase) TableName() string { return "recurring_card_purchases" }

// Due reports whether a template with the given state generates on next.
func Due(active bool, next time.Time, end *time.Time) bool {
	if !active {
		return false
	}
	return end == nil || !next.After(*end)
}
