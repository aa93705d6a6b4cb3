package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeBank   AccountType = "BANK"
	AccountTypeWallet AccountType = "WALLET"
	AccountTypeInvest AccountType = "INVEST"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeBank, AccountTypeWallet, AccountTypeInvest:
		return true
	default:
		return false
	}
}

type CategoryKind string

const (
	CategoryKindIncome  CategoryKind = "INCOME"
	CategoryKindExpense CategoryKind = "EXPENSE"
)

func (k CategoryKind) Valid() bool {
	return k == CategoryKindIncome || k == CategoryKindExpense
}

// TransactionType is the direction of money on an account. TRX marks a
// manual movement that does not affect the balance.
type TransactionType string

const (
	TransactionTypeIn       TransactionType = "IN"
	TransactionTypeOut      TransactionType = "OUT"
	TransactionTypeTransfer TransactionType = "TRX"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIn, TransactionTypeOut, TransactionTypeTransfer:
		return true
	default:
		return false
	}
}

type Account struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID         snowflake.ID    `gorm:"not null;uniqueIndex:ux_accounts_user_name,priority:1" json:"user_id"`
	Name           string          `gorm:"type:varchar(100);not null;uniqueIndex:ux_accounts_user_name,priority:2" json:"name"`
	Type           AccountType     `gorm:"type:varchar(16);not null" json:"type"`
	InitialBalance decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"initial_balance"`
	Currency       string          `gorm:"type:varchar(3);not null" json:"currency"`
	Active         bool            `gorm:"not null" json:"active"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

type Category struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID  `gorm:"not null;uniqueIndex:ux_categories_user_name,priority:1" json:"user_id"`
	Name      string        `gorm:"type:varchar(100);not null;uniqueIndex:ux_categories_user_name,priority:2" json:"name"`
	Kind      CategoryKind  `gorm:"type:varchar(16);not null" json:"kind"`
	ParentID  *snowflake.ID `gorm:"index" json:"parent_id,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Category) TableName() string { return "categories" }

type Tag struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:ux_tags_user_name,priority:1" json:"user_id"`
	Name      string       `gorm:"type:varchar(50);not null;uniqueIndex:ux_tags_user_name,priority:2" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Tag) TableName() string { return "tags" }

// Transaction is one movement on an account. Rows created by invoice
// payment reconciliation carry InvoicePaymentID; rows generated from a
// recurring template carry RecurringTransactionID.
type Transaction struct {
	ID                     snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID                 snowflake.ID    `gorm:"not null;index:ix_transactions_user_date,priority:1" json:"user_id"`
	AccountID              snowflake.ID    `gorm:"not null;index" json:"account_id"`
	Type                   TransactionType `gorm:"type:varchar(8);not null" json:"type"`
	Date                   time.Time       `gorm:"type:date;not null;index:ix_transactions_user_date,priority:2" json:"date"`
	Description            string          `gorm:"type:varchar(255);not null" json:"description"`
	Amount                 decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	CategoryID             *snowflake.ID   `gorm:"index" json:"category_id,omitempty"`
	Reconciled             bool            `gorm:"not null" json:"reconciled"`
	TransferKey            *string         `gorm:"type:varchar(36);index" json:"transfer_key,omitempty"`
	RecurringTransactionID *snowflake.ID   `gorm:"index" json:"recurring_transaction_id,omitempty"`
	InvoicePaymentID       *snowflake.ID   `gorm:"uniqueIndex:ux_transactions_invoice_payment" json:"invoice_payment_id,omitempty"`
	TagIDs                 []snowflake.ID  `gorm:"-" json:"tag_ids"`
	CreatedAt              time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }

type TransactionTag struct {
	TransactionID snowflake.ID `gorm:"primaryKey"`
	TagID         snowflake.ID `gorm:"primaryKey;index"`
}

// TableName sets the database table name.
func (TransactionTag) TableName() string { return "transaction_tags" }

type AccountBalance struct {
	AccountID snowflake.ID    `json:"account_id"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
}
