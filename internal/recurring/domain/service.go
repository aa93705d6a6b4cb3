package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
	chargedomain "github.com/smallbiznis/fatura/internal/charge/domain"
)

type CreateRecurringTransactionRequest struct {
	AccountID   snowflake.ID
	Type        accountdomain.TransactionType
	Description string
	Amount      decimal.Decimal
	CategoryID  *snowflake.ID
	DayOfMonth  int
	StartDate   time.Time
	EndDate     *time.Time
}

type UpdateRecurringTransactionRequest struct {
	Description *string
	Amount      *decimal.Decimal
	CategoryID  *snowflake.ID
	DayOfMonth  *int
	NextDate    *time.Time
	Active      *bool
	EndDate     *time.Time
	ClearEnd    bool
}

type CreateRecurringCardPurchaseRequest struct {
	CardID            snowflake.ID
	Description       string
	TotalAmount       decimal.Decimal
	InstallmentsTotal int
	CategoryID        *snowflake.ID
	DayOfMonth        int
	StartDate         time.Time
	EndDate           *time.Time
}

type UpdateRecurringCardPurchaseRequest struct {
	Description       *string
	TotalAmount       *decimal.Decimal
	InstallmentsTotal *int
	CategoryID        *snowflake.ID
	DayOfMonth        *int
	NextDate          *time.Time
	Active            *bool
	EndDate           *time.Time
	ClearEnd          bool
}

// TransactionGeneration is the outcome of one generate call. Transaction
// is nil when the template was inactive or past its end date.
type TransactionGeneration struct {
	Template    RecurringTransaction       `json:"template"`
	Transaction *accountdomain.Transaction `json:"transaction,omitempty"`
}

func (g TransactionGeneration) Generated() bool { return g.Transaction != nil }

type CardPurchaseGeneration struct {
	Template RecurringCardPurchase  `json:"template"`
	Purchase *chargedomain.Purchase `json:"purchase,omitempty"`
}

func (g CardPurchaseGeneration) Generated() bool { return g.Purchase != nil }

// DueSummary counts what one catch-up pass produced.
type DueSummary struct {
	Transactions  int
	CardPurchases int
}

type Service interface {
	CreateTransaction(ctx context.Context, userID snowflake.ID, req CreateRecurringTransactionRequest) (RecurringTransaction, error)
	GetTransaction(ctx context.Context, userID, id snowflake.ID) (RecurringTransaction, error)
	ListTransactions(ctx context.Context, userID snowflake.ID) ([]RecurringTransaction, error)
	UpdateTransaction(ctx context.Context, userID, id snowflake.ID, req UpdateRecurringTransactionRequest) (RecurringTransaction, error)
	DeleteTransaction(ctx context.Context, userID, id snowflake.ID) error
	GenerateTransaction(ctx context.Context, userID, id snowflake.ID) (TransactionGeneration, error)

	CreateCardPurchase(ctx context.Context, userID snowflake.ID, req CreateRecurringCardPurchaseRequest) (RecurringCardPurchase, error)
	GetCardPurchase(ctx context.Context, userID, id snowflake.ID) (RecurringCardPurchase, error)
	ListCardPurchases(ctx context.Context, userID snowflake.ID) ([]RecurringCardPurchase, error)
	UpdateCardPurchase(ctx context.Context, userID, id snowflake.ID, req UpdateRecurringCardPurchaseRequest) (RecurringCardPurchase, error)
	DeleteCardPurchase(ctx context.Context, userID, id snowflake.ID) error
	GenerateCardPurchase(ctx context.Context, userID, id snowflake.ID) (CardPurchaseGeneration, error)

	// GenerateDue catches every due template of every user up to today.
	GenerateDue(ctx context.Context, today time.Time, batchSize int) (DueSummary, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidType         = errors.New("invalid_type")
	ErrInvalidDescription  = errors.New("invalid_description")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidDayOfMonth   = errors.New("invalid_day_of_month")
	ErrInvalidInstallments = errors.New("invalid_installments")
	ErrInvalidEndDate      = errors.New("invalid_end_date")
	ErrInvalidNextDate     = errors.New("invalid_next_date")

	ErrNotFound = errors.New("not_found")
)
