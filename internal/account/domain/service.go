package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/fatura/pkg/db/pagination"
)

type CreateAccountRequest struct {
	Name           string
	Type           AccountType
	InitialBalance decimal.Decimal
	Currency       string
}

type UpdateAccountRequest struct {
	Name           *string
	Type           *AccountType
	InitialBalance *decimal.Decimal
	Active         *bool
}

type CreateCategoryRequest struct {
	Name     string
	Kind     CategoryKind
	ParentID *snowflake.ID
}

type UpdateCategoryRequest struct {
	Name     *string
	Kind     *CategoryKind
	ParentID *snowflake.ID
	// ClearParent detaches the category from its parent.
	ClearParent bool
}

type CreateTagRequest struct {
	Name string
}

type CreateTransactionRequest struct {
	AccountID   snowflake.ID
	Type        TransactionType
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	CategoryID  *snowflake.ID
	TagIDs      []snowflake.ID
	Reconciled  bool
}

type UpdateTransactionRequest struct {
	AccountID   *snowflake.ID
	Type        *TransactionType
	Date        *time.Time
	Description *string
	Amount      *decimal.Decimal
	CategoryID  *snowflake.ID
	TagIDs      *[]snowflake.ID
}

type ListTransactionRequest struct {
	pagination.Pagination
	AccountID  *snowflake.ID
	CategoryID *snowflake.ID
	Type       TransactionType
	From       *time.Time
	To         *time.Time
	Reconciled *bool
}

type ListTransactionFilter struct {
	AccountID  *snowflake.ID
	CategoryID *snowflake.ID
	Type       TransactionType
	From       *time.Time
	To         *time.Time
	Reconciled *bool
	BeforeID   *snowflake.ID
	Limit      int
}

type ListTransactionResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type CreateTransferRequest struct {
	FromAccountID snowflake.ID
	ToAccountID   snowflake.ID
	Date          time.Time
	Description   string
	Amount        decimal.Decimal
}

// Transfer is the OUT and IN pair sharing one transfer key.
type Transfer struct {
	TransferKey string      `json:"transfer_key"`
	Out         Transaction `json:"out"`
	In          Transaction `json:"in"`
}

type Service interface {
	CreateAccount(ctx context.Context, userID snowflake.ID, req CreateAccountRequest) (Account, error)
	GetAccount(ctx context.Context, userID, id snowflake.ID) (Account, error)
	ListAccounts(ctx context.Context, userID snowflake.ID) ([]Account, error)
	UpdateAccount(ctx context.Context, userID, id snowflake.ID, req UpdateAccountRequest) (Account, error)
	DeleteAccount(ctx context.Context, userID, id snowflake.ID) error
	Balances(ctx context.Context, userID snowflake.ID) ([]AccountBalance, error)

	CreateCategory(ctx context.Context, userID snowflake.ID, req CreateCategoryRequest) (Category, error)
	GetCategory(ctx context.Context, userID, id snowflake.ID) (Category, error)
	ListCategories(ctx context.Context, userID snowflake.ID) ([]Category, error)
	UpdateCategory(ctx context.Context, userID, id snowflake.ID, req UpdateCategoryRequest) (Category, error)
	DeleteCategory(ctx context.Context, userID, id snowflake.ID) error

	CreateTag(ctx context.Context, userID snowflake.ID, req CreateTagRequest) (Tag, error)
	ListTags(ctx context.Context, userID snowflake.ID) ([]Tag, error)
	DeleteTag(ctx context.Context, userID, id snowflake.ID) error

	CreateTransaction(ctx context.Context, userID snowflake.ID, req CreateTransactionRequest) (Transaction, error)
	GetTransaction(ctx context.Context, userID, id snowflake.ID) (Transaction, error)
	ListTransactions(ctx context.Context, userID snowflake.ID, req ListTransactionRequest) (ListTransactionResponse, error)
	UpdateTransaction(ctx context.Context, userID, id snowflake.ID, req UpdateTransactionRequest) (Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id snowflake.ID) error
	ToggleReconciled(ctx context.Context, userID, id snowflake.ID) (Transaction, error)
	CreateTransfer(ctx context.Context, userID snowflake.ID, req CreateTransferRequest) (Transfer, error)
}

var (
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidType        = errors.New("invalid_type")
	ErrInvalidKind        = errors.New("invalid_kind")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidParent      = errors.New("invalid_parent")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidToAccount   = errors.New("invalid_to_account")
	ErrInvalidDateRange   = errors.New("invalid_date_range")

	ErrNotFound = errors.New("not_found")

	ErrAccountForbidden  = errors.New("forbidden_account")
	ErrCategoryForbidden = errors.New("forbidden_category")
	ErrTagForbidden      = errors.New("forbidden_tag")

	ErrNameTaken             = errors.New("name_taken")
	ErrAccountInUse          = errors.New("account_in_use")
	ErrAccountInactive       = errors.New("account_inactive")
	ErrLinkedToPayment       = errors.New("transaction_linked_to_invoice_payment")
	ErrNewerOccurrenceExists = errors.New("newer_recurring_occurrence_exists")
)

// NewerOccurrenceError names the occurrence that must be deleted first.
type NewerOccurrenceError struct {
	BlockingID   snowflake.ID
	BlockingDate time.Time
}

func (e *NewerOccurrenceError) Error() string {
	return fmt.Sprintf("delete the occurrence dated %s first", e.BlockingDate.Format(time.DateOnly))
}

func (e *NewerOccurrenceError) Is(target error) bool {
	return target == ErrNewerOccurrenceExists
}
