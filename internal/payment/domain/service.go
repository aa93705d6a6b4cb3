package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
	invoicedomain "github.com/smallbiznis/fatura/internal/invoice/domain"
)

type PayRequest struct {
	InvoiceID snowflake.ID
	AccountID *snowflake.ID
	Date      time.Time
	Amount    decimal.Decimal
	Kind      PaymentKind
}

type UpdatePaymentRequest struct {
	AccountID *snowflake.ID
	Date      *time.Time
	Amount    *decimal.Decimal
	Kind      *PaymentKind
}

// Reconciliation is a payment together with the account movement it
// produced and the invoice state after recompute.
type Reconciliation struct {
	Payment       InvoicePayment              `json:"payment"`
	Transaction   *accountdomain.Transaction  `json:"transaction,omitempty"`
	InvoiceStatus invoicedomain.InvoiceStatus `json:"invoice_status"`
}

type DeleteResult struct {
	InvoiceID      snowflake.ID `json:"invoice_id"`
	InvoiceDeleted bool         `json:"invoice_deleted"`
}

type Service interface {
	Pay(ctx context.Context, userID snowflake.ID, req PayRequest) (Reconciliation, error)
	Get(ctx context.Context, userID, id snowflake.ID) (InvoicePayment, error)
	List(ctx context.Context, userID, invoiceID snowflake.ID) ([]InvoicePayment, error)
	Update(ctx context.Context, userID, id snowflake.ID, req UpdatePaymentRequest) (Reconciliation, error)
	Delete(ctx context.Context, userID, id snowflake.ID) (DeleteResult, error)
}

var (
	ErrInvalidUser    = errors.New("invalid_user")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrInvalidKind    = errors.New("invalid_kind")
	ErrInvalidAccount = errors.New("invalid_account")
	ErrInvalidDate    = errors.New("invalid_date")

	ErrNotFound = errors.New("not_found")
)
