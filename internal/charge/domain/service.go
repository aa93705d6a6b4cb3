package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	invoicedomain "github.com/smallbiznis/fatura/internal/invoice/domain"
	"gorm.io/gorm"
)

type PurchaseRequest struct {
	CardID       snowflake.ID
	Date         time.Time
	Description  string
	TotalAmount  decimal.Decimal
	Installments int
	CategoryID   *snowflake.ID
	TagIDs       []snowflake.ID
}

type Purchase struct {
	PurchaseID snowflake.ID `json:"purchase_id"`
	Charges    []CardCharge `json:"charges"`
}

// AllocateRequest is a validated purchase ready to be placed on invoices.
type AllocateRequest struct {
	Date                    time.Time
	Description             string
	TotalAmount             decimal.Decimal
	Installments            int
	CategoryID              *snowflake.ID
	TagIDs                  []snowflake.ID
	RecurringCardPurchaseID *snowflake.ID
}

type Allocation struct {
	Purchase
	Transitions []invoicedomain.Transition
}

type UpdateChargeRequest struct {
	Date        *time.Time
	Description *string
	TotalAmount *decimal.Decimal
	CategoryID  *snowflake.ID
	TagIDs      *[]snowflake.ID
}

type ListChargeRequest struct {
	CardID     *snowflake.ID
	InvoiceID  *snowflake.ID
	PurchaseID *snowflake.ID
}

// DeleteResult tells the caller where to go next: the invoice the charge
// belonged to, unless that invoice was removed.
type DeleteResult struct {
	CardID         snowflake.ID `json:"card_id"`
	InvoiceID      snowflake.ID `json:"invoice_id"`
	InvoiceDeleted bool         `json:"invoice_deleted"`
}

// Allocator is the transactional core shared by purchase entry and
// recurring card purchase generation.
type Allocator interface {
	AllocateTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID, card *carddomain.CreditCard, req AllocateRequest) (Allocation, error)
}

type Service interface {
	Purchase(ctx context.Context, userID snowflake.ID, req PurchaseRequest) (Purchase, error)
	Get(ctx context.Context, userID, id snowflake.ID) (CardCharge, error)
	List(ctx context.Context, userID snowflake.ID, req ListChargeRequest) ([]CardCharge, error)
	Update(ctx context.Context, userID, id snowflake.ID, req UpdateChargeRequest) (CardCharge, error)
	Delete(ctx context.Context, userID, id snowflake.ID) (DeleteResult, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidInstallments = errors.New("invalid_installments")
	ErrInvalidDescription  = errors.New("invalid_description")
	ErrInvalidDate         = errors.New("invalid_date")

	ErrNotFound = errors.New("not_found")
)
