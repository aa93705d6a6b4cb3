package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	"gorm.io/gorm"
)

// Engine places charges on billing cycles and keeps invoice status in
// line with its charges and payments. Every method runs on the caller's
// transaction.
type Engine interface {
	AssignInvoiceFor(ctx context.Context, tx *gorm.DB, card *carddomain.CreditCard, date time.Time) (*Invoice, error)
	NextInvoice(ctx context.Context, tx *gorm.DB, card *carddomain.CreditCard, invoice *Invoice) (*Invoice, error)
	// ResolveOpenInvoice is AssignInvoiceFor followed by the roll-forward
	// past CLOSED and PAID cycles.
	ResolveOpenInvoice(ctx context.Context, tx *gorm.DB, card *carddomain.CreditCard, date time.Time) (*Invoice, error)
	Totals(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) (Totals, error)
	Recompute(ctx context.Context, tx *gorm.DB, userID, invoiceID snowflake.ID) (Transition, error)
	// DeleteIfEmpty removes an invoice left without charges and payments.
	// Failures are logged and reported as false.
	DeleteIfEmpty(ctx context.Context, tx *gorm.DB, userID, invoiceID snowflake.ID) bool
}

type ListInvoiceRequest struct {
	CardID *snowflake.ID
	Status InvoiceStatus
	Year   *int
}

type Service interface {
	Get(ctx context.Context, userID, id snowflake.ID) (InvoiceView, error)
	List(ctx context.Context, userID snowflake.ID, req ListInvoiceRequest) ([]InvoiceView, error)
	Close(ctx context.Context, userID, id snowflake.ID) (InvoiceView, error)
	Reopen(ctx context.Context, userID, id snowflake.ID) (InvoiceView, error)
	// Upcoming lists unpaid invoices due between today and today+days.
	Upcoming(ctx context.Context, userID snowflake.ID, today time.Time, days int) ([]InvoiceView, error)
	Statement(ctx context.Context, userID, id snowflake.ID) (Statement, error)
	RenderStatement(ctx context.Context, userID, id snowflake.ID) ([]byte, error)
}

// StatementRenderer turns a statement into a printable document.
type StatementRenderer interface {
	RenderStatement(ctx context.Context, statement Statement) ([]byte, error)
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrInvalidYear   = errors.New("invalid_year")
	ErrInvalidDays   = errors.New("invalid_days")

	ErrNotFound          = errors.New("not_found")
	ErrInvalidTransition = errors.New("invoice_transition_not_allowed")
	ErrRollForwardLimit  = errors.New("invoice_roll_forward_limit")
	ErrRendererMissing   = errors.New("statement_renderer_unavailable")
)
