package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	CardID *snowflake.ID
	Status InvoiceStatus
	Year   *int
}

type Repository interface {
	// InsertIfAbsent creates the invoice unless its period already exists.
	// It reports whether a row was written.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, invoice *Invoice) (bool, error)
	FindByPeriod(ctx context.Context, db *gorm.DB, userID, cardID snowflake.ID, year, month int) (*Invoice, error)
	Find(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter ListFilter) ([]*Invoice, error)
	ListUnpaidDueBetween(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to time.Time) ([]*Invoice, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error

	ChargeAmounts(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID][]StatementCharge, error)
	PaymentAmounts(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID][]StatementPayment, error)
	CountActivity(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error)
	CardNames(ctx context.Context, db *gorm.DB, userID snowflake.ID, cardIDs []snowflake.ID) (map[snowflake.ID]string, error)
}
