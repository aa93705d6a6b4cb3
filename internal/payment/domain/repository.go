package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *InvoicePayment) error
	Find(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*InvoicePayment, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) ([]*InvoicePayment, error)
	Update(ctx context.Context, db *gorm.DB, payment *InvoicePayment) error
	Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error
}
