package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertTransaction(ctx context.Context, db *gorm.DB, item *RecurringTransaction) error
	FindTransaction(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*RecurringTransaction, error)
	ListTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*RecurringTransaction, error)
	ListDueTransactions(ctx context.Context, db *gorm.DB, today time.Time, exclude []snowflake.ID, limit int) ([]*RecurringTransaction, error)
	UpdateTransaction(ctx context.Context, db *gorm.DB, item *RecurringTransaction) error
	DeleteTransaction(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error

	InsertCardPurchase(ctx context.Context, db *gorm.DB, item *RecurringCardPurchase) error
	FindCardPurchase(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*RecurringCardPurchase, error)
	ListCardPurchases(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*RecurringCardPurchase, error)
	ListDueCardPurchases(ctx context.Context, db *gorm.DB, today time.Time, exclude []snowflake.ID, limit int) ([]*RecurringCardPurchase, error)
	UpdateCardPurchase(ctx context.Context, db *gorm.DB, item *RecurringCardPurchase) error
	DeleteCardPurchase(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error
}
