package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertAccount(ctx context.Context, db *gorm.DB, account *Account) error
	FindAccount(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Account, error)
	ListAccounts(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*Account, error)
	UpdateAccount(ctx context.Context, db *gorm.DB, account *Account) error
	DeleteAccount(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error
	CountAccountTransactions(ctx context.Context, db *gorm.DB, userID, accountID snowflake.ID) (int64, error)

	InsertCategory(ctx context.Context, db *gorm.DB, category *Category) error
	FindCategory(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Category, error)
	ListCategories(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*Category, error)
	UpdateCategory(ctx context.Context, db *gorm.DB, category *Category) error
	DeleteCategory(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error

	InsertTag(ctx context.Context, db *gorm.DB, tag *Tag) error
	FindTags(ctx context.Context, db *gorm.DB, userID snowflake.ID, ids []snowflake.ID) ([]*Tag, error)
	ListTags(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*Tag, error)
	DeleteTag(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error

	InsertTransaction(ctx context.Context, db *gorm.DB, tx *Transaction) error
	FindTransaction(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Transaction, error)
	FindTransactionByPayment(ctx context.Context, db *gorm.DB, userID, paymentID snowflake.ID) (*Transaction, error)
	FindTransferLegs(ctx context.Context, db *gorm.DB, userID snowflake.ID, transferKey string) ([]*Transaction, error)
	ListTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter ListTransactionFilter) ([]*Transaction, error)
	ListRecurringOccurrences(ctx context.Context, db *gorm.DB, userID, recurringID snowflake.ID) ([]*Transaction, error)
	ListAllTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*Transaction, error)
	UpdateTransaction(ctx context.Context, db *gorm.DB, tx *Transaction) error
	ReplaceTransactionTags(ctx context.Context, db *gorm.DB, transactionID snowflake.ID, tagIDs []snowflake.ID) error
	LoadTransactionTags(ctx context.Context, db *gorm.DB, txs []*Transaction) error
	DeleteTransaction(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error
	RewindRecurringCursor(ctx context.Context, db *gorm.DB, userID, recurringID snowflake.ID, date time.Time) error
}

// Guard resolves foreign keys supplied by a caller and rejects rows owned
// by someone else. It runs on the caller's transaction.
type Guard interface {
	Account(ctx context.Context, db *gorm.DB, userID, accountID snowflake.ID) (*Account, error)
	Category(ctx context.Context, db *gorm.DB, userID snowflake.ID, categoryID *snowflake.ID) error
	Tags(ctx context.Context, db *gorm.DB, userID snowflake.ID, tagIDs []snowflake.ID) ([]snowflake.ID, error)
}
