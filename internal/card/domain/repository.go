package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, card *CreditCard) error
	Find(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*CreditCard, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*CreditCard, error)
	Update(ctx context.Context, db *gorm.DB, card *CreditCard) error
	// CountActivity returns the number of charges and payments recorded
	// against the card's invoices.
	CountActivity(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (int64, error)
	// Delete removes the card together with its invoices and recurring
	// purchase templates.
	Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error
}

// Guard resolves a card id supplied by the caller.
type Guard interface {
	Card(ctx context.Context, db *gorm.DB, userID, cardID snowflake.ID) (*CreditCard, error)
}
