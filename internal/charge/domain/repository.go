package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	CardID     *snowflake.ID
	InvoiceID  *snowflake.ID
	PurchaseID *snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, charge *CardCharge) error
	Find(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*CardCharge, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter ListFilter) ([]*CardCharge, error)
	Update(ctx context.Context, db *gorm.DB, charge *CardCharge) error
	ReplaceTags(ctx context.Context, db *gorm.DB, chargeID snowflake.ID, tagIDs []snowflake.ID) error
	LoadTags(ctx context.Context, db *gorm.DB, charges []*CardCharge) error
	Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error
}
