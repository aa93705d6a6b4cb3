package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fatura/internal/account/domain"
	"gorm.io/gorm"
)

type guard struct {
	repo domain.Repository
}

func NewGuard(repo domain.Repository) domain.Guard {
	return &guard{repo: repo}
}

// Account returns the caller's account. Unknown ids and ids owned by
// another user are indistinguishable to the caller.
func (g *guard) Account(ctx context.Context, db *gorm.DB, userID, accountID snowflake.ID) (*domain.Account, error) {
	if accountID == 0 {
		return nil, domain.ErrAccountForbidden
	}
	account, err := g.repo.FindAccount(ctx, db, userID, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountForbidden
	}
	return account, nil
}

func (g *guard) Category(ctx context.Context, db *gorm.DB, userID snowflake.ID, categoryID *snowflake.ID) error {
	if categoryID == nil {
		return nil
	}
	category, err := g.repo.FindCategory(ctx, db, userID, *categoryID)
	if err != nil {
		return err
	}
	if category == nil {
		return domain.ErrCategoryForbidden
	}
	return nil
}

// Tags deduplicates tagIDs and checks every one belongs to the caller.
func (g *guard) Tags(ctx context.Context, db *gorm.DB, userID snowflake.ID, tagIDs []snowflake.ID) ([]snowflake.ID, error) {
	unique := make([]snowflake.ID, 0, len(tagIDs))
	seen := make(map[snowflake.ID]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return unique, nil
	}

	tags, err := g.repo.FindTags(ctx, db, userID, unique)
	if err != nil {
		return nil, err
	}
	if len(tags) != len(unique) {
		return nil, domain.ErrTagForbidden
	}
	return unique, nil
}
