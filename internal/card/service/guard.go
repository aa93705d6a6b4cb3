package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fatura/internal/card/domain"
	"gorm.io/gorm"
)

type guard struct {
	repo domain.Repository
}

func NewGuard(repo domain.Repository) domain.Guard {
	return &guard{repo: repo}
}

func (g *guard) Card(ctx context.Context, db *gorm.DB, userID, cardID snowflake.ID) (*domain.CreditCard, error) {
	if cardID == 0 {
		return nil, domain.ErrCardForbidden
	}
	card, err := g.repo.Find(ctx, db, userID, cardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, domain.ErrCardForbidden
	}
	return card, nil
}
