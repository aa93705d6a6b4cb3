package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fatura/internal/card/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, card *domain.CreditCard) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_cards (id, user_id, name, brand, credit_limit, closing_day, due_day, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID,
		card.UserID,
		card.Name,
		card.Brand,
		card.Limit,
		card.ClosingDay,
		card.DueDay,
		card.Active,
		card.CreatedAt,
		card.UpdatedAt,
	).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.CreditCard, error) {
	var card domain.CreditCard
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, name, brand, credit_limit, closing_day, due_day, active, created_at, updated_at
		 FROM credit_cards WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&card).Error
	if err != nil {
		return nil, err
	}
	if card.ID == 0 {
		return nil, nil
	}
	return &card, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*domain.CreditCard, error) {
	var cards []*domain.CreditCard
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name asc").
		Find(&cards).Error
	return cards, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, card *domain.CreditCard) error {
	return db.WithContext(ctx).Exec(
		`UPDATE credit_cards SET name = ?, brand = ?, credit_limit = ?, closing_day = ?, due_day = ?, active = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		card.Name,
		card.Brand,
		card.Limit,
		card.ClosingDay,
		card.DueDay,
		card.Active,
		card.UpdatedAt,
		card.UserID,
		card.ID,
	).Error
}

func (r *repo) CountActivity(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (int64, error) {
	var counts struct {
		Charges  int64
		Payments int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
			(SELECT COUNT(*) FROM card_charges WHERE user_id = ? AND card_id = ?) AS charges,
			(SELECT COUNT(*) FROM invoice_payments p
				JOIN invoices i ON i.id = p.invoice_id
				WHERE i.user_id = ? AND i.card_id = ?) AS payments`,
		userID, id, userID, id,
	).Scan(&counts).Error
	if err != nil {
		return 0, err
	}
	return counts.Charges + counts.Payments, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error {
	stmts := []string{
		`DELETE FROM recurring_card_purchases WHERE user_id = ? AND card_id = ?`,
		`DELETE FROM invoices WHERE user_id = ? AND card_id = ?`,
	}
	for _, stmt := range stmts {
		if err := db.WithContext(ctx).Exec(stmt, userID, id).Error; err != nil {
			return err
		}
	}
	return db.WithContext(ctx).Exec(`DELETE FROM credit_cards WHERE user_id = ? AND id = ?`, userID, id).Error
}
