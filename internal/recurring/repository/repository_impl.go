package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fatura/internal/recurring/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const transactionColumns = `id, user_id, account_id, type, description, amount, category_id, frequency,
	day_of_month, start_date, next_date, active, end_date, created_at, updated_at`

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, item *domain.RecurringTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO recurring_transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.UserID,
		item.AccountID,
		item.Type,
		item.Description,
		item.Amount,
		item.CategoryID,
		item.Frequency,
		item.DayOfMonth,
		item.StartDate,
		item.NextDate,
		item.Active,
		item.EndDate,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) FindTransaction(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.RecurringTransaction, error) {
	var item domain.RecurringTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+` FROM recurring_transactions WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*domain.RecurringTransaction, error) {
	var items []*domain.RecurringTransaction
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("next_date desc").
		Order("id desc").
		Find(&items).Error
	return items, err
}

func (r *repo) ListDueTransactions(ctx context.Context, db *gorm.DB, today time.Time, exclude []snowflake.ID, limit int) ([]*domain.RecurringTransaction, error) {
	var items []*domain.RecurringTransaction
	stmt := db.WithContext(ctx).
		Where("active = ? AND next_date <= ?", true, today).
		Where("end_date IS NULL OR next_date <= end_date")
	if len(exclude) > 0 {
		stmt = stmt.Where("id NOT IN ?", exclude)
	}
	err := stmt.
		Order("next_date asc").
		Order("id asc").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *repo) UpdateTransaction(ctx context.Context, db *gorm.DB, item *domain.RecurringTransaction) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recurring_transactions SET description = ?, amount = ?, category_id = ?, day_of_month = ?,
			next_date = ?, active = ?, end_date = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		item.Description,
		item.Amount,
		item.CategoryID,
		item.DayOfMonth,
		item.NextDate,
		item.Active,
		item.EndDate,
		item.UpdatedAt,
		item.UserID,
		item.ID,
	).Error
}

// DeleteTransaction keeps generated occurrences and detaches them from the
// template.
func (r *repo) DeleteTransaction(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error {
	stmts := []string{
		`UPDATE transactions SET recurring_transaction_id = NULL WHERE user_id = ? AND recurring_transaction_id = ?`,
		`DELETE FROM recurring_transactions WHERE user_id = ? AND id = ?`,
	}
	for _, stmt := range stmts {
		if err := db.WithContext(ctx).Exec(stmt, userID, id).Error; err != nil {
			return err
		}
	}
	return nil
}

const cardPurchaseColumns = `id, user_id, card_id, description, total_amount, installments_total, category_id,
	frequency, day_of_month, next_date, active, end_date, created_at, updated_at`

func (r *repo) InsertCardPurchase(ctx context.Context, db *gorm.DB, item *domain.RecurringCardPurchase) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO recurring_card_purchases (`+cardPurchaseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.UserID,
		item.CardID,
		item.Description,
		item.TotalAmount,
		item.InstallmentsTotal,
		item.CategoryID,
		item.Frequency,
		item.DayOfMonth,
		item.NextDate,
		item.Active,
		item.EndDate,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) FindCardPurchase(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.RecurringCardPurchase, error) {
	var item domain.RecurringCardPurchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+cardPurchaseColumns+` FROM recurring_card_purchases WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListCardPurchases(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*domain.RecurringCardPurchase, error) {
	var items []*domain.RecurringCardPurchase
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("next_date desc").
		Order("id desc").
		Find(&items).Error
	return items, err
}

func (r *repo) ListDueCardPurchases(ctx context.Context, db *gorm.DB, today time.Time, exclude []snowflake.ID, limit int) ([]*domain.RecurringCardPurchase, error) {
	var items []*domain.RecurringCardPurchase
	stmt := db.WithContext(ctx).
		Where("active = ? AND next_date <= ?", true, today).
		Where("end_date IS NULL OR next_date <= end_date")
	if len(exclude) > 0 {
		stmt = stmt.Where("id NOT IN ?", exclude)
	}
	err := stmt.
		Order("next_date asc").
		Order("id asc").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *repo) UpdateCardPurchase(ctx context.Context, db *gorm.DB, item *domain.RecurringCardPurchase) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recurring_card_purchases SET description = ?, total_amount = ?, installments_total = ?, category_id = ?,
			day_of_month = ?, next_date = ?, active = ?, end_date = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		item.Description,
		item.TotalAmount,
		item.InstallmentsTotal,
		item.CategoryID,
		item.DayOfMonth,
		item.NextDate,
		item.Active,
		item.EndDate,
		item.UpdatedAt,
		item.UserID,
		item.ID,
	).Error
}

func (r *repo) DeleteCardPurchase(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error {
	stmts := []string{
		`UPDATE card_charges SET recurring_card_purchase_id = NULL WHERE user_id = ? AND recurring_card_purchase_id = ?`,
		`DELETE FROM recurring_card_purchases WHERE user_id = ? AND id = ?`,
	}
	for _, stmt := range stmts {
		if err := db.WithContext(ctx).Exec(stmt, userID, id).Error; err != nil {
			return err
		}
	}
	return nil
}
