package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fatura/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.InvoicePayment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoice_payments (id, user_id, invoice_id, account_id, date, amount, kind, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.UserID,
		payment.InvoiceID,
		payment.AccountID,
		payment.Date,
		payment.Amount,
		payment.Kind,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.InvoicePayment, error) {
	var payment domain.InvoicePayment
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, invoice_id, account_id, date, amount, kind, created_at, updated_at
		 FROM invoice_payments WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) ListByInvoice(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) ([]*domain.InvoicePayment, error) {
	var payments []*domain.InvoicePayment
	err := db.WithContext(ctx).
		Where("user_id = ? AND invoice_id = ?", userID, invoiceID).
		Order("date desc").
		Order("id desc").
		Find(&payments).Error
	return payments, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, payment *domain.InvoicePayment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoice_payments SET account_id = ?, date = ?, amount = ?, kind = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		payment.AccountID,
		payment.Date,
		payment.Amount,
		payment.Kind,
		payment.UpdatedAt,
		payment.UserID,
		payment.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoice_payments WHERE user_id = ? AND id = ?`, userID, id).Error
}
