package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/fatura/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const invoiceColumns = `id, user_id, card_id, year, month, closing_date, due_date, status, closed_at, created_at, updated_at`

// InsertIfAbsent relies on the (card_id, year, month) unique index. The
// conflict clause renders per dialect.
func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "card_id"}, {Name: "year"}, {Name: "month"}},
			DoNothing: true,
		}).
		Create(invoice)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByPeriod(ctx context.Context, db *gorm.DB, userID, cardID snowflake.ID, year, month int) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE user_id = ? AND card_id = ? AND year = ? AND month = ?`,
		userID, cardID, year, month,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter domain.ListFilter) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("user_id = ?", userID)
	if filter.CardID != nil {
		stmt = stmt.Where("card_id = ?", *filter.CardID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Year != nil {
		stmt = stmt.Where("year = ?", *filter.Year)
	}
	err := stmt.
		Order("year desc").
		Order("month desc").
		Order("id asc").
		Find(&invoices).Error
	return invoices, err
}

func (r *repo) ListUnpaidDueBetween(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to time.Time) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).
		Where("user_id = ? AND status <> ? AND due_date IS NOT NULL", userID, domain.InvoiceStatusPaid).
		Where("due_date >= ? AND due_date <= ?", from, to).
		Order("due_date asc").
		Order("id asc").
		Find(&invoices).Error
	return invoices, err
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, closed_at = ?, closing_date = ?, due_date = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		invoice.Status,
		invoice.ClosedAt,
		invoice.ClosingDate,
		invoice.DueDate,
		invoice.UpdatedAt,
		invoice.UserID,
		invoice.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE user_id = ? AND id = ?`, userID, id).Error
}

type chargeRow struct {
	ID                snowflake.ID
	InvoiceID         snowflake.ID
	Date              time.Time
	Description       string
	TotalAmount       decimal.Decimal
	InstallmentNumber int
	InstallmentsTotal int
}

func (r *repo) ChargeAmounts(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID][]domain.StatementCharge, error) {
	out := make(map[snowflake.ID][]domain.StatementCharge, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	var rows []chargeRow
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, date, description, total_amount, installment_number, installments_total
		 FROM card_charges WHERE invoice_id IN ?
		 ORDER BY date ASC, id ASC`,
		invoiceIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.InvoiceID] = append(out[row.InvoiceID], domain.StatementCharge{
			ID:                row.ID,
			Date:              row.Date,
			Description:       row.Description,
			TotalAmount:       row.TotalAmount,
			InstallmentNumber: row.InstallmentNumber,
			InstallmentsTotal: row.InstallmentsTotal,
		})
	}
	return out, nil
}

type paymentRow struct {
	ID        snowflake.ID
	InvoiceID snowflake.ID
	Date      time.Time
	Kind      string
	Amount    decimal.Decimal
}

func (r *repo) PaymentAmounts(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID][]domain.StatementPayment, error) {
	out := make(map[snowflake.ID][]domain.StatementPayment, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	var rows []paymentRow
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, date, kind, amount
		 FROM invoice_payments WHERE invoice_id IN ?
		 ORDER BY date ASC, id ASC`,
		invoiceIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.InvoiceID] = append(out[row.InvoiceID], domain.StatementPayment{
			ID:     row.ID,
			Date:   row.Date,
			Kind:   row.Kind,
			Amount: row.Amount,
		})
	}
	return out, nil
}

func (r *repo) CountActivity(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error) {
	var counts struct {
		Charges  int64
		Payments int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
			(SELECT COUNT(*) FROM card_charges WHERE invoice_id = ?) AS charges,
			(SELECT COUNT(*) FROM invoice_payments WHERE invoice_id = ?) AS payments`,
		invoiceID, invoiceID,
	).Scan(&counts).Error
	if err != nil {
		return 0, err
	}
	return counts.Charges + counts.Payments, nil
}

func (r *repo) CardNames(ctx context.Context, db *gorm.DB, userID snowflake.ID, cardIDs []snowflake.ID) (map[snowflake.ID]string, error) {
	out := make(map[snowflake.ID]string, len(cardIDs))
	if len(cardIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ID   snowflake.ID
		Name string
	}
	err := db.WithContext(ctx).Raw(
		`SELECT id, name FROM credit_cards WHERE user_id = ? AND id IN ?`,
		userID, cardIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Name
	}
	return out, nil
}
