package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fatura/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertAccount(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, user_id, name, type, initial_balance, currency, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.UserID,
		account.Name,
		account.Type,
		account.InitialBalance,
		account.Currency,
		account.Active,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, name, type, initial_balance, currency, active, created_at, updated_at
		 FROM accounts WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) ListAccounts(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name asc").
		Find(&accounts).Error
	return accounts, err
}

func (r *repo) UpdateAccount(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts SET name = ?, type = ?, initial_balance = ?, active = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		account.Name,
		account.Type,
		account.InitialBalance,
		account.Active,
		account.UpdatedAt,
		account.UserID,
		account.ID,
	).Error
}

// DeleteAccount removes the account and the recurring templates posting
// to it.
func (r *repo) DeleteAccount(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error {
	stmts := []string{
		`DELETE FROM recurring_transactions WHERE user_id = ? AND account_id = ?`,
		`DELETE FROM accounts WHERE user_id = ? AND id = ?`,
	}
	for _, stmt := range stmts {
		if err := db.WithContext(ctx).Exec(stmt, userID, id).Error; err != nil {
			return err
		}
	}
	return nil
}

// CountAccountTransactions counts movements and invoice payments that
// reference the account.
func (r *repo) CountAccountTransactions(ctx context.Context, db *gorm.DB, userID, accountID snowflake.ID) (int64, error) {
	var counts struct {
		Transactions int64
		Payments     int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
			(SELECT COUNT(*) FROM transactions WHERE user_id = ? AND account_id = ?) AS transactions,
			(SELECT COUNT(*) FROM invoice_payments WHERE user_id = ? AND account_id = ?) AS payments`,
		userID, accountID, userID, accountID,
	).Scan(&counts).Error
	if err != nil {
		return 0, err
	}
	return counts.Transactions + counts.Payments, nil
}

func (r *repo) InsertCategory(ctx context.Context, db *gorm.DB, category *domain.Category) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO categories (id, user_id, name, kind, parent_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		category.ID,
		category.UserID,
		category.Name,
		category.Kind,
		category.ParentID,
		category.CreatedAt,
		category.UpdatedAt,
	).Error
}

func (r *repo) FindCategory(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Category, error) {
	var category domain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, name, kind, parent_id, created_at, updated_at
		 FROM categories WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&category).Error
	if err != nil {
		return nil, err
	}
	if category.ID == 0 {
		return nil, nil
	}
	return &category, nil
}

func (r *repo) ListCategories(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*domain.Category, error) {
	var categories []*domain.Category
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name asc").
		Find(&categories).Error
	return categories, err
}

func (r *repo) UpdateCategory(ctx context.Context, db *gorm.DB, category *domain.Category) error {
	return db.WithContext(ctx).Exec(
		`UPDATE categories SET name = ?, kind = ?, parent_id = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		category.Name,
		category.Kind,
		category.ParentID,
		category.UpdatedAt,
		category.UserID,
		category.ID,
	).Error
}

// DeleteCategory detaches children and transactions before removing the row.
func (r *repo) DeleteCategory(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error {
	stmts := []string{
		`UPDATE categories SET parent_id = NULL WHERE user_id = ? AND parent_id = ?`,
		`UPDATE transactions SET category_id = NULL WHERE user_id = ? AND category_id = ?`,
		`UPDATE card_charges SET category_id = NULL WHERE user_id = ? AND category_id = ?`,
		`UPDATE recurring_transactions SET category_id = NULL WHERE user_id = ? AND category_id = ?`,
		`UPDATE recurring_card_purchases SET category_id = NULL WHERE user_id = ? AND category_id = ?`,
		`DELETE FROM categories WHERE user_id = ? AND id = ?`,
	}
	for _, stmt := range stmts {
		if err := db.WithContext(ctx).Exec(stmt, userID, id).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) InsertTag(ctx context.Context, db *gorm.DB, tag *domain.Tag) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tags (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		tag.ID,
		tag.UserID,
		tag.Name,
		tag.CreatedAt,
	).Error
}

func (r *repo) FindTags(ctx context.Context, db *gorm.DB, userID snowflake.ID, ids []snowflake.ID) ([]*domain.Tag, error) {
	var tags []*domain.Tag
	if len(ids) == 0 {
		return tags, nil
	}
	err := db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&tags).Error
	return tags, err
}

func (r *repo) ListTags(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*domain.Tag, error) {
	var tags []*domain.Tag
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name asc").
		Find(&tags).Error
	return tags, err
}

func (r *repo) DeleteTag(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error {
	stmts := []string{
		`DELETE FROM transaction_tags WHERE tag_id = ?`,
		`DELETE FROM card_charge_tags WHERE tag_id = ?`,
	}
	for _, stmt := range stmts {
		if err := db.WithContext(ctx).Exec(stmt, id).Error; err != nil {
			return err
		}
	}
	return db.WithContext(ctx).Exec(`DELETE FROM tags WHERE user_id = ? AND id = ?`, userID, id).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, user_id, account_id, type, date, description, amount, category_id, reconciled,
			transfer_key, recurring_transaction_id, invoice_payment_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.UserID,
		tx.AccountID,
		tx.Type,
		tx.Date,
		tx.Description,
		tx.Amount,
		tx.CategoryID,
		tx.Reconciled,
		tx.TransferKey,
		tx.RecurringTransactionID,
		tx.InvoicePaymentID,
		tx.CreatedAt,
		tx.UpdatedAt,
	).Error
	if err != nil {
		return err
	}
	return r.ReplaceTransactionTags(ctx, db, tx.ID, tx.TagIDs)
}

const transactionColumns = `id, user_id, account_id, type, date, description, amount, category_id, reconciled,
	transfer_key, recurring_transaction_id, invoice_payment_id, created_at, updated_at`

func (r *repo) FindTransaction(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&tx).Error
	if err != nil {
		return nil, err
	}
	if tx.ID == 0 {
		return nil, nil
	}
	if err := r.LoadTransactionTags(ctx, db, []*domain.Transaction{&tx}); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *repo) FindTransactionByPayment(ctx context.Context, db *gorm.DB, userID, paymentID snowflake.ID) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND invoice_payment_id = ?`,
		userID, paymentID,
	).Scan(&tx).Error
	if err != nil {
		return nil, err
	}
	if tx.ID == 0 {
		return nil, nil
	}
	return &tx, nil
}

func (r *repo) FindTransferLegs(ctx context.Context, db *gorm.DB, userID snowflake.ID, transferKey string) ([]*domain.Transaction, error) {
	var legs []*domain.Transaction
	err := db.WithContext(ctx).
		Where("user_id = ? AND transfer_key = ?", userID, transferKey).
		Order("id asc").
		Find(&legs).Error
	return legs, err
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter domain.ListTransactionFilter) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	stmt := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("user_id = ?", userID)
	if filter.AccountID != nil {
		stmt = stmt.Where("account_id = ?", *filter.AccountID)
	}
	if filter.CategoryID != nil {
		stmt = stmt.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.From != nil {
		stmt = stmt.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("date <= ?", *filter.To)
	}
	if filter.Reconciled != nil {
		stmt = stmt.Where("reconciled = ?", *filter.Reconciled)
	}
	if filter.BeforeID != nil {
		stmt = stmt.Where("id < ?", *filter.BeforeID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("id desc").Find(&txs).Error; err != nil {
		return nil, err
	}
	if err := r.LoadTransactionTags(ctx, db, txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *repo) ListRecurringOccurrences(ctx context.Context, db *gorm.DB, userID, recurringID snowflake.ID) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	err := db.WithContext(ctx).
		Where("user_id = ? AND recurring_transaction_id = ?", userID, recurringID).
		Order("id asc").
		Find(&txs).Error
	return txs, err
}

func (r *repo) ListAllTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	err := db.WithContext(ctx).
		Select("id", "account_id", "type", "amount").
		Where("user_id = ?", userID).
		Find(&txs).Error
	return txs, err
}

func (r *repo) UpdateTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`UPDATE transactions SET account_id = ?, type = ?, date = ?, description = ?, amount = ?,
			category_id = ?, reconciled = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		tx.AccountID,
		tx.Type,
		tx.Date,
		tx.Description,
		tx.Amount,
		tx.CategoryID,
		tx.Reconciled,
		tx.UpdatedAt,
		tx.UserID,
		tx.ID,
	).Error
}

func (r *repo) ReplaceTransactionTags(ctx context.Context, db *gorm.DB, transactionID snowflake.ID, tagIDs []snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM transaction_tags WHERE transaction_id = ?`, transactionID).Error; err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)`,
			transactionID, tagID,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) LoadTransactionTags(ctx context.Context, db *gorm.DB, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(txs))
	byID := make(map[snowflake.ID]*domain.Transaction, len(txs))
	for _, tx := range txs {
		tx.TagIDs = []snowflake.ID{}
		ids = append(ids, tx.ID)
		byID[tx.ID] = tx
	}

	var rows []domain.TransactionTag
	err := db.WithContext(ctx).
		Where("transaction_id IN ?", ids).
		Order("tag_id asc").
		Find(&rows).Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		if tx, ok := byID[row.TransactionID]; ok {
			tx.TagIDs = append(tx.TagIDs, row.TagID)
		}
	}
	return nil
}

func (r *repo) DeleteTransaction(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM transaction_tags WHERE transaction_id = ?`, id).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id).Error
}

// RewindRecurringCursor moves a template's next_date back to date when it
// is currently ahead of it.
func (r *repo) RewindRecurringCursor(ctx context.Context, db *gorm.DB, userID, recurringID snowflake.ID, date time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recurring_transactions SET next_date = ?, updated_at = ?
		 WHERE user_id = ? AND id = ? AND next_date > ?`,
		date,
		time.Now().UTC(),
		userID,
		recurringID,
		date,
	).Error
}
