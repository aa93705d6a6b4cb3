package service

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/fatura/internal/account/domain"
	"github.com/smallbiznis/fatura/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) CreateTransaction(ctx context.Context, userID snowflake.ID, req domain.CreateTransactionRequest) (domain.Transaction, error) {
	if userID == 0 {
		return domain.Transaction{}, domain.ErrInvalidUser
	}
	txType := req.Type
	if txType == "" {
		txType = domain.TransactionTypeOut
	}
	if !txType.Valid() {
		return domain.Transaction{}, domain.ErrInvalidType
	}
	if !req.Amount.IsPositive() {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	description := strings.TrimSpace(req.Description)
	if description == "" || len(description) > 255 {
		return domain.Transaction{}, domain.ErrInvalidDescription
	}
	date := req.Date
	if date.IsZero() {
		date = s.clock.Now()
	}

	now := s.clock.Now()
	transaction := domain.Transaction{
		ID:          s.genID.Generate(),
		UserID:      userID,
		AccountID:   req.AccountID,
		Type:        txType,
		Date:        dateOnly(date),
		Description: description,
		Amount:      req.Amount.Round(2),
		CategoryID:  req.CategoryID,
		Reconciled:  req.Reconciled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkRefs(ctx, tx, userID, transaction.AccountID, transaction.CategoryID); err != nil {
			return err
		}
		tagIDs, err := s.guard.Tags(ctx, tx, userID, req.TagIDs)
		if err != nil {
			return err
		}
		transaction.TagIDs = tagIDs
		return s.repo.InsertTransaction(ctx, tx, &transaction)
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	s.emitAudit(ctx, userID, "transaction.created", "transaction", transaction.ID, map[string]any{
		"account_id": transaction.AccountID.String(),
		"type":       string(transaction.Type),
	})
	return transaction, nil
}

func (s *Service) checkRefs(ctx context.Context, tx *gorm.DB, userID, accountID snowflake.ID, categoryID *snowflake.ID) error {
	account, err := s.guard.Account(ctx, tx, userID, accountID)
	if err != nil {
		return err
	}
	if !account.Active {
		return domain.ErrAccountInactive
	}
	return s.guard.Category(ctx, tx, userID, categoryID)
}

func (s *Service) GetTransaction(ctx context.Context, userID, id snowflake.ID) (domain.Transaction, error) {
	transaction, err := s.repo.FindTransaction(ctx, s.db, userID, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	if transaction == nil {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return *transaction, nil
}

func (s *Service) ListTransactions(ctx context.Context, userID snowflake.ID, req domain.ListTransactionRequest) (domain.ListTransactionResponse, error) {
	if userID == 0 {
		return domain.ListTransactionResponse{}, domain.ErrInvalidUser
	}
	if req.Type != "" && !req.Type.Valid() {
		return domain.ListTransactionResponse{}, domain.ErrInvalidType
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return domain.ListTransactionResponse{}, domain.ErrInvalidDateRange
	}

	filter := domain.ListTransactionFilter{
		AccountID:  req.AccountID,
		CategoryID: req.CategoryID,
		Type:       req.Type,
		From:       req.From,
		To:         req.To,
		Reconciled: req.Reconciled,
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListTransactionResponse{}, err
	}
	if cursor != nil {
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListTransactionResponse{}, pagination.ErrInvalidPageToken
		}
		filter.BeforeID = &id
	}

	pageSize := req.Size()
	filter.Limit = pageSize + 1

	items, err := s.repo.ListTransactions(ctx, s.db, userID, filter)
	if err != nil {
		return domain.ListTransactionResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, pageSize, func(item *domain.Transaction) string {
		return item.ID.String()
	})
	return domain.ListTransactionResponse{PageInfo: pageInfo, Transactions: deref(items)}, nil
}

// UpdateTransaction edits a manual transaction. Date, description and
// amount changes on a transfer leg are mirrored onto the other leg.
func (s *Service) UpdateTransaction(ctx context.Context, userID, id snowflake.ID, req domain.UpdateTransactionRequest) (domain.Transaction, error) {
	var updated domain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transaction, err := s.repo.FindTransaction(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if transaction == nil {
			return domain.ErrNotFound
		}
		if transaction.InvoicePaymentID != nil {
			return domain.ErrLinkedToPayment
		}

		if req.AccountID != nil && *req.AccountID != transaction.AccountID {
			account, err := s.guard.Account(ctx, tx, userID, *req.AccountID)
			if err != nil {
				return err
			}
			if !account.Active {
				return domain.ErrAccountInactive
			}
			transaction.AccountID = account.ID
		}
		if req.Type != nil {
			if !req.Type.Valid() {
				return domain.ErrInvalidType
			}
			if transaction.TransferKey != nil && *req.Type != transaction.Type {
				return domain.ErrInvalidType
			}
			transaction.Type = *req.Type
		}
		if req.Date != nil {
			if req.Date.IsZero() {
				return domain.ErrInvalidDate
			}
			transaction.Date = dateOnly(*req.Date)
		}
		if req.Description != nil {
			description := strings.TrimSpace(*req.Description)
			if description == "" || len(description) > 255 {
				return domain.ErrInvalidDescription
			}
			transaction.Description = description
		}
		if req.Amount != nil {
			if !req.Amount.IsPositive() {
				return domain.ErrInvalidAmount
			}
			transaction.Amount = req.Amount.Round(2)
		}
		if req.CategoryID != nil {
			if err := s.guard.Category(ctx, tx, userID, req.CategoryID); err != nil {
				return err
			}
			transaction.CategoryID = req.CategoryID
		}
		transaction.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateTransaction(ctx, tx, transaction); err != nil {
			return err
		}
		if req.TagIDs != nil {
			tagIDs, err := s.guard.Tags(ctx, tx, userID, *req.TagIDs)
			if err != nil {
				return err
			}
			if err := s.repo.ReplaceTransactionTags(ctx, tx, transaction.ID, tagIDs); err != nil {
				return err
			}
			transaction.TagIDs = tagIDs
		}
		if transaction.TransferKey != nil {
			if err := s.mirrorTransferLeg(ctx, tx, transaction); err != nil {
				return err
			}
		}
		updated = *transaction
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return updated, nil
}

func (s *Service) mirrorTransferLeg(ctx context.Context, tx *gorm.DB, leg *domain.Transaction) error {
	legs, err := s.repo.FindTransferLegs(ctx, tx, leg.UserID, *leg.TransferKey)
	if err != nil {
		return err
	}
	for _, other := range legs {
		if other.ID == leg.ID {
			continue
		}
		other.Date = leg.Date
		other.Description = leg.Description
		other.Amount = leg.Amount
		other.UpdatedAt = leg.UpdatedAt
		if err := s.repo.UpdateTransaction(ctx, tx, other); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTransaction removes a manual transaction or both legs of a
// transfer. Occurrences generated from a recurring template go newest
// first and rewind the template's cursor to the freed date.
func (s *Service) DeleteTransaction(ctx context.Context, userID, id snowflake.ID) error {
	var deleted domain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transaction, err := s.repo.FindTransaction(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if transaction == nil {
			return domain.ErrNotFound
		}
		if transaction.InvoicePaymentID != nil {
			return domain.ErrLinkedToPayment
		}

		if transaction.RecurringTransactionID != nil {
			if err := s.ensureNewestOccurrence(ctx, tx, transaction); err != nil {
				return err
			}
		}

		if transaction.TransferKey != nil {
			legs, err := s.repo.FindTransferLegs(ctx, tx, userID, *transaction.TransferKey)
			if err != nil {
				return err
			}
			for _, leg := range legs {
				if err := s.repo.DeleteTransaction(ctx, tx, userID, leg.ID); err != nil {
					return err
				}
			}
		} else if err := s.repo.DeleteTransaction(ctx, tx, userID, transaction.ID); err != nil {
			return err
		}

		if transaction.RecurringTransactionID != nil {
			if err := s.repo.RewindRecurringCursor(ctx, tx, userID, *transaction.RecurringTransactionID, transaction.Date); err != nil {
				return err
			}
		}
		deleted = *transaction
		return nil
	})
	if err != nil {
		return err
	}

	s.emitAudit(ctx, userID, "transaction.deleted", "transaction", deleted.ID, map[string]any{
		"account_id": deleted.AccountID.String(),
	})
	return nil
}

// ensureNewestOccurrence fails when the template has an occurrence after
// target, ordered by date and then by id.
func (s *Service) ensureNewestOccurrence(ctx context.Context, tx *gorm.DB, target *domain.Transaction) error {
	occurrences, err := s.repo.ListRecurringOccurrences(ctx, tx, target.UserID, *target.RecurringTransactionID)
	if err != nil {
		return err
	}
	if len(occurrences) == 0 {
		return nil
	}
	sort.SliceStable(occurrences, func(i, j int) bool {
		return occursBefore(occurrences[i], occurrences[j])
	})

	newest := occurrences[len(occurrences)-1]
	if newest.ID == target.ID || !occursBefore(target, newest) {
		return nil
	}
	return &domain.NewerOccurrenceError{
		BlockingID:   newest.ID,
		BlockingDate: newest.Date,
	}
}

func occursBefore(a, b *domain.Transaction) bool {
	left, right := dateOnly(a.Date), dateOnly(b.Date)
	if !left.Equal(right) {
		return left.Before(right)
	}
	return a.ID < b.ID
}

func (s *Service) ToggleReconciled(ctx context.Context, userID, id snowflake.ID) (domain.Transaction, error) {
	var updated domain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transaction, err := s.repo.FindTransaction(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if transaction == nil {
			return domain.ErrNotFound
		}
		transaction.Reconciled = !transaction.Reconciled
		transaction.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateTransaction(ctx, tx, transaction); err != nil {
			return err
		}
		updated = *transaction
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return updated, nil
}

// CreateTransfer writes an OUT leg on the source account and an IN leg on
// the destination account, both carrying the same transfer key.
func (s *Service) CreateTransfer(ctx context.Context, userID snowflake.ID, req domain.CreateTransferRequest) (domain.Transfer, error) {
	if userID == 0 {
		return domain.Transfer{}, domain.ErrInvalidUser
	}
	if req.FromAccountID == req.ToAccountID {
		return domain.Transfer{}, domain.ErrInvalidToAccount
	}
	if !req.Amount.IsPositive() {
		return domain.Transfer{}, domain.ErrInvalidAmount
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Transfer"
	}
	if len(description) > 255 {
		return domain.Transfer{}, domain.ErrInvalidDescription
	}
	date := req.Date
	if date.IsZero() {
		date = s.clock.Now()
	}

	key := uuid.NewString()
	now := s.clock.Now()
	leg := func(accountID snowflake.ID, txType domain.TransactionType) domain.Transaction {
		return domain.Transaction{
			ID:          s.genID.Generate(),
			UserID:      userID,
			AccountID:   accountID,
			Type:        txType,
			Date:        dateOnly(date),
			Description: description,
			Amount:      req.Amount.Round(2),
			TransferKey: &key,
			TagIDs:      []snowflake.ID{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	transfer := domain.Transfer{
		TransferKey: key,
		Out:         leg(req.FromAccountID, domain.TransactionTypeOut),
		In:          leg(req.ToAccountID, domain.TransactionTypeIn),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, accountID := range []snowflake.ID{req.FromAccountID, req.ToAccountID} {
			if err := s.checkRefs(ctx, tx, userID, accountID, nil); err != nil {
				return err
			}
		}
		if err := s.repo.InsertTransaction(ctx, tx, &transfer.Out); err != nil {
			return err
		}
		return s.repo.InsertTransaction(ctx, tx, &transfer.In)
	})
	if err != nil {
		return domain.Transfer{}, err
	}

	s.log.Debug("transfer created",
		zap.String("transfer_key", key),
		zap.String("from_account_id", req.FromAccountID.String()),
		zap.String("to_account_id", req.ToAccountID.String()),
	)
	s.emitAudit(ctx, userID, "transfer.created", "transaction", transfer.Out.ID, map[string]any{
		"transfer_key": key,
	})
	return transfer, nil
}
