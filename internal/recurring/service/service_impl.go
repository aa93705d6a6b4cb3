package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
	auditdomain "github.com/smallbiznis/fatura/internal/audit/domain"
	"github.com/smallbiznis/fatura/internal/calendar"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	chargedomain "github.com/smallbiznis/fatura/internal/charge/domain"
	"github.com/smallbiznis/fatura/internal/clock"
	"github.com/smallbiznis/fatura/internal/config"
	"github.com/smallbiznis/fatura/internal/observability/metrics"
	"github.com/smallbiznis/fatura/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	templateTransaction  = "recurring_transaction"
	templateCardPurchase = "recurring_card_purchase"

	// maxCatchUp bounds how many occurrences one template may produce in a
	// single GenerateDue pass.
	maxCatchUp = 24
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Accounts  accountdomain.Repository
	Refs      accountdomain.Guard
	Cards     carddomain.Guard
	Allocator chargedomain.Allocator
	Clock     clock.Clock
	Finance   *config.FinanceConfigHolder
	AuditSvc  auditdomain.Service `optional:"true"`
	Metrics   *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	accounts  accountdomain.Repository
	refs      accountdomain.Guard
	cards     carddomain.Guard
	allocator chargedomain.Allocator
	clock     clock.Clock
	finance   *config.FinanceConfigHolder
	auditSvc  auditdomain.Service
	metrics   *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("recurring.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		accounts:  p.Accounts,
		refs:      p.Refs,
		cards:     p.Cards,
		allocator: p.Allocator,
		clock:     p.Clock,
		finance:   p.Finance,
		auditSvc:  p.AuditSvc,
		metrics:   p.Metrics,
	}
}

// NextOccurrence is the date one month after current, on dayOfMonth
// clamped to that month's length.
func NextOccurrence(current time.Time, dayOfMonth int) time.Time {
	year, month := calendar.NextPeriod(current.Year(), current.Month())
	return calendar.ClampedDate(year, month, dayOfMonth)
}

func validDayOfMonth(day int) bool {
	return day >= 1 && day <= 31
}

func validDescription(raw string) (string, bool) {
	description := strings.TrimSpace(raw)
	return description, description != "" && len(description) <= 200
}

func (s *Service) CreateTransaction(ctx context.Context, userID snowflake.ID, req domain.CreateRecurringTransactionRequest) (domain.RecurringTransaction, error) {
	if userID == 0 {
		return domain.RecurringTransaction{}, domain.ErrInvalidUser
	}
	txType := req.Type
	if txType == "" {
		txType = accountdomain.TransactionTypeOut
	}
	if txType != accountdomain.TransactionTypeIn && txType != accountdomain.TransactionTypeOut {
		return domain.RecurringTransaction{}, domain.ErrInvalidType
	}
	description, ok := validDescription(req.Description)
	if !ok {
		return domain.RecurringTransaction{}, domain.ErrInvalidDescription
	}
	if !req.Amount.IsPositive() {
		return domain.RecurringTransaction{}, domain.ErrInvalidAmount
	}
	start := req.StartDate
	if start.IsZero() {
		start = s.clock.Now()
	}
	start = calendar.DateOf(start)
	day := req.DayOfMonth
	if day == 0 {
		day = start.Day()
	}
	if !validDayOfMonth(day) {
		return domain.RecurringTransaction{}, domain.ErrInvalidDayOfMonth
	}
	endDate, err := normalizeEnd(req.EndDate, start)
	if err != nil {
		return domain.RecurringTransaction{}, err
	}

	now := s.clock.Now()
	item := domain.RecurringTransaction{
		ID:          s.genID.Generate(),
		UserID:      userID,
		AccountID:   req.AccountID,
		Type:        txType,
		Description: description,
		Amount:      req.Amount.Round(2),
		CategoryID:  req.CategoryID,
		Frequency:   domain.FrequencyMonthly,
		DayOfMonth:  day,
		StartDate:   start,
		NextDate:    start,
		Active:      true,
		EndDate:     endDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.refs.Account(ctx, tx, userID, req.AccountID); err != nil {
			return err
		}
		if err := s.refs.Category(ctx, tx, userID, req.CategoryID); err != nil {
			return err
		}
		return s.repo.InsertTransaction(ctx, tx, &item)
	})
	if err != nil {
		return domain.RecurringTransaction{}, err
	}
	return item, nil
}

func normalizeEnd(end *time.Time, start time.Time) (*time.Time, error) {
	if end == nil {
		return nil, nil
	}
	date := calendar.DateOf(*end)
	if date.Before(start) {
		return nil, domain.ErrInvalidEndDate
	}
	return &date, nil
}

func (s *Service) GetTransaction(ctx context.Context, userID, id snowflake.ID) (domain.RecurringTransaction, error) {
	item, err := s.repo.FindTransaction(ctx, s.db, userID, id)
	if err != nil {
		return domain.RecurringTransaction{}, err
	}
	if item == nil {
		return domain.RecurringTransaction{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ListTransactions(ctx context.Context, userID snowflake.ID) ([]domain.RecurringTransaction, error) {
	items, err := s.repo.ListTransactions(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RecurringTransaction, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) UpdateTransaction(ctx context.Context, userID, id snowflake.ID, req domain.UpdateRecurringTransactionRequest) (domain.RecurringTransaction, error) {
	var updated domain.RecurringTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindTransaction(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		if req.Description != nil {
			description, ok := validDescription(*req.Description)
			if !ok {
				return domain.ErrInvalidDescription
			}
			item.Description = description
		}
		if req.Amount != nil {
			if !req.Amount.IsPositive() {
				return domain.ErrInvalidAmount
			}
			item.Amount = req.Amount.Round(2)
		}
		if req.CategoryID != nil {
			if err := s.refs.Category(ctx, tx, userID, req.CategoryID); err != nil {
				return err
			}
			item.CategoryID = req.CategoryID
		}
		if req.DayOfMonth != nil {
			if !validDayOfMonth(*req.DayOfMonth) {
				return domain.ErrInvalidDayOfMonth
			}
			item.DayOfMonth = *req.DayOfMonth
		}
		if req.NextDate != nil {
			if req.NextDate.IsZero() {
				return domain.ErrInvalidNextDate
			}
			item.NextDate = calendar.DateOf(*req.NextDate)
		}
		if req.Active != nil {
			item.Active = *req.Active
		}
		switch {
		case req.ClearEnd:
			item.EndDate = nil
		case req.EndDate != nil:
			end, err := normalizeEnd(req.EndDate, item.StartDate)
			if err != nil {
				return err
			}
			item.EndDate = end
		}
		item.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateTransaction(ctx, tx, item); err != nil {
			return err
		}
		updated = *item
		return nil
	})
	if err != nil {
		return domain.RecurringTransaction{}, err
	}
	return updated, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, userID, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindTransaction(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		return s.repo.DeleteTransaction(ctx, tx, userID, id)
	})
}

// GenerateTransaction posts the occurrence dated next_date and advances
// the cursor by one month. Inactive or expired templates produce nothing.
func (s *Service) GenerateTransaction(ctx context.Context, userID, id snowflake.ID) (domain.TransactionGeneration, error) {
	var result domain.TransactionGeneration
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindTransaction(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		result, err = s.generateTransactionTx(ctx, tx, item)
		return err
	})
	if err != nil {
		return domain.TransactionGeneration{}, err
	}
	s.afterTransactionGenerated(ctx, result)
	return result, nil
}

func (s *Service) generateTransactionTx(ctx context.Context, tx *gorm.DB, item *domain.RecurringTransaction) (domain.TransactionGeneration, error) {
	if !domain.Due(item.Active, item.NextDate, item.EndDate) {
		return domain.TransactionGeneration{Template: *item}, nil
	}

	now := s.clock.Now()
	templateID := item.ID
	occurrence := accountdomain.Transaction{
		ID:                     s.genID.Generate(),
		UserID:                 item.UserID,
		AccountID:              item.AccountID,
		Type:                   item.Type,
		Date:                   calendar.DateOf(item.NextDate),
		Description:            item.Description,
		Amount:                 item.Amount,
		CategoryID:             item.CategoryID,
		RecurringTransactionID: &templateID,
		TagIDs:                 []snowflake.ID{},
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.accounts.InsertTransaction(ctx, tx, &occurrence); err != nil {
		return domain.TransactionGeneration{}, err
	}

	item.NextDate = NextOccurrence(item.NextDate, item.DayOfMonth)
	item.UpdatedAt = now
	if err := s.repo.UpdateTransaction(ctx, tx, item); err != nil {
		return domain.TransactionGeneration{}, err
	}
	return domain.TransactionGeneration{Template: *item, Transaction: &occurrence}, nil
}

func (s *Service) afterTransactionGenerated(ctx context.Context, result domain.TransactionGeneration) {
	if !result.Generated() {
		return
	}
	s.metrics.RecordRecurringGenerated(ctx, templateTransaction)
	s.emitAudit(ctx, result.Template.UserID, "recurring_transaction.generated", templateTransaction, result.Template.ID, map[string]any{
		"transaction_id": result.Transaction.ID.String(),
		"date":           result.Transaction.Date.Format(time.DateOnly),
	})
}

func (s *Service) emitAudit(ctx context.Context, userID snowflake.ID, action, targetType string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, userID, action, targetType, &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
