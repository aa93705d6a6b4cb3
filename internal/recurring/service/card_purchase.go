package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/fatura/internal/calendar"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	chargedomain "github.com/smallbiznis/fatura/internal/charge/domain"
	chargeservice "github.com/smallbiznis/fatura/internal/charge/service"
	"github.com/smallbiznis/fatura/internal/recurring/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) validInstallments(total decimal.Decimal, n int) error {
	if n < 1 || n > s.finance.Get().MaxInstallments {
		return domain.ErrInvalidInstallments
	}
	if !total.IsPositive() || total.LessThan(chargeservice.MinimumTotal(n)) {
		return domain.ErrInvalidAmount
	}
	return nil
}

func (s *Service) CreateCardPurchase(ctx context.Context, userID snowflake.ID, req domain.CreateRecurringCardPurchaseRequest) (domain.RecurringCardPurchase, error) {
	if userID == 0 {
		return domain.RecurringCardPurchase{}, domain.ErrInvalidUser
	}
	description, ok := validDescription(req.Description)
	if !ok {
		return domain.RecurringCardPurchase{}, domain.ErrInvalidDescription
	}
	installments := req.InstallmentsTotal
	if installments == 0 {
		installments = 1
	}
	if err := s.validInstallments(req.TotalAmount, installments); err != nil {
		return domain.RecurringCardPurchase{}, err
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
		return domain.RecurringCardPurchase{}, domain.ErrInvalidDayOfMonth
	}
	endDate, err := normalizeEnd(req.EndDate, start)
	if err != nil {
		return domain.RecurringCardPurchase{}, err
	}

	now := s.clock.Now()
	item := domain.RecurringCardPurchase{
		ID:                s.genID.Generate(),
		UserID:            userID,
		CardID:            req.CardID,
		Description:       description,
		TotalAmount:       req.TotalAmount.Round(2),
		InstallmentsTotal: installments,
		CategoryID:        req.CategoryID,
		Frequency:         domain.FrequencyMonthly,
		DayOfMonth:        day,
		NextDate:          start,
		Active:            true,
		EndDate:           endDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.cards.Card(ctx, tx, userID, req.CardID); err != nil {
			return err
		}
		if err := s.refs.Category(ctx, tx, userID, req.CategoryID); err != nil {
			return err
		}
		return s.repo.InsertCardPurchase(ctx, tx, &item)
	})
	if err != nil {
		return domain.RecurringCardPurchase{}, err
	}
	return item, nil
}

func (s *Service) GetCardPurchase(ctx context.Context, userID, id snowflake.ID) (domain.RecurringCardPurchase, error) {
	item, err := s.repo.FindCardPurchase(ctx, s.db, userID, id)
	if err != nil {
		return domain.RecurringCardPurchase{}, err
	}
	if item == nil {
		return domain.RecurringCardPurchase{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ListCardPurchases(ctx context.Context, userID snowflake.ID) ([]domain.RecurringCardPurchase, error) {
	items, err := s.repo.ListCardPurchases(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RecurringCardPurchase, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) UpdateCardPurchase(ctx context.Context, userID, id snowflake.ID, req domain.UpdateRecurringCardPurchaseRequest) (domain.RecurringCardPurchase, error) {
	var updated domain.RecurringCardPurchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindCardPurchase(ctx, tx, userID, id)
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
		total := item.TotalAmount
		if req.TotalAmount != nil {
			total = req.TotalAmount.Round(2)
		}
		installments := item.InstallmentsTotal
		if req.InstallmentsTotal != nil {
			installments = *req.InstallmentsTotal
		}
		if err := s.validInstallments(total, installments); err != nil {
			return err
		}
		item.TotalAmount = total
		item.InstallmentsTotal = installments
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
			end := calendar.DateOf(*req.EndDate)
			item.EndDate = &end
		}
		item.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateCardPurchase(ctx, tx, item); err != nil {
			return err
		}
		updated = *item
		return nil
	})
	if err != nil {
		return domain.RecurringCardPurchase{}, err
	}
	return updated, nil
}

func (s *Service) DeleteCardPurchase(ctx context.Context, userID, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindCardPurchase(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		return s.repo.DeleteCardPurchase(ctx, tx, userID, id)
	})
}

// GenerateCardPurchase allocates the purchase dated next_date onto the
// card's invoices and advances the cursor by one month.
func (s *Service) GenerateCardPurchase(ctx context.Context, userID, id snowflake.ID) (domain.CardPurchaseGeneration, error) {
	var (
		result     domain.CardPurchaseGeneration
		allocation chargedomain.Allocation
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindCardPurchase(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		result, allocation, err = s.generateCardPurchaseTx(ctx, tx, item)
		return err
	})
	if err != nil {
		return domain.CardPurchaseGeneration{}, err
	}
	s.afterCardPurchaseGenerated(ctx, result, allocation)
	return result, nil
}

func (s *Service) generateCardPurchaseTx(ctx context.Context, tx *gorm.DB, item *domain.RecurringCardPurchase) (domain.CardPurchaseGeneration, chargedomain.Allocation, error) {
	if !domain.Due(item.Active, item.NextDate, item.EndDate) {
		return domain.CardPurchaseGeneration{Template: *item}, chargedomain.Allocation{}, nil
	}
	card, err := s.cards.Card(ctx, tx, item.UserID, item.CardID)
	if err != nil {
		return domain.CardPurchaseGeneration{}, chargedomain.Allocation{}, err
	}
	if !card.Active {
		return domain.CardPurchaseGeneration{}, chargedomain.Allocation{}, carddomain.ErrCardInactive
	}

	templateID := item.ID
	allocation, err := s.allocator.AllocateTx(ctx, tx, item.UserID, card, chargedomain.AllocateRequest{
		Date:                    calendar.DateOf(item.NextDate),
		Description:             item.Description,
		TotalAmount:             item.TotalAmount,
		Installments:            item.InstallmentsTotal,
		CategoryID:              item.CategoryID,
		RecurringCardPurchaseID: &templateID,
	})
	if err != nil {
		return domain.CardPurchaseGeneration{}, chargedomain.Allocation{}, err
	}

	item.NextDate = NextOccurrence(item.NextDate, item.DayOfMonth)
	item.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateCardPurchase(ctx, tx, item); err != nil {
		return domain.CardPurchaseGeneration{}, chargedomain.Allocation{}, err
	}
	purchase := allocation.Purchase
	return domain.CardPurchaseGeneration{Template: *item, Purchase: &purchase}, allocation, nil
}

func (s *Service) afterCardPurchaseGenerated(ctx context.Context, result domain.CardPurchaseGeneration, allocation chargedomain.Allocation) {
	if !result.Generated() {
		return
	}
	s.metrics.RecordRecurringGenerated(ctx, templateCardPurchase)
	s.emitAudit(ctx, result.Template.UserID, "recurring_card_purchase.generated", templateCardPurchase, result.Template.ID, map[string]any{
		"purchase_id":  result.Purchase.PurchaseID.String(),
		"installments": len(result.Purchase.Charges),
	})
	for _, transition := range allocation.Transitions {
		if !transition.Changed() {
			continue
		}
		invoiceID := transition.InvoiceID
		if s.auditSvc == nil {
			continue
		}
		if err := s.auditSvc.AuditLog(ctx, result.Template.UserID, "invoice.status_changed", "invoice", &invoiceID, map[string]any{
			"from_status": string(transition.From),
			"to_status":   string(transition.To),
		}); err != nil {
			s.log.Warn("audit log failed", zap.String("action", "invoice.status_changed"), zap.Error(err))
		}
	}
}

// GenerateDue walks due templates in batches until none are left. Each
// template is generated in its own transaction. Templates that fail, or
// that reached maxCatchUp occurrences in this pass, are excluded from the
// following batches so they cannot starve the templates queued behind them.
func (s *Service) GenerateDue(ctx context.Context, today time.Time, batchSize int) (domain.DueSummary, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	today = calendar.DateOf(today)
	var summary domain.DueSummary

	produced := map[snowflake.ID]int{}
	var done []snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		items, err := s.repo.ListDueTransactions(ctx, s.db.WithContext(ctx), today, done, batchSize)
		if err != nil {
			return summary, err
		}
		if len(items) == 0 {
			break
		}
		for _, item := range items {
			var result domain.TransactionGeneration
			err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var err error
				result, err = s.generateTransactionTx(ctx, tx, item)
				return err
			})
			if err != nil {
				s.log.Warn("recurring transaction generation failed", zap.String("template_id", item.ID.String()), zap.Error(err))
				done = append(done, item.ID)
				continue
			}
			if !result.Generated() {
				done = append(done, item.ID)
				continue
			}
			summary.Transactions++
			s.afterTransactionGenerated(ctx, result)
			produced[item.ID]++
			if produced[item.ID] >= maxCatchUp {
				done = append(done, item.ID)
			}
		}
	}

	produced = map[snowflake.ID]int{}
	done = nil
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		items, err := s.repo.ListDueCardPurchases(ctx, s.db.WithContext(ctx), today, done, batchSize)
		if err != nil {
			return summary, err
		}
		if len(items) == 0 {
			break
		}
		for _, item := range items {
			var (
				result     domain.CardPurchaseGeneration
				allocation chargedomain.Allocation
			)
			err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var err error
				result, allocation, err = s.generateCardPurchaseTx(ctx, tx, item)
				return err
			})
			if err != nil {
				s.log.Warn("recurring card purchase generation failed", zap.String("template_id", item.ID.String()), zap.Error(err))
				done = append(done, item.ID)
				continue
			}
			if !result.Generated() {
				done = append(done, item.ID)
				continue
			}
			summary.CardPurchases++
			s.afterCardPurchaseGenerated(ctx, result, allocation)
			produced[item.ID]++
			if produced[item.ID] >= maxCatchUp {
				done = append(done, item.ID)
			}
		}
	}
	return summary, nil
}
