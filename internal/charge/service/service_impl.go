package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
	auditdomain "github.com/smallbiznis/fatura/internal/audit/domain"
	"github.com/smallbiznis/fatura/internal/calendar"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	"github.com/smallbiznis/fatura/internal/charge/domain"
	"github.com/smallbiznis/fatura/internal/clock"
	"github.com/smallbiznis/fatura/internal/config"
	invoicedomain "github.com/smallbiznis/fatura/internal/invoice/domain"
	"github.com/smallbiznis/fatura/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Engine   invoicedomain.Engine
	Cards    carddomain.Guard
	Refs     accountdomain.Guard
	Clock    clock.Clock
	Finance  *config.FinanceConfigHolder
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	engine   invoicedomain.Engine
	cards    carddomain.Guard
	refs     accountdomain.Guard
	clock    clock.Clock
	finance  *config.FinanceConfigHolder
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("charge.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		engine:   p.Engine,
		cards:    p.Cards,
		refs:     p.Refs,
		clock:    p.Clock,
		finance:  p.Finance,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func AsService(s *Service) domain.Service     { return s }
func AsAllocator(s *Service) domain.Allocator { return s }

func (s *Service) Purchase(ctx context.Context, userID snowflake.ID, req domain.PurchaseRequest) (domain.Purchase, error) {
	if userID == 0 {
		return domain.Purchase{}, domain.ErrInvalidUser
	}
	description := strings.TrimSpace(req.Description)
	if description == "" || len(description) > 200 {
		return domain.Purchase{}, domain.ErrInvalidDescription
	}
	installments := req.Installments
	if installments == 0 {
		installments = 1
	}
	if err := s.validateSplit(req.TotalAmount, installments); err != nil {
		return domain.Purchase{}, err
	}
	date := req.Date
	if date.IsZero() {
		date = s.clock.Now()
	}

	var allocation domain.Allocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := s.cards.Card(ctx, tx, userID, req.CardID)
		if err != nil {
			return err
		}
		if !card.Active {
			return carddomain.ErrCardInactive
		}
		if err := s.refs.Category(ctx, tx, userID, req.CategoryID); err != nil {
			return err
		}
		tagIDs, err := s.refs.Tags(ctx, tx, userID, req.TagIDs)
		if err != nil {
			return err
		}

		allocation, err = s.AllocateTx(ctx, tx, userID, card, domain.AllocateRequest{
			Date:         date,
			Description:  description,
			TotalAmount:  req.TotalAmount,
			Installments: installments,
			CategoryID:   req.CategoryID,
			TagIDs:       tagIDs,
		})
		return err
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	s.emitAudit(ctx, userID, "purchase.created", "purchase", allocation.PurchaseID, map[string]any{
		"card_id":      req.CardID.String(),
		"installments": installments,
	})
	s.emitTransitions(ctx, userID, allocation.Transitions)
	return allocation.Purchase, nil
}

func (s *Service) validateSplit(total decimal.Decimal, installments int) error {
	if installments < 1 || installments > s.finance.Get().MaxInstallments {
		return domain.ErrInvalidInstallments
	}
	if !total.IsPositive() || total.LessThan(MinimumTotal(installments)) {
		return domain.ErrInvalidAmount
	}
	return nil
}

// AllocateTx splits the purchase and places installment i, dated i-1
// months after the base date, on the first cycle still accepting charges.
// Every touched invoice is recomputed.
func (s *Service) AllocateTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID, card *carddomain.CreditCard, req domain.AllocateRequest) (domain.Allocation, error) {
	if req.Installments < 1 {
		return domain.Allocation{}, domain.ErrInvalidInstallments
	}
	if req.TotalAmount.LessThan(MinimumTotal(req.Installments)) {
		return domain.Allocation{}, domain.ErrInvalidAmount
	}

	base := calendar.DateOf(req.Date)
	parts := Split(req.TotalAmount, req.Installments)
	purchaseID := s.genID.Generate()
	now := s.clock.Now()
	tagIDs := req.TagIDs
	if tagIDs == nil {
		tagIDs = []snowflake.ID{}
	}

	allocation := domain.Allocation{
		Purchase: domain.Purchase{
			PurchaseID: purchaseID,
			Charges:    make([]domain.CardCharge, 0, len(parts)),
		},
	}
	touched := make([]snowflake.ID, 0, len(parts))
	seen := make(map[snowflake.ID]struct{}, len(parts))

	for i, amount := range parts {
		date := calendar.AddMonths(base, i)
		invoice, err := s.engine.ResolveOpenInvoice(ctx, tx, card, date)
		if err != nil {
			return domain.Allocation{}, err
		}
		charge := domain.CardCharge{
			ID:                      s.genID.Generate(),
			UserID:                  userID,
			CardID:                  card.ID,
			InvoiceID:               invoice.ID,
			PurchaseID:              purchaseID,
			Date:                    date,
			Description:             req.Description,
			TotalAmount:             amount,
			InstallmentNumber:       i + 1,
			InstallmentsTotal:       len(parts),
			CategoryID:              req.CategoryID,
			RecurringCardPurchaseID: req.RecurringCardPurchaseID,
			TagIDs:                  tagIDs,
			CreatedAt:               now,
			UpdatedAt:               now,
		}
		if err := s.repo.Insert(ctx, tx, &charge); err != nil {
			return domain.Allocation{}, err
		}
		allocation.Charges = append(allocation.Charges, charge)
		if _, ok := seen[invoice.ID]; !ok {
			seen[invoice.ID] = struct{}{}
			touched = append(touched, invoice.ID)
		}
	}

	for _, invoiceID := range touched {
		transition, err := s.engine.Recompute(ctx, tx, userID, invoiceID)
		if err != nil {
			return domain.Allocation{}, err
		}
		if transition.Changed() {
			allocation.Transitions = append(allocation.Transitions, transition)
		}
	}

	s.metrics.RecordChargesAllocated(ctx, len(parts))
	return allocation, nil
}

func (s *Service) Get(ctx context.Context, userID, id snowflake.ID) (domain.CardCharge, error) {
	charge, err := s.repo.Find(ctx, s.db, userID, id)
	if err != nil {
		return domain.CardCharge{}, err
	}
	if charge == nil {
		return domain.CardCharge{}, domain.ErrNotFound
	}
	return *charge, nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID, req domain.ListChargeRequest) ([]domain.CardCharge, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	items, err := s.repo.List(ctx, s.db, userID, domain.ListFilter{
		CardID:     req.CardID,
		InvoiceID:  req.InvoiceID,
		PurchaseID: req.PurchaseID,
	})
	if err != nil {
		return nil, err
	}
	charges := make([]domain.CardCharge, 0, len(items))
	for _, item := range items {
		charges = append(charges, *item)
	}
	return charges, nil
}

// Update edits one installment. A date change re-derives the invoice from
// (card, date); the invoice it leaves is recomputed and dropped when empty.
func (s *Service) Update(ctx context.Context, userID, id snowflake.ID, req domain.UpdateChargeRequest) (domain.CardCharge, error) {
	var (
		updated     domain.CardCharge
		transitions []invoicedomain.Transition
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		charge, err := s.repo.Find(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if charge == nil {
			return domain.ErrNotFound
		}
		previousInvoiceID := charge.InvoiceID

		if req.Description != nil {
			description := strings.TrimSpace(*req.Description)
			if description == "" || len(description) > 200 {
				return domain.ErrInvalidDescription
			}
			charge.Description = description
		}
		if req.TotalAmount != nil {
			if !req.TotalAmount.IsPositive() {
				return domain.ErrInvalidAmount
			}
			charge.TotalAmount = req.TotalAmount.Round(2)
		}
		if req.CategoryID != nil {
			if err := s.refs.Category(ctx, tx, userID, req.CategoryID); err != nil {
				return err
			}
			charge.CategoryID = req.CategoryID
		}
		if req.Date != nil {
			if req.Date.IsZero() {
				return domain.ErrInvalidDate
			}
			date := calendar.DateOf(*req.Date)
			if !date.Equal(calendar.DateOf(charge.Date)) {
				card, err := s.cards.Card(ctx, tx, userID, charge.CardID)
				if err != nil {
					return err
				}
				invoice, err := s.engine.ResolveOpenInvoice(ctx, tx, card, date)
				if err != nil {
					return err
				}
				charge.InvoiceID = invoice.ID
			}
			charge.Date = date
		}
		charge.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, charge); err != nil {
			return err
		}
		if req.TagIDs != nil {
			tagIDs, err := s.refs.Tags(ctx, tx, userID, *req.TagIDs)
			if err != nil {
				return err
			}
			if err := s.repo.ReplaceTags(ctx, tx, charge.ID, tagIDs); err != nil {
				return err
			}
			charge.TagIDs = tagIDs
		}

		transition, err := s.engine.Recompute(ctx, tx, userID, charge.InvoiceID)
		if err != nil {
			return err
		}
		transitions = appendChanged(transitions, transition)

		if previousInvoiceID != charge.InvoiceID {
			if !s.engine.DeleteIfEmpty(ctx, tx, userID, previousInvoiceID) {
				transition, err := s.engine.Recompute(ctx, tx, userID, previousInvoiceID)
				if err != nil {
					return err
				}
				transitions = appendChanged(transitions, transition)
			}
		}
		updated = *charge
		return nil
	})
	if err != nil {
		return domain.CardCharge{}, err
	}

	s.emitAudit(ctx, userID, "charge.updated", "card_charge", updated.ID, map[string]any{
		"invoice_id": updated.InvoiceID.String(),
	})
	s.emitTransitions(ctx, userID, transitions)
	return updated, nil
}

// Delete removes one installment, recomputes its invoice and drops the
// invoice when nothing is left on it.
func (s *Service) Delete(ctx context.Context, userID, id snowflake.ID) (domain.DeleteResult, error) {
	var (
		result      domain.DeleteResult
		transitions []invoicedomain.Transition
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		charge, err := s.repo.Find(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if charge == nil {
			return domain.ErrNotFound
		}
		if err := s.repo.Delete(ctx, tx, userID, charge.ID); err != nil {
			return err
		}
		result = domain.DeleteResult{CardID: charge.CardID, InvoiceID: charge.InvoiceID}

		if s.engine.DeleteIfEmpty(ctx, tx, userID, charge.InvoiceID) {
			result.InvoiceDeleted = true
			return nil
		}
		transition, err := s.engine.Recompute(ctx, tx, userID, charge.InvoiceID)
		if err != nil {
			return err
		}
		transitions = appendChanged(transitions, transition)
		return nil
	})
	if err != nil {
		return domain.DeleteResult{}, err
	}

	s.emitAudit(ctx, userID, "charge.deleted", "card_charge", id, map[string]any{
		"invoice_id":      result.InvoiceID.String(),
		"invoice_deleted": result.InvoiceDeleted,
	})
	s.emitTransitions(ctx, userID, transitions)
	return result, nil
}

func appendChanged(transitions []invoicedomain.Transition, t invoicedomain.Transition) []invoicedomain.Transition {
	if t.Changed() {
		return append(transitions, t)
	}
	return transitions
}

func (s *Service) emitTransitions(ctx context.Context, userID snowflake.ID, transitions []invoicedomain.Transition) {
	for _, t := range transitions {
		s.emitAudit(ctx, userID, "invoice.status_changed", "invoice", t.InvoiceID, map[string]any{
			"from_status": string(t.From),
			"to_status":   string(t.To),
		})
	}
}

func (s *Service) emitAudit(ctx context.Context, userID snowflake.ID, action, targetType string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, userID, action, targetType, &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

