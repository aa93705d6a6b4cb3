package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
	auditdomain "github.com/smallbiznis/fatura/internal/audit/domain"
	"github.com/smallbiznis/fatura/internal/calendar"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	"github.com/smallbiznis/fatura/internal/clock"
	"github.com/smallbiznis/fatura/internal/config"
	invoicedomain "github.com/smallbiznis/fatura/internal/invoice/domain"
	"github.com/smallbiznis/fatura/internal/observability/metrics"
	"github.com/smallbiznis/fatura/internal/payment/domain"
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
	Invoices invoicedomain.Repository
	Engine   invoicedomain.Engine
	Cards    carddomain.Guard
	Accounts accountdomain.Repository
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
	invoices invoicedomain.Repository
	engine   invoicedomain.Engine
	cards    carddomain.Guard
	accounts accountdomain.Repository
	refs     accountdomain.Guard
	clock    clock.Clock
	finance  *config.FinanceConfigHolder
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		invoices: p.Invoices,
		engine:   p.Engine,
		cards:    p.Cards,
		accounts: p.Accounts,
		refs:     p.Refs,
		clock:    p.Clock,
		finance:  p.Finance,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

// Pay records a payment against an invoice. Every kind except DISCOUNT
// debits the chosen account through a linked OUT transaction.
func (s *Service) Pay(ctx context.Context, userID snowflake.ID, req domain.PayRequest) (domain.Reconciliation, error) {
	if userID == 0 {
		return domain.Reconciliation{}, domain.ErrInvalidUser
	}
	kind := req.Kind
	if kind == "" {
		kind = domain.PaymentKindTotal
	}
	if !kind.Valid() {
		return domain.Reconciliation{}, domain.ErrInvalidKind
	}
	if !req.Amount.IsPositive() {
		return domain.Reconciliation{}, domain.ErrInvalidAmount
	}
	accountID := req.AccountID
	if !kind.MovesMoney() {
		accountID = nil
	} else if accountID == nil {
		return domain.Reconciliation{}, domain.ErrInvalidAccount
	}
	date := req.Date
	if date.IsZero() {
		date = s.clock.Now()
	}

	now := s.clock.Now()
	payment := domain.InvoicePayment{
		ID:        s.genID.Generate(),
		UserID:    userID,
		InvoiceID: req.InvoiceID,
		AccountID: accountID,
		Date:      calendar.DateOf(date),
		Amount:    req.Amount.Round(2),
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var (
		result     domain.Reconciliation
		transition invoicedomain.Transition
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoices.Find(ctx, tx, userID, req.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if payment.AccountID != nil {
			if err := s.checkAccount(ctx, tx, userID, *payment.AccountID); err != nil {
				return err
			}
		}
		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return err
		}

		if kind.MovesMoney() {
			linked, err := s.createLinked(ctx, tx, invoice, &payment)
			if err != nil {
				return err
			}
			result.Transaction = linked
		}

		transition, err = s.engine.Recompute(ctx, tx, userID, invoice.ID)
		if err != nil {
			return err
		}
		result.Payment = payment
		result.InvoiceStatus = transition.To
		return nil
	})
	if err != nil {
		return domain.Reconciliation{}, err
	}

	s.metrics.RecordPayment(ctx, string(kind), "create")
	s.emitAudit(ctx, userID, "payment.created", payment.ID, map[string]any{
		"invoice_id": payment.InvoiceID.String(),
		"kind":       string(payment.Kind),
	})
	s.emitTransition(ctx, userID, transition)
	return result, nil
}

func (s *Service) checkAccount(ctx context.Context, tx *gorm.DB, userID, accountID snowflake.ID) error {
	account, err := s.refs.Account(ctx, tx, userID, accountID)
	if err != nil {
		return err
	}
	if !account.Active {
		return accountdomain.ErrAccountInactive
	}
	return nil
}

// Description is the text of the account movement paired with a payment,
// e.g. "Payment invoice Visa 03/2024".
func Description(prefix, cardName string, invoice *invoicedomain.Invoice) string {
	return fmt.Sprintf("%s %s %02d/%d", prefix, cardName, invoice.Month, invoice.Year)
}

func (s *Service) describe(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) (string, error) {
	card, err := s.cards.Card(ctx, tx, invoice.UserID, invoice.CardID)
	if err != nil {
		return "", err
	}
	return Description(s.finance.Get().PaymentDescriptionPrefix, card.Name, invoice), nil
}

func (s *Service) createLinked(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, payment *domain.InvoicePayment) (*accountdomain.Transaction, error) {
	description, err := s.describe(ctx, tx, invoice)
	if err != nil {
		return nil, err
	}
	paymentID := payment.ID
	now := s.clock.Now()
	linked := accountdomain.Transaction{
		ID:               s.genID.Generate(),
		UserID:           payment.UserID,
		AccountID:        *payment.AccountID,
		Type:             accountdomain.TransactionTypeOut,
		Date:             payment.Date,
		Description:      description,
		Amount:           payment.Amount,
		InvoicePaymentID: &paymentID,
		TagIDs:           []snowflake.ID{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.accounts.InsertTransaction(ctx, tx, &linked); err != nil {
		return nil, err
	}
	return &linked, nil
}

func (s *Service) Get(ctx context.Context, userID, id snowflake.ID) (domain.InvoicePayment, error) {
	payment, err := s.repo.Find(ctx, s.db, userID, id)
	if err != nil {
		return domain.InvoicePayment{}, err
	}
	if payment == nil {
		return domain.InvoicePayment{}, domain.ErrNotFound
	}
	return *payment, nil
}

func (s *Service) List(ctx context.Context, userID, invoiceID snowflake.ID) ([]domain.InvoicePayment, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	items, err := s.repo.ListByInvoice(ctx, s.db, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	payments := make([]domain.InvoicePayment, 0, len(items))
	for _, item := range items {
		payments = append(payments, *item)
	}
	return payments, nil
}

// Update edits a payment and keeps its linked transaction in step: updated
// in place, removed when the kind becomes DISCOUNT, created when it stops
// being one. A payment without a linked row is not an error.
func (s *Service) Update(ctx context.Context, userID, id snowflake.ID, req domain.UpdatePaymentRequest) (domain.Reconciliation, error) {
	var (
		result     domain.Reconciliation
		transition invoicedomain.Transition
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.Find(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrNotFound
		}
		invoice, err := s.invoices.Find(ctx, tx, userID, payment.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}

		if req.Kind != nil {
			if !req.Kind.Valid() {
				return domain.ErrInvalidKind
			}
			payment.Kind = *req.Kind
		}
		if req.AccountID != nil && payment.Kind.MovesMoney() {
			if err := s.checkAccount(ctx, tx, userID, *req.AccountID); err != nil {
				return err
			}
			payment.AccountID = req.AccountID
		}
		if !payment.Kind.MovesMoney() {
			payment.AccountID = nil
		}
		if req.Date != nil {
			if req.Date.IsZero() {
				return domain.ErrInvalidDate
			}
			payment.Date = calendar.DateOf(*req.Date)
		}
		if req.Amount != nil {
			if !req.Amount.IsPositive() {
				return domain.ErrInvalidAmount
			}
			payment.Amount = req.Amount.Round(2)
		}
		if payment.Kind.MovesMoney() && payment.AccountID == nil {
			return domain.ErrInvalidAccount
		}
		payment.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, payment); err != nil {
			return err
		}

		linked, err := s.accounts.FindTransactionByPayment(ctx, tx, userID, payment.ID)
		if err != nil {
			return err
		}
		switch {
		case !payment.Kind.MovesMoney() && linked != nil:
			if err := s.accounts.DeleteTransaction(ctx, tx, userID, linked.ID); err != nil {
				return err
			}
		case payment.Kind.MovesMoney() && linked == nil:
			created, err := s.createLinked(ctx, tx, invoice, payment)
			if err != nil {
				return err
			}
			result.Transaction = created
		case payment.Kind.MovesMoney():
			description, err := s.describe(ctx, tx, invoice)
			if err != nil {
				return err
			}
			linked.AccountID = *payment.AccountID
			linked.Date = payment.Date
			linked.Amount = payment.Amount
			linked.Description = description
			linked.UpdatedAt = payment.UpdatedAt
			if err := s.accounts.UpdateTransaction(ctx, tx, linked); err != nil {
				return err
			}
			result.Transaction = linked
		}

		transition, err = s.engine.Recompute(ctx, tx, userID, invoice.ID)
		if err != nil {
			return err
		}
		result.Payment = *payment
		result.InvoiceStatus = transition.To
		return nil
	})
	if err != nil {
		return domain.Reconciliation{}, err
	}

	s.metrics.RecordPayment(ctx, string(result.Payment.Kind), "update")
	s.emitAudit(ctx, userID, "payment.updated", id, map[string]any{
		"invoice_id": result.Payment.InvoiceID.String(),
		"kind":       string(result.Payment.Kind),
	})
	s.emitTransition(ctx, userID, transition)
	return result, nil
}

// Delete removes a payment and its linked transaction, then recomputes the
// invoice or drops it when nothing is left on it.
func (s *Service) Delete(ctx context.Context, userID, id snowflake.ID) (domain.DeleteResult, error) {
	var (
		result     domain.DeleteResult
		kind       domain.PaymentKind
		transition invoicedomain.Transition
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.Find(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrNotFound
		}
		kind = payment.Kind

		linked, err := s.accounts.FindTransactionByPayment(ctx, tx, userID, payment.ID)
		if err != nil {
			return err
		}
		if linked != nil {
			if err := s.accounts.DeleteTransaction(ctx, tx, userID, linked.ID); err != nil {
				return err
			}
		}
		if err := s.repo.Delete(ctx, tx, userID, payment.ID); err != nil {
			return err
		}

		result.InvoiceID = payment.InvoiceID
		if s.engine.DeleteIfEmpty(ctx, tx, userID, payment.InvoiceID) {
			result.InvoiceDeleted = true
			return nil
		}
		transition, err = s.engine.Recompute(ctx, tx, userID, payment.InvoiceID)
		return err
	})
	if err != nil {
		return domain.DeleteResult{}, err
	}

	s.metrics.RecordPayment(ctx, string(kind), "delete")
	s.emitAudit(ctx, userID, "payment.deleted", id, map[string]any{
		"invoice_id":      result.InvoiceID.String(),
		"invoice_deleted": result.InvoiceDeleted,
	})
	s.emitTransition(ctx, userID, transition)
	return result, nil
}

func (s *Service) emitTransition(ctx context.Context, userID snowflake.ID, t invoicedomain.Transition) {
	if s.auditSvc == nil || !t.Changed() {
		return
	}
	invoiceID := t.InvoiceID
	err := s.auditSvc.AuditLog(ctx, userID, "invoice.status_changed", "invoice", &invoiceID, map[string]any{
		"from_status": string(t.From),
		"to_status":   string(t.To),
	})
	if err != nil {
		s.log.Warn("audit log failed", zap.String("action", "invoice.status_changed"), zap.Error(err))
	}
}

func (s *Service) emitAudit(ctx context.Context, userID snowflake.ID, action string, paymentID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, userID, action, "invoice_payment", &paymentID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
