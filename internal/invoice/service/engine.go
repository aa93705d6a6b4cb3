package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/fatura/internal/calendar"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	"github.com/smallbiznis/fatura/internal/clock"
	"github.com/smallbiznis/fatura/internal/invoice/domain"
	"github.com/smallbiznis/fatura/internal/observability/metrics"
	"github.com/smallbiznis/fatura/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxRollForward bounds the walk past closed cycles. Ten years of
// closed invoices ahead of a purchase means the data is wrong.
const maxRollForward = 120

type EngineParams struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Engine struct {
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewEngine(p EngineParams) domain.Engine {
	return &Engine{
		log:     p.Log.Named("invoice.engine"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

// TargetPeriod returns the billing cycle a purchase dated date belongs
// to. Purchases on or after the effective closing day roll to the next
// month.
func TargetPeriod(card *carddomain.CreditCard, date time.Time) (int, time.Month) {
	year, month := date.Year(), date.Month()
	if date.Day() >= calendar.EffectiveDay(year, month, card.ClosingDay) {
		return calendar.NextPeriod(year, month)
	}
	return year, month
}

// DefaultDates returns the closing date of the cycle and the due date in
// the following month, both clamped to the month length.
func DefaultDates(card *carddomain.CreditCard, year int, month time.Month) (time.Time, time.Time) {
	closing := calendar.ClampedDate(year, month, card.ClosingDay)
	dueYear, dueMonth := calendar.NextPeriod(year, month)
	due := calendar.ClampedDate(dueYear, dueMonth, card.DueDay)
	return closing, due
}

func (e *Engine) AssignInvoiceFor(ctx context.Context, tx *gorm.DB, card *carddomain.CreditCard, date time.Time) (*domain.Invoice, error) {
	year, month := TargetPeriod(card, calendar.DateOf(date))
	return e.getOrCreate(ctx, tx, card, year, month)
}

func (e *Engine) NextInvoice(ctx context.Context, tx *gorm.DB, card *carddomain.CreditCard, invoice *domain.Invoice) (*domain.Invoice, error) {
	year, month := calendar.NextPeriod(invoice.Period())
	return e.getOrCreate(ctx, tx, card, year, month)
}

func (e *Engine) ResolveOpenInvoice(ctx context.Context, tx *gorm.DB, card *carddomain.CreditCard, date time.Time) (*domain.Invoice, error) {
	invoice, err := e.AssignInvoiceFor(ctx, tx, card, date)
	if err != nil {
		return nil, err
	}
	for hops := 0; !invoice.Status.AcceptsCharges(); hops++ {
		if hops >= maxRollForward {
			return nil, domain.ErrRollForwardLimit
		}
		invoice, err = e.NextInvoice(ctx, tx, card, invoice)
		if err != nil {
			return nil, err
		}
	}
	return invoice, nil
}

// getOrCreate inserts the cycle with ON CONFLICT DO NOTHING and reads it
// back, so a concurrent writer creating the same period is not an error.
func (e *Engine) getOrCreate(ctx context.Context, tx *gorm.DB, card *carddomain.CreditCard, year int, month time.Month) (*domain.Invoice, error) {
	existing, err := e.repo.FindByPeriod(ctx, tx, card.UserID, card.ID, year, int(month))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	closing, due := DefaultDates(card, year, month)
	now := e.clock.Now()
	invoice := domain.Invoice{
		ID:          e.genID.Generate(),
		UserID:      card.UserID,
		CardID:      card.ID,
		Year:        year,
		Month:       int(month),
		ClosingDate: &closing,
		DueDate:     &due,
		Status:      domain.InvoiceStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := e.repo.InsertIfAbsent(ctx, tx, &invoice)
	if err != nil && !db.IsDuplicateKeyErr(err) {
		return nil, err
	}
	if created {
		e.metrics.RecordInvoiceCreated(ctx)
		e.log.Debug("invoice created",
			zap.String("card_id", card.ID.String()),
			zap.Int("year", year),
			zap.Int("month", int(month)),
		)
		return &invoice, nil
	}

	existing, err = e.repo.FindByPeriod(ctx, tx, card.UserID, card.ID, year, int(month))
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	return existing, nil
}

func (e *Engine) Totals(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) (domain.Totals, error) {
	totals, err := e.totalsFor(ctx, tx, []snowflake.ID{invoiceID})
	if err != nil {
		return domain.Totals{}, err
	}
	return totals[invoiceID], nil
}

func (e *Engine) totalsFor(ctx context.Context, tx *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID]domain.Totals, error) {
	charges, err := e.repo.ChargeAmounts(ctx, tx, invoiceIDs)
	if err != nil {
		return nil, err
	}
	payments, err := e.repo.PaymentAmounts(ctx, tx, invoiceIDs)
	if err != nil {
		return nil, err
	}
	return computeTotals(invoiceIDs, charges, payments), nil
}

func computeTotals(invoiceIDs []snowflake.ID, charges map[snowflake.ID][]domain.StatementCharge, payments map[snowflake.ID][]domain.StatementPayment) map[snowflake.ID]domain.Totals {
	out := make(map[snowflake.ID]domain.Totals, len(invoiceIDs))
	for _, id := range invoiceIDs {
		chargeSum := decimal.Zero
		for _, c := range charges[id] {
			chargeSum = chargeSum.Add(c.TotalAmount)
		}
		paymentSum := decimal.Zero
		for _, p := range payments[id] {
			paymentSum = paymentSum.Add(p.Amount)
		}
		out[id] = domain.Totals{
			Charges:  chargeSum.Round(2),
			Payments: paymentSum.Round(2),
			Balance:  chargeSum.Sub(paymentSum).Round(2),
		}
	}
	return out
}

// NextStatus derives the status from totals. Without payments the invoice
// is CLOSED if it was ever closed and not reopened, otherwise OPEN.
func NextStatus(invoice *domain.Invoice, totals domain.Totals) domain.InvoiceStatus {
	if totals.Payments.IsPositive() {
		if !totals.Balance.IsPositive() {
			return domain.InvoiceStatusPaid
		}
		return domain.InvoiceStatusPartial
	}
	if invoice.ClosedAt != nil {
		return domain.InvoiceStatusClosed
	}
	return domain.InvoiceStatusOpen
}

func (e *Engine) Recompute(ctx context.Context, tx *gorm.DB, userID, invoiceID snowflake.ID) (domain.Transition, error) {
	invoice, err := e.repo.Find(ctx, tx, userID, invoiceID)
	if err != nil {
		return domain.Transition{}, err
	}
	if invoice == nil {
		return domain.Transition{}, domain.ErrNotFound
	}
	totals, err := e.Totals(ctx, tx, invoiceID)
	if err != nil {
		return domain.Transition{}, err
	}

	transition := domain.Transition{
		InvoiceID: invoice.ID,
		From:      invoice.Status,
		To:        NextStatus(invoice, totals),
	}
	if !transition.Changed() {
		return transition, nil
	}

	invoice.Status = transition.To
	invoice.UpdatedAt = e.clock.Now()
	if err := e.repo.UpdateStatus(ctx, tx, invoice); err != nil {
		return domain.Transition{}, err
	}
	e.metrics.RecordInvoiceTransition(ctx, string(transition.From), string(transition.To))
	return transition, nil
}

func (e *Engine) DeleteIfEmpty(ctx context.Context, tx *gorm.DB, userID, invoiceID snowflake.ID) bool {
	deleted := false
	err := tx.Transaction(func(sp *gorm.DB) error {
		count, err := e.repo.CountActivity(ctx, sp, invoiceID)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if err := e.repo.Delete(ctx, sp, userID, invoiceID); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		e.log.Warn("delete empty invoice failed",
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err),
		)
		return false
	}
	if deleted {
		e.metrics.RecordInvoiceDeleted(ctx)
	}
	return deleted
}
