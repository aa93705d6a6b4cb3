package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/fatura/internal/audit/domain"
	"github.com/smallbiznis/fatura/internal/calendar"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	"github.com/smallbiznis/fatura/internal/clock"
	"github.com/smallbiznis/fatura/internal/config"
	"github.com/smallbiznis/fatura/internal/invoice/domain"
	"github.com/smallbiznis/fatura/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	Engine   domain.Engine
	Cards    carddomain.Guard
	Clock    clock.Clock
	Finance  *config.FinanceConfigHolder
	Renderer domain.StatementRenderer `optional:"true"`
	AuditSvc auditdomain.Service      `optional:"true"`
	Metrics  *metrics.Metrics         `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	engine   domain.Engine
	cards    carddomain.Guard
	clock    clock.Clock
	finance  *config.FinanceConfigHolder
	renderer domain.StatementRenderer
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		repo:     p.Repo,
		engine:   p.Engine,
		cards:    p.Cards,
		clock:    p.Clock,
		finance:  p.Finance,
		renderer: p.Renderer,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, userID, id snowflake.ID) (domain.InvoiceView, error) {
	invoice, err := s.repo.Find(ctx, s.db, userID, id)
	if err != nil {
		return domain.InvoiceView{}, err
	}
	if invoice == nil {
		return domain.InvoiceView{}, domain.ErrNotFound
	}
	views, err := s.buildViews(ctx, s.db, userID, []*domain.Invoice{invoice})
	if err != nil {
		return domain.InvoiceView{}, err
	}
	return views[0], nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID, req domain.ListInvoiceRequest) ([]domain.InvoiceView, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if req.Year != nil && (*req.Year < 1900 || *req.Year > 9999) {
		return nil, domain.ErrInvalidYear
	}

	items, err := s.repo.List(ctx, s.db, userID, domain.ListFilter{
		CardID: req.CardID,
		Status: req.Status,
		Year:   req.Year,
	})
	if err != nil {
		return nil, err
	}
	return s.buildViews(ctx, s.db, userID, items)
}

// Close moves an OPEN or PARTIAL invoice to CLOSED and makes sure the
// following cycle exists to receive later purchases.
func (s *Service) Close(ctx context.Context, userID, id snowflake.ID) (domain.InvoiceView, error) {
	var (
		closed *domain.Invoice
		from   domain.InvoiceStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.Find(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if invoice.Status != domain.InvoiceStatusOpen && invoice.Status != domain.InvoiceStatusPartial {
			return domain.ErrInvalidTransition
		}
		card, err := s.cards.Card(ctx, tx, userID, invoice.CardID)
		if err != nil {
			return err
		}

		year, month := invoice.Period()
		closingDate, dueDate := DefaultDates(card, year, month)
		if invoice.ClosingDate == nil {
			invoice.ClosingDate = &closingDate
		}
		if invoice.DueDate == nil {
			invoice.DueDate = &dueDate
		}
		now := s.clock.Now()
		from = invoice.Status
		invoice.Status = domain.InvoiceStatusClosed
		invoice.ClosedAt = &now
		invoice.UpdatedAt = now
		if err := s.repo.UpdateStatus(ctx, tx, invoice); err != nil {
			return err
		}
		if _, err := s.engine.NextInvoice(ctx, tx, card, invoice); err != nil {
			return err
		}
		closed = invoice
		return nil
	})
	if err != nil {
		return domain.InvoiceView{}, err
	}

	s.metrics.RecordInvoiceTransition(ctx, string(from), string(domain.InvoiceStatusClosed))
	s.emitAudit(ctx, userID, "invoice.closed", closed, map[string]any{
		"previous_status": string(from),
	})
	return s.Get(ctx, userID, id)
}

// Reopen moves a CLOSED invoice back to OPEN. Charges already rolled to
// later cycles stay where they are.
func (s *Service) Reopen(ctx context.Context, userID, id snowflake.ID) (domain.InvoiceView, error) {
	var reopened *domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.Find(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if invoice.Status != domain.InvoiceStatusClosed {
			return domain.ErrInvalidTransition
		}
		invoice.Status = domain.InvoiceStatusOpen
		invoice.ClosedAt = nil
		invoice.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateStatus(ctx, tx, invoice); err != nil {
			return err
		}
		reopened = invoice
		return nil
	})
	if err != nil {
		return domain.InvoiceView{}, err
	}

	s.metrics.RecordInvoiceTransition(ctx, string(domain.InvoiceStatusClosed), string(domain.InvoiceStatusOpen))
	s.emitAudit(ctx, userID, "invoice.reopened", reopened, map[string]any{
		"previous_status": string(domain.InvoiceStatusClosed),
	})
	return s.Get(ctx, userID, id)
}

func (s *Service) Upcoming(ctx context.Context, userID snowflake.ID, today time.Time, days int) ([]domain.InvoiceView, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if days < 0 {
		return nil, domain.ErrInvalidDays
	}
	if days == 0 {
		days = s.finance.Get().UpcomingDueDays
	}
	if today.IsZero() {
		today = s.clock.Now()
	}
	from := calendar.DateOf(today)
	to := from.AddDate(0, 0, days)

	items, err := s.repo.ListUnpaidDueBetween(ctx, s.db, userID, from, to)
	if err != nil {
		return nil, err
	}
	return s.buildViews(ctx, s.db, userID, items)
}

func (s *Service) Statement(ctx context.Context, userID, id snowflake.ID) (domain.Statement, error) {
	invoice, err := s.repo.Find(ctx, s.db, userID, id)
	if err != nil {
		return domain.Statement{}, err
	}
	if invoice == nil {
		return domain.Statement{}, domain.ErrNotFound
	}

	ids := []snowflake.ID{invoice.ID}
	charges, err := s.repo.ChargeAmounts(ctx, s.db, ids)
	if err != nil {
		return domain.Statement{}, err
	}
	payments, err := s.repo.PaymentAmounts(ctx, s.db, ids)
	if err != nil {
		return domain.Statement{}, err
	}
	names, err := s.repo.CardNames(ctx, s.db, userID, []snowflake.ID{invoice.CardID})
	if err != nil {
		return domain.Statement{}, err
	}

	return domain.Statement{
		Invoice: domain.InvoiceView{
			Invoice:  *invoice,
			CardName: names[invoice.CardID],
			Totals:   computeTotals(ids, charges, payments)[invoice.ID],
		},
		Charges:  charges[invoice.ID],
		Payments: payments[invoice.ID],
	}, nil
}

func (s *Service) RenderStatement(ctx context.Context, userID, id snowflake.ID) ([]byte, error) {
	if s.renderer == nil {
		return nil, domain.ErrRendererMissing
	}
	statement, err := s.Statement(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.renderer.RenderStatement(ctx, statement)
}

func (s *Service) buildViews(ctx context.Context, db *gorm.DB, userID snowflake.ID, items []*domain.Invoice) ([]domain.InvoiceView, error) {
	views := make([]domain.InvoiceView, 0, len(items))
	if len(items) == 0 {
		return views, nil
	}

	ids := make([]snowflake.ID, 0, len(items))
	cardIDs := make([]snowflake.ID, 0, len(items))
	seenCards := make(map[snowflake.ID]struct{}, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		if _, ok := seenCards[item.CardID]; !ok {
			seenCards[item.CardID] = struct{}{}
			cardIDs = append(cardIDs, item.CardID)
		}
	}

	charges, err := s.repo.ChargeAmounts(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.PaymentAmounts(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	names, err := s.repo.CardNames(ctx, db, userID, cardIDs)
	if err != nil {
		return nil, err
	}
	totals := computeTotals(ids, charges, payments)

	for _, item := range items {
		views = append(views, domain.InvoiceView{
			Invoice:  *item,
			CardName: names[item.CardID],
			Totals:   totals[item.ID],
		})
	}
	return views, nil
}

func (s *Service) emitAudit(ctx context.Context, userID snowflake.ID, action string, invoice *domain.Invoice, extra map[string]any) {
	if s.auditSvc == nil || invoice == nil {
		return
	}
	metadata := map[string]any{
		"card_id": invoice.CardID.String(),
		"year":    invoice.Year,
		"month":   invoice.Month,
		"status":  string(invoice.Status),
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	targetID := invoice.ID
	if err := s.auditSvc.AuditLog(ctx, userID, action, "invoice", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
