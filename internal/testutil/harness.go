package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
	accountrepo "github.com/smallbiznis/fatura/internal/account/repository"
	accountservice "github.com/smallbiznis/fatura/internal/account/service"
	auditdomain "github.com/smallbiznis/fatura/internal/audit/domain"
	auditrepo "github.com/smallbiznis/fatura/internal/audit/repository"
	auditservice "github.com/smallbiznis/fatura/internal/audit/service"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	cardrepo "github.com/smallbiznis/fatura/internal/card/repository"
	cardservice "github.com/smallbiznis/fatura/internal/card/service"
	chargedomain "github.com/smallbiznis/fatura/internal/charge/domain"
	chargerepo "github.com/smallbiznis/fatura/internal/charge/repository"
	chargeservice "github.com/smallbiznis/fatura/internal/charge/service"
	"github.com/smallbiznis/fatura/internal/clock"
	"github.com/smallbiznis/fatura/internal/config"
	invoicedomain "github.com/smallbiznis/fatura/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/fatura/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/fatura/internal/invoice/service"
	paymentdomain "github.com/smallbiznis/fatura/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/fatura/internal/payment/repository"
	paymentservice "github.com/smallbiznis/fatura/internal/payment/service"
	recurringdomain "github.com/smallbiznis/fatura/internal/recurring/domain"
	recurringrepo "github.com/smallbiznis/fatura/internal/recurring/repository"
	recurringservice "github.com/smallbiznis/fatura/internal/recurring/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Harness holds every finance service bound to one test database.
type Harness struct {
	DB    *gorm.DB
	Clock *clock.FakeClock
	GenID *snowflake.Node

	AccountRepo accountdomain.Repository
	InvoiceRepo invoicedomain.Repository

	Audit     auditdomain.Service
	Accounts  accountdomain.Service
	Cards     carddomain.Service
	Engine    invoicedomain.Engine
	Invoices  invoicedomain.Service
	Charges   chargedomain.Service
	Payments  paymentdomain.Service
	Recurring recurringdomain.Service
}

// Option adjusts the harness before services are built.
type Option func(*options)

type options struct {
	finance  config.FinanceConfig
	renderer invoicedomain.StatementRenderer
	now      time.Time
}

func WithFinance(cfg config.FinanceConfig) Option {
	return func(o *options) { o.finance = cfg }
}

func WithRenderer(r invoicedomain.StatementRenderer) Option {
	return func(o *options) { o.renderer = r }
}

func WithNow(now time.Time) Option {
	return func(o *options) { o.now = now }
}

func NewHarness(t *testing.T, opts ...Option) *Harness {
	t.Helper()

	o := options{
		finance: config.DefaultFinanceConfig(),
		now:     time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(&o)
	}

	db := NewDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	clk := clock.NewFakeClock(o.now)
	finance := config.NewStaticFinanceConfigHolder(o.finance)

	audit := auditservice.NewService(auditservice.ServiceParam{DB: db, Log: log, GenID: node, Repo: auditrepo.Provide()})

	accountRepo := accountrepo.Provide()
	refs := accountservice.NewGuard(accountRepo)
	accounts := accountservice.NewService(accountservice.ServiceParam{
		DB: db, Log: log, GenID: node, Repo: accountRepo, Guard: refs,
		Clock: clk, Finance: finance, AuditSvc: audit,
	})

	cardRepo := cardrepo.Provide()
	cardGuard := cardservice.NewGuard(cardRepo)
	cards := cardservice.NewService(cardservice.ServiceParam{
		DB: db, Log: log, GenID: node, Repo: cardRepo, Clock: clk, AuditSvc: audit,
	})

	invoiceRepo := invoicerepo.Provide()
	engine := invoiceservice.NewEngine(invoiceservice.EngineParams{
		Log: log, GenID: node, Repo: invoiceRepo, Clock: clk,
	})
	invoices := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB: db, Log: log, Repo: invoiceRepo, Engine: engine, Cards: cardGuard,
		Clock: clk, Finance: finance, Renderer: o.renderer, AuditSvc: audit,
	})

	charges := chargeservice.NewService(chargeservice.ServiceParam{
		DB: db, Log: log, GenID: node, Repo: chargerepo.Provide(), Engine: engine,
		Cards: cardGuard, Refs: refs, Clock: clk, Finance: finance, AuditSvc: audit,
	})

	payments := paymentservice.NewService(paymentservice.ServiceParam{
		DB: db, Log: log, GenID: node, Repo: paymentrepo.Provide(), Invoices: invoiceRepo,
		Engine: engine, Cards: cardGuard, Accounts: accountRepo, Refs: refs,
		Clock: clk, Finance: finance, AuditSvc: audit,
	})

	recurring := recurringservice.NewService(recurringservice.ServiceParam{
		DB: db, Log: log, GenID: node, Repo: recurringrepo.Provide(), Accounts: accountRepo,
		Refs: refs, Cards: cardGuard, Allocator: chargeservice.AsAllocator(charges),
		Clock: clk, Finance: finance, AuditSvc: audit,
	})

	return &Harness{
		DB:          db,
		Clock:       clk,
		GenID:       node,
		AccountRepo: accountRepo,
		InvoiceRepo: invoiceRepo,
		Audit:       audit,
		Accounts:    accounts,
		Cards:       cards,
		Engine:      engine,
		Invoices:    invoices,
		Charges:     chargeservice.AsService(charges),
		Payments:    payments,
		Recurring:   recurring,
	}
}
