package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	chargedomain "github.com/smallbiznis/fatura/internal/charge/domain"
	"github.com/smallbiznis/fatura/internal/invoice/domain"
	"github.com/smallbiznis/fatura/internal/invoice/service"
	"github.com/smallbiznis/fatura/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const userID = snowflake.ID(1001)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func newCard(t *testing.T, h *testutil.Harness, closing, due int) carddomain.CreditCard {
	t.Helper()
	card, err := h.Cards.Create(context.Background(), userID, carddomain.CreateCardRequest{
		Name:       "Nubank",
		Brand:      "Mastercard",
		Limit:      decimal.RequireFromString("5000.00"),
		ClosingDay: closing,
		DueDay:     due,
	})
	require.NoError(t, err)
	return card
}

func TestTargetPeriod(t *testing.T) {
	card := &carddomain.CreditCard{ClosingDay: 10, DueDay: 20}
	tests := []struct {
		name  string
		date  time.Time
		year  int
		month time.Month
	}{
		{"before closing day", day(2024, time.March, 9), 2024, time.March},
		{"on closing day", day(2024, time.March, 10), 2024, time.April},
		{"after closing day", day(2024, time.March, 25), 2024, time.April},
		{"december rolls the year", day(2024, time.December, 15), 2025, time.January},
		{"first of month", day(2024, time.January, 1), 2024, time.January},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			year, month := service.TargetPeriod(card, tc.date)
			assert.Equal(t, tc.year, year)
			assert.Equal(t, tc.month, month)
		})
	}
}

func TestDefaultDates(t *testing.T) {
	card := &carddomain.CreditCard{ClosingDay: 28, DueDay: 5}

	closing, due := service.DefaultDates(card, 2024, time.December)
	assert.Equal(t, day(2024, time.December, 28), closing)
	assert.Equal(t, day(2025, time.January, 5), due)

	closing, due = service.DefaultDates(card, 2023, time.February)
	assert.Equal(t, day(2023, time.February, 28), closing)
	assert.Equal(t, day(2023, time.March, 5), due)
}

func TestNextStatus(t *testing.T) {
	closedAt := time.Now()
	totals := func(charges, payments string) domain.Totals {
		c := decimal.RequireFromString(charges)
		p := decimal.RequireFromString(payments)
		return domain.Totals{Charges: c, Payments: p, Balance: c.Sub(p)}
	}
	tests := []struct {
		name    string
		invoice domain.Invoice
		totals  domain.Totals
		want    domain.InvoiceStatus
	}{
		{"fully paid", domain.Invoice{Status: domain.InvoiceStatusClosed}, totals("200.00", "200.00"), domain.InvoiceStatusPaid},
		{"overpaid", domain.Invoice{Status: domain.InvoiceStatusOpen}, totals("100.00", "150.00"), domain.InvoiceStatusPaid},
		{"partially paid", domain.Invoice{Status: domain.InvoiceStatusOpen}, totals("200.00", "50.00"), domain.InvoiceStatusPartial},
		{"paid falls back to open", domain.Invoice{Status: domain.InvoiceStatusPaid}, totals("200.00", "0"), domain.InvoiceStatusOpen},
		{"closed stays closed", domain.Invoice{Status: domain.InvoiceStatusClosed, ClosedAt: &closedAt}, totals("200.00", "0"), domain.InvoiceStatusClosed},
		{"partial after close falls back to closed", domain.Invoice{Status: domain.InvoiceStatusPartial, ClosedAt: &closedAt}, totals("200.00", "0"), domain.InvoiceStatusClosed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, service.NextStatus(&tc.invoice, tc.totals))
		})
	}
}

func TestAssignInvoiceForIsIdempotent(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h, 10, 20)

	var first, second *domain.Invoice
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = h.Engine.AssignInvoiceFor(ctx, tx, &card, day(2024, time.March, 9))
		if err != nil {
			return err
		}
		second, err = h.Engine.AssignInvoiceFor(ctx, tx, &card, day(2024, time.March, 9))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2024, first.Year)
	assert.Equal(t, int(time.March), first.Month)
	assert.Equal(t, domain.InvoiceStatusOpen, first.Status)
	require.NotNil(t, first.ClosingDate)
	require.NotNil(t, first.DueDate)
	assert.Equal(t, day(2024, time.March, 10), first.ClosingDate.UTC())
	assert.Equal(t, day(2024, time.April, 20), first.DueDate.UTC())

	var count int64
	require.NoError(t, h.DB.Model(&domain.Invoice{}).Where("card_id = ?", card.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAssignInvoiceForClosingDayBoundary(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h, 10, 20)

	var ninth, tenth *domain.Invoice
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		ninth, err = h.Engine.AssignInvoiceFor(ctx, tx, &card, day(2024, time.March, 9))
		if err != nil {
			return err
		}
		tenth, err = h.Engine.AssignInvoiceFor(ctx, tx, &card, day(2024, time.March, 10))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int(time.March), ninth.Month)
	assert.Equal(t, int(time.April), tenth.Month)
	assert.NotEqual(t, ninth.ID, tenth.ID)
}

func TestResolveOpenInvoiceSkipsClosedCycles(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h, 10, 20)

	first, err := h.Charges.Purchase(ctx, userID, chargedomain.PurchaseRequest{
		CardID:      card.ID,
		Date:        day(2024, time.March, 5),
		Description: "Groceries",
		TotalAmount: decimal.RequireFromString("80.00"),
	})
	require.NoError(t, err)
	march := first.Charges[0].InvoiceID

	closed, err := h.Invoices.Close(ctx, userID, march)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	second, err := h.Charges.Purchase(ctx, userID, chargedomain.PurchaseRequest{
		CardID:      card.ID,
		Date:        day(2024, time.March, 6),
		Description: "Pharmacy",
		TotalAmount: decimal.RequireFromString("20.00"),
	})
	require.NoError(t, err)

	landed, err := h.Invoices.Get(ctx, userID, second.Charges[0].InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, 2024, landed.Year)
	assert.Equal(t, int(time.April), landed.Month)

	march2, err := h.Invoices.Get(ctx, userID, march)
	require.NoError(t, err)
	assert.Equal(t, "80.00", march2.Totals.Charges.StringFixed(2))
	assert.Equal(t, domain.InvoiceStatusClosed, march2.Status)
}

func TestInstallmentsRollPastClosedCycle(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h, 10, 20)

	seed, err := h.Charges.Purchase(ctx, userID, chargedomain.PurchaseRequest{
		CardID:      card.ID,
		Date:        day(2024, time.March, 1),
		Description: "Gym",
		TotalAmount: decimal.RequireFromString("50.00"),
	})
	require.NoError(t, err)
	_, err = h.Invoices.Close(ctx, userID, seed.Charges[0].InvoiceID)
	require.NoError(t, err)

	purchase, err := h.Charges.Purchase(ctx, userID, chargedomain.PurchaseRequest{
		CardID:       card.ID,
		Date:         day(2024, time.February, 5),
		Description:  "Laptop",
		TotalAmount:  decimal.RequireFromString("300.00"),
		Installments: 3,
	})
	require.NoError(t, err)
	require.Len(t, purchase.Charges, 3)

	months := make([]int, 0, 3)
	for _, charge := range purchase.Charges {
		invoice, err := h.Invoices.Get(ctx, userID, charge.InvoiceID)
		require.NoError(t, err)
		months = append(months, invoice.Month)
	}
	assert.Equal(t, []int{int(time.February), int(time.April), int(time.April)}, months)
}

func TestCloseAndReopen(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h, 10, 20)

	purchase, err := h.Charges.Purchase(ctx, userID, chargedomain.PurchaseRequest{
		CardID:      card.ID,
		Date:        day(2024, time.May, 2),
		Description: "Books",
		TotalAmount: decimal.RequireFromString("42.50"),
	})
	require.NoError(t, err)
	invoiceID := purchase.Charges[0].InvoiceID

	_, err = h.Invoices.Reopen(ctx, userID, invoiceID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	closed, err := h.Invoices.Close(ctx, userID, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusClosed, closed.Status)

	cardID := card.ID
	views, err := h.Invoices.List(ctx, userID, domain.ListInvoiceRequest{CardID: &cardID})
	require.NoError(t, err)
	require.Len(t, views, 2, "closing projects the following cycle")

	_, err = h.Invoices.Close(ctx, userID, invoiceID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	reopened, err := h.Invoices.Reopen(ctx, userID, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusOpen, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
	assert.Equal(t, "42.50", reopened.Totals.Balance.StringFixed(2))
}

func TestInvoiceNotVisibleToOtherUsers(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h, 10, 20)

	purchase, err := h.Charges.Purchase(ctx, userID, chargedomain.PurchaseRequest{
		CardID:      card.ID,
		Date:        day(2024, time.May, 2),
		Description: "Books",
		TotalAmount: decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)

	_, err = h.Invoices.Get(ctx, snowflake.ID(2002), purchase.Charges[0].InvoiceID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.Invoices.Close(ctx, snowflake.ID(2002), purchase.Charges[0].InvoiceID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpcomingListsUnpaidInvoicesDueSoon(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h, 10, 20)

	_, err := h.Charges.Purchase(ctx, userID, chargedomain.PurchaseRequest{
		CardID:      card.ID,
		Date:        day(2024, time.March, 5),
		Description: "Groceries",
		TotalAmount: decimal.RequireFromString("30.00"),
	})
	require.NoError(t, err)

	due, err := h.Invoices.Upcoming(ctx, userID, day(2024, time.April, 15), 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Nubank", due[0].CardName)

	none, err := h.Invoices.Upcoming(ctx, userID, day(2024, time.April, 1), 3)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = h.Invoices.Upcoming(ctx, userID, day(2024, time.April, 1), -1)
	assert.ErrorIs(t, err, domain.ErrInvalidDays)
}

// racingRepo simulates another writer creating the period between the
// engine's lookup and its insert.
type racingRepo struct {
	domain.Repository
	staleReads int
	insertErr  error
}

func (r *racingRepo) FindByPeriod(ctx context.Context, db *gorm.DB, userID, cardID snowflake.ID, year, month int) (*domain.Invoice, error) {
	if r.staleReads > 0 {
		r.staleReads--
		return nil, nil
	}
	return r.Repository.FindByPeriod(ctx, db, userID, cardID, year, month)
}

func (r *racingRepo) InsertIfAbsent(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) (bool, error) {
	if r.insertErr != nil {
		return false, r.insertErr
	}
	return r.Repository.InsertIfAbsent(ctx, db, invoice)
}

func TestAssignInvoiceForRefetchesAfterConcurrentInsert(t *testing.T) {
	tests := []struct {
		name      string
		insertErr error
	}{
		{"conflict clause skips the insert", nil},
		{"duplicate key error", gorm.ErrDuplicatedKey},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := testutil.NewHarness(t)
			ctx := context.Background()
			card := newCard(t, h, 10, 20)

			var existing *domain.Invoice
			require.NoError(t, h.DB.Transaction(func(tx *gorm.DB) error {
				var err error
				existing, err = h.Engine.AssignInvoiceFor(ctx, tx, &card, day(2024, time.March, 9))
				return err
			}))

			repo := &racingRepo{Repository: h.InvoiceRepo, staleReads: 1, insertErr: tc.insertErr}
			engine := service.NewEngine(service.EngineParams{Log: zap.NewNop(), GenID: h.GenID, Repo: repo, Clock: h.Clock})

			var got *domain.Invoice
			require.NoError(t, h.DB.Transaction(func(tx *gorm.DB) error {
				var err error
				got, err = engine.AssignInvoiceFor(ctx, tx, &card, day(2024, time.March, 9))
				return err
			}))
			assert.Zero(t, repo.staleReads, "the stale lookup was consumed")
			assert.Equal(t, existing.ID, got.ID)

			var count int64
			require.NoError(t, h.DB.Model(&domain.Invoice{}).Where("card_id = ?", card.ID).Count(&count).Error)
			assert.EqualValues(t, 1, count)
		})
	}
}

func TestAssignInvoiceForSurfacesInsertFailure(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h, 10, 20)

	boom := errors.New("connection reset")
	repo := &racingRepo{Repository: h.InvoiceRepo, insertErr: boom}
	engine := service.NewEngine(service.EngineParams{Log: zap.NewNop(), GenID: h.GenID, Repo: repo, Clock: h.Clock})

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		_, err := engine.AssignInvoiceFor(ctx, tx, &card, day(2024, time.March, 9))
		return err
	})
	assert.ErrorIs(t, err, boom)
}
