package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	chargedomain "github.com/smallbiznis/fatura/internal/charge/domain"
	"github.com/smallbiznis/fatura/internal/recurring/domain"
	"github.com/smallbiznis/fatura/internal/recurring/service"
	"github.com/smallbiznis/fatura/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID = snowflake.ID(1001)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrenceClampsDay(t *testing.T) {
	tests := []struct {
		current time.Time
		day     int
		want    time.Time
	}{
		{day(2024, time.January, 31), 31, day(2024, time.February, 29)},
		{day(2024, time.February, 29), 31, day(2024, time.March, 31)},
		{day(2023, time.January, 31), 31, day(2023, time.February, 28)},
		{day(2024, time.December, 15), 15, day(2025, time.January, 15)},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, service.NextOccurrence(tc.current, tc.day), tc.current.Format(time.DateOnly))
	}
}

func TestDue(t *testing.T) {
	end := day(2024, time.March, 1)
	assert.True(t, domain.Due(true, day(2024, time.March, 1), &end))
	assert.False(t, domain.Due(true, day(2024, time.April, 1), &end))
	assert.False(t, domain.Due(false, day(2024, time.January, 1), nil))
	assert.True(t, domain.Due(true, day(2030, time.January, 1), nil))
}

func newAccount(t *testing.T, h *testutil.Harness) accountdomain.Account {
	t.Helper()
	account, err := h.Accounts.CreateAccount(context.Background(), userID, accountdomain.CreateAccountRequest{Name: "Checking"})
	require.NoError(t, err)
	return account
}

func TestGenerateTransactionStopsAtEndDate(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	account := newAccount(t, h)

	end := day(2024, time.February, 28)
	template, err := h.Recurring.CreateTransaction(ctx, userID, domain.CreateRecurringTransactionRequest{
		AccountID:   account.ID,
		Type:        accountdomain.TransactionTypeIn,
		Description: "Salary",
		Amount:      decimal.RequireFromString("3000.00"),
		DayOfMonth:  31,
		StartDate:   day(2024, time.January, 31),
		EndDate:     &end,
	})
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.January, 31), template.NextDate)

	first, err := h.Recurring.GenerateTransaction(ctx, userID, template.ID)
	require.NoError(t, err)
	require.True(t, first.Generated())
	assert.Equal(t, day(2024, time.January, 31), first.Transaction.Date)
	require.NotNil(t, first.Transaction.RecurringTransactionID)
	assert.Equal(t, template.ID, *first.Transaction.RecurringTransactionID)
	assert.Equal(t, day(2024, time.February, 29), first.Template.NextDate)

	second, err := h.Recurring.GenerateTransaction(ctx, userID, template.ID)
	require.NoError(t, err)
	assert.False(t, second.Generated(), "feb 29 is past the end date")
}

func TestGenerateTransactionInactive(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	account := newAccount(t, h)

	template, err := h.Recurring.CreateTransaction(ctx, userID, domain.CreateRecurringTransactionRequest{
		AccountID:   account.ID,
		Description: "Streaming",
		Amount:      decimal.RequireFromString("39.90"),
		StartDate:   day(2024, time.January, 10),
	})
	require.NoError(t, err)

	inactive := false
	_, err = h.Recurring.UpdateTransaction(ctx, userID, template.ID, domain.UpdateRecurringTransactionRequest{Active: &inactive})
	require.NoError(t, err)

	result, err := h.Recurring.GenerateTransaction(ctx, userID, template.ID)
	require.NoError(t, err)
	assert.False(t, result.Generated())
	assert.Equal(t, day(2024, time.January, 10), result.Template.NextDate.UTC())
}

func TestCreateRecurringTransactionValidation(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	account := newAccount(t, h)

	_, err := h.Recurring.CreateTransaction(ctx, userID, domain.CreateRecurringTransactionRequest{
		AccountID: account.ID, Description: "x", Amount: decimal.RequireFromString("1"), DayOfMonth: 32,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDayOfMonth)

	_, err = h.Recurring.CreateTransaction(ctx, userID, domain.CreateRecurringTransactionRequest{
		AccountID: account.ID, Description: "x", Amount: decimal.RequireFromString("1"), Type: accountdomain.TransactionTypeTransfer,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	end := day(2023, time.January, 1)
	_, err = h.Recurring.CreateTransaction(ctx, userID, domain.CreateRecurringTransactionRequest{
		AccountID: account.ID, Description: "x", Amount: decimal.RequireFromString("1"),
		StartDate: day(2024, time.January, 1), EndDate: &end,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEndDate)

	_, err = h.Recurring.CreateTransaction(ctx, snowflake.ID(2002), domain.CreateRecurringTransactionRequest{
		AccountID: account.ID, Description: "x", Amount: decimal.RequireFromString("1"),
	})
	assert.ErrorIs(t, err, accountdomain.ErrAccountForbidden)
}

func TestGenerateCardPurchasePlacesInstallments(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	card, err := h.Cards.Create(ctx, userID, carddomain.CreateCardRequest{Name: "Visa", ClosingDay: 10, DueDay: 20})
	require.NoError(t, err)

	template, err := h.Recurring.CreateCardPurchase(ctx, userID, domain.CreateRecurringCardPurchaseRequest{
		CardID:            card.ID,
		Description:       "Insurance",
		TotalAmount:       decimal.RequireFromString("90.00"),
		InstallmentsTotal: 2,
		StartDate:         day(2024, time.March, 12),
	})
	require.NoError(t, err)

	result, err := h.Recurring.GenerateCardPurchase(ctx, userID, template.ID)
	require.NoError(t, err)
	require.True(t, result.Generated())
	require.Len(t, result.Purchase.Charges, 2)
	for _, charge := range result.Purchase.Charges {
		assert.Equal(t, "45.00", charge.TotalAmount.StringFixed(2))
		require.NotNil(t, charge.RecurringCardPurchaseID)
		assert.Equal(t, template.ID, *charge.RecurringCardPurchaseID)
	}
	assert.Equal(t, day(2024, time.April, 12), result.Template.NextDate)

	invoice, err := h.Invoices.Get(ctx, userID, result.Purchase.Charges[0].InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, int(time.April), invoice.Month, "the 12th is past the closing day")

	cardID := card.ID
	charges, err := h.Charges.List(ctx, userID, chargedomain.ListChargeRequest{CardID: &cardID})
	require.NoError(t, err)
	assert.Len(t, charges, 2)
}

func TestGenerateCardPurchaseRejectsInactiveCard(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	card, err := h.Cards.Create(ctx, userID, carddomain.CreateCardRequest{Name: "Visa", ClosingDay: 10, DueDay: 20})
	require.NoError(t, err)
	template, err := h.Recurring.CreateCardPurchase(ctx, userID, domain.CreateRecurringCardPurchaseRequest{
		CardID:      card.ID,
		Description: "Cloud storage",
		TotalAmount: decimal.RequireFromString("10.00"),
		StartDate:   day(2024, time.March, 1),
	})
	require.NoError(t, err)

	inactive := false
	_, err = h.Cards.Update(ctx, userID, card.ID, carddomain.UpdateCardRequest{Active: &inactive})
	require.NoError(t, err)

	_, err = h.Recurring.GenerateCardPurchase(ctx, userID, template.ID)
	assert.ErrorIs(t, err, carddomain.ErrCardInactive)

	current, err := h.Recurring.GetCardPurchase(ctx, userID, template.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.March, 1), current.NextDate.UTC(), "the cursor does not move on failure")
}

func TestGenerateDueCatchesUp(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	account := newAccount(t, h)

	_, err := h.Recurring.CreateTransaction(ctx, userID, domain.CreateRecurringTransactionRequest{
		AccountID:   account.ID,
		Description: "Rent",
		Amount:      decimal.RequireFromString("1200.00"),
		StartDate:   day(2024, time.January, 5),
	})
	require.NoError(t, err)

	card, err := h.Cards.Create(ctx, userID, carddomain.CreateCardRequest{Name: "Visa", ClosingDay: 10, DueDay: 20})
	require.NoError(t, err)
	_, err = h.Recurring.CreateCardPurchase(ctx, userID, domain.CreateRecurringCardPurchaseRequest{
		CardID:      card.ID,
		Description: "Music",
		TotalAmount: decimal.RequireFromString("21.90"),
		StartDate:   day(2024, time.February, 1),
	})
	require.NoError(t, err)

	summary, err := h.Recurring.GenerateDue(ctx, day(2024, time.April, 1), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Transactions, "jan, feb and mar rent")
	assert.Equal(t, 3, summary.CardPurchases, "feb, mar and apr music")

	again, err := h.Recurring.GenerateDue(ctx, day(2024, time.April, 1), 10)
	require.NoError(t, err)
	assert.Zero(t, again.Transactions)
	assert.Zero(t, again.CardPurchases)

	accountID := account.ID
	listed, err := h.Accounts.ListTransactions(ctx, userID, accountdomain.ListTransactionRequest{AccountID: &accountID})
	require.NoError(t, err)
	assert.Len(t, listed.Transactions, 3)
}

func TestDeleteTemplateKeepsOccurrences(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	account := newAccount(t, h)

	template, err := h.Recurring.CreateTransaction(ctx, userID, domain.CreateRecurringTransactionRequest{
		AccountID:   account.ID,
		Description: "Gym",
		Amount:      decimal.RequireFromString("89.00"),
		StartDate:   day(2024, time.January, 5),
	})
	require.NoError(t, err)
	generated, err := h.Recurring.GenerateTransaction(ctx, userID, template.ID)
	require.NoError(t, err)

	require.NoError(t, h.Recurring.DeleteTransaction(ctx, userID, template.ID))
	_, err = h.Recurring.GetTransaction(ctx, userID, template.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	occurrence, err := h.Accounts.GetTransaction(ctx, userID, generated.Transaction.ID)
	require.NoError(t, err)
	assert.Nil(t, occurrence.RecurringTransactionID)
}

func TestGenerateDueSkipsPastFailingTemplates(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	closed, err := h.Cards.Create(ctx, userID, carddomain.CreateCardRequest{Name: "Old card", ClosingDay: 10, DueDay: 20})
	require.NoError(t, err)
	for _, start := range []time.Time{day(2024, time.January, 1), day(2024, time.January, 2)} {
		_, err := h.Recurring.CreateCardPurchase(ctx, userID, domain.CreateRecurringCardPurchaseRequest{
			CardID:      closed.ID,
			Description: "Streaming",
			TotalAmount: decimal.RequireFromString("15.00"),
			StartDate:   start,
		})
		require.NoError(t, err)
	}
	inactive := false
	_, err = h.Cards.Update(ctx, userID, closed.ID, carddomain.UpdateCardRequest{Active: &inactive})
	require.NoError(t, err)

	other := snowflake.ID(2002)
	live, err := h.Cards.Create(ctx, other, carddomain.CreateCardRequest{Name: "Visa", ClosingDay: 10, DueDay: 20})
	require.NoError(t, err)
	template, err := h.Recurring.CreateCardPurchase(ctx, other, domain.CreateRecurringCardPurchaseRequest{
		CardID:      live.ID,
		Description: "Music",
		TotalAmount: decimal.RequireFromString("21.90"),
		StartDate:   day(2024, time.February, 1),
	})
	require.NoError(t, err)

	summary, err := h.Recurring.GenerateDue(ctx, day(2024, time.April, 1), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.CardPurchases, "feb, mar and apr music behind two failing templates")

	current, err := h.Recurring.GetCardPurchase(ctx, other, template.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.May, 1), current.NextDate.UTC())
}

func TestGenerateDueCapsOccurrencesPerPass(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	account := newAccount(t, h)

	_, err := h.Recurring.CreateTransaction(ctx, userID, domain.CreateRecurringTransactionRequest{
		AccountID:   account.ID,
		Description: "Rent",
		Amount:      decimal.RequireFromString("900.00"),
		StartDate:   day(2021, time.January, 5),
	})
	require.NoError(t, err)

	today := day(2024, time.April, 1)
	first, err := h.Recurring.GenerateDue(ctx, today, 10)
	require.NoError(t, err)
	assert.Equal(t, 24, first.Transactions)

	second, err := h.Recurring.GenerateDue(ctx, today, 10)
	require.NoError(t, err)
	assert.Equal(t, 15, second.Transactions, "jan 2023 through mar 2024")
}
