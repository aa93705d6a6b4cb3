package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	"github.com/smallbiznis/fatura/internal/charge/domain"
	invoicedomain "github.com/smallbiznis/fatura/internal/invoice/domain"
	"github.com/smallbiznis/fatura/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID = snowflake.ID(1001)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func newCard(t *testing.T, h *testutil.Harness) carddomain.CreditCard {
	t.Helper()
	card, err := h.Cards.Create(context.Background(), userID, carddomain.CreateCardRequest{
		Name:       "Visa Gold",
		Limit:      decimal.RequireFromString("3000.00"),
		ClosingDay: 10,
		DueDay:     20,
	})
	require.NoError(t, err)
	return card
}

func TestPurchaseSplitsIntoMonthlyInstallments(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h)

	purchase, err := h.Charges.Purchase(ctx, userID, domain.PurchaseRequest{
		CardID:       card.ID,
		Date:         day(2024, time.January, 31),
		Description:  "Television",
		TotalAmount:  decimal.RequireFromString("100.00"),
		Installments: 3,
	})
	require.NoError(t, err)
	require.Len(t, purchase.Charges, 3)

	sum := decimal.Zero
	wantDates := []time.Time{day(2024, time.January, 31), day(2024, time.February, 29), day(2024, time.March, 31)}
	for i, charge := range purchase.Charges {
		amount := charge.TotalAmount.StringFixed(2)
		assert.Contains(t, []string{"33.33", "33.34"}, amount)
		assert.Equal(t, i+1, charge.InstallmentNumber)
		assert.Equal(t, 3, charge.InstallmentsTotal)
		assert.Equal(t, purchase.PurchaseID, charge.PurchaseID)
		assert.Equal(t, wantDates[i], charge.Date)
		sum = sum.Add(charge.TotalAmount)
	}
	assert.Equal(t, "100.00", sum.StringFixed(2))

	purchaseID := purchase.PurchaseID
	stored, err := h.Charges.List(ctx, userID, domain.ListChargeRequest{PurchaseID: &purchaseID})
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestPurchaseValidation(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h)

	tests := []struct {
		name string
		req  domain.PurchaseRequest
		err  error
	}{
		{"zero amount", domain.PurchaseRequest{CardID: card.ID, Description: "x", TotalAmount: decimal.Zero}, domain.ErrInvalidAmount},
		{"negative amount", domain.PurchaseRequest{CardID: card.ID, Description: "x", TotalAmount: decimal.RequireFromString("-1")}, domain.ErrInvalidAmount},
		{"too many installments", domain.PurchaseRequest{CardID: card.ID, Description: "x", TotalAmount: decimal.RequireFromString("100"), Installments: 49}, domain.ErrInvalidInstallments},
		{"amount below one cent per installment", domain.PurchaseRequest{CardID: card.ID, Description: "x", TotalAmount: decimal.RequireFromString("0.02"), Installments: 3}, domain.ErrInvalidAmount},
		{"blank description", domain.PurchaseRequest{CardID: card.ID, Description: "  ", TotalAmount: decimal.RequireFromString("10")}, domain.ErrInvalidDescription},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Charges.Purchase(ctx, userID, tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	var invoices int64
	require.NoError(t, h.DB.Model(&invoicedomain.Invoice{}).Count(&invoices).Error)
	assert.Zero(t, invoices, "rejected purchases leave no invoices behind")
}

func TestPurchaseRejectsForeignAndInactiveCards(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h)

	_, err := h.Charges.Purchase(ctx, snowflake.ID(2002), domain.PurchaseRequest{
		CardID:      card.ID,
		Description: "Coffee",
		TotalAmount: decimal.RequireFromString("5.00"),
	})
	assert.ErrorIs(t, err, carddomain.ErrCardForbidden)

	inactive := false
	_, err = h.Cards.Update(ctx, userID, card.ID, carddomain.UpdateCardRequest{Active: &inactive})
	require.NoError(t, err)
	_, err = h.Charges.Purchase(ctx, userID, domain.PurchaseRequest{
		CardID:      card.ID,
		Description: "Coffee",
		TotalAmount: decimal.RequireFromString("5.00"),
	})
	assert.ErrorIs(t, err, carddomain.ErrCardInactive)
}

func TestPurchaseRejectsForeignTags(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h)

	tag, err := h.Accounts.CreateTag(ctx, snowflake.ID(2002), accountdomain.CreateTagRequest{Name: "travel"})
	require.NoError(t, err)

	_, err = h.Charges.Purchase(ctx, userID, domain.PurchaseRequest{
		CardID:      card.ID,
		Description: "Hotel",
		TotalAmount: decimal.RequireFromString("250.00"),
		TagIDs:      []snowflake.ID{tag.ID},
	})
	assert.ErrorIs(t, err, accountdomain.ErrTagForbidden)
}

func TestUpdateDateMovesChargeAndDropsEmptyInvoice(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h)

	purchase, err := h.Charges.Purchase(ctx, userID, domain.PurchaseRequest{
		CardID:      card.ID,
		Date:        day(2024, time.March, 5),
		Description: "Shoes",
		TotalAmount: decimal.RequireFromString("120.00"),
	})
	require.NoError(t, err)
	charge := purchase.Charges[0]
	march := charge.InvoiceID

	moved := day(2024, time.April, 5)
	updated, err := h.Charges.Update(ctx, userID, charge.ID, domain.UpdateChargeRequest{Date: &moved})
	require.NoError(t, err)
	assert.NotEqual(t, march, updated.InvoiceID)

	_, err = h.Invoices.Get(ctx, userID, march)
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	april, err := h.Invoices.Get(ctx, userID, updated.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, int(time.April), april.Month)
	assert.Equal(t, "120.00", april.Totals.Charges.StringFixed(2))

	invoiceID := updated.InvoiceID
	onApril, err := h.Charges.List(ctx, userID, domain.ListChargeRequest{InvoiceID: &invoiceID})
	require.NoError(t, err)
	assert.Len(t, onApril, 1)
}

func TestUpdateKeepsInvoiceWhenDateUnchanged(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h)

	purchase, err := h.Charges.Purchase(ctx, userID, domain.PurchaseRequest{
		CardID:      card.ID,
		Date:        day(2024, time.March, 5),
		Description: "Shoes",
		TotalAmount: decimal.RequireFromString("120.00"),
	})
	require.NoError(t, err)
	charge := purchase.Charges[0]

	_, err = h.Invoices.Close(ctx, userID, charge.InvoiceID)
	require.NoError(t, err)

	amount := decimal.RequireFromString("99.90")
	description := "Running shoes"
	updated, err := h.Charges.Update(ctx, userID, charge.ID, domain.UpdateChargeRequest{
		TotalAmount: &amount,
		Description: &description,
	})
	require.NoError(t, err)
	assert.Equal(t, charge.InvoiceID, updated.InvoiceID)
	assert.Equal(t, "Running shoes", updated.Description)

	invoice, err := h.Invoices.Get(ctx, userID, charge.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, "99.90", invoice.Totals.Charges.StringFixed(2))
	assert.Equal(t, invoicedomain.InvoiceStatusClosed, invoice.Status)
}

func TestDeleteLastChargeDropsInvoice(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h)

	purchase, err := h.Charges.Purchase(ctx, userID, domain.PurchaseRequest{
		CardID:       card.ID,
		Date:         day(2024, time.March, 5),
		Description:  "Sofa",
		TotalAmount:  decimal.RequireFromString("900.00"),
		Installments: 2,
	})
	require.NoError(t, err)
	require.Len(t, purchase.Charges, 2)

	extra, err := h.Charges.Purchase(ctx, userID, domain.PurchaseRequest{
		CardID:      card.ID,
		Date:        day(2024, time.March, 6),
		Description: "Lamp",
		TotalAmount: decimal.RequireFromString("60.00"),
	})
	require.NoError(t, err)

	result, err := h.Charges.Delete(ctx, userID, purchase.Charges[1].ID)
	require.NoError(t, err)
	assert.True(t, result.InvoiceDeleted)
	assert.Equal(t, card.ID, result.CardID)

	result, err = h.Charges.Delete(ctx, userID, purchase.Charges[0].ID)
	require.NoError(t, err)
	assert.False(t, result.InvoiceDeleted, "the lamp is still on the march invoice")
	assert.Equal(t, extra.Charges[0].InvoiceID, result.InvoiceID)

	invoice, err := h.Invoices.Get(ctx, userID, result.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, "60.00", invoice.Totals.Balance.StringFixed(2))

	_, err = h.Charges.Delete(ctx, userID, purchase.Charges[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
