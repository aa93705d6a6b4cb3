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
	invoicedomain "github.com/smallbiznis/fatura/internal/invoice/domain"
	"github.com/smallbiznis/fatura/internal/payment/domain"
	"github.com/smallbiznis/fatura/internal/payment/service"
	"github.com/smallbiznis/fatura/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID = snowflake.ID(1001)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	h       *testutil.Harness
	account accountdomain.Account
	invoice snowflake.ID
}

// setup creates a checking account and a March invoice carrying 200.00.
func setup(t *testing.T) fixture {
	t.Helper()
	h := testutil.NewHarness(t)
	ctx := context.Background()

	account, err := h.Accounts.CreateAccount(ctx, userID, accountdomain.CreateAccountRequest{
		Name:           "Checking",
		InitialBalance: decimal.RequireFromString("1000.00"),
	})
	require.NoError(t, err)

	card, err := h.Cards.Create(ctx, userID, carddomain.CreateCardRequest{
		Name:       "Visa",
		ClosingDay: 10,
		DueDay:     20,
	})
	require.NoError(t, err)

	purchase, err := h.Charges.Purchase(ctx, userID, chargedomain.PurchaseRequest{
		CardID:      card.ID,
		Date:        day(2024, time.March, 2),
		Description: "Groceries",
		TotalAmount: decimal.RequireFromString("200.00"),
	})
	require.NoError(t, err)

	return fixture{h: h, account: account, invoice: purchase.Charges[0].InvoiceID}
}

func (f fixture) balance(t *testing.T) string {
	t.Helper()
	balances, err := f.h.Accounts.Balances(context.Background(), userID)
	require.NoError(t, err)
	for _, b := range balances {
		if b.AccountID == f.account.ID {
			return b.Balance.StringFixed(2)
		}
	}
	t.Fatalf("no balance for account %s", f.account.ID)
	return ""
}

func TestTotalPaymentMarksInvoicePaidAndDeleteReverts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	accountID := f.account.ID

	result, err := f.h.Payments.Pay(ctx, userID, domain.PayRequest{
		InvoiceID: f.invoice,
		AccountID: &accountID,
		Date:      day(2024, time.April, 18),
		Amount:    decimal.RequireFromString("200.00"),
		Kind:      domain.PaymentKindTotal,
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, result.InvoiceStatus)

	invoice, err := f.h.Invoices.Get(ctx, userID, f.invoice)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, invoice.Status)
	assert.Equal(t, "0.00", invoice.Totals.Balance.StringFixed(2))
	assert.Equal(t, "800.00", f.balance(t))

	deleted, err := f.h.Payments.Delete(ctx, userID, result.Payment.ID)
	require.NoError(t, err)
	assert.False(t, deleted.InvoiceDeleted)

	invoice, err = f.h.Invoices.Get(ctx, userID, f.invoice)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusOpen, invoice.Status)
	assert.Equal(t, "200.00", invoice.Totals.Balance.StringFixed(2))
	assert.Equal(t, "1000.00", f.balance(t))

	linked, err := f.h.AccountRepo.FindTransactionByPayment(ctx, f.h.DB, userID, result.Payment.ID)
	require.NoError(t, err)
	assert.Nil(t, linked)
}

func TestPartialPaymentThenRemainder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	accountID := f.account.ID

	first, err := f.h.Payments.Pay(ctx, userID, domain.PayRequest{
		InvoiceID: f.invoice,
		AccountID: &accountID,
		Date:      day(2024, time.April, 10),
		Amount:    decimal.RequireFromString("50.00"),
		Kind:      domain.PaymentKindPartial,
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPartial, first.InvoiceStatus)

	second, err := f.h.Payments.Pay(ctx, userID, domain.PayRequest{
		InvoiceID: f.invoice,
		Date:      day(2024, time.April, 12),
		Amount:    decimal.RequireFromString("150.00"),
		Kind:      domain.PaymentKindDiscount,
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, second.InvoiceStatus)

	payments, err := f.h.Payments.List(ctx, userID, f.invoice)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	assert.Equal(t, "950.00", f.balance(t))
}

func TestDiscountNeverCreatesTransaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	result, err := f.h.Payments.Pay(ctx, userID, domain.PayRequest{
		InvoiceID: f.invoice,
		Date:      day(2024, time.April, 1),
		Amount:    decimal.RequireFromString("20.00"),
		Kind:      domain.PaymentKindDiscount,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Transaction)

	linked, err := f.h.AccountRepo.FindTransactionByPayment(ctx, f.h.DB, userID, result.Payment.ID)
	require.NoError(t, err)
	assert.Nil(t, linked)
	assert.Equal(t, "1000.00", f.balance(t))
}

func TestDiscountDropsAccount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	unknown := snowflake.ID(424242)

	result, err := f.h.Payments.Pay(ctx, userID, domain.PayRequest{
		InvoiceID: f.invoice,
		AccountID: &unknown,
		Date:      day(2024, time.April, 1),
		Amount:    decimal.RequireFromString("20.00"),
		Kind:      domain.PaymentKindDiscount,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Payment.AccountID)

	stored, err := f.h.Payments.Get(ctx, userID, result.Payment.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AccountID)

	accountID := f.account.ID
	paid, err := f.h.Payments.Pay(ctx, userID, domain.PayRequest{
		InvoiceID: f.invoice,
		AccountID: &accountID,
		Date:      day(2024, time.April, 2),
		Amount:    decimal.RequireFromString("30.00"),
		Kind:      domain.PaymentKindPartial,
	})
	require.NoError(t, err)
	require.NotNil(t, paid.Payment.AccountID)

	discount := domain.PaymentKindDiscount
	updated, err := f.h.Payments.Update(ctx, userID, paid.Payment.ID, domain.UpdatePaymentRequest{Kind: &discount, AccountID: &unknown})
	require.NoError(t, err)
	assert.Nil(t, updated.Payment.AccountID)

	stored, err = f.h.Payments.Get(ctx, userID, paid.Payment.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AccountID)
	assert.Equal(t, "1000.00", f.balance(t))
}

func TestMoneyMovingKindsCreateMatchingTransaction(t *testing.T) {
	for _, kind := range []domain.PaymentKind{domain.PaymentKindTotal, domain.PaymentKindPartial, domain.PaymentKindAdvance} {
		t.Run(string(kind), func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			accountID := f.account.ID
			date := day(2024, time.April, 3)

			result, err := f.h.Payments.Pay(ctx, userID, domain.PayRequest{
				InvoiceID: f.invoice,
				AccountID: &accountID,
				Date:      date,
				Amount:    decimal.RequireFromString("75.25"),
				Kind:      kind,
			})
			require.NoError(t, err)
			require.NotNil(t, result.Transaction)

			linked, err := f.h.AccountRepo.FindTransactionByPayment(ctx, f.h.DB, userID, result.Payment.ID)
			require.NoError(t, err)
			require.NotNil(t, linked)
			assert.Equal(t, accountID, linked.AccountID)
			assert.Equal(t, accountdomain.TransactionTypeOut, linked.Type)
			assert.Equal(t, date, linked.Date.UTC())
			assert.Equal(t, "75.25", linked.Amount.StringFixed(2))
			assert.Equal(t, "Payment invoice Visa 03/2024", linked.Description)
		})
	}
}

func TestMoneyMovingPaymentRequiresAccount(t *testing.T) {
	f := setup(t)

	_, err := f.h.Payments.Pay(context.Background(), userID, domain.PayRequest{
		InvoiceID: f.invoice,
		Amount:    decimal.RequireFromString("10.00"),
		Kind:      domain.PaymentKindAdvance,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)
}

func TestUpdateKeepsLinkedTransactionInStep(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	accountID := f.account.ID

	result, err := f.h.Payments.Pay(ctx, userID, domain.PayRequest{
		InvoiceID: f.invoice,
		AccountID: &accountID,
		Date:      day(2024, time.April, 3),
		Amount:    decimal.RequireFromString("60.00"),
		Kind:      domain.PaymentKindPartial,
	})
	require.NoError(t, err)
	paymentID := result.Payment.ID

	amount := decimal.RequireFromString("200.00")
	total := domain.PaymentKindTotal
	updated, err := f.h.Payments.Update(ctx, userID, paymentID, domain.UpdatePaymentRequest{Amount: &amount, Kind: &total})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, updated.InvoiceStatus)
	require.NotNil(t, updated.Transaction)
	assert.Equal(t, "200.00", updated.Transaction.Amount.StringFixed(2))
	assert.Equal(t, "800.00", f.balance(t))

	discount := domain.PaymentKindDiscount
	_, err = f.h.Payments.Update(ctx, userID, paymentID, domain.UpdatePaymentRequest{Kind: &discount})
	require.NoError(t, err)
	linked, err := f.h.AccountRepo.FindTransactionByPayment(ctx, f.h.DB, userID, paymentID)
	require.NoError(t, err)
	assert.Nil(t, linked)
	assert.Equal(t, "1000.00", f.balance(t))

	advance := domain.PaymentKindAdvance
	_, err = f.h.Payments.Update(ctx, userID, paymentID, domain.UpdatePaymentRequest{Kind: &advance})
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)

	back, err := f.h.Payments.Update(ctx, userID, paymentID, domain.UpdatePaymentRequest{Kind: &advance, AccountID: &accountID})
	require.NoError(t, err)
	require.NotNil(t, back.Transaction)
	assert.Equal(t, "800.00", f.balance(t))
}

func TestLinkedTransactionCannotBeEditedDirectly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	accountID := f.account.ID

	result, err := f.h.Payments.Pay(ctx, userID, domain.PayRequest{
		InvoiceID: f.invoice,
		AccountID: &accountID,
		Amount:    decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Transaction)

	err = f.h.Accounts.DeleteTransaction(ctx, userID, result.Transaction.ID)
	assert.ErrorIs(t, err, accountdomain.ErrLinkedToPayment)
}

func TestDeleteLastActivityDropsInvoice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	charges, err := f.h.Charges.List(ctx, userID, chargedomain.ListChargeRequest{InvoiceID: &f.invoice})
	require.NoError(t, err)
	require.Len(t, charges, 1)

	result, err := f.h.Payments.Pay(ctx, userID, domain.PayRequest{
		InvoiceID: f.invoice,
		Amount:    decimal.RequireFromString("5.00"),
		Kind:      domain.PaymentKindDiscount,
	})
	require.NoError(t, err)

	_, err = f.h.Charges.Delete(ctx, userID, charges[0].ID)
	require.NoError(t, err)

	deleted, err := f.h.Payments.Delete(ctx, userID, result.Payment.ID)
	require.NoError(t, err)
	assert.True(t, deleted.InvoiceDeleted)
}

func TestPayForeignInvoice(t *testing.T) {
	f := setup(t)

	_, err := f.h.Payments.Pay(context.Background(), snowflake.ID(2002), domain.PayRequest{
		InvoiceID: f.invoice,
		Amount:    decimal.RequireFromString("5.00"),
		Kind:      domain.PaymentKindDiscount,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDescription(t *testing.T) {
	invoice := &invoicedomain.Invoice{Year: 2024, Month: 3}
	assert.Equal(t, "Payment invoice Nubank 03/2024", service.Description("Payment invoice", "Nubank", invoice))
}
