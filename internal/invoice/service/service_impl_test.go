package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	chargedomain "github.com/smallbiznis/fatura/internal/charge/domain"
	"github.com/smallbiznis/fatura/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/fatura/internal/payment/domain"
	"github.com/smallbiznis/fatura/internal/providers/pdf"
	"github.com/smallbiznis/fatura/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatementCollectsChargesAndPayments(t *testing.T) {
	h := testutil.NewHarness(t, testutil.WithRenderer(pdf.New(zap.NewNop())))
	ctx := context.Background()
	card := newCard(t, h, 10, 20)

	purchase, err := h.Charges.Purchase(ctx, userID, chargedomain.PurchaseRequest{
		CardID:       card.ID,
		Date:         day(2024, time.March, 1),
		Description:  "Phone",
		TotalAmount:  decimal.RequireFromString("1000.00"),
		Installments: 4,
	})
	require.NoError(t, err)
	invoiceID := purchase.Charges[0].InvoiceID

	_, err = h.Payments.Pay(ctx, userID, paymentdomain.PayRequest{
		InvoiceID: invoiceID,
		Date:      day(2024, time.April, 2),
		Amount:    decimal.RequireFromString("50.00"),
		Kind:      paymentdomain.PaymentKindDiscount,
	})
	require.NoError(t, err)

	statement, err := h.Invoices.Statement(ctx, userID, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, "Nubank", statement.Invoice.CardName)
	require.Len(t, statement.Charges, 1)
	assert.Equal(t, "250.00", statement.Charges[0].TotalAmount.StringFixed(2))
	require.Len(t, statement.Payments, 1)
	assert.Equal(t, "200.00", statement.Invoice.Totals.Balance.StringFixed(2))
	assert.Equal(t, domain.InvoiceStatusPartial, statement.Invoice.Status)

	doc, err := h.Invoices.RenderStatement(ctx, userID, invoiceID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestRenderStatementWithoutRenderer(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	card := newCard(t, h, 10, 20)

	purchase, err := h.Charges.Purchase(ctx, userID, chargedomain.PurchaseRequest{
		CardID:      card.ID,
		Date:        day(2024, time.March, 1),
		Description: "Phone",
		TotalAmount: decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)

	_, err = h.Invoices.RenderStatement(ctx, userID, purchase.Charges[0].InvoiceID)
	assert.ErrorIs(t, err, domain.ErrRendererMissing)
}

func TestListInvoicesValidatesFilters(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	_, err := h.Invoices.List(ctx, userID, domain.ListInvoiceRequest{Status: "SETTLED"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	year := 12
	_, err = h.Invoices.List(ctx, userID, domain.ListInvoiceRequest{Year: &year})
	assert.ErrorIs(t, err, domain.ErrInvalidYear)
}
