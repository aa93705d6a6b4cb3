package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/fatura/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderStatement(t *testing.T) {
	closing := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	due := time.Date(2024, time.April, 20, 0, 0, 0, 0, time.UTC)
	statement := invoicedomain.Statement{
		Invoice: invoicedomain.InvoiceView{
			Invoice: invoicedomain.Invoice{
				ID:          42,
				Year:        2024,
				Month:       3,
				ClosingDate: &closing,
				DueDate:     &due,
				Status:      invoicedomain.InvoiceStatusPartial,
			},
			CardName: "Nubank",
			Totals: invoicedomain.Totals{
				Charges:  decimal.RequireFromString("300.00"),
				Payments: decimal.RequireFromString("100.00"),
				Balance:  decimal.RequireFromString("200.00"),
			},
		},
		Charges: []invoicedomain.StatementCharge{
			{ID: 1, Date: closing.AddDate(0, 0, -5), Description: "Laptop", TotalAmount: decimal.RequireFromString("100.00"), InstallmentNumber: 1, InstallmentsTotal: 3},
			{ID: 2, Date: closing.AddDate(0, 0, -2), Description: "Groceries", TotalAmount: decimal.RequireFromString("200.00"), InstallmentNumber: 1, InstallmentsTotal: 1},
		},
		Payments: []invoicedomain.StatementPayment{
			{ID: 3, Date: due.AddDate(0, 0, -3), Kind: "PARTIAL", Amount: decimal.RequireFromString("100.00")},
		},
	}

	out, err := New(zap.NewNop()).RenderStatement(context.Background(), statement)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderStatementCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(zap.NewNop()).RenderStatement(ctx, invoicedomain.Statement{})
	assert.ErrorIs(t, err, context.Canceled)
}
