package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/fatura/internal/audit/domain"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	chargedomain "github.com/smallbiznis/fatura/internal/charge/domain"
	obscontext "github.com/smallbiznis/fatura/internal/observability/context"
	"github.com/smallbiznis/fatura/internal/testutil"
	"github.com/smallbiznis/fatura/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID = snowflake.ID(1001)

func TestAuditLogValidation(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.Audit.AuditLog(ctx, 0, "card.created", "card", nil, nil), auditdomain.ErrInvalidUser)
	assert.ErrorIs(t, h.Audit.AuditLog(ctx, userID, "  ", "card", nil, nil), auditdomain.ErrInvalidAction)
}

func TestAuditLogCapturesRequestContext(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")

	require.NoError(t, h.Audit.AuditLog(ctx, userID, "card.created", "", nil, map[string]any{"name": "Visa"}))

	resp, err := h.Audit.List(context.Background(), userID, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	entry := resp.AuditLogs[0]
	assert.Equal(t, "unknown", entry.TargetType)
	require.NotNil(t, entry.RequestID)
	assert.Equal(t, "req-1", *entry.RequestID)
	assert.Equal(t, "Visa", entry.Metadata["name"])
}

func TestListFiltersAndPages(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	card, err := h.Cards.Create(ctx, userID, carddomain.CreateCardRequest{Name: "Visa", ClosingDay: 10, DueDay: 20})
	require.NoError(t, err)
	purchase, err := h.Charges.Purchase(ctx, userID, chargedomain.PurchaseRequest{
		CardID:       card.ID,
		Date:         time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Description:  "Groceries",
		TotalAmount:  decimal.RequireFromString("50.00"),
		Installments: 1,
	})
	require.NoError(t, err)
	invoiceID := purchase.Charges[0].InvoiceID
	_, err = h.Invoices.Close(ctx, userID, invoiceID)
	require.NoError(t, err)

	closed, err := h.Audit.List(ctx, userID, auditdomain.ListAuditLogRequest{Action: "invoice.closed"})
	require.NoError(t, err)
	require.Len(t, closed.AuditLogs, 1)
	require.NotNil(t, closed.AuditLogs[0].TargetID)
	assert.Equal(t, invoiceID.String(), *closed.AuditLogs[0].TargetID)

	byTarget, err := h.Audit.List(ctx, userID, auditdomain.ListAuditLogRequest{TargetType: "card", TargetID: card.ID.String()})
	require.NoError(t, err)
	require.Len(t, byTarget.AuditLogs, 1)
	assert.Equal(t, "card.created", byTarget.AuditLogs[0].Action)

	all, err := h.Audit.List(ctx, userID, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(all.AuditLogs), 3)

	var seen []snowflake.ID
	req := auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 1}}
	for {
		page, err := h.Audit.List(ctx, userID, req)
		require.NoError(t, err)
		for _, entry := range page.AuditLogs {
			seen = append(seen, entry.ID)
		}
		if !page.HasMore {
			break
		}
		req.PageToken = page.NextPageToken
	}
	assert.Len(t, seen, len(all.AuditLogs))
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i-1], seen[i], "newest first")
	}

	other, err := h.Audit.List(ctx, snowflake.ID(2002), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	assert.Empty(t, other.AuditLogs)

	_, err = h.Audit.List(ctx, userID, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
