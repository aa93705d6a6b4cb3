package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/fatura/internal/card/domain"
	chargedomain "github.com/smallbiznis/fatura/internal/charge/domain"
	invoicedomain "github.com/smallbiznis/fatura/internal/invoice/domain"
	"github.com/smallbiznis/fatura/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const userID = snowflake.ID(1001)

func TestCreateCardValidation(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.CreateCardRequest
		err  error
	}{
		{"blank name", domain.CreateCardRequest{Name: " ", ClosingDay: 1, DueDay: 1}, domain.ErrInvalidName},
		{"negative limit", domain.CreateCardRequest{Name: "A", Limit: decimal.RequireFromString("-1"), ClosingDay: 1, DueDay: 1}, domain.ErrInvalidLimit},
		{"closing day zero", domain.CreateCardRequest{Name: "A", ClosingDay: 0, DueDay: 1}, domain.ErrInvalidClosingDay},
		{"closing day past 28", domain.CreateCardRequest{Name: "A", ClosingDay: 29, DueDay: 1}, domain.ErrInvalidClosingDay},
		{"due day past 28", domain.CreateCardRequest{Name: "A", ClosingDay: 5, DueDay: 31}, domain.ErrInvalidDueDay},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Cards.Create(ctx, userID, tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestCardNamesAreUniquePerUser(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	_, err := h.Cards.Create(ctx, userID, domain.CreateCardRequest{Name: "Visa", ClosingDay: 3, DueDay: 10})
	require.NoError(t, err)
	_, err = h.Cards.Create(ctx, userID, domain.CreateCardRequest{Name: "Visa", ClosingDay: 3, DueDay: 10})
	assert.ErrorIs(t, err, domain.ErrNameTaken)
	_, err = h.Cards.Create(ctx, snowflake.ID(2002), domain.CreateCardRequest{Name: "Visa", ClosingDay: 3, DueDay: 10})
	assert.NoError(t, err)

	cards, err := h.Cards.List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestDeleteCardWithChargesIsBlocked(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	card, err := h.Cards.Create(ctx, userID, domain.CreateCardRequest{Name: "Visa", ClosingDay: 3, DueDay: 10})
	require.NoError(t, err)

	purchase, err := h.Charges.Purchase(ctx, userID, chargedomain.PurchaseRequest{
		CardID:      card.ID,
		Date:        time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		Description: "Fuel",
		TotalAmount: decimal.RequireFromString("150.00"),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, h.Cards.Delete(ctx, userID, card.ID), domain.ErrCardInUse)

	_, err = h.Charges.Delete(ctx, userID, purchase.Charges[0].ID)
	require.NoError(t, err)

	// A projected, empty invoice does not block deletion.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		_, err := h.Engine.AssignInvoiceFor(ctx, tx, &card, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC))
		return err
	})
	require.NoError(t, err)

	require.NoError(t, h.Cards.Delete(ctx, userID, card.ID))
	var invoices int64
	require.NoError(t, h.DB.Model(&invoicedomain.Invoice{}).Where("card_id = ?", card.ID).Count(&invoices).Error)
	assert.Zero(t, invoices)

	_, err = h.Cards.Get(ctx, userID, card.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateCardSettings(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	card, err := h.Cards.Create(ctx, userID, domain.CreateCardRequest{Name: "Visa", ClosingDay: 3, DueDay: 10})
	require.NoError(t, err)

	closing := 25
	limit := decimal.RequireFromString("1500")
	updated, err := h.Cards.Update(ctx, userID, card.ID, domain.UpdateCardRequest{ClosingDay: &closing, Limit: &limit})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.ClosingDay)
	assert.Equal(t, "1500.00", updated.Limit.StringFixed(2))

	bad := 0
	_, err = h.Cards.Update(ctx, userID, card.ID, domain.UpdateCardRequest{DueDay: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidDueDay)

	_, err = h.Cards.Update(ctx, snowflake.ID(2002), card.ID, domain.UpdateCardRequest{ClosingDay: &closing})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
