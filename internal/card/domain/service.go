package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CreateCardRequest struct {
	Name       string
	Brand      string
	Limit      decimal.Decimal
	ClosingDay int
	DueDay     int
}

type UpdateCardRequest struct {
	Name       *string
	Brand      *string
	Limit      *decimal.Decimal
	ClosingDay *int
	DueDay     *int
	Active     *bool
}

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateCardRequest) (CreditCard, error)
	Get(ctx context.Context, userID, id snowflake.ID) (CreditCard, error)
	List(ctx context.Context, userID snowflake.ID) ([]CreditCard, error)
	Update(ctx context.Context, userID, id snowflake.ID, req UpdateCardRequest) (CreditCard, error)
	Delete(ctx context.Context, userID, id snowflake.ID) error
}

var (
	ErrInvalidUser       = errors.New("invalid_user")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidBrand      = errors.New("invalid_brand")
	ErrInvalidLimit      = errors.New("invalid_limit")
	ErrInvalidClosingDay = errors.New("invalid_closing_day")
	ErrInvalidDueDay     = errors.New("invalid_due_day")

	ErrNotFound      = errors.New("not_found")
	ErrCardForbidden = errors.New("forbidden_card")
	ErrCardInactive  = errors.New("card_inactive")
	ErrNameTaken     = errors.New("name_taken")
	ErrCardInUse     = errors.New("card_has_charges_or_payments")
)
