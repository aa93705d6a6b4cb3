package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fatura/internal/charge/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, charge *domain.CardCharge) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO card_charges (
			id, user_id, card_id, invoice_id, purchase_id, date, description, total_amount,
			installment_number, installments_total, category_id, recurring_card_purchase_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		charge.ID,
		charge.UserID,
		charge.CardID,
		charge.InvoiceID,
		charge.PurchaseID,
		charge.Date,
		charge.Description,
		charge.TotalAmount,
		charge.InstallmentNumber,
		charge.InstallmentsTotal,
		charge.CategoryID,
		charge.RecurringCardPurchaseID,
		charge.CreatedAt,
		charge.UpdatedAt,
	).Error
	if err != nil {
		return err
	}
	return r.ReplaceTags(ctx, db, charge.ID, charge.TagIDs)
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.CardCharge, error) {
	var charge domain.CardCharge
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, card_id, invoice_id, purchase_id, date, description, total_amount,
		        installment_number, installments_total, category_id, recurring_card_purchase_id,
		        created_at, updated_at
		 FROM card_charges WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&charge).Error
	if err != nil {
		return nil, err
	}
	if charge.ID == 0 {
		return nil, nil
	}
	if err := r.LoadTags(ctx, db, []*domain.CardCharge{&charge}); err != nil {
		return nil, err
	}
	return &charge, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter domain.ListFilter) ([]*domain.CardCharge, error) {
	var charges []*domain.CardCharge
	stmt := db.WithContext(ctx).
		Model(&domain.CardCharge{}).
		Where("user_id = ?", userID)
	if filter.CardID != nil {
		stmt = stmt.Where("card_id = ?", *filter.CardID)
	}
	if filter.InvoiceID != nil {
		stmt = stmt.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.PurchaseID != nil {
		stmt = stmt.Where("purchase_id = ?", *filter.PurchaseID)
	}
	if err := stmt.Order("date desc").Order("id desc").Find(&charges).Error; err != nil {
		return nil, err
	}
	if err := r.LoadTags(ctx, db, charges); err != nil {
		return nil, err
	}
	return charges, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, charge *domain.CardCharge) error {
	return db.WithContext(ctx).Exec(
		`UPDATE card_charges SET invoice_id = ?, date = ?, description = ?, total_amount = ?, category_id = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		charge.InvoiceID,
		charge.Date,
		charge.Description,
		charge.TotalAmount,
		charge.CategoryID,
		charge.UpdatedAt,
		charge.UserID,
		charge.ID,
	).Error
}

func (r *repo) ReplaceTags(ctx context.Context, db *gorm.DB, chargeID snowflake.ID, tagIDs []snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM card_charge_tags WHERE card_charge_id = ?`, chargeID).Error; err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO card_charge_tags (card_charge_id, tag_id) VALUES (?, ?)`,
			chargeID, tagID,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) LoadTags(ctx context.Context, db *gorm.DB, charges []*domain.CardCharge) error {
	if len(charges) == 0 {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(charges))
	byID := make(map[snowflake.ID]*domain.CardCharge, len(charges))
	for _, charge := range charges {
		charge.TagIDs = []snowflake.ID{}
		ids = append(ids, charge.ID)
		byID[charge.ID] = charge
	}

	var rows []domain.CardChargeTag
	err := db.WithContext(ctx).
		Where("card_charge_id IN ?", ids).
		Order("tag_id asc").
		Find(&rows).Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		if charge, ok := byID[row.CardChargeID]; ok {
			charge.TagIDs = append(charge.TagIDs, row.TagID)
		}
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM card_charge_tags WHERE card_charge_id = ?`, id).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM card_charges WHERE user_id = ? AND id = ?`, userID, id).Error
}
