package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/fatura/internal/audit/domain"
	"github.com/smallbiznis/fatura/internal/card/domain"
	"github.com/smallbiznis/fatura/internal/clock"
	"github.com/smallbiznis/fatura/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minCycleDay = 1
	maxCycleDay = 28
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("card.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateCardRequest) (domain.CreditCard, error) {
	if userID == 0 {
		return domain.CreditCard{}, domain.ErrInvalidUser
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		return domain.CreditCard{}, domain.ErrInvalidName
	}
	brand := strings.TrimSpace(req.Brand)
	if len(brand) > 50 {
		return domain.CreditCard{}, domain.ErrInvalidBrand
	}
	if req.Limit.IsNegative() {
		return domain.CreditCard{}, domain.ErrInvalidLimit
	}
	if !validCycleDay(req.ClosingDay) {
		return domain.CreditCard{}, domain.ErrInvalidClosingDay
	}
	if !validCycleDay(req.DueDay) {
		return domain.CreditCard{}, domain.ErrInvalidDueDay
	}

	now := s.clock.Now()
	card := domain.CreditCard{
		ID:         s.genID.Generate(),
		UserID:     userID,
		Name:       name,
		Brand:      brand,
		Limit:      req.Limit.Round(2),
		ClosingDay: req.ClosingDay,
		DueDay:     req.DueDay,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, &card); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.CreditCard{}, domain.ErrNameTaken
		}
		return domain.CreditCard{}, err
	}

	s.emitAudit(ctx, userID, "card.created", card.ID, nil)
	return card, nil
}

func (s *Service) Get(ctx context.Context, userID, id snowflake.ID) (domain.CreditCard, error) {
	card, err := s.repo.Find(ctx, s.db, userID, id)
	if err != nil {
		return domain.CreditCard{}, err
	}
	if card == nil {
		return domain.CreditCard{}, domain.ErrNotFound
	}
	return *card, nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID) ([]domain.CreditCard, error) {
	items, err := s.repo.List(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	cards := make([]domain.CreditCard, 0, len(items))
	for _, item := range items {
		cards = append(cards, *item)
	}
	return cards, nil
}

// Update changes card settings. Invoices that already exist keep the
// closing and due dates they were created with.
func (s *Service) Update(ctx context.Context, userID, id snowflake.ID, req domain.UpdateCardRequest) (domain.CreditCard, error) {
	card, err := s.repo.Find(ctx, s.db, userID, id)
	if err != nil {
		return domain.CreditCard{}, err
	}
	if card == nil {
		return domain.CreditCard{}, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > 100 {
			return domain.CreditCard{}, domain.ErrInvalidName
		}
		card.Name = name
	}
	if req.Brand != nil {
		brand := strings.TrimSpace(*req.Brand)
		if len(brand) > 50 {
			return domain.CreditCard{}, domain.ErrInvalidBrand
		}
		card.Brand = brand
	}
	if req.Limit != nil {
		if req.Limit.IsNegative() {
			return domain.CreditCard{}, domain.ErrInvalidLimit
		}
		card.Limit = req.Limit.Round(2)
	}
	if req.ClosingDay != nil {
		if !validCycleDay(*req.ClosingDay) {
			return domain.CreditCard{}, domain.ErrInvalidClosingDay
		}
		card.ClosingDay = *req.ClosingDay
	}
	if req.DueDay != nil {
		if !validCycleDay(*req.DueDay) {
			return domain.CreditCard{}, domain.ErrInvalidDueDay
		}
		card.DueDay = *req.DueDay
	}
	if req.Active != nil {
		card.Active = *req.Active
	}
	card.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, card); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.CreditCard{}, domain.ErrNameTaken
		}
		return domain.CreditCard{}, err
	}
	return *card, nil
}

// Delete removes a card that never had charges or payments. Its empty
// invoices go with it.
func (s *Service) Delete(ctx context.Context, userID, id snowflake.ID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := s.repo.Find(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if card == nil {
			return domain.ErrNotFound
		}
		count, err := s.repo.CountActivity(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrCardInUse
		}
		return s.repo.Delete(ctx, tx, userID, id)
	})
	if err != nil {
		return err
	}

	s.emitAudit(ctx, userID, "card.deleted", id, nil)
	return nil
}

func (s *Service) emitAudit(ctx context.Context, userID snowflake.ID, action string, cardID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, userID, action, "card", &cardID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func validCycleDay(day int) bool {
	return day >= minCycleDay && day <= maxCycleDay
}

