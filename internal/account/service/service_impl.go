package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/fatura/internal/account/domain"
	auditdomain "github.com/smallbiznis/fatura/internal/audit/domain"
	"github.com/smallbiznis/fatura/internal/clock"
	"github.com/smallbiznis/fatura/internal/config"
	"github.com/smallbiznis/fatura/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Guard    domain.Guard
	Clock    clock.Clock
	Finance  *config.FinanceConfigHolder
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	guard    domain.Guard
	clock    clock.Clock
	finance  *config.FinanceConfigHolder
	auditSvc auditdomain.Service
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("account.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		guard:    p.Guard,
		clock:    p.Clock,
		finance:  p.Finance,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) CreateAccount(ctx context.Context, userID snowflake.ID, req domain.CreateAccountRequest) (domain.Account, error) {
	if userID == 0 {
		return domain.Account{}, domain.ErrInvalidUser
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		return domain.Account{}, domain.ErrInvalidName
	}
	accountType := req.Type
	if accountType == "" {
		accountType = domain.AccountTypeBank
	}
	if !accountType.Valid() {
		return domain.Account{}, domain.ErrInvalidType
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.finance.Get().DefaultCurrency
	}
	if len(currency) != 3 {
		return domain.Account{}, domain.ErrInvalidCurrency
	}

	now := s.clock.Now()
	account := domain.Account{
		ID:             s.genID.Generate(),
		UserID:         userID,
		Name:           name,
		Type:           accountType,
		InitialBalance: req.InitialBalance.Round(2),
		Currency:       currency,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertAccount(ctx, s.db, &account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Account{}, domain.ErrNameTaken
		}
		return domain.Account{}, err
	}
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, userID, id snowflake.ID) (domain.Account, error) {
	account, err := s.repo.FindAccount(ctx, s.db, userID, id)
	if err != nil {
		return domain.Account{}, err
	}
	if account == nil {
		return domain.Account{}, domain.ErrNotFound
	}
	return *account, nil
}

func (s *Service) ListAccounts(ctx context.Context, userID snowflake.ID) ([]domain.Account, error) {
	items, err := s.repo.ListAccounts(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) UpdateAccount(ctx context.Context, userID, id snowflake.ID, req domain.UpdateAccountRequest) (domain.Account, error) {
	account, err := s.repo.FindAccount(ctx, s.db, userID, id)
	if err != nil {
		return domain.Account{}, err
	}
	if account == nil {
		return domain.Account{}, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > 100 {
			return domain.Account{}, domain.ErrInvalidName
		}
		account.Name = name
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			return domain.Account{}, domain.ErrInvalidType
		}
		account.Type = *req.Type
	}
	if req.InitialBalance != nil {
		account.InitialBalance = req.InitialBalance.Round(2)
	}
	if req.Active != nil {
		account.Active = *req.Active
	}
	account.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateAccount(ctx, s.db, account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Account{}, domain.ErrNameTaken
		}
		return domain.Account{}, err
	}
	return *account, nil
}

// DeleteAccount removes an account nothing posts to. Accounts with history
// can only be deactivated through UpdateAccount.
func (s *Service) DeleteAccount(ctx context.Context, userID, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.FindAccount(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrNotFound
		}
		count, err := s.repo.CountAccountTransactions(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrAccountInUse
		}
		return s.repo.DeleteAccount(ctx, tx, userID, id)
	})
}

// Balances computes initial balance plus incoming minus outgoing movements
// for every account of the user.
func (s *Service) Balances(ctx context.Context, userID snowflake.ID) ([]domain.AccountBalance, error) {
	accounts, err := s.repo.ListAccounts(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	movements, err := s.repo.ListAllTransactions(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	totals := make(map[snowflake.ID]decimal.Decimal, len(accounts))
	for _, m := range movements {
		switch m.Type {
		case domain.TransactionTypeIn:
			totals[m.AccountID] = totals[m.AccountID].Add(m.Amount)
		case domain.TransactionTypeOut:
			totals[m.AccountID] = totals[m.AccountID].Sub(m.Amount)
		}
	}

	balances := make([]domain.AccountBalance, 0, len(accounts))
	for _, account := range accounts {
		balances = append(balances, domain.AccountBalance{
			AccountID: account.ID,
			Name:      account.Name,
			Currency:  account.Currency,
			Balance:   account.InitialBalance.Add(totals[account.ID]).Round(2),
		})
	}
	return balances, nil
}

func (s *Service) CreateCategory(ctx context.Context, userID snowflake.ID, req domain.CreateCategoryRequest) (domain.Category, error) {
	if userID == 0 {
		return domain.Category{}, domain.ErrInvalidUser
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		return domain.Category{}, domain.ErrInvalidName
	}
	kind := req.Kind
	if kind == "" {
		kind = domain.CategoryKindExpense
	}
	if !kind.Valid() {
		return domain.Category{}, domain.ErrInvalidKind
	}

	now := s.clock.Now()
	category := domain.Category{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Name:      name,
		Kind:      kind,
		ParentID:  req.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.guard.Category(ctx, tx, userID, req.ParentID); err != nil {
			return domain.ErrInvalidParent
		}
		return s.repo.InsertCategory(ctx, tx, &category)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Category{}, domain.ErrNameTaken
		}
		return domain.Category{}, err
	}
	return category, nil
}

func (s *Service) GetCategory(ctx context.Context, userID, id snowflake.ID) (domain.Category, error) {
	category, err := s.repo.FindCategory(ctx, s.db, userID, id)
	if err != nil {
		return domain.Category{}, err
	}
	if category == nil {
		return domain.Category{}, domain.ErrNotFound
	}
	return *category, nil
}

func (s *Service) ListCategories(ctx context.Context, userID snowflake.ID) ([]domain.Category, error) {
	items, err := s.repo.ListCategories(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) UpdateCategory(ctx context.Context, userID, id snowflake.ID, req domain.UpdateCategoryRequest) (domain.Category, error) {
	var updated domain.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		category, err := s.repo.FindCategory(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if category == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" || len(name) > 100 {
				return domain.ErrInvalidName
			}
			category.Name = name
		}
		if req.Kind != nil {
			if !req.Kind.Valid() {
				return domain.ErrInvalidKind
			}
			category.Kind = *req.Kind
		}
		switch {
		case req.ClearParent:
			category.ParentID = nil
		case req.ParentID != nil:
			if *req.ParentID == category.ID {
				return domain.ErrInvalidParent
			}
			if err := s.guard.Category(ctx, tx, userID, req.ParentID); err != nil {
				return domain.ErrInvalidParent
			}
			if err := s.ensureNoCycle(ctx, tx, userID, category.ID, *req.ParentID); err != nil {
				return err
			}
			category.ParentID = req.ParentID
		}
		category.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateCategory(ctx, tx, category); err != nil {
			return err
		}
		updated = *category
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Category{}, domain.ErrNameTaken
		}
		return domain.Category{}, err
	}
	return updated, nil
}

// ensureNoCycle walks up from parentID and fails if it reaches categoryID.
func (s *Service) ensureNoCycle(ctx context.Context, tx *gorm.DB, userID, categoryID, parentID snowflake.ID) error {
	current := &parentID
	for depth := 0; current != nil && depth < 64; depth++ {
		if *current == categoryID {
			return domain.ErrInvalidParent
		}
		parent, err := s.repo.FindCategory(ctx, tx, userID, *current)
		if err != nil {
			return err
		}
		if parent == nil {
			return nil
		}
		current = parent.ParentID
	}
	return nil
}

func (s *Service) DeleteCategory(ctx context.Context, userID, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		category, err := s.repo.FindCategory(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if category == nil {
			return domain.ErrNotFound
		}
		return s.repo.DeleteCategory(ctx, tx, userID, id)
	})
}

func (s *Service) CreateTag(ctx context.Context, userID snowflake.ID, req domain.CreateTagRequest) (domain.Tag, error) {
	if userID == 0 {
		return domain.Tag{}, domain.ErrInvalidUser
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 50 {
		return domain.Tag{}, domain.ErrInvalidName
	}

	tag := domain.Tag{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Name:      name,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertTag(ctx, s.db, &tag); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Tag{}, domain.ErrNameTaken
		}
		return domain.Tag{}, err
	}
	return tag, nil
}

func (s *Service) ListTags(ctx context.Context, userID snowflake.ID) ([]domain.Tag, error) {
	items, err := s.repo.ListTags(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) DeleteTag(ctx context.Context, userID, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := s.repo.FindTags(ctx, tx, userID, []snowflake.ID{id})
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			return domain.ErrNotFound
		}
		return s.repo.DeleteTag(ctx, tx, userID, id)
	})
}

func (s *Service) emitAudit(ctx context.Context, userID snowflake.ID, action, targetType string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, userID, action, targetType, &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func deref[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
