package account

import (
	"github.com/smallbiznis/fatura/internal/account/repository"
	"github.com/smallbiznis/fatura/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewGuard),
	fx.Provide(service.NewService),
)
