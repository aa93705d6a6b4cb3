package card

import (
	"github.com/smallbiznis/fatura/internal/card/repository"
	"github.com/smallbiznis/fatura/internal/card/service"
	"go.uber.org/fx"
)

var Module = fx.Module("card.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewGuard),
	fx.Provide(service.NewService),
)
