package invoice

import (
	"github.com/smallbiznis/fatura/internal/invoice/repository"
	"github.com/smallbiznis/fatura/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewEngine),
	fx.Provide(service.NewService),
)
