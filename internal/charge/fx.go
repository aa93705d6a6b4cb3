package charge

import (
	"github.com/smallbiznis/fatura/internal/charge/repository"
	"github.com/smallbiznis/fatura/internal/charge/service"
	"go.uber.org/fx"
)

var Module = fx.Module("charge.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.AsService),
	fx.Provide(service.AsAllocator),
)
