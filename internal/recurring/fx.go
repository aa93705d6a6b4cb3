package recurring

import (
	"github.com/smallbiznis/fatura/internal/recurring/repository"
	"github.com/smallbiznis/fatura/internal/recurring/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recurring.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
