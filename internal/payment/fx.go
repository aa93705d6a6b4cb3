package payment

import (
	"github.com/smallbiznis/fatura/internal/payment/repository"
	"github.com/smallbiznis/fatura/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
