package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
	auditdomain "github.com/smallbiznis/fatura/internal/audit/domain"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
	chargedomain "github.com/smallbiznis/fatura/internal/charge/domain"
	"github.com/smallbiznis/fatura/internal/config"
	invoicedomain "github.com/smallbiznis/fatura/internal/invoice/domain"
	"github.com/smallbiznis/fatura/internal/observability"
	obsmiddleware "github.com/smallbiznis/fatura/internal/observability/logger"
	obstracing "github.com/smallbiznis/fatura/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/fatura/internal/payment/domain"
	"github.com/smallbiznis/fatura/internal/ratelimit"
	recurringdomain "github.com/smallbiznis/fatura/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine  *gin.Engine
	log     *zap.Logger
	tokens  *TokenVerifier
	limiter *ratelimit.WriteLimiter

	accountSvc   accountdomain.Service
	cardSvc      carddomain.Service
	chargeSvc    chargedomain.Service
	invoiceSvc   invoicedomain.Service
	paymentSvc   paymentdomain.Service
	recurringSvc recurringdomain.Service
	auditSvc     auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	AccountSvc   accountdomain.Service
	CardSvc      carddomain.Service
	ChargeSvc    chargedomain.Service
	InvoiceSvc   invoicedomain.Service
	PaymentSvc   paymentdomain.Service
	RecurringSvc recurringdomain.Service
	AuditSvc     auditdomain.Service
	Limiter      *ratelimit.WriteLimiter `optional:"true"`
}

func NewServer(p ServerParams) (*Server, error) {
	tokens, err := NewTokenVerifier(p.Cfg.AuthJWTSecret, p.Cfg.AuthJWTIssuer)
	if err != nil {
		return nil, err
	}
	return &Server{
		engine:       p.Gin,
		log:          p.Log.Named("http.server"),
		tokens:       tokens,
		limiter:      p.Limiter,
		accountSvc:   p.AccountSvc,
		cardSvc:      p.CardSvc,
		chargeSvc:    p.ChargeSvc,
		invoiceSvc:   p.InvoiceSvc,
		paymentSvc:   p.PaymentSvc,
		recurringSvc: p.RecurringSvc,
		auditSvc:     p.AuditSvc,
	}, nil
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api", s.AuthRequired(), s.WriteRateLimit())

	api.GET("/accounts", s.ListAccounts)
	api.POST("/accounts", s.CreateAccount)
	api.GET("/accounts/balances", s.AccountBalances)
	api.GET("/accounts/:id", s.GetAccount)
	api.PATCH("/accounts/:id", s.UpdateAccount)
	api.DELETE("/accounts/:id", s.DeleteAccount)

	api.GET("/categories", s.ListCategories)
	api.POST("/categories", s.CreateCategory)
	api.GET("/categories/:id", s.GetCategory)
	api.PATCH("/categories/:id", s.UpdateCategory)
	api.DELETE("/categories/:id", s.DeleteCategory)

	api.GET("/tags", s.ListTags)
	api.POST("/tags", s.CreateTag)
	api.DELETE("/tags/:id", s.DeleteTag)

	api.GET("/transactions", s.ListTransactions)
	api.POST("/transactions", s.CreateTransaction)
	api.GET("/transactions/:id", s.GetTransaction)
	api.PATCH("/transactions/:id", s.UpdateTransaction)
	api.DELETE("/transactions/:id", s.DeleteTransaction)
	api.POST("/transactions/:id/toggle-reconciled", s.ToggleReconciled)
	api.POST("/transfers", s.CreateTransfer)

	api.GET("/cards", s.ListCards)
	api.POST("/cards", s.CreateCard)
	api.GET("/cards/:id", s.GetCard)
	api.PATCH("/cards/:id", s.UpdateCard)
	api.DELETE("/cards/:id", s.DeleteCard)

	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/upcoming", s.UpcomingInvoices)
	api.GET("/invoices/:id", s.GetInvoice)
	api.POST("/invoices/:id/close", s.CloseInvoice)
	api.POST("/invoices/:id/reopen", s.ReopenInvoice)
	api.GET("/invoices/:id/statement.pdf", s.InvoiceStatementPDF)
	api.GET("/invoices/:id/payments", s.ListPayments)
	api.POST("/invoices/:id/payments", s.CreatePayment)

	api.POST("/purchases", s.CreatePurchase)
	api.GET("/charges", s.ListCharges)
	api.GET("/charges/:id", s.GetCharge)
	api.PATCH("/charges/:id", s.UpdateCharge)
	api.DELETE("/charges/:id", s.DeleteCharge)

	api.GET("/payments/:id", s.GetPayment)
	api.PATCH("/payments/:id", s.UpdatePayment)
	api.DELETE("/payments/:id", s.DeletePayment)

	api.GET("/recurring-transactions", s.ListRecurringTransactions)
	api.POST("/recurring-transactions", s.CreateRecurringTransaction)
	api.GET("/recurring-transactions/:id", s.GetRecurringTransaction)
	api.PATCH("/recurring-transactions/:id", s.UpdateRecurringTransaction)
	api.DELETE("/recurring-transactions/:id", s.DeleteRecurringTransaction)
	api.POST("/recurring-transactions/:id/generate", s.GenerateRecurringTransaction)

	api.GET("/recurring-card-purchases", s.ListRecurringCardPurchases)
	api.POST("/recurring-card-purchases", s.CreateRecurringCardPurchase)
	api.GET("/recurring-card-purchases/:id", s.GetRecurringCardPurchase)
	api.PATCH("/recurring-card-purchases/:id", s.UpdateRecurringCardPurchase)
	api.DELETE("/recurring-card-purchases/:id", s.DeleteRecurringCardPurchase)
	api.POST("/recurring-card-purchases/:id/generate", s.GenerateRecurringCardPurchase)

	api.GET("/audit-logs", s.ListAuditLogs)

	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
