package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/smallbiznis/fatura/internal/account"
	"github.com/smallbiznis/fatura/internal/audit"
	"github.com/smallbiznis/fatura/internal/card"
	"github.com/smallbiznis/fatura/internal/charge"
	"github.com/smallbiznis/fatura/internal/clock"
	"github.com/smallbiznis/fatura/internal/config"
	"github.com/smallbiznis/fatura/internal/invoice"
	"github.com/smallbiznis/fatura/internal/migration"
	"github.com/smallbiznis/fatura/internal/observability"
	"github.com/smallbiznis/fatura/internal/payment"
	"github.com/smallbiznis/fatura/internal/providers/pdf"
	"github.com/smallbiznis/fatura/internal/ratelimit"
	"github.com/smallbiznis/fatura/internal/recurring"
	"github.com/smallbiznis/fatura/internal/scheduler"
	"github.com/smallbiznis/fatura/internal/server"
	"github.com/smallbiznis/fatura/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fatura",
		Short:         "Personal finance tracker with credit card invoices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the recurring scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fx.New(
				// infrastructure
				config.Module,
				observability.Module,
				db.Module,
				clock.Module,
				migration.Module,
				ratelimit.Module,
				pdf.Module,

				// domains
				audit.Module,
				account.Module,
				card.Module,
				invoice.Module,
				charge.Module,
				payment.Module,
				recurring.Module,
				scheduler.Module,

				server.Module,
			)
			app.Run()
			return app.Err()
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchemaTask(cmd.Context(), func(conn *gorm.DB, cfg config.Config) error {
				return migration.Apply(conn, cfg.DBType)
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the last migration steps (postgres only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchemaTask(cmd.Context(), func(conn *gorm.DB, cfg config.Config) error {
				if !strings.EqualFold(cfg.DBType, "postgres") {
					return errors.New("migrate down requires DB_TYPE=postgres")
				}
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				return migration.Rollback(sqlDB, steps)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")
	cmd.AddCommand(down)

	return cmd
}

// runSchemaTask boots only what a schema change needs and runs task once.
func runSchemaTask(ctx context.Context, task func(*gorm.DB, config.Config) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		db.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
			if err := task(conn, cfg); err != nil {
				return err
			}
			log.Info("migration task finished", zap.String("db_type", cfg.DBType))
			return nil
		}),
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(ctx)
}
