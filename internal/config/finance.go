package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// FinanceConfig holds the tunable rules of the invoice engine.
type FinanceConfig struct {
	MaxInstallments          int    `mapstructure:"maxInstallments"`
	UpcomingDueDays          int    `mapstructure:"upcomingDueDays"`
	PaymentDescriptionPrefix string `mapstructure:"paymentDescriptionPrefix"`
	DefaultCurrency          string `mapstructure:"defaultCurrency"`
}

func DefaultFinanceConfig() FinanceConfig {
	return FinanceConfig{
		MaxInstallments:          48,
		UpcomingDueDays:          7,
		PaymentDescriptionPrefix: "Payment invoice",
		DefaultCurrency:          "BRL",
	}
}

type FinanceConfigHolder struct {
	current atomic.Value // holds FinanceConfig
}

// NewStaticFinanceConfigHolder returns a holder that never reloads.
func NewStaticFinanceConfigHolder(cfg FinanceConfig) *FinanceConfigHolder {
	holder := &FinanceConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewFinanceConfigHolder reads finance.yml and watches it for changes.
func NewFinanceConfigHolder(log *zap.Logger) (*FinanceConfigHolder, error) {
	return loadFinanceConfig(log, "/etc/fatura", ".")
}

func loadFinanceConfig(log *zap.Logger, paths ...string) (*FinanceConfigHolder, error) {
	log = log.Named("finance.config")
	v := viper.New()

	v.SetConfigName("finance")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("FATURA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultFinanceConfig()
	v.SetDefault("finance.maxInstallments", defaults.MaxInstallments)
	v.SetDefault("finance.upcomingDueDays", defaults.UpcomingDueDays)
	v.SetDefault("finance.paymentDescriptionPrefix", defaults.PaymentDescriptionPrefix)
	v.SetDefault("finance.defaultCurrency", defaults.DefaultCurrency)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeFinanceConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticFinanceConfigHolder(cfg)
	if !fileLoaded {
		log.Info("finance config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeFinanceConfig(v)
		if err != nil {
			log.Warn("finance config reload ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// decodeFinanceConfig overlays the finance section on the defaults. A
// partial file only overrides the keys it names.
func decodeFinanceConfig(v *viper.Viper) (FinanceConfig, error) {
	cfg := DefaultFinanceConfig()
	if err := v.UnmarshalKey("finance", &cfg); err != nil {
		return FinanceConfig{}, err
	}
	if err := validateFinanceConfig(cfg); err != nil {
		return FinanceConfig{}, err
	}
	return cfg, nil
}

func (h *FinanceConfigHolder) Get() FinanceConfig {
	return h.current.Load().(FinanceConfig)
}

func validateFinanceConfig(cfg FinanceConfig) error {
	if cfg.MaxInstallments < 1 {
		return errors.New("finance.maxInstallments must be at least 1")
	}
	if cfg.UpcomingDueDays < 0 {
		return errors.New("finance.upcomingDueDays cannot be negative")
	}
	if strings.TrimSpace(cfg.PaymentDescriptionPrefix) == "" {
		return errors.New("finance.paymentDescriptionPrefix cannot be empty")
	}
	return nil
}
