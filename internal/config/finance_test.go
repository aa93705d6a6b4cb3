package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadFinanceConfigDefaults(t *testing.T) {
	holder, err := loadFinanceConfig(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultFinanceConfig(), holder.Get())
}

func TestLoadFinanceConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("finance:\n  maxInstallments: 12\n  upcomingDueDays: 3\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "finance.yml"), content, 0o600))

	holder, err := loadFinanceConfig(zap.NewNop(), dir)
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 12, cfg.MaxInstallments)
	assert.Equal(t, 3, cfg.UpcomingDueDays)
	assert.Equal(t, "Payment invoice", cfg.PaymentDescriptionPrefix)
	assert.Equal(t, "BRL", cfg.DefaultCurrency)
}

func TestLoadFinanceConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	content := []byte("finance:\n  maxInstallments: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "finance.yml"), content, 0o600))

	_, err := loadFinanceConfig(zap.NewNop(), dir)
	assert.Error(t, err)
}

func TestDecodeFinanceConfigKeepsUnsetKeys(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString("finance:\n  defaultCurrency: USD\n")))

	cfg, err := decodeFinanceConfig(v)
	require.NoError(t, err)

	want := DefaultFinanceConfig()
	want.DefaultCurrency = "USD"
	assert.Equal(t, want, cfg)

	require.NoError(t, v.ReadConfig(bytes.NewBufferString("finance:\n  paymentDescriptionPrefix: \"  \"\n")))
	_, err = decodeFinanceConfig(v)
	assert.Error(t, err)
}
