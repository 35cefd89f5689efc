package config

import (
	"testing"

	"github.com/creatorpay/ledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "USD", cfg.Ledger.Currency)
	assert.Equal(t, money.USD, cfg.Ledger.CurrencyCode())
	assert.Equal(t, int64(1000), cfg.Ledger.FeeBps)
	assert.Equal(t, int64(50), cfg.Ledger.MinTipAmount)
	assert.Equal(t, int64(100000), cfg.Ledger.MaxTipAmount)
	assert.Equal(t, int64(1000), cfg.Ledger.MinPayout)
	assert.NotEqual(t, "", cfg.Ledger.PlatformUserID)
	assert.NotPanics(t, func() { cfg.Ledger.PlatformUser() })
	assert.Equal(t, "US", cfg.Stripe.Country)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LEDGER_FEE_BPS", "500")
	t.Setenv("LEDGER_MIN_PAYOUT", "2500")
	t.Setenv("LEDGER_CURRENCY", "EUR")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, int64(500), cfg.Ledger.FeeBps)
	assert.Equal(t, int64(2500), cfg.Ledger.MinPayout)
	assert.Equal(t, money.EUR, cfg.Ledger.CurrencyCode())
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Run("lowercase currency", func(t *testing.T) {
		t.Setenv("LEDGER_CURRENCY", "usd")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fee above 100 percent", func(t *testing.T) {
		t.Setenv("LEDGER_FEE_BPS", "10001")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("max tip below min tip", func(t *testing.T) {
		t.Setenv("LEDGER_MIN_TIP_AMOUNT", "5000")
		t.Setenv("LEDGER_MAX_TIP_AMOUNT", "100")
		_, err := Load()
		assert.Error(t, err)
	})
}
