package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOLL_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 1, cfg.TollAmount)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 12, cfg.PollMaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.GateValidityWindow)
	assert.Equal(t, 15*time.Second, cfg.Mpesa.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Mpesa.TokenRefreshMargin)
	assert.Equal(t, "TOLL-PAYMENT", cfg.Mpesa.AccountReference)
	assert.Equal(t, "http://localhost:5000/mpesa/callback", cfg.Mpesa.CallbackURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TOLL_CONFIG", "")
	t.Setenv("MPESA_CONSUMER_KEY", "key")
	t.Setenv("MPESA_SHORTCODE", "174379")
	t.Setenv("API_BASE_URL", "https://toll.example.com/")
	t.Setenv("GATE_VALIDITY_WINDOW", "90s")
	t.Setenv("TOLL_AMOUNT", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.Mpesa.ConsumerKey)
	assert.Equal(t, "174379", cfg.Mpesa.Shortcode)
	assert.Equal(t, 90*time.Second, cfg.GateValidityWindow)
	assert.Equal(t, 50, cfg.TollAmount)
	assert.Equal(t, "https://toll.example.com/mpesa/callback", cfg.Mpesa.CallbackURL)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toll.yaml")
	require.NoError(t, os.WriteFile(path, []byte("STORE_DRIVER: sqlite\nPOLL_MAX_ATTEMPTS: 3\n"), 0o600))
	t.Setenv("TOLL_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, 3, cfg.PollMaxAttempts)
}

func TestValidate(t *testing.T) {
	t.Setenv("TOLL_CONFIG", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("CONN_STRING", "")
	t.Setenv("MPESA_CONSUMER_KEY", "")
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MPESA_CONSUMER_KEY not defined")
	assert.Contains(t, err.Error(), "CONN_STRING not defined")

	cfg.Mpesa.ConsumerKey = "k"
	cfg.Mpesa.ConsumerSecret = "s"
	cfg.Mpesa.Shortcode = "174379"
	cfg.Mpesa.Passkey = "p"
	cfg.StoreDriver = DriverMemory
	assert.NoError(t, cfg.Validate())
}
