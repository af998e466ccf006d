package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Mpesa struct {
	BaseURL            string        `mapstructure:"MPESA_BASE_URL"`
	ConsumerKey        string        `mapstructure:"MPESA_CONSUMER_KEY"`
	ConsumerSecret     string        `mapstructure:"MPESA_CONSUMER_SECRET"`
	Shortcode          string        `mapstructure:"MPESA_SHORTCODE"`
	Passkey            string        `mapstructure:"MPESA_PASSKEY"`
	CallbackURL        string        `mapstructure:"MPESA_CALLBACK_URL"`
	AccountReference   string        `mapstructure:"MPESA_ACCOUNT_REFERENCE"`
	TransactionDesc    string        `mapstructure:"MPESA_TRANSACTION_DESC"`
	RequestTimeout     time.Duration `mapstructure:"MPESA_REQUEST_TIMEOUT"`
	TokenRefreshMargin time.Duration `mapstructure:"TOKEN_REFRESH_MARGIN"`
	TokenRefreshEvery  time.Duration `mapstructure:"TOKEN_REFRESH_INTERVAL"`
}

type Config struct {
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	APIBaseURL  string `mapstructure:"API_BASE_URL"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	ConnString  string `mapstructure:"CONN_STRING"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	LPRAPIURL   string `mapstructure:"LPR_API_URL"`

	Mpesa Mpesa `mapstructure:",squash"`

	TollAmount          int           `mapstructure:"TOLL_AMOUNT"`
	PollInterval        time.Duration `mapstructure:"POLL_INTERVAL"`
	PollMaxAttempts     int           `mapstructure:"POLL_MAX_ATTEMPTS"`
	GateValidityWindow  time.Duration `mapstructure:"GATE_VALIDITY_WINDOW"`
	GateResponseTimeout time.Duration `mapstructure:"GATE_RESPONSE_TIMEOUT"`
	VerifyRateLimit     float64       `mapstructure:"VERIFY_RATE_LIMIT"`
	VerifyRateBurst     int           `mapstructure:"VERIFY_RATE_BURST"`
}

var defaults = map[string]any{
	"HTTP_ADDR":     ":5000",
	"API_BASE_URL":  "http://localhost:5000",
	"LOG_LEVEL":     "info",
	"STORE_DRIVER":  DriverPostgres,
	"CONN_STRING":   "",
	"SQLITE_PATH":   "toll.db",
	"REDIS_URL":     "",
	"LPR_API_URL":   "http://localhost:5001",

	"MPESA_BASE_URL":          "https://sandbox.safaricom.co.ke",
	"MPESA_CONSUMER_KEY":      "",
	"MPESA_CONSUMER_SECRET":   "",
	"MPESA_SHORTCODE":         "",
	"MPESA_PASSKEY":           "",
	"MPESA_CALLBACK_URL":      "",
	"MPESA_ACCOUNT_REFERENCE": "TOLL-PAYMENT",
	"MPESA_TRANSACTION_DESC":  "Toll Payment",
	"MPESA_REQUEST_TIMEOUT":   15 * time.Second,
	"TOKEN_REFRESH_MARGIN":    5 * time.Minute,
	"TOKEN_REFRESH_INTERVAL":  5 * time.Minute,

	"TOLL_AMOUNT":           1,
	"POLL_INTERVAL":         5 * time.Second,
	"POLL_MAX_ATTEMPTS":     12,
	"GATE_VALIDITY_WINDOW":  5 * time.Minute,
	"GATE_RESPONSE_TIMEOUT": 2 * time.Second,
	"VERIFY_RATE_LIMIT":     1.0,
	"VERIFY_RATE_BURST":     3,
}

// Load reads configuration from the environment, optionally layered over the
// YAML file named by TOLL_CONFIG.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := os.Getenv("TOLL_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Mpesa.CallbackURL == "" {
		cfg.Mpesa.CallbackURL = strings.TrimRight(cfg.APIBaseURL, "/") + "/mpesa/callback"
	}
	return &cfg, nil
}

// ValidateProvider reports missing M-Pesa credentials.
func (c *Config) ValidateProvider() error {
	var errs []error
	required := map[string]string{
		"MPESA_CONSUMER_KEY":    c.Mpesa.ConsumerKey,
		"MPESA_CONSUMER_SECRET": c.Mpesa.ConsumerSecret,
		"MPESA_SHORTCODE":       c.Mpesa.Shortcode,
		"MPESA_PASSKEY":         c.Mpesa.Passkey,
	}
	for _, key := range []string{"MPESA_CONSUMER_KEY", "MPESA_CONSUMER_SECRET", "MPESA_SHORTCODE", "MPESA_PASSKEY"} {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, fmt.Errorf("%s not defined", key))
		}
	}
	return errors.Join(errs...)
}

// Validate checks everything the server needs to start.
func (c *Config) Validate() error {
	errs := []error{c.ValidateProvider()}
	switch c.StoreDriver {
	case DriverPostgres:
		if c.ConnString == "" {
			errs = append(errs, errors.New("CONN_STRING not defined"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH not defined"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.TollAmount <= 0 {
		errs = append(errs, errors.New("TOLL_AMOUNT must be a positive integer"))
	}
	if c.PollMaxAttempts <= 0 {
		errs = append(errs, errors.New("POLL_MAX_ATTEMPTS must be positive"))
	}
	if c.GateValidityWindow <= 0 {
		errs = append(errs, errors.New("GATE_VALIDITY_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}
