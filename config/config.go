/*
Package config reads process configuration.

SOURCES (later wins):
  1. built-in defaults
  2. .env in the working directory (optional, via godotenv)
  3. the process environment
  4. command-line flags in cmd/server (PORT, DB_PATH only)

KEYS:
  PORT                        HTTP port (8080)
  DB_PATH                     SQLite file (gold.db)
  LOG_LEVEL                   logrus level (info)
  LOG_FORMAT                  json | text (json)
  VAT_PERCENT                 VAT on fee + profit (10)
  GENERAL_TAX_PERCENT         general tax on fee + profit (0)
  MITHQAL_FACTOR              per-mithqal to per-gram divisor (4.3318)
  REFERENCE_PURITY            normalization basis (750)
  CONSISTENCY_CHECK_INTERVAL  ledger check period, 0 disables (1h)
  CORS_ORIGINS                comma separated allowed origins (*)
*/
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/warp/gold-ledger/gold"
)

type Config struct {
	Port                     string
	DBPath                   string
	LogLevel                 string
	LogFormat                string
	Items                    gold.ItemConfig
	ConsistencyCheckInterval time.Duration
	CORSOrigins              []string
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:                     stringOr(getenv("PORT"), "8080"),
		DBPath:                   stringOr(getenv("DB_PATH"), "gold.db"),
		LogLevel:                 stringOr(getenv("LOG_LEVEL"), "info"),
		LogFormat:                stringOr(getenv("LOG_FORMAT"), "json"),
		Items:                    gold.DefaultItemConfig(),
		ConsistencyCheckInterval: time.Hour,
		CORSOrigins:              []string{"*"},
	}

	var err error
	if cfg.Items.VATPercent, err = decimalOr(getenv, "VAT_PERCENT", cfg.Items.VATPercent); err != nil {
		return Config{}, err
	}
	if cfg.Items.GeneralTaxPercent, err = decimalOr(getenv, "GENERAL_TAX_PERCENT", cfg.Items.GeneralTaxPercent); err != nil {
		return Config{}, err
	}
	if cfg.Items.MithqalFactor, err = decimalOr(getenv, "MITHQAL_FACTOR", cfg.Items.MithqalFactor); err != nil {
		return Config{}, err
	}
	if cfg.Items.ReferencePurity, err = decimalOr(getenv, "REFERENCE_PURITY", cfg.Items.ReferencePurity); err != nil {
		return Config{}, err
	}
	if !cfg.Items.MithqalFactor.IsPositive() {
		return Config{}, fmt.Errorf("MITHQAL_FACTOR must be positive, got %s", cfg.Items.MithqalFactor)
	}
	if !cfg.Items.ReferencePurity.IsPositive() {
		return Config{}, fmt.Errorf("REFERENCE_PURITY must be positive, got %s", cfg.Items.ReferencePurity)
	}

	if v := strings.TrimSpace(getenv("CONSISTENCY_CHECK_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("invalid CONSISTENCY_CHECK_INTERVAL %q", v)
		}
		cfg.ConsistencyCheckInterval = d
	}
	if v := strings.TrimSpace(getenv("CORS_ORIGINS")); v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return Config{}, fmt.Errorf("invalid LOG_FORMAT %q (use json or text)", cfg.LogFormat)
	}
	return cfg, nil
}

func stringOr(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func decimalOr(getenv func(string) string, key string, def decimal.Decimal) (decimal.Decimal, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid %s %q: must not be negative", key, v)
	}
	return d, nil
}
