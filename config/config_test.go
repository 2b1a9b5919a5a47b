package config

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gold-ledger/gold"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gold.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, time.Hour, cfg.ConsistencyCheckInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)

	def := gold.DefaultItemConfig()
	assert.True(t, cfg.Items.VATPercent.Equal(def.VATPercent))
	assert.True(t, cfg.Items.MithqalFactor.Equal(def.MithqalFactor))
	assert.True(t, cfg.Items.ReferencePurity.Equal(decimal.NewFromInt(750)))
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"PORT":                       "9090",
		"LOG_FORMAT":                 "text",
		"VAT_PERCENT":                "9",
		"GENERAL_TAX_PERCENT":        "1.5",
		"CONSISTENCY_CHECK_INTERVAL": "0",
		"CORS_ORIGINS":               "https://desk.example, https://admin.example ,",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.Items.VATPercent.Equal(decimal.NewFromInt(9)))
	assert.True(t, cfg.Items.GeneralTaxPercent.Equal(decimal.RequireFromString("1.5")))
	assert.Zero(t, cfg.ConsistencyCheckInterval)
	assert.Equal(t, []string{"https://desk.example", "https://admin.example"}, cfg.CORSOrigins)
}

func TestFromEnv_RejectsBadValues(t *testing.T) {
	for key, value := range map[string]string{
		"VAT_PERCENT":                "ten",
		"GENERAL_TAX_PERCENT":        "-1",
		"MITHQAL_FACTOR":             "0",
		"REFERENCE_PURITY":           "0",
		"CONSISTENCY_CHECK_INTERVAL": "hourly",
		"LOG_FORMAT":                 "xml",
	} {
		t.Run(key, func(t *testing.T) {
			_, err := FromEnv(envOf(map[string]string{key: value}))
			assert.Error(t, err)
		})
	}
}

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(Config{LogLevel: "debug", LogFormat: "json"}, &buf)
	require.NoError(t, err)
	logger.WithField("module", "test").Debug("hello")
	assert.Contains(t, buf.String(), `"module":"test"`)
	assert.Contains(t, buf.String(), `"level":"debug"`)

	buf.Reset()
	logger, err = newLogger(Config{LogLevel: "warn", LogFormat: "text"}, &buf)
	require.NoError(t, err)
	logger.Info("dropped")
	assert.Empty(t, buf.String(), "below warn is filtered")
	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")

	_, err = newLogger(Config{LogLevel: "loud"}, &buf)
	assert.Error(t, err)
}

func TestLogError_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(Config{LogLevel: "info", LogFormat: "json"}, &buf)
	require.NoError(t, err)

	LogError(logger, "api", "CreateTransaction", map[string]string{"id": "tx-1"}, errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, `"funcName":"CreateTransaction"`)
	assert.Contains(t, out, `"module":"api"`)
	assert.Contains(t, out, `"msg":"boom"`)
}
