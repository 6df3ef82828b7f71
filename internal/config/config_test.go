package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/stockai/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "stockai_dev", cfg.Database.DBName)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Engine.MaxSteps)
	assert.Equal(t, 3, cfg.Engine.MaxReplans)
	assert.Equal(t, 60*time.Second, cfg.Engine.StepTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Engine.RunTimeout)
	assert.Empty(t, cfg.LLM.APIKey)
	assert.Equal(t, "http://localhost:9000", cfg.Market.BaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STOCKAI_DB_HOST", "db.internal")
	t.Setenv("STOCKAI_DB_PORT", "5433")
	t.Setenv("STOCKAI_ENGINE_MAX_STEPS", "4")
	t.Setenv("STOCKAI_ENGINE_STEP_TIMEOUT", "30s")
	t.Setenv("STOCKAI_ENGINE_RUN_TIMEOUT", "2m")
	t.Setenv("STOCKAI_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STOCKAI_LLM_TEMPERATURE", "0.7")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 4, cfg.Engine.MaxSteps)
	assert.Equal(t, 30*time.Second, cfg.Engine.StepTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Engine.RunTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non-numeric port", key: "STOCKAI_DB_PORT", value: "nope"},
		{name: "port out of range", key: "STOCKAI_DB_PORT", value: "70000"},
		{name: "zero max conns", key: "STOCKAI_DB_MAX_CONNS", value: "0"},
		{name: "bad duration", key: "STOCKAI_ENGINE_RUN_TIMEOUT", value: "fast"},
		{name: "zero max steps", key: "STOCKAI_ENGINE_MAX_STEPS", value: "0"},
		{name: "negative replans", key: "STOCKAI_ENGINE_MAX_REPLANS", value: "-1"},
		{name: "temperature out of range", key: "STOCKAI_LLM_TEMPERATURE", value: "3.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}

func TestLoad_RunTimeoutBelowStepTimeout(t *testing.T) {
	t.Setenv("STOCKAI_ENGINE_STEP_TIMEOUT", "1m")
	t.Setenv("STOCKAI_ENGINE_RUN_TIMEOUT", "30s")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STOCKAI_ENGINE_RUN_TIMEOUT")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	db := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "stockai",
		Password: "secret",
		DBName:   "stockai_dev",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=stockai password=secret dbname=stockai_dev sslmode=disable",
		db.DSN(),
	)
}
