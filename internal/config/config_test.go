package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "SESSION_TTL", "SWEEP_INTERVAL", "GRACE_WINDOW",
		"GENERATE_TIMEOUT", "SOLVER_MAX_NODES", "ALLOWED_ORIGINS", "REDIS_ADDR", "REDIS_DB", "RESULTS_QUEUE_NAME"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 30*time.Second, cfg.GraceWindow)
	assert.Equal(t, 5_000_000, cfg.SolverMaxNodes)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "sudoku_results", cfg.ResultsQueue)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("GRACE_WINDOW", "45s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REDIS_DB", "3")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, logrus.WarnLevel, cfg.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.GraceWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoadRejectsMalformed(t *testing.T) {
	t.Setenv("SESSION_TTL", "forever")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SESSION_TTL", "")
	t.Setenv("SOLVER_MAX_NODES", "lots")
	_, err = Load()
	assert.Error(t, err)
}
