// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port           string
	LogLevel       logrus.Level
	SessionTTL     time.Duration
	SweepInterval  time.Duration
	GraceWindow    time.Duration
	GenerateBudget time.Duration
	SolverMaxNodes int
	AllowedOrigins []string
	RedisAddr      string // empty disables the results feed
	RedisDB        int
	ResultsQueue   string
}

// Load reads the environment. Unset variables take their defaults; malformed
// ones are an error.
func Load() (Config, error) {
	cfg := Config{
		Port:           getEnv("PORT", "3000"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		ResultsQueue:   getEnv("RESULTS_QUEUE_NAME", "sudoku_results"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
	}

	lvl, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "debug"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = lvl

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"SESSION_TTL", 2 * time.Hour, &cfg.SessionTTL},
		{"SWEEP_INTERVAL", 10 * time.Minute, &cfg.SweepInterval},
		{"GRACE_WINDOW", 30 * time.Second, &cfg.GraceWindow},
		{"GENERATE_TIMEOUT", 2 * time.Second, &cfg.GenerateBudget},
	}
	for _, d := range durations {
		if *d.dst, err = getEnvDuration(d.key, d.def); err != nil {
			return Config{}, err
		}
	}

	if cfg.SolverMaxNodes, err = getEnvInt("SOLVER_MAX_NODES", 5_000_000); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
