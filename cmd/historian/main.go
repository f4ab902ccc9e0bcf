// cmd/historian/main.go drains the match results queue into aggregate counters.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/sudoku-battle/internal/cache"
	"github.com/jason-s-yu/sudoku-battle/internal/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, addr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer rdb.Close()

	h := cache.NewHistorian(rdb, cfg.ResultsQueue, logger)
	if err := h.Run(ctx); err != nil {
		logger.Errorf("historian stopped: %v", err)
	}

	totals, err := h.Stats(context.Background(), "all")
	if err != nil {
		logger.Warnf("failed to read totals: %v", err)
	} else {
		logger.WithField("totals", totals).Info("historian shutting down")
	}
}
