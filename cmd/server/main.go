// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/sudoku-battle/internal/auth"
	"github.com/jason-s-yu/sudoku-battle/internal/cache"
	"github.com/jason-s-yu/sudoku-battle/internal/config"
	"github.com/jason-s-yu/sudoku-battle/internal/game"
	"github.com/jason-s-yu/sudoku-battle/internal/handlers"
	"github.com/jason-s-yu/sudoku-battle/internal/puzzle"
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

	ttl, err := auth.TTLFromEnv(2 * time.Hour)
	if err != nil {
		logger.Fatalf("invalid TOKEN_EXPIRE_TIME: %v", err)
	}
	tickets, err := auth.NewTickets(ttl)
	if err != nil {
		logger.Fatalf("failed to init tickets: %v", err)
	}

	timings := game.DefaultTimings()
	timings.GraceWindow = cfg.GraceWindow
	regCfg := game.RegistryConfig{
		TTL:           cfg.SessionTTL,
		SweepInterval: cfg.SweepInterval,
		Timings:       timings,
		Generator:     puzzle.NewGenerator(puzzle.NewSolver(cfg.SolverMaxNodes), cfg.GenerateBudget),
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(context.Background(), cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Warnf("results feed disabled: %v", err)
		} else {
			feed := cache.NewResultsFeed(rdb, cfg.ResultsQueue)
			defer feed.Close()
			regCfg.Results = feed
			logger.Infof("Publishing match results to Redis list %q at %s", feed.Queue, cfg.RedisAddr)
		}
	}

	ss := handlers.NewSessionServer(logger, tickets, cfg.AllowedOrigins, regCfg)
	if err := ss.Registry.Start(); err != nil {
		logger.Fatalf("failed to start session registry: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           ss.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	ss.Registry.Stop()
}
