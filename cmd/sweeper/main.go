package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/medisched/slot-scheduling/internal/config"
	"github.com/medisched/slot-scheduling/internal/db"
	redisclient "github.com/medisched/slot-scheduling/internal/redis"
	"github.com/medisched/slot-scheduling/internal/scheduling"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "sweeper").Logger()
	logger.Info().Msg("sweeper starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.SweepInterval).
		Dur("grace", cfg.NoShowGrace).
		Msg("configuration loaded")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	notifier := redisclient.NewPublisher(rdb, cfg.NotifyChannel)
	sweeper := scheduling.NewSweeper(repo, repo, notifier, cfg.SweepInterval, cfg.NoShowGrace, logger)

	sweeper.Run(rootCtx)

	logger.Info().Msg("sweeper stopped")
}
