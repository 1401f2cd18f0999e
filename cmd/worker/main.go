package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flexype/inventory-reservation/internal/config"
	"github.com/flexype/inventory-reservation/internal/repository"
	"github.com/flexype/inventory-reservation/internal/service"
	"github.com/flexype/inventory-reservation/internal/worker"
	"github.com/flexype/inventory-reservation/pkg/database"
	"github.com/flexype/inventory-reservation/pkg/redis"
)

// The standalone sweeper process. Runs the same reservation engine as the
// API so expiry writes the same audit trail; safe to run alongside it or
// to restart at any point.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure database schema")
	}

	hot, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Timeout:  cfg.Redis.Timeout(),
	}, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to hot-state store")
	}

	inventoryRepo := repository.NewInventoryRepository(hot)
	idempotencyRepo := repository.NewIdempotencyRepository(hot, cfg.Reservation.IdempotencyTTL())
	auditRepo := repository.NewAuditRepository(pool)
	engine := service.NewReservationService(
		inventoryRepo, idempotencyRepo, auditRepo,
		cfg.Reservation.TTL(), cfg.Reservation.MaxQuantity,
	)

	sweeper := worker.NewSweeper(engine, cfg.Sweeper.Interval(), cfg.Sweeper.BatchSize)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start sweeper")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	sweeper.Stop()

	if err := hot.Close(); err != nil {
		log.Error().Err(err).Msg("error closing hot-state client")
	}
	pool.Close()
	log.Info().Msg("worker stopped")
}

func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
