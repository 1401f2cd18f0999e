package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flexype/inventory-reservation/internal/config"
	"github.com/flexype/inventory-reservation/internal/handler"
	"github.com/flexype/inventory-reservation/internal/middleware"
	"github.com/flexype/inventory-reservation/internal/repository"
	"github.com/flexype/inventory-reservation/internal/service"
	"github.com/flexype/inventory-reservation/internal/validator"
	"github.com/flexype/inventory-reservation/internal/worker"
	"github.com/flexype/inventory-reservation/pkg/database"
	"github.com/flexype/inventory-reservation/pkg/redis"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure database schema")
	}

	// Initialize hot-state client with retry
	hot, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Timeout:  cfg.Redis.Timeout(),
	}, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to hot-state store")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Inventory Reservation Core",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator
	validate := validator.New()

	// Initialize reservation components (layered architecture)
	inventoryRepo := repository.NewInventoryRepository(hot)
	idempotencyRepo := repository.NewIdempotencyRepository(hot, cfg.Reservation.IdempotencyTTL())
	orderRepo := repository.NewOrderRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	reservationService := service.NewReservationService(
		inventoryRepo, idempotencyRepo, auditRepo,
		cfg.Reservation.TTL(), cfg.Reservation.MaxQuantity,
	)
	checkoutService := service.NewCheckoutService(
		pool, inventoryRepo, orderRepo, auditRepo, service.DefaultCatalog(),
	)

	inventoryHandler := handler.NewInventoryHandler(reservationService, validate)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, reservationService, validate)

	// Health handler
	healthHandler := handler.NewHealthHandler(pool, handler.RedisPinger{Client: hot})
	app.Get("/health", healthHandler.Check)

	// Protected routes: bearer auth, then the per-user rate gate
	authed := app.Group("/v1", middleware.RequireAuth(cfg.Auth.Secret), middleware.RateLimit(cfg.RateLimit, hot))
	authed.Post("/inventory/:sku/initialize", inventoryHandler.Initialize)
	authed.Get("/inventory/:sku", inventoryHandler.Status)
	authed.Post("/inventory/reserve", inventoryHandler.Reserve)
	authed.Post("/checkout/confirm", checkoutHandler.Confirm)
	authed.Post("/checkout/cancel", checkoutHandler.Cancel)
	authed.Get("/checkout/orders/:order_id", checkoutHandler.GetOrder)

	// Optional embedded sweeper for single-process deployments; the
	// standalone worker binary is the production path.
	var sweeper *worker.Sweeper
	if cfg.Sweeper.Embedded {
		sweeper = worker.NewSweeper(reservationService, cfg.Sweeper.Interval(), cfg.Sweeper.BatchSize)
		if err := sweeper.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start embedded sweeper")
		}
	}

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if sweeper != nil {
		sweeper.Stop()
	}

	// Close stores AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing store connections...")
	if err := hot.Close(); err != nil {
		log.Error().Err(err).Msg("error closing hot-state client")
	}
	pool.Close()
	log.Info().Msg("store connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
