package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig
	Redis       RedisConfig
	DB          DBConfig
	Auth        AuthConfig
	Reservation ReservationConfig
	Sweeper     SweeperConfig
	RateLimit   RateLimitConfig
	Log         LogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"8080"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// RedisConfig holds hot-state store configuration. The timeout is the
// per-operation network deadline; every call against the hot-state store
// runs under it.
type RedisConfig struct {
	Addr           string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password       string `envconfig:"REDIS_PASSWORD" default:""`
	DB             int    `envconfig:"REDIS_DB" default:"0"`
	TimeoutSeconds int    `envconfig:"REDIS_TIMEOUT_SECONDS" default:"2"`
}

// Timeout returns the per-operation deadline for hot-state calls.
func (c RedisConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DBConfig holds durable-store configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           int    `envconfig:"DB_PORT" default:"5432"`
	User           string `envconfig:"DB_USER" default:"postgres"`
	Password       string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name           string `envconfig:"DB_NAME" default:"inventory_db"`
	SSLMode        string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns       int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns       int    `envconfig:"DB_MIN_CONNS" default:"5"`
	TimeoutSeconds int    `envconfig:"DB_TIMEOUT_SECONDS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// Timeout returns the per-operation deadline for durable-store calls.
func (c DBConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AuthConfig holds bearer-token configuration.
type AuthConfig struct {
	Secret          string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"` // CHANGE IN PRODUCTION
	TokenTTLMinutes int    `envconfig:"JWT_TTL_MINUTES" default:"15"`
}

// TokenTTL returns the lifetime of issued tokens.
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// ReservationConfig holds the reservation lifecycle parameters.
type ReservationConfig struct {
	TTLSeconds            int `envconfig:"RESERVATION_TTL_SECONDS" default:"300"`
	MaxQuantity           int `envconfig:"MAX_QUANTITY_PER_RESERVATION" default:"5"`
	IdempotencyTTLSeconds int `envconfig:"IDEMPOTENCY_TTL_SECONDS" default:"600"`
}

// TTL returns the hold duration of a new reservation.
func (c ReservationConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// IdempotencyTTL returns how long a reserve response stays replayable.
// Must be at least as long as the reservation TTL so retries during the
// hold window are recognised.
func (c ReservationConfig) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLSeconds) * time.Second
}

// SweeperConfig holds expiry sweeper configuration. Embedded runs the
// sweeper inside the API process instead of the standalone worker.
type SweeperConfig struct {
	IntervalSeconds int  `envconfig:"SWEEPER_INTERVAL_SECONDS" default:"1"`
	BatchSize       int  `envconfig:"SWEEPER_BATCH_SIZE" default:"100"`
	Embedded        bool `envconfig:"SWEEPER_EMBEDDED" default:"false"`
}

// Interval returns the sweeper tick cadence.
func (c SweeperConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RateLimitConfig holds the per-user request gate configuration.
type RateLimitConfig struct {
	Enabled       bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	PerWindow     int  `envconfig:"RATE_LIMIT_PER_MINUTE" default:"10"`
	WindowSeconds int  `envconfig:"RATE_LIMIT_WINDOW_SECONDS" default:"60"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
