package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName           = "BankLedger"
	defaultAppEnv            = EnvDevelopment
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultShutdownDelay     = 10 * time.Second
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultTransferLockTTL   = 10 * time.Second
	defaultMutationRateLimit = 120
	idemTTLSecondsEnvVar     = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar         = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar    = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar   = "SHUTDOWN_TIMEOUT"
	lockTTLSecondsEnvVar     = "TRANSFER_LOCK_TTL_SECONDS"
	lockTTLDurEnvVar         = "TRANSFER_LOCK_TTL"
)

// EnvDevelopment is the only environment allowed to run without Postgres.
const EnvDevelopment = "development"

// Transfer slot implementations.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	DatabaseURL     string
	DBMaxConns      int32
	RedisURL        string
	MigrateOnStart  bool
	TransferLock    string
	TransferLockTTL time.Duration
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration

	// MutationRateLimit caps mutating requests per account per minute; 0 disables it.
	MutationRateLimit int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		MigrateOnStart:    true,
		TransferLock:      strings.ToLower(getEnv("TRANSFER_LOCK", LockLocal)),
		MutationRateLimit: defaultMutationRateLimit,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.TransferLockTTL, err = durationEnv(lockTTLSecondsEnvVar, lockTTLDurEnvVar, defaultTransferLockTTL); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("MIGRATE_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MIGRATE_ON_START: %w", err)
		}
		cfg.MigrateOnStart = b
	}

	if v := os.Getenv("MUTATION_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid MUTATION_RATE_LIMIT: %q", v)
		}
		cfg.MutationRateLimit = n
	}

	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
		}
		cfg.DBMaxConns = int32(n)
	}

	if cfg.DatabaseURL == "" && !cfg.IsDevelopment() {
		return Config{}, fmt.Errorf("DATABASE_URL must be set outside %s", EnvDevelopment)
	}

	switch cfg.TransferLock {
	case LockLocal:
	case LockRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when TRANSFER_LOCK=%s", LockRedis)
		}
	default:
		return Config{}, fmt.Errorf("invalid TRANSFER_LOCK %q (want %s or %s)", cfg.TransferLock, LockLocal, LockRedis)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in the development environment.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads a whole-seconds variable first, then a Go duration string.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}
