package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/bankledger/internal/banking"
	"github.com/congo-pay/bankledger/internal/config"
	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/ledger/memory"
	"github.com/congo-pay/bankledger/internal/ledger/postgres"
	"github.com/congo-pay/bankledger/internal/lock"
	"github.com/congo-pay/bankledger/internal/middleware"
	"github.com/congo-pay/bankledger/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

type store interface {
	ledger.Store
	banking.AccountOpener
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDevelopment() && d.DB == nil {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var backend store
	if d.DB != nil {
		backend = postgres.New(d.DB)
	} else {
		d.Logger.Warn("no database configured, accounts are kept in memory")
		backend = memory.New()
	}

	slot, err := transferSlot(d)
	if err != nil {
		return err
	}

	led := ledger.New(backend, ledger.WithSlot(slot), ledger.WithLogger(d.Logger))
	notifier := notification.NewLoggerNotifier(d.Logger)
	accountHandler := banking.NewHandler(banking.NewService(led, backend, notifier, d.Logger))

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	limiter := middleware.MutationRateLimit(d.Cache, d.Cfg.MutationRateLimit, d.Logger)
	RegisterAccountRoutes(api, accountHandler, limiter)

	return nil
}

func transferSlot(d Deps) (ledger.Slot, error) {
	if d.Cfg.TransferLock != config.LockRedis {
		return ledger.NewLocalSlot(), nil
	}
	if d.Cache == nil {
		return nil, fmt.Errorf("redis is required when TRANSFER_LOCK=%s", config.LockRedis)
	}
	opts := lock.DefaultOptions()
	opts.Expiry = d.Cfg.TransferLockTTL
	slot, err := lock.NewRedisSlot(d.Cache, opts, d.Logger)
	if err != nil {
		return nil, fmt.Errorf("transfer lock: %w", err)
	}
	return slot, nil
}
