package routes

import (
    "context"
    "fmt"
    "log/slog"
    "net/http"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/gofiber/fiber/v2/middleware/logger"
    "github.com/gofiber/fiber/v2/middleware/recover"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/redis/go-redis/v9"

    "github.com/guardwallet/guard_wallet/internal/config"
    "github.com/guardwallet/guard_wallet/internal/factory"
    "github.com/guardwallet/guard_wallet/internal/funding"
    "github.com/guardwallet/guard_wallet/internal/identity"
    "github.com/guardwallet/guard_wallet/internal/infra"
    "github.com/guardwallet/guard_wallet/internal/ledger"
    "github.com/guardwallet/guard_wallet/internal/logging"
    "github.com/guardwallet/guard_wallet/internal/middleware"
    "github.com/guardwallet/guard_wallet/internal/notification"
    "github.com/guardwallet/guard_wallet/internal/oracle"
    "github.com/guardwallet/guard_wallet/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
    Cfg    config.Config
    DB     *pgxpool.Pool
    Cache  *redis.Client
    Logger *slog.Logger
    // Oracle overrides the request channel. When nil it is derived from Cache.
    Oracle oracle.Channel
    // Now overrides the wallet clock in tests.
    Now func() time.Time
}

// Services are the wired application services.
type Services struct {
    Identities *identity.Service
    Wallets    *wallet.Service
    Factory    *factory.Service
    Funding    *funding.Service
    Oracle     oracle.Channel
    Ledger     ledger.Ledger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (Services, error) {
    if !d.Cfg.IsDev() {
        if d.DB == nil {
            return Services{}, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
        }
        if d.Cache == nil {
            return Services{}, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
        }
    }
    if d.Logger == nil {
        d.Logger = logging.Discard()
    }

    app.Use(recover.New())
    app.Use(middleware.RequestID())
    if d.Cfg.IsDev() {
        // [HH:MM:SS] 200 -  145ms METHOD /path
        app.Use(logger.New(logger.Config{
            Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
            TimeFormat: "15:04:05",
            TimeZone:   "Local",
        }))
    }
    app.Use(middleware.CallerAddress())
    app.Use(middleware.Audit(d.Logger))

    RegisterHealthRoutes(app, d)

    svc, err := buildServices(d)
    if err != nil {
        return Services{}, err
    }

    api := app.Group("/api/v1")
    api.Get("/ping", func(c *fiber.Ctx) error {
        return c.Status(http.StatusOK).JSON(fiber.Map{
            "status":     "ok",
            "request_id": middleware.RequestIDFrom(c),
            "timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
        })
    })

    // Oracle callbacks are correlated by request id and registered ahead of
    // the idempotency middleware.
    walletHandler := wallet.NewHandler(svc.Wallets)
    RegisterOracleRoutes(api, walletHandler)

    client := api.Group("")
    if d.Cache != nil {
        client.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
    }
    RegisterIdentityRoutes(client, svc.Identities, svc.Factory, d.Logger)
    RegisterFactoryRoutes(client, svc.Factory)
    RegisterWalletMeRoute(client, svc.Identities, svc.Factory, svc.Wallets)
    RegisterFundingRoutes(client, funding.NewHandler(svc.Funding))
    RegisterWalletRoutes(client, walletHandler, middleware.RateLimit(d.Cache, "reveal", d.Cfg.RevealPerMinute, d.Logger))

    return svc, nil
}

func buildServices(d Deps) (Services, error) {
    var (
        ledgerBackend ledger.Ledger
        identityRepo  identity.Repository
        walletRepo    wallet.Repository
        factoryRepo   factory.Repository
    )
    if d.DB != nil {
        if d.Cfg.AutoMigrate {
            if err := infra.Migrate(context.Background(), d.DB, d.Logger); err != nil {
                return Services{}, err
            }
        }
        ledgerBackend = ledger.NewPostgresLedger(d.DB)
        identityRepo = identity.NewPostgresRepository(d.DB)
        walletRepo = wallet.NewPostgresRepository(d.DB)
        factoryRepo = factory.NewPostgresRepository(d.DB)
    } else {
        ledgerBackend = ledger.NewInMemory()
        identityRepo = identity.NewMemoryRepository()
        walletRepo = wallet.NewMemoryRepository()
        factoryRepo = factory.NewMemoryRepository()
    }

    channel := d.Oracle
    if channel == nil {
        if d.Cache != nil {
            channel = oracle.NewRedisChannel(d.Cache, d.Cfg.OracleQueueKey)
        } else {
            channel = oracle.NewMemoryChannel()
        }
    }

    identitySvc := identity.NewService(identityRepo, ledgerBackend)
    factorySvc := factory.NewService(factory.Config{
        Address:    d.Cfg.FactoryAddress,
        DailyLimit: d.Cfg.DefaultDailyLimit,
        Ledger:     ledgerBackend,
    }, factoryRepo, identitySvc, d.Logger)
    walletSvc := wallet.NewService(wallet.Deps{
        Repo:          walletRepo,
        Ledger:        factorySvc.Ledger(),
        Directory:     identitySvc,
        Oracle:        channel,
        Notifier:      notification.NewLoggerNotifier(d.Logger),
        Logger:        d.Logger,
        OracleAddress: d.Cfg.OracleAddress,
        JobID:         d.Cfg.OracleJobID,
        Now:           d.Now,
    })
    factorySvc.UseBuilder(walletSvc)
    walletSvc.UseRegistry(factorySvc)
    fundingSvc := funding.NewService(ledgerBackend, identitySvc, d.Cfg.OperatorAddress, d.Logger)

    return Services{
        Identities: identitySvc,
        Wallets:    walletSvc,
        Factory:    factorySvc,
        Funding:    fundingSvc,
        Oracle:     channel,
        Ledger:     ledgerBackend,
    }, nil
}
