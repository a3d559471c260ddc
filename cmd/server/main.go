package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/library-service/internal/config"
	"github.com/iliyamo/library-service/internal/database"
	"github.com/iliyamo/library-service/internal/handler"
	"github.com/iliyamo/library-service/internal/observability"
	"github.com/iliyamo/library-service/internal/queue"
	"github.com/iliyamo/library-service/internal/repository"
	"github.com/iliyamo/library-service/internal/repository/memory"
	"github.com/iliyamo/library-service/internal/repository/mysql"
	"github.com/iliyamo/library-service/internal/router"
	"github.com/iliyamo/library-service/internal/service"
)

func main() {
	migrateOnly := flag.String("migrate", "", `apply migrations and exit: "up" or "down"`)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := observability.InitLogger(observability.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// Amounts are written as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	if *migrateOnly != "" {
		if err := runMigrations(cfg, *migrateOnly); err != nil {
			logger.Error("migrate", "direction", *migrateOnly, "err", err)
			os.Exit(1)
		}
		logger.Info("migrations applied", "direction", *migrateOnly)
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func dsn(cfg config.Config) string {
	return database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

func runMigrations(cfg config.Config, direction string) error {
	if cfg.StoreDriver != config.StoreMySQL {
		return errors.New("migrations require STORE_DRIVER=mysql")
	}
	switch direction {
	case "up":
		return database.Migrate(dsn(cfg))
	case "down":
		return database.MigrateDown(dsn(cfg))
	}
	return errors.New(`direction must be "up" or "down"`)
}

// openStore returns the configured store and a function releasing it.
func openStore(cfg config.Config, logger *slog.Logger) (repository.Store, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("using the in-memory store; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(dsn(cfg)); err != nil {
			return nil, nil, err
		}
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, err
	}
	return mysql.NewStore(db), func() { _ = db.Close() }, nil
}

func run(cfg config.Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	var events service.EventPublisher = queue.NopPublisher{}
	qcfg := config.LoadQueueConfig()
	if qcfg.Enabled {
		pub := queue.NewPublisher(qcfg.URL, qcfg.Queue, logger)
		defer pub.Close()
		events = pub
		if qcfg.AuditEnabled {
			consumer := &queue.AuditConsumer{URL: qcfg.URL, Queue: qcfg.Queue, LogPath: qcfg.AuditLogPath, Logger: logger}
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("audit consumer stopped", "err", err)
				}
			}()
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and response cache disabled")
	} else {
		defer func(c *redis.Client) { _ = c.Close() }(rdb)
	}

	lp := config.LoadLoanPolicy()
	policy := service.LoanPolicy{
		LoanPeriod:           lp.LoanPeriod,
		DefaultExtensionDays: lp.DefaultExtensionDays,
		MaxExtensionDays:     lp.MaxExtensionDays,
		MaxExtensions:        lp.MaxExtensions,
		ReservationTTL:       lp.ReservationTTL,
	}
	deps := service.Deps{Store: store, Events: events, Metrics: metrics, Logger: logger}
	copies := service.NewCopyInventory(deps)
	reservations := service.NewReservationLedger(deps, policy)
	loans := service.NewLoanLedger(deps, policy, copies, reservations)
	auth := service.NewAuthService(deps, service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	})

	if cfg.AdminEmail != "" {
		admin, created, err := auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			logger.Info("bootstrap admin created", "user_id", admin.ID, "email", admin.Email)
		}
	}

	e := router.New(router.Handlers{
		Auth:         handler.NewAuthHandler(auth),
		Catalog:      handler.NewCatalogHandler(service.NewCatalog(deps, copies), copies),
		Loans:        handler.NewLoanHandler(loans),
		Reservations: handler.NewReservationHandler(reservations),
		Penalties:    handler.NewPenaltyHandler(service.NewPenaltyLedger(deps)),
		Users:        handler.NewUserHandler(service.NewUserAdmin(deps, cfg.BcryptCost)),
		Stats:        handler.NewStatsHandler(service.NewStatsAggregator(deps)),
	}, router.Options{
		JWTSecret:   cfg.JWTSecret,
		Store:       store,
		Logger:      logger,
		Metrics:     metrics,
		Redis:       rdb,
		RateLimit:   config.LoadRateLimitConfig(),
		Cache:       config.LoadCacheConfig(),
		CORSOrigins: cfg.CORSOrigins,
	})

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
