package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/cache"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/logging"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/pricing"
	"github.com/example/storefront/internal/repository"
	"github.com/example/storefront/internal/repository/memory"
	pgstore "github.com/example/storefront/internal/repository/postgres"
	"github.com/example/storefront/internal/routes"
	"github.com/example/storefront/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, zl)
	if err != nil {
		return err
	}

	cartCache, closeCache := openCache(ctx, cfg, zl)
	defer closeCache()

	notifier, closeNotifier := openNotifier(cfg, zl)
	defer closeNotifier()

	engine := pricing.NewEngine(
		decimal.NewFromFloat(cfg.TaxRate),
		decimal.NewFromFloat(cfg.ShippingFee),
		nil,
	)

	catalog := services.NewCatalogService(store, zl)
	if cfg.SeedCatalog {
		if _, err := catalog.Seed(ctx); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}

	carts := services.NewCartService(store, engine, cartCache, zl)
	checkout := services.NewCheckoutService(store, carts, services.NewTestCardAuthorizer(), notifier, zl,
		services.WithRestockOnCancel(cfg.RestockOnCancel))

	app := fiber.New(fiber.Config{
		AppName:      "Storefront",
		ErrorHandler: handlers.ErrorHandler(zl),
	})
	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, routes.Deps{
		Auth:        services.NewAuthService(store, cfg.JWTSecret, cfg.TokenExpires),
		Catalog:     catalog,
		Carts:       carts,
		Checkout:    checkout,
		Addresses:   services.NewAddressService(store, zl),
		Logger:      zl,
		JWTSecret:   cfg.JWTSecret,
		AdminAPIKey: cfg.AdminAPIKey,
	})

	errCh := make(chan error, 1)
	go func() {
		zl.Info("starting server", zap.String("port", cfg.AppPort), zap.String("store", cfg.StoreDriver))
		errCh <- app.Listen(":" + cfg.AppPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func openStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (repository.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		zl.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	}
	db, err := database.Connect(ctx, cfg.DatabaseURL, zl)
	if err != nil {
		return nil, err
	}
	return pgstore.New(db), nil
}

// openCache falls back to no caching when Redis is not configured or not
// reachable at startup.
func openCache(ctx context.Context, cfg *config.Config, zl *zap.Logger) (cache.CartCache, func()) {
	if cfg.RedisAddr == "" {
		return cache.Noop{}, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zl.Warn("redis unavailable, cart cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = client.Close()
		return cache.Noop{}, func() {}
	}
	return cache.NewRedisCache(client, cfg.CartCacheTTL), func() { _ = client.Close() }
}

func openNotifier(cfg *config.Config, zl *zap.Logger) (notify.Notifier, func()) {
	var (
		sinks   notify.Multi
		closers []func() error
	)
	if len(cfg.KafkaBrokers) > 0 {
		p := notify.NewKafkaPublisher(cfg.KafkaOrderTopic, cfg.KafkaBrokers...)
		sinks = append(sinks, p)
		closers = append(closers, p.Close)
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChat != "" {
		sinks = append(sinks, notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramAdminChat, zl))
	}
	if len(sinks) == 0 {
		return notify.Nop{}, func() {}
	}
	return sinks, func() {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		if err := errors.Join(errs...); err != nil {
			zl.Warn("closing notifiers", zap.Error(err))
		}
	}
}
