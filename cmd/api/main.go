package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/laboutiquedemorgane/boutique-backend/api/routes"
	"github.com/laboutiquedemorgane/boutique-backend/internal/coupons"
	"github.com/laboutiquedemorgane/boutique-backend/internal/ledger"
	"github.com/laboutiquedemorgane/boutique-backend/internal/packages"
	"github.com/laboutiquedemorgane/boutique-backend/internal/returns"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/config"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/db"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/logger"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/migrate"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/outbox"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	packagesService, err := packages.NewService(packages.ServiceParams{
		Repo:     packages.NewRepository(dbClient.DB()),
		Ledger:   ledgerService,
		Outbox:   outboxService,
		Tx:       dbClient,
		Packages: cfg.Packages,
		Loyalty:  cfg.Loyalty,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create packages service", err)
		os.Exit(1)
	}

	returnsService, err := returns.NewService(returns.ServiceParams{
		Repo:    returns.NewRepository(dbClient.DB()),
		Ledger:  ledgerService,
		Outbox:  outboxService,
		Tx:      dbClient,
		Returns: cfg.Returns,
		Loyalty: cfg.Loyalty,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create returns service", err)
		os.Exit(1)
	}

	couponsService, err := coupons.NewService(coupons.NewRepository(dbClient.DB()), logg, time.Now)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupons service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			packagesService,
			returnsService,
			ledgerService,
			couponsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
