package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/terravest/terravest-backend/api/routes"
	"github.com/terravest/terravest-backend/internal/commission"
	"github.com/terravest/terravest-backend/internal/kyc"
	"github.com/terravest/terravest-backend/internal/network"
	"github.com/terravest/terravest-backend/internal/payout"
	"github.com/terravest/terravest-backend/internal/ranks"
	"github.com/terravest/terravest-backend/internal/wallet"
	"github.com/terravest/terravest-backend/pkg/config"
	"github.com/terravest/terravest-backend/pkg/db"
	"github.com/terravest/terravest-backend/pkg/logger"
	"github.com/terravest/terravest-backend/pkg/metrics"
	"github.com/terravest/terravest-backend/pkg/migrate"
	"github.com/terravest/terravest-backend/pkg/outbox"
	"github.com/terravest/terravest-backend/pkg/redis"
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

	walletService, err := wallet.NewService(
		wallet.NewRepository(dbClient.DB()),
		metrics.NewWalletMetrics(prometheus.DefaultRegisterer),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	networkService, err := network.NewService(network.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create network service", err)
		os.Exit(1)
	}

	ranksService, err := ranks.NewService(ranks.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ranks service", err)
		os.Exit(1)
	}

	commissionService, err := commission.NewService(
		dbClient,
		commission.NewRepository(dbClient.DB()),
		networkService,
		walletService,
		ranksService,
		outboxService,
		cfg.Commission,
		metrics.NewCommissionMetrics(prometheus.DefaultRegisterer),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission service", err)
		os.Exit(1)
	}

	kycChecker, err := kyc.NewChecker(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create kyc checker", err)
		os.Exit(1)
	}

	payoutService, err := payout.NewService(
		dbClient,
		payout.NewRepository(dbClient.DB()),
		walletService,
		kycChecker,
		outboxService,
		cfg.Payout,
		metrics.NewPayoutMetrics(prometheus.DefaultRegisterer),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
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
			walletService,
			commissionService,
			payoutService,
			networkService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
