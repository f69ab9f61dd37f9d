package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/terravest/terravest-backend/internal/commission"
	"github.com/terravest/terravest-backend/internal/cron"
	"github.com/terravest/terravest-backend/internal/network"
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
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

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

	matchingJob, err := cron.NewMatchingCycleJob(cron.MatchingCycleJobParams{
		Logger: logg,
		Engine: commissionService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create matching cycle job", err)
		os.Exit(1)
	}

	auditJob, err := cron.NewTreeAuditJob(cron.TreeAuditJobParams{
		Logger:  logg,
		Auditor: networkService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create tree audit job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(matchingJob, auditJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cron-worker:%s", env)
}
