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
	"github.com/terravest/terravest-backend/internal/events"
	"github.com/terravest/terravest-backend/internal/network"
	"github.com/terravest/terravest-backend/internal/ranks"
	"github.com/terravest/terravest-backend/internal/wallet"
	"github.com/terravest/terravest-backend/pkg/config"
	"github.com/terravest/terravest-backend/pkg/db"
	"github.com/terravest/terravest-backend/pkg/logger"
	"github.com/terravest/terravest-backend/pkg/metrics"
	"github.com/terravest/terravest-backend/pkg/migrate"
	"github.com/terravest/terravest-backend/pkg/outbox"
	"github.com/terravest/terravest-backend/pkg/pubsub"
	"github.com/terravest/terravest-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "event-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "event-worker"

	logg = logger.New(logger.Options{
		ServiceName: "event-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	subscription := pubsubClient.EventsSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "events subscription", errors.New("subscription not configured"))
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	walletService, err := wallet.NewService(
		wallet.NewRepository(dbClient.DB()),
		metrics.NewWalletMetrics(prometheus.DefaultRegisterer),
	)
	requireResource(ctx, logg, "wallet service", err)

	networkService, err := network.NewService(network.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "network service", err)

	ranksService, err := ranks.NewService(ranks.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "ranks service", err)

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
	requireResource(ctx, logg, "commission service", err)

	handler, err := events.NewHandler(
		dbClient,
		events.NewRepository(dbClient.DB()),
		networkService,
		walletService,
		commissionService,
		outboxService,
		redisClient,
		logg,
	)
	requireResource(ctx, logg, "event handler", err)

	consumer, err := events.NewConsumer(handler, subscription, logg)
	requireResource(ctx, logg, "event consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "event worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "event worker failed", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "event worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
