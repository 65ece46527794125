package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/dinein-backend/internal/relay"
	"github.com/angelmondragon/dinein-backend/pkg/config"
	"github.com/angelmondragon/dinein-backend/pkg/db"
	"github.com/angelmondragon/dinein-backend/pkg/instance"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/metrics"
	"github.com/angelmondragon/dinein-backend/pkg/migrate"
	"github.com/angelmondragon/dinein-backend/pkg/pubsub"
	"github.com/angelmondragon/dinein-backend/pkg/rabbitmq"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
	"github.com/angelmondragon/dinein-backend/pkg/redis"
)

const serviceKind = "realtime-relay"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
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

	sinks := []relay.Sink{relay.NewRedisSink(realtime.NewRedisPublisher(realtime.NewRedisBroker(redisClient)))}

	if cfg.PubSub.Enabled() {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
		sinks = append(sinks, relay.NewPubSubSink(pubsubClient))
	}

	if cfg.RabbitMQ.Enabled() {
		rabbit, err := rabbitmq.Dial(context.Background(), cfg.RabbitMQ, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap rabbitmq", err)
			os.Exit(1)
		}
		defer func() {
			if err := rabbit.Close(); err != nil {
				logg.Error(context.Background(), "error closing rabbitmq", err)
			}
		}()
		sinks = append(sinks, relay.NewKitchenSink(rabbit))
	}

	service, err := relay.NewService(relay.ServiceParams{
		Config:  cfg.Relay,
		Logger:  logg,
		DB:      dbClient,
		Changes: realtime.NewRepository(dbClient.DB()),
		Sinks:   sinks,
		Metrics: metrics.NewRelayMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create realtime relay", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
		"sinks":       len(sinks),
	})
	logg.Info(ctx, "starting realtime relay")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "realtime relay stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "realtime relay shutting down gracefully")
}
