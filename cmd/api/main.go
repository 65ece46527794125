package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/dinein-backend/api/routes"
	"github.com/angelmondragon/dinein-backend/internal/app"
	"github.com/angelmondragon/dinein-backend/pkg/config"
	"github.com/angelmondragon/dinein-backend/pkg/db"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	"github.com/angelmondragon/dinein-backend/pkg/instance"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/metrics"
	"github.com/angelmondragon/dinein-backend/pkg/migrate"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
	"github.com/angelmondragon/dinein-backend/pkg/redis"
)

const (
	serviceKind     = "api"
	shutdownTimeout = 15 * time.Second
)

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

	services, err := app.Build(cfg, logg, dbClient, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Every websocket client shares one redis subscription per table.
	redisFeed, err := realtime.NewRedisFeed(realtime.NewRedisBroker(redisClient), logg)
	if err != nil {
		logg.Error(ctx, "failed to create realtime feed", err)
		os.Exit(1)
	}
	hub := realtime.NewHub()
	forwards, err := realtime.Forward(ctx, redisFeed, hub, enums.RealtimeTables()...)
	if err != nil {
		logg.Error(ctx, "failed to subscribe realtime tables", err)
		os.Exit(1)
	}
	defer func() {
		if err := realtime.UnsubscribeAll(forwards); err != nil {
			logg.Error(context.Background(), "error closing realtime subscriptions", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Services: services,
			Realtime: realtime.NewServer(hub, logg, realtime.ServerOptions{
				WriteTimeout:  cfg.Realtime.WriteTimeout,
				PingInterval:  cfg.Realtime.PingInterval,
				AllowedOrigin: cfg.Realtime.AllowedOrigin,
				Tables:        enums.RealtimeTables(),
			}),
			Commands: metrics.NewCommandMetrics(prometheus.DefaultRegisterer),
			Gatherer: prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
