// Command table-monitor follows one table through the change stream and logs
// every cache change. It runs the same synchronization layer a table-side
// terminal embeds.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/dinein-backend/internal/brain"
	"github.com/angelmondragon/dinein-backend/internal/tablesync"
	"github.com/angelmondragon/dinein-backend/internal/tabsync"
	"github.com/angelmondragon/dinein-backend/pkg/config"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
)

const serviceKind = "table-monitor"

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

	tableID, err := uuid.Parse(cfg.Monitor.TableID)
	if err != nil {
		logg.Error(context.Background(), "DINEIN_MONITOR_TABLE_ID must be a table uuid", err)
		os.Exit(1)
	}

	client, err := brain.NewClient(cfg.Brain.BaseURL,
		brain.WithToken(cfg.Brain.Token),
		brain.WithHTTPClient(&http.Client{Timeout: cfg.Brain.Timeout}),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create brain client", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithTableID(ctx, tableID.String())

	feed, err := realtime.DialWSFeed(ctx, client.RealtimeURL(), client.Header(), logg)
	if err != nil {
		logg.Error(ctx, "failed to connect change stream", err)
		os.Exit(1)
	}
	defer func() {
		if err := feed.Close(); err != nil {
			logg.Error(context.Background(), "error closing change stream", err)
		}
	}()

	orderSync, err := tablesync.New(tablesync.Params{
		Store:    client,
		Commands: client,
		Feed:     feed,
		Notifier: tablesync.LogNotifier{Logger: logg},
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create order sync", err)
		os.Exit(1)
	}
	defer orderSync.Close()
	orderSync.OnChange(func(s tablesync.Snapshot) {
		fields := map[string]any{
			"display_status": s.DisplayStatus,
			"items":          len(s.Items),
			"loading":        s.Loading,
		}
		if s.Order != nil {
			fields["order_id"] = s.Order.ID.String()
			fields["order_status"] = s.Order.Status
			fields["total"] = s.Order.Total.StringFixed(2)
		}
		logg.Info(logg.WithFields(ctx, fields), "table order changed")
	})
	if err := orderSync.SetTable(ctx, tableID); err != nil {
		logg.Error(ctx, "failed to follow table", err)
		os.Exit(1)
	}

	if cfg.Monitor.TableNumber > 0 {
		tabSync, err := tabsync.New(tabsync.Params{
			Store:    client,
			Commands: client,
			Feed:     feed,
			Logger:   logg,
		})
		if err != nil {
			logg.Error(ctx, "failed to create tab sync", err)
			os.Exit(1)
		}
		defer tabSync.Close()
		tabSync.OnChange(func(s tabsync.Snapshot) {
			names := make([]string, 0, len(s.Tabs))
			for _, tab := range s.Tabs {
				names = append(names, tab.Name)
			}
			logg.Info(logg.WithFields(ctx, map[string]any{
				"table_number": s.TableNumber,
				"tabs":         names,
			}), "table tabs changed")
		})
		if err := tabSync.SetTable(ctx, cfg.Monitor.TableNumber); err != nil {
			logg.Error(ctx, "failed to follow table tabs", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "table monitor running")
	select {
	case <-ctx.Done():
		logg.Info(ctx, "table monitor shutting down gracefully")
	case <-feed.Done():
		logg.Warn(ctx, "change stream closed by server")
	}
}
