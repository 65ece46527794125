package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/dinein-backend/api/controllers"
	"github.com/angelmondragon/dinein-backend/api/middleware"
	"github.com/angelmondragon/dinein-backend/internal/app"
	"github.com/angelmondragon/dinein-backend/pkg/config"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
	"github.com/angelmondragon/dinein-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/dinein-backend/pkg/redis"
)

type redisStore interface {
	pkgredis.IdempotencyStore
	Ping(ctx context.Context) error
}

type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    redisStore
	Services *app.Services
	// Realtime serves the websocket change stream; nil leaves /realtime unmounted.
	Realtime http.Handler
	Commands *metrics.CommandMetrics
	Gatherer prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg, svcs := p.Config, p.Logger, p.Services

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(p)))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	if p.Realtime != nil {
		r.With(middleware.Auth(cfg.JWT, cfg.FeatureFlags.RequireAuth, logg)).Get("/realtime", p.Realtime.ServeHTTP)
	}

	var store pkgredis.IdempotencyStore
	if p.Redis != nil {
		store = p.Redis
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, cfg.FeatureFlags.RequireAuth, logg))

		r.With(middleware.Idempotency(store, logg)).
			Post("/brain/{op}", controllers.Brain(svcs.Orders, svcs.Tabs, p.Commands, logg))

		r.Get("/tables", controllers.TablesDashboard(svcs.Tables, logg))
		r.Get("/tables/{tableId}/active-order", controllers.ActiveOrder(svcs.Reader, logg))
		r.Get("/tables/number/{tableNumber}/tabs", controllers.TableTabs(svcs.Tabs, logg))
		r.Get("/orders/{orderId}/items", controllers.OrderItems(svcs.Reader, logg))
		r.Get("/kitchen/board", controllers.KitchenBoard(svcs.Kitchen, logg))
	})

	return r
}

func readinessDeps(p RouterParams) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["database"] = p.DB
	}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}
	return deps
}
