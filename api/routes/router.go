package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/omni-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/omni-backend/api/controllers/webhooks"
	"github.com/angelmondragon/omni-backend/api/middleware"
	"github.com/angelmondragon/omni-backend/internal/checkout"
	"github.com/angelmondragon/omni-backend/internal/entitlements"
	"github.com/angelmondragon/omni-backend/internal/identity"
	"github.com/angelmondragon/omni-backend/internal/items"
	"github.com/angelmondragon/omni-backend/internal/settings"
	"github.com/angelmondragon/omni-backend/internal/suggest"
	stripewebhook "github.com/angelmondragon/omni-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/omni-backend/pkg/catalog"
	"github.com/angelmondragon/omni-backend/pkg/config"
	"github.com/angelmondragon/omni-backend/pkg/db"
	"github.com/angelmondragon/omni-backend/pkg/logger"
	"github.com/angelmondragon/omni-backend/pkg/metrics"
	"github.com/angelmondragon/omni-backend/pkg/redis"
	"github.com/angelmondragon/omni-backend/pkg/stripe"
)

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type suggestService interface {
	Suggest(ctx context.Context, userID, itemID string, input suggest.Input) (*suggest.Result, error)
}

// RouterParams groups everything the HTTP surface is wired from. Redis,
// Suggest, Stripe and the webhook pieces are optional.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTPMetrics

	DB    db.Pinger
	Redis *redis.Client

	Identity identity.Gateway
	Catalog  *catalog.Catalog
	Guard    *entitlements.Guard
	Checkout *checkout.Service
	Settings *settings.Service
	Items    *items.Service
	Suggest  *suggest.Service

	Stripe             *stripe.Client
	StripeWebhook      *stripewebhook.Service
	StripeWebhookGuard *stripewebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	deps := map[string]controllers.Pinger{"database": p.DB}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, deps))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/products", controllers.ProductList(p.Catalog))
	r.Get("/purchase", controllers.Purchase(p.Checkout, logg))
	r.With(middleware.OptionalAuth(p.Identity, logg)).
		Get("/complete-purchase", controllers.CompletePurchase(p.Checkout, cfg.App.HomeURL(), logg))

	if p.StripeWebhook != nil && p.Stripe != nil {
		var guard webhookGuard
		if p.StripeWebhookGuard != nil {
			guard = p.StripeWebhookGuard
		}
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhook, p.Stripe, guard, logg))
	}

	var limiter rateLimiter
	if p.Redis != nil {
		limiter = p.Redis
	}
	suggestPolicy := middleware.NewRateLimitPolicy("suggest", cfg.RateLimit.SuggestWindow, cfg.RateLimit.SuggestLimit)
	var suggestSvc suggestService
	if p.Suggest != nil {
		suggestSvc = p.Suggest
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(p.Identity, logg))

		r.With(middleware.RequireProductSubscription(p.Guard.ForProduct(catalog.DefaultProduct), logg)).
			Get("/subscription", controllers.SubscriptionStatus(logg))

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", controllers.SettingsGet(p.Settings, logg))
			r.Post("/", controllers.SettingsSet(p.Settings, logg))
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ItemList(p.Items, logg))
			r.Post("/", controllers.ItemCreate(p.Items, logg))
			r.Route("/{itemId}", func(r chi.Router) {
				r.Get("/", controllers.ItemGet(p.Items, logg))
				r.Delete("/", controllers.ItemDelete(p.Items, logg))
				r.Post("/content", controllers.ItemSetContent(p.Items, logg))
				r.Post("/meta", controllers.ItemSetMeta(p.Items, logg))
				r.With(middleware.RateLimit(suggestPolicy, limiter, logg)).
					Post("/suggest", controllers.ItemSuggest(suggestSvc, logg))
			})
		})
	})

	return r
}
