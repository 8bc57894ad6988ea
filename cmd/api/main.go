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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/omni-backend/api/routes"
	"github.com/angelmondragon/omni-backend/internal/billing"
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
	"github.com/angelmondragon/omni-backend/pkg/instance"
	"github.com/angelmondragon/omni-backend/pkg/logger"
	"github.com/angelmondragon/omni-backend/pkg/metrics"
	"github.com/angelmondragon/omni-backend/pkg/migrate"
	"github.com/angelmondragon/omni-backend/pkg/redis"
	"github.com/angelmondragon/omni-backend/pkg/retry"
	"github.com/angelmondragon/omni-backend/pkg/stripe"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
	webhookDedupeTTL  = 72 * time.Hour
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers := []func() error{dbClient.Close}
	defer func() {
		for _, closeFn := range closers {
			err = multierr.Append(err, closeFn())
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
	} else {
		logg.Warn(ctx, "redis not configured; cache, nonce guard, webhook dedupe and rate limits disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	providerMetrics := metrics.NewProviderMetrics(registry)

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}
	gateway, err := identity.New(cfg.Identity, providerMetrics)
	if err != nil {
		return err
	}

	cat := catalog.Default()
	oracle := billing.NewStripeOracle(billing.StripeOracleParams{
		Timeout: stripeClient.Timeout(),
		Retry:   retry.DefaultPolicy,
		Metrics: providerMetrics,
	})
	entitlementRepo := entitlements.NewRepository(dbClient.DB())

	var statusCache entitlements.StatusCache
	var nonces checkout.NonceStore
	if redisClient != nil {
		statusCache = entitlements.NewRedisStatusCache(redisClient, cfg.Entitlement.StatusCacheTTL, logg)
		nonces = checkout.NewRedisNonceStore(redisClient)
	}

	guard, err := entitlements.NewGuard(entitlements.GuardParams{
		Identity: gateway,
		Store:    entitlementRepo,
		Billing:  oracle,
		Cache:    statusCache,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Config:       cfg.Checkout,
		App:          cfg.App,
		Catalog:      cat,
		Billing:      oracle,
		Entitlements: entitlementRepo,
		Nonces:       nonces,
		Invalidator:  guard,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	settingsService, err := settings.NewService(settings.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}
	itemService, err := items.NewService(items.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	var suggestService *suggest.Service
	if cfg.Completion.Enabled() {
		suggestService, err = suggest.NewService(itemService, suggest.NewAzureCompleter(cfg.Completion, providerMetrics))
		if err != nil {
			return err
		}
	} else {
		logg.Warn(ctx, "completion provider not configured; suggest endpoint disabled")
	}

	var webhookService *stripewebhook.Service
	var webhookGuard *stripewebhook.IdempotencyGuard
	if stripeClient.SigningSecret() != "" {
		webhookService, err = stripewebhook.NewService(stripewebhook.ServiceParams{
			Entitlements: entitlementRepo,
			Catalog:      cat,
			Invalidator:  guard,
			Logger:       logg,
		})
		if err != nil {
			return err
		}
		if redisClient != nil {
			webhookGuard, err = stripewebhook.NewIdempotencyGuard(redisClient, webhookDedupeTTL)
			if err != nil {
				return err
			}
		}
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config:             cfg,
		Logger:             logg,
		Gatherer:           registry,
		Metrics:            metrics.NewHTTPMetrics(registry),
		DB:                 dbClient,
		Redis:              redisClient,
		Identity:           gateway,
		Catalog:            cat,
		Guard:              guard,
		Checkout:           checkoutService,
		Settings:           settingsService,
		Items:              itemService,
		Suggest:            suggestService,
		Stripe:             stripeClient,
		StripeWebhook:      webhookService,
		StripeWebhookGuard: webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.GetID(),
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(logCtx, "starting api server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(logCtx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
