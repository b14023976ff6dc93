package main

import (
	"context"

	"github.com/rax0nrax/punyfunny/api_registry/internal/handlers"
	"github.com/rax0nrax/punyfunny/api_registry/internal/pages"
	"github.com/rax0nrax/punyfunny/api_registry/internal/provision"
	"github.com/rax0nrax/punyfunny/api_registry/internal/records"
	"github.com/rax0nrax/punyfunny/api_registry/internal/router"
	"github.com/rax0nrax/punyfunny/pkg/cache"
	"github.com/rax0nrax/punyfunny/pkg/config"
	"github.com/rax0nrax/punyfunny/pkg/logging"
	"github.com/rax0nrax/punyfunny/pkg/middleware"
	"github.com/rax0nrax/punyfunny/pkg/monitoring"
	"github.com/rax0nrax/punyfunny/pkg/redis"
	"github.com/rax0nrax/punyfunny/pkg/server"
	"github.com/rax0nrax/punyfunny/pkg/turnstile"
	"github.com/rax0nrax/punyfunny/pkg/version"
)

const invalidationChannel = "records:changed"

func main() {
	logger := logging.NewLoggerWithService(serviceName)
	config.LoadEnv(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	logger.WithFields(logging.Fields{
		"zone":         cfg.Zone.Display(),
		"zone_wire":    cfg.Zone.Wire(),
		"store":        cfg.RecordStore,
		"payments":     cfg.PaymentProvider,
		"dns_provider": cfg.DNSProvider,
	}).Info("Starting Scribe (emoji registry)")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker(serviceName, version.Version)
	metricsCollector := monitoring.NewMetricsCollector(serviceName, version.Version, version.GitCommit)
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(cfg.requiredSettings(), cfg.optionalSettings()))

	metrics := &handlers.RegistryMetrics{
		AvailabilityChecks: metricsCollector.NewCounter("availability_checks_total", "Availability lookups by result", []string{"result"}),
		Checkouts:          metricsCollector.NewCounter("checkouts_total", "Checkout sessions by provider and status", []string{"provider", "status"}),
		Webhooks:           metricsCollector.NewCounter("payment_webhooks_total", "Payment webhooks by provider and status", []string{"provider", "status"}),
		Provisioning:       metricsCollector.NewCounter("provisioning_total", "Subdomain provisioning outcomes", []string{"status"}),
	}
	pageViews := metricsCollector.NewCounter("page_views_total", "Subdomain page views by outcome", []string{"outcome"})
	cacheLookups := metricsCollector.NewCounter("page_cache_lookups_total", "Page record cache lookups", []string{"result"})

	b, err := openBackend(ctx, cfg, logger, healthChecker)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open record store")
	}
	defer b.Close()

	resolverOpts := pages.DefaultResolverOptions()
	resolverOpts.TTL = cfg.PageCacheTTL
	resolver := pages.NewResolver(b.store, resolverOpts, cache.MetricsHooks{
		OnHit:   func(string) { cacheLookups.WithLabelValues("hit").Inc() },
		OnMiss:  func(string) { cacheLookups.WithLabelValues("miss").Inc() },
		OnStale: func(string) { cacheLookups.WithLabelValues("stale").Inc() },
		OnError: func(string, error) { cacheLookups.WithLabelValues("error").Inc() },
	})

	observers := []records.ChangeFunc{resolver.OnChange}
	if b.redis != nil {
		// Other replicas drop their cached copy when a record changes here.
		pubsub := redis.NewTypedPubSub[records.Change](b.redis, logger)
		channel := redis.Key(cfg.RedisPrefix, invalidationChannel)
		observers = append(observers, func(ctx context.Context, c records.Change) {
			if err := pubsub.Publish(context.WithoutCancel(ctx), channel, c); err != nil {
				logger.WithError(err).WithField("label", c.Label).Warn("Failed to publish record change")
			}
		})
		go func() {
			err := pubsub.Subscribe(ctx, channel, nil, func(c records.Change) {
				resolver.Invalidate(c.Label)
			})
			if err != nil {
				logger.WithError(err).Error("Record change subscription stopped")
			}
		}()
	}
	store := records.NewNotifyingStore(b.store, observers...)

	dns := newRegistrar(cfg, logger)
	paymentSet, err := newPayments(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up payments")
	}

	provisioner, err := provision.New(provision.Config{
		Store:     store,
		Registrar: dns,
		Zone:      cfg.Zone,
		Target:    cfg.DNSTarget,
		Logger:    logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up provisioning")
	}

	availability := records.NewAvailability(store)
	turnstileValidator := turnstile.NewValidator(cfg.TurnstileSecretKey)

	app := server.SetupServiceRouter(logger, serviceName, healthChecker, metricsCollector)

	// API routes
	{
		availabilityHandler := handlers.NewAvailabilityHandler(availability, cfg.Zone, logger, metrics)
		checkoutHandler := handlers.NewCheckoutHandler(handlers.CheckoutConfig{
			Provider:         paymentSet.checkout,
			Availability:     availability,
			Turnstile:        turnstileValidator,
			TurnstileEnabled: turnstileValidator.Enabled(),
			Zone:             cfg.Zone,
			PublicURL:        cfg.PublicURL,
			AmountCents:      cfg.PriceCents,
			Currency:         cfg.PriceCurrency,
		}, logger, metrics)
		domainsHandler := handlers.NewDomainsHandler(store, logger)

		app.GET("/api/check-availability", availabilityHandler.Handle)
		app.POST("/api/checkout", checkoutHandler.Handle)
		app.GET("/api/domains/:label", domainsHandler.Get)

		admin := app.Group("/api/domains")
		admin.Use(middleware.BearerTokenMiddleware(cfg.AdminToken))
		admin.PUT("/:label", domainsHandler.Put)

		handlers.NewWebhookHandler(paymentSet.stripe, paymentSet.mollie, provisioner, logger, metrics).Register(app)
	}

	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set; record edits are unauthenticated")
	}

	pages.NewHandler(pages.Config{
		Resolver:         resolver,
		Zone:             cfg.Zone,
		PublicURL:        cfg.PublicURL,
		TurnstileSiteKey: cfg.TurnstileSiteKey,
		Logger:           logger,
		Views:            pageViews,
	}).Register(app)

	rewriter := router.NewHostRewriter(app, cfg.Zone, cfg.RootHosts, logger)
	logger.WithField("roots", rewriter.Roots()).Info("Host routing ready")

	serverConfig := server.DefaultConfig(serviceName, defaultPort)
	if err := server.Start(serverConfig, rewriter, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
