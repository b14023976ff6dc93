package main

import (
	"context"
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rax0nrax/punyfunny/api_registry/internal/handlers"
	"github.com/rax0nrax/punyfunny/api_registry/internal/payments"
	"github.com/rax0nrax/punyfunny/api_registry/internal/records"
	"github.com/rax0nrax/punyfunny/api_registry/internal/registrar"
	"github.com/rax0nrax/punyfunny/pkg/database"
	"github.com/rax0nrax/punyfunny/pkg/logging"
	"github.com/rax0nrax/punyfunny/pkg/monitoring"
	"github.com/rax0nrax/punyfunny/pkg/redis"
)

// backend is the record store plus the connections behind it.
type backend struct {
	store records.Store
	redis *goredis.Client
	db    *sql.DB
}

func (b *backend) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}

func openBackend(ctx context.Context, cfg Config, logger logging.Logger, hc *monitoring.HealthChecker) (*backend, error) {
	b := &backend{}

	// Redis also carries cache invalidations, so connect whenever it is set.
	if cfg.RedisURL != "" {
		client, err := redis.NewClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b.redis = client
		hc.AddCheck("redis", monitoring.RedisHealthCheck(client))
	}

	switch cfg.RecordStore {
	case "redis":
		b.store = records.NewRedisStore(b.redis, cfg.RedisPrefix)
	case "postgres":
		db, err := database.Connect(ctx, database.DefaultConfig(cfg.DatabaseURL), logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.db = db
		if err := database.ApplySchema(ctx, db, logger); err != nil {
			b.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
		b.store = records.NewPostgresStore(db)
		hc.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	default:
		store, err := records.NewMemoryStore(records.DemoSeed()...)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("seed memory store: %w", err)
		}
		b.store = store
		logger.Warn("Using in-memory record store; records are lost on restart")
	}

	logger.WithField("store", cfg.RecordStore).Info("Record store ready")
	return b, nil
}

func newRegistrar(cfg Config, logger logging.Logger) registrar.Provider {
	switch cfg.DNSProvider {
	case "dynadot":
		if cfg.DynadotAPIKey != "" {
			return registrar.NewDynadot(registrar.DynadotConfig{
				APIKey: cfg.DynadotAPIKey,
				Zone:   cfg.Zone.Wire(),
				Logger: logger,
			})
		}
	case "cloudflare":
		if cfg.CloudflareAPIToken != "" && cfg.CloudflareZoneID != "" {
			return registrar.NewCloudflare(registrar.CloudflareConfig{
				APIToken: cfg.CloudflareAPIToken,
				ZoneID:   cfg.CloudflareZoneID,
				Zone:     cfg.Zone.Wire(),
				Logger:   logger,
			})
		}
	}

	if cfg.DNSProvider != "noop" {
		logger.WithField("dns_provider", cfg.DNSProvider).Warn("DNS provider credentials missing, falling back to simulated DNS")
	}
	return registrar.NewNoop(cfg.Zone.Wire(), logger)
}

// paymentSet is the checkout provider and whichever webhook entry points it
// answers on. Unused entry points stay nil.
type paymentSet struct {
	checkout handlers.CheckoutProvider
	stripe   handlers.StripeWebhookParser
	mollie   handlers.MollieWebhookResolver
}

func newPayments(cfg Config, logger logging.Logger) (paymentSet, error) {
	switch cfg.PaymentProvider {
	case "mollie":
		m, err := payments.NewMollie(payments.MollieConfig{
			APIKey:        cfg.MollieAPIKey,
			WebhookSecret: cfg.MollieWebhookSecret,
			WebhookURL:    cfg.PublicURL + "/webhooks/mollie",
			Logger:        logger,
		})
		if err != nil {
			return paymentSet{}, err
		}
		return paymentSet{checkout: m, mollie: m}, nil
	default:
		s := payments.NewStripe(payments.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Logger:        logger,
		})
		return paymentSet{checkout: s, stripe: s}, nil
	}
}
