package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rax0nrax/punyfunny/pkg/config"
	"github.com/rax0nrax/punyfunny/pkg/idn"
)

const (
	serviceName = "scribe"
	defaultPort = "18040"
)

// Config is everything scribe reads from the environment.
type Config struct {
	Zone      idn.Zone
	RootHosts []string
	PublicURL string

	RecordStore  string
	RedisURL     string
	RedisPrefix  string
	DatabaseURL  string
	PageCacheTTL time.Duration

	PaymentProvider     string
	StripeSecretKey     string
	StripeWebhookSecret string
	MollieAPIKey        string
	MollieWebhookSecret string
	PriceCents          int64
	PriceCurrency       string

	DNSProvider        string
	DNSTarget          string
	DynadotAPIKey      string
	CloudflareAPIToken string
	CloudflareZoneID   string

	TurnstileSecretKey string
	TurnstileSiteKey   string
	AdminToken         string
}

func loadConfig() (Config, error) {
	zone, err := idn.NewZone(config.GetEnv("ROOT_DOMAIN", idn.DefaultRoot))
	if err != nil {
		return Config{}, fmt.Errorf("ROOT_DOMAIN: %w", err)
	}

	cfg := Config{
		Zone:      zone,
		RootHosts: config.GetEnvList("ROOT_HOSTS", []string{"localhost", "127.0.0.1"}),
		PublicURL: strings.TrimRight(config.GetEnv("PUBLIC_URL", "https://"+zone.Wire()), "/"),

		RecordStore:  strings.ToLower(config.GetEnv("RECORD_STORE", "memory")),
		RedisURL:     config.GetEnv("REDIS_URL", ""),
		RedisPrefix:  config.GetEnv("REDIS_PREFIX", "scribe"),
		DatabaseURL:  config.GetEnv("DATABASE_URL", ""),
		PageCacheTTL: config.GetEnvDuration("PAGE_CACHE_TTL", 30*time.Second),

		PaymentProvider:     strings.ToLower(config.GetEnv("PAYMENT_PROVIDER", "stripe")),
		StripeSecretKey:     config.GetEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: config.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		MollieAPIKey:        config.GetEnv("MOLLIE_API_KEY", ""),
		MollieWebhookSecret: config.GetEnv("MOLLIE_WEBHOOK_SECRET", ""),
		PriceCents:          config.GetEnvInt64("PRICE_CENTS", 2000),
		PriceCurrency:       strings.ToLower(config.GetEnv("PRICE_CURRENCY", "usd")),

		DNSProvider:        strings.ToLower(config.GetEnv("DNS_PROVIDER", "noop")),
		DNSTarget:          config.GetEnv("DNS_TARGET", "127.0.0.1"),
		DynadotAPIKey:      config.GetEnv("DYNADOT_API_KEY", ""),
		CloudflareAPIToken: config.GetEnv("CLOUDFLARE_API_TOKEN", ""),
		CloudflareZoneID:   config.GetEnv("CLOUDFLARE_ZONE_ID", ""),

		TurnstileSecretKey: config.GetEnv("TURNSTILE_CHECKOUT_SECRET_KEY", ""),
		TurnstileSiteKey:   config.GetEnv("TURNSTILE_CHECKOUT_SITE_KEY", ""),
		AdminToken:         config.GetEnv("ADMIN_TOKEN", ""),
	}

	switch cfg.RecordStore {
	case "memory":
	case "redis":
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("RECORD_STORE=redis requires REDIS_URL")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("RECORD_STORE=postgres requires DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown RECORD_STORE %q", cfg.RecordStore)
	}

	switch cfg.PaymentProvider {
	case "stripe", "mollie":
	default:
		return Config{}, fmt.Errorf("unknown PAYMENT_PROVIDER %q", cfg.PaymentProvider)
	}

	switch cfg.DNSProvider {
	case "noop", "dynadot", "cloudflare":
	default:
		return Config{}, fmt.Errorf("unknown DNS_PROVIDER %q", cfg.DNSProvider)
	}

	if cfg.PriceCents <= 0 {
		return Config{}, fmt.Errorf("PRICE_CENTS must be positive")
	}

	return cfg, nil
}

// requiredSettings feeds the config health check.
func (c Config) requiredSettings() map[string]string {
	required := map[string]string{}
	switch c.PaymentProvider {
	case "stripe":
		required["STRIPE_SECRET_KEY"] = c.StripeSecretKey
		required["STRIPE_WEBHOOK_SECRET"] = c.StripeWebhookSecret
	case "mollie":
		required["MOLLIE_API_KEY"] = c.MollieAPIKey
	}
	switch c.DNSProvider {
	case "dynadot":
		required["DYNADOT_API_KEY"] = c.DynadotAPIKey
	case "cloudflare":
		required["CLOUDFLARE_API_TOKEN"] = c.CloudflareAPIToken
		required["CLOUDFLARE_ZONE_ID"] = c.CloudflareZoneID
	}
	return required
}

func (c Config) optionalSettings() map[string]string {
	return map[string]string{
		"TURNSTILE_CHECKOUT_SECRET_KEY": c.TurnstileSecretKey,
		"ADMIN_TOKEN":                   c.AdminToken,
	}
}
