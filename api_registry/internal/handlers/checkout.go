package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rax0nrax/punyfunny/api_registry/internal/payments"
	"github.com/rax0nrax/punyfunny/pkg/idn"
	"github.com/rax0nrax/punyfunny/pkg/logging"
)

type CheckoutConfig struct {
	Provider     CheckoutProvider
	Availability AvailabilityChecker
	Turnstile    TurnstileVerifier
	// TurnstileEnabled requires a token on every checkout.
	TurnstileEnabled bool
	Zone             idn.Zone
	PublicURL        string
	AmountCents      int64
	Currency         string
}

type CheckoutHandler struct {
	cfg     CheckoutConfig
	logger  logging.Logger
	metrics *RegistryMetrics
}

func NewCheckoutHandler(cfg CheckoutConfig, logger logging.Logger, metrics *RegistryMetrics) *CheckoutHandler {
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &CheckoutHandler{cfg: cfg, logger: logger, metrics: metrics}
}

type CheckoutRequest struct {
	Subdomain      string `json:"subdomain"`
	OwnerID        string `json:"ownerId"`
	TurnstileToken string `json:"turnstileToken"`
}

// Handle answers POST /api/checkout with the provider's hosted checkout URL.
func (h *CheckoutHandler) Handle(c *gin.Context) {
	provider := h.cfg.Provider.Name()

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.IncCheckout(provider, "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	raw := strings.TrimSpace(req.Subdomain)
	if raw == "" {
		h.metrics.IncCheckout(provider, "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subdomain is required"})
		return
	}

	label, err := idn.Validate(raw)
	if err != nil {
		h.metrics.IncCheckout(provider, "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": InvalidFormatMessage})
		return
	}
	domain, err := h.cfg.Zone.FullyQualify(label)
	if err != nil {
		h.metrics.IncCheckout(provider, "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": encodingMessage(err)})
		return
	}

	remoteIP := getRemoteIP(c)

	if h.cfg.TurnstileEnabled {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		verification, err := h.cfg.Turnstile.Verify(ctx, req.TurnstileToken, remoteIP)
		if err != nil {
			h.metrics.IncCheckout(provider, "turnstile_error")
			h.logger.WithFields(logging.Fields{
				"error": err.Error(),
				"ip":    remoteIP,
			}).Error("Turnstile verification error")

			c.JSON(http.StatusBadGateway, gin.H{"error": "Verification service error"})
			return
		}

		if !verification.Success {
			h.metrics.IncCheckout(provider, "turnstile_failed")
			h.logger.WithFields(logging.Fields{
				"error_codes": verification.ErrorCodes,
				"ip":          remoteIP,
			}).Warn("Turnstile verification failed")

			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Turnstile verification failed",
				"details": verification.ErrorCodes,
			})
			return
		}
	}

	if h.cfg.Availability != nil {
		available, err := h.cfg.Availability.CheckAvailability(c.Request.Context(), domain.Label)
		if err != nil {
			h.metrics.IncCheckout(provider, "error")
			h.logger.WithFields(logging.Fields{
				"error":  err.Error(),
				"domain": domain.Wire,
			}).Error("Availability check failed before checkout")

			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to check availability"})
			return
		}
		if !available {
			h.metrics.IncCheckout(provider, "taken")
			c.JSON(http.StatusConflict, gin.H{"error": "Domain is already registered"})
			return
		}
	}

	origin := h.origin(c)
	session, err := h.cfg.Provider.CreateCheckout(c.Request.Context(), payments.Checkout{
		Domain:      domain,
		OwnerID:     req.OwnerID,
		AmountCents: h.cfg.AmountCents,
		Currency:    h.cfg.Currency,
		SuccessURL:  origin + "/dashboard?success=true&subdomain=" + url.QueryEscape(domain.Label),
		CancelURL:   origin + "/?canceled=true",
	})
	if err != nil {
		h.metrics.IncCheckout(provider, "provider_error")
		h.logger.WithFields(logging.Fields{
			"error":    err.Error(),
			"domain":   domain.Wire,
			"provider": provider,
			"ip":       remoteIP,
		}).Error("Failed to create checkout session")

		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session"})
		return
	}

	h.metrics.IncCheckout(provider, "success")
	h.logger.WithFields(logging.Fields{
		"domain":     domain.Wire,
		"provider":   provider,
		"session_id": session.ID,
	}).Info("Checkout session created")

	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}

// origin prefers the caller's Origin header so checkout returns to the host
// the visitor used.
func (h *CheckoutHandler) origin(c *gin.Context) string {
	if o := strings.TrimRight(c.GetHeader("Origin"), "/"); o != "" && o != "null" {
		if u, err := url.Parse(o); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			return o
		}
	}
	if h.cfg.PublicURL != "" {
		return h.cfg.PublicURL
	}
	return "https://" + h.cfg.Zone.Wire()
}
