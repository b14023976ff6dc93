package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rax0nrax/punyfunny/api_registry/internal/payments"
	"github.com/rax0nrax/punyfunny/api_registry/internal/provision"
	"github.com/rax0nrax/punyfunny/pkg/idn"
	"github.com/rax0nrax/punyfunny/pkg/logging"
)

const maxWebhookBody = 64 << 10

// WebhookHandler turns provider callbacks into provisioned subdomains.
// Providers redeliver on any non-2xx answer, so only failures a retry can fix
// get one.
type WebhookHandler struct {
	stripe    StripeWebhookParser
	mollie    MollieWebhookResolver
	completer Completer
	logger    logging.Logger
	metrics   *RegistryMetrics
}

func NewWebhookHandler(stripe StripeWebhookParser, mollie MollieWebhookResolver, completer Completer, logger logging.Logger, metrics *RegistryMetrics) *WebhookHandler {
	return &WebhookHandler{
		stripe:    stripe,
		mollie:    mollie,
		completer: completer,
		logger:    logger,
		metrics:   metrics,
	}
}

// Register mounts the routes for every configured provider.
func (h *WebhookHandler) Register(r gin.IRouter) {
	if h.stripe != nil {
		r.POST("/webhooks/stripe", h.Stripe)
	}
	if h.mollie != nil {
		r.POST("/webhooks/mollie", h.Mollie)
	}
}

func readBody(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return nil, false
	}
	return payload, true
}

// Stripe answers POST /webhooks/stripe.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, ok := readBody(c)
	if !ok {
		h.metrics.IncWebhook("stripe", "bad_request")
		return
	}

	completion, err := h.stripe.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if !h.handleParseError(c, "stripe", err) {
		return
	}
	h.provision(c, *completion)
}

// Mollie answers POST /webhooks/mollie. Mollie only sends the payment id, so
// the payment is fetched back before anything is provisioned.
func (h *WebhookHandler) Mollie(c *gin.Context) {
	payload, ok := readBody(c)
	if !ok {
		h.metrics.IncWebhook("mollie", "bad_request")
		return
	}

	if !h.mollie.VerifySignature(payload, c.GetHeader("X-Mollie-Signature")) {
		h.metrics.IncWebhook("mollie", "bad_signature")
		h.logger.WithField("ip", getRemoteIP(c)).Warn("Rejected Mollie webhook with bad signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	form, err := url.ParseQuery(string(payload))
	if err != nil {
		h.metrics.IncWebhook("mollie", "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid form body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	completion, err := h.mollie.ResolveWebhook(ctx, form.Get("id"))
	if err != nil && !errors.Is(err, payments.ErrIgnored) && !errors.Is(err, payments.ErrNotPaid) {
		h.metrics.IncWebhook("mollie", "fetch_error")
		h.logger.WithFields(logging.Fields{
			"error":      err.Error(),
			"payment_id": form.Get("id"),
		}).Error("Failed to resolve Mollie payment")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to resolve payment"})
		return
	}
	if !h.handleParseError(c, "mollie", err) {
		return
	}
	h.provision(c, *completion)
}

// handleParseError writes the response for a failed parse and reports
// whether the caller should go on to provisioning.
func (h *WebhookHandler) handleParseError(c *gin.Context, provider string, err error) bool {
	switch {
	case err == nil:
		h.metrics.IncWebhook(provider, "completed")
		return true
	case errors.Is(err, payments.ErrInvalidSignature):
		h.metrics.IncWebhook(provider, "bad_signature")
		h.logger.WithFields(logging.Fields{
			"provider": provider,
			"ip":       getRemoteIP(c),
		}).Warn("Rejected webhook with bad signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
	case errors.Is(err, payments.ErrIgnored):
		h.metrics.IncWebhook(provider, "ignored")
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, payments.ErrNotPaid):
		h.metrics.IncWebhook(provider, "not_paid")
		c.JSON(http.StatusOK, gin.H{"received": true})
	default:
		h.metrics.IncWebhook(provider, "error")
		h.logger.WithFields(logging.Fields{
			"error":    err.Error(),
			"provider": provider,
		}).Error("Failed to process webhook")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook"})
	}
	return false
}

func (h *WebhookHandler) provision(c *gin.Context, completion payments.Completion) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	fields := logging.Fields{
		"provider":   completion.Provider,
		"session_id": completion.SessionID,
		"label":      completion.Label,
		"owner_id":   completion.OwnerID,
	}

	outcome, err := h.completer.Complete(ctx, completion)
	switch {
	case err == nil:
	case errors.Is(err, provision.ErrAlreadyOwned):
		// Paid for a label someone else holds; needs a refund, not a retry.
		h.metrics.IncProvision("already_owned")
		h.logger.WithFields(fields).Error("Paid purchase conflicts with an existing owner")
		c.JSON(http.StatusOK, gin.H{"received": true, "provisioned": false})
		return
	case isLabelError(err):
		h.metrics.IncProvision("invalid_label")
		h.logger.WithFields(fields).WithError(err).Error("Paid purchase for an inadmissible label")
		c.JSON(http.StatusOK, gin.H{"received": true, "provisioned": false})
		return
	default:
		h.metrics.IncProvision("error")
		h.logger.WithFields(fields).WithError(err).Error("Provisioning failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Provisioning failed"})
		return
	}

	if outcome.Created {
		h.metrics.IncProvision("created")
	} else {
		h.metrics.IncProvision("repeated")
	}

	c.JSON(http.StatusOK, gin.H{
		"received":    true,
		"provisioned": true,
		"domain":      outcome.Domain.Wire,
	})
}

func isLabelError(err error) bool {
	var encErr *idn.EncodingError
	var decErr *idn.DecodingError
	return errors.Is(err, idn.ErrRejected) || errors.As(err, &encErr) || errors.As(err, &decErr)
}
