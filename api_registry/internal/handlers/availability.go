package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rax0nrax/punyfunny/pkg/idn"
	"github.com/rax0nrax/punyfunny/pkg/logging"
)

// InvalidFormatMessage is shown for labels that fail the naming policy.
const InvalidFormatMessage = "Invalid format. Strictly emojis or non-ASCII characters only."

type AvailabilityHandler struct {
	checker AvailabilityChecker
	zone    idn.Zone
	logger  logging.Logger
	metrics *RegistryMetrics
}

func NewAvailabilityHandler(checker AvailabilityChecker, zone idn.Zone, logger logging.Logger, metrics *RegistryMetrics) *AvailabilityHandler {
	return &AvailabilityHandler{
		checker: checker,
		zone:    zone,
		logger:  logger,
		metrics: metrics,
	}
}

type AvailabilityResponse struct {
	Available     bool   `json:"available"`
	Subdomain     string `json:"subdomain,omitempty"`
	Punycode      string `json:"punycode,omitempty"`
	FullDomain    string `json:"fullDomain,omitempty"`
	DisplayDomain string `json:"displayDomain,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Handle answers GET /api/check-availability?subdomain=.
func (h *AvailabilityHandler) Handle(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("subdomain"))
	if raw == "" {
		h.metrics.IncAvailability("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subdomain is required"})
		return
	}

	label, err := idn.Validate(raw)
	if err != nil {
		h.metrics.IncAvailability("invalid")
		c.JSON(http.StatusOK, AvailabilityResponse{Available: false, Error: InvalidFormatMessage})
		return
	}

	domain, err := h.zone.FullyQualify(label)
	if err != nil {
		h.metrics.IncAvailability("invalid")
		c.JSON(http.StatusOK, AvailabilityResponse{Available: false, Error: encodingMessage(err)})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	available, err := h.checker.CheckAvailability(ctx, label)
	if err != nil {
		h.metrics.IncAvailability("error")
		h.logger.WithFields(logging.Fields{
			"error":  err.Error(),
			"domain": domain.Wire,
		}).Error("Availability check failed")

		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to check availability"})
		return
	}

	if available {
		h.metrics.IncAvailability("available")
	} else {
		h.metrics.IncAvailability("taken")
	}

	c.JSON(http.StatusOK, AvailabilityResponse{
		Available:     available,
		Subdomain:     domain.Label,
		Punycode:      domain.WireLabel,
		FullDomain:    domain.Wire,
		DisplayDomain: domain.Display,
	})
}

func encodingMessage(err error) string {
	var encErr *idn.EncodingError
	if errors.As(err, &encErr) && encErr.Err != nil {
		return "Invalid subdomain: " + encErr.Err.Error()
	}
	return "Invalid subdomain"
}

func getRemoteIP(c *gin.Context) string {
	if cfIP := c.GetHeader("CF-Connecting-IP"); cfIP != "" {
		return cfIP
	}

	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	return c.ClientIP()
}
