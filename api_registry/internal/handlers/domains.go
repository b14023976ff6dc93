package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/rax0nrax/punyfunny/api_registry/internal/records"
	"github.com/rax0nrax/punyfunny/pkg/idn"
	"github.com/rax0nrax/punyfunny/pkg/logging"
)

// DomainsHandler reads and edits the record behind a purchased label.
type DomainsHandler struct {
	store  RecordStore
	logger logging.Logger
}

func NewDomainsHandler(store RecordStore, logger logging.Logger) *DomainsHandler {
	return &DomainsHandler{store: store, logger: logger}
}

func (h *DomainsHandler) label(c *gin.Context) (string, bool) {
	raw := strings.TrimSpace(c.Param("label"))
	if raw == "" || strings.Contains(raw, ".") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subdomain"})
		return "", false
	}
	label, err := idn.Decode(raw)
	if err != nil || !utf8.ValidString(label) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subdomain"})
		return "", false
	}
	return label, true
}

// Get answers GET /api/domains/:label.
func (h *DomainsHandler) Get(c *gin.Context) {
	label, ok := h.label(c)
	if !ok {
		return
	}

	rec, err := h.store.Get(c.Request.Context(), label)
	if errors.Is(err, records.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Domain not found"})
		return
	}
	if err != nil {
		h.logger.WithFields(logging.Fields{
			"error": err.Error(),
			"label": label,
		}).Error("Failed to load record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load domain"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Put answers PUT /api/domains/:label. The label in the path wins over the
// body, and an existing record can only be replaced by its owner.
func (h *DomainsHandler) Put(c *gin.Context) {
	label, ok := h.label(c)
	if !ok {
		return
	}

	var rec records.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	rec.Subdomain = label

	ctx := c.Request.Context()
	existing, err := h.store.Get(ctx, label)
	switch {
	case errors.Is(err, records.ErrNotFound):
		if rec.OwnerID == "" {
			rec.OwnerID = records.DefaultOwner
		}
	case err != nil:
		h.logger.WithFields(logging.Fields{
			"error": err.Error(),
			"label": label,
		}).Error("Failed to load record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load domain"})
		return
	default:
		if rec.OwnerID == "" {
			rec.OwnerID = existing.OwnerID
		}
		if rec.OwnerID != existing.OwnerID {
			h.logger.WithFields(logging.Fields{
				"label":          label,
				"owner_id":       rec.OwnerID,
				"existing_owner": existing.OwnerID,
			}).Warn("Rejected record update from non-owner")
			c.JSON(http.StatusForbidden, gin.H{"error": "Domain is owned by another account"})
			return
		}
	}

	if err := h.store.Set(ctx, &rec); err != nil {
		var verr *records.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "Invalid record",
				"fields": verr.Fields,
			})
			return
		}
		h.logger.WithFields(logging.Fields{
			"error": err.Error(),
			"label": label,
		}).Error("Failed to save record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save domain"})
		return
	}

	saved, err := h.store.Get(ctx, label)
	if err != nil {
		saved = &rec
	}

	h.logger.WithFields(logging.Fields{
		"label":    label,
		"type":     saved.Kind,
		"owner_id": saved.OwnerID,
	}).Info("Record updated")

	c.JSON(http.StatusOK, saved)
}
