// Package payments creates one-time checkout sessions for a domain purchase
// and turns provider callbacks into completed purchases.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rax0nrax/punyfunny/pkg/idn"
)

// PurposeDomainRegistration tags checkout metadata so webhooks can tell our
// sessions apart from anything else on the account.
const PurposeDomainRegistration = "domain_registration"

// Metadata keys carried on every session.
const (
	MetaPurpose        = "purpose"
	MetaSubdomain      = "subdomain"
	MetaSubdomainASCII = "subdomain_ascii"
	MetaDomain         = "domain"
	MetaOwnerID        = "owner_id"
)

const (
	DefaultAmountCents int64 = 2000
	DefaultCurrency          = "usd"
	ProductDescription       = "1 Year Registration"
)

var (
	// ErrNotPaid means the callback is ours but money has not arrived yet.
	ErrNotPaid = errors.New("payment not completed")
	// ErrIgnored means the callback is not a domain purchase.
	ErrIgnored = errors.New("event ignored")
	// ErrInvalidSignature is returned when a webhook fails verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Checkout describes one purchase.
type Checkout struct {
	Domain      idn.Domain
	OwnerID     string
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// Session is a created checkout the buyer is redirected to.
type Session struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
	URL      string `json:"url"`
}

// Completion is a paid purchase extracted from a webhook.
type Completion struct {
	Provider  string
	SessionID string
	Label     string
	OwnerID   string
}

// Provider creates checkout sessions.
type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, c Checkout) (*Session, error)
}

// ProductName is the line item title shown by the provider.
func ProductName(d idn.Domain) string {
	return "Domain Registration: " + d.Display
}

// ProductImage is an avatar generated from the label.
func ProductImage(label string) string {
	return "https://api.dicebear.com/7.x/initials/svg?seed=" + url.QueryEscape(label)
}

// Metadata builds the key/value set attached to a session.
func Metadata(c Checkout) map[string]string {
	return map[string]string{
		MetaPurpose:        PurposeDomainRegistration,
		MetaSubdomain:      c.Domain.Label,
		MetaSubdomainASCII: c.Domain.WireLabel,
		MetaDomain:         c.Domain.Wire,
		MetaOwnerID:        ownerOrGuest(c.OwnerID),
	}
}

func ownerOrGuest(owner string) string {
	if owner = strings.TrimSpace(owner); owner != "" {
		return owner
	}
	return "guest"
}

func (c Checkout) withDefaults() (Checkout, error) {
	if c.Domain.Label == "" || c.Domain.WireLabel == "" {
		return c, errors.New("checkout domain is required")
	}
	if c.SuccessURL == "" || c.CancelURL == "" {
		return c, errors.New("checkout success and cancel URLs are required")
	}
	if c.AmountCents <= 0 {
		c.AmountCents = DefaultAmountCents
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	c.Currency = strings.ToLower(c.Currency)
	c.OwnerID = ownerOrGuest(c.OwnerID)
	return c, nil
}

// completionFromMetadata reads the purchase back out of session metadata.
// The wire label wins over the display label when both are present since it
// survives any provider-side text normalization.
func completionFromMetadata(provider, sessionID string, meta map[string]string) (*Completion, error) {
	if meta[MetaPurpose] != PurposeDomainRegistration {
		return nil, ErrIgnored
	}
	label := meta[MetaSubdomain]
	if wire := meta[MetaSubdomainASCII]; wire != "" {
		decoded, err := idn.Decode(wire)
		if err != nil {
			return nil, fmt.Errorf("session %s metadata: %w", sessionID, err)
		}
		label = decoded
	}
	if label == "" {
		return nil, fmt.Errorf("session %s has no subdomain in metadata", sessionID)
	}
	return &Completion{
		Provider:  provider,
		SessionID: sessionID,
		Label:     label,
		OwnerID:   ownerOrGuest(meta[MetaOwnerID]),
	}, nil
}
