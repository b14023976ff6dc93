package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/VictorAvelar/mollie-api-go/v4/mollie"

	"github.com/rax0nrax/punyfunny/pkg/logging"
)

// MollieConfig for creating a Mollie provider
type MollieConfig struct {
	APIKey string // MOLLIE_API_KEY (live_xxx or test_xxx)
	// WebhookSecret enables HMAC verification of webhook bodies. Mollie does
	// not sign by default; the payment is always re-fetched regardless.
	WebhookSecret string
	// WebhookURL is where Mollie posts status changes.
	WebhookURL string
	Logger     logging.Logger
}

type molliePayments interface {
	Create(ctx context.Context, p mollie.CreatePayment) (*mollie.Payment, error)
	Get(ctx context.Context, id string) (*mollie.Payment, error)
}

type mollieAPI struct {
	client *mollie.Client
}

func (m mollieAPI) Create(ctx context.Context, p mollie.CreatePayment) (*mollie.Payment, error) {
	_, payment, err := m.client.Payments.Create(ctx, p, nil)
	return payment, err
}

func (m mollieAPI) Get(ctx context.Context, id string) (*mollie.Payment, error) {
	_, payment, err := m.client.Payments.Get(ctx, id, nil)
	return payment, err
}

// Mollie creates single payments and resolves webhooks by fetching the
// payment back from the API.
type Mollie struct {
	payments      molliePayments
	webhookSecret string
	webhookURL    string
	logger        logging.Logger
}

func NewMollie(cfg MollieConfig) (*Mollie, error) {
	mollieConfig := mollie.NewAPITestingConfig(true)
	if strings.HasPrefix(cfg.APIKey, "live_") {
		mollieConfig = mollie.NewAPIConfig(true)
	}

	client, err := mollie.NewClient(nil, mollieConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mollie client: %w", err)
	}
	if err := client.WithAuthenticationValue(cfg.APIKey); err != nil {
		return nil, fmt.Errorf("failed to set Mollie API key: %w", err)
	}

	return &Mollie{
		payments:      mollieAPI{client: client},
		webhookSecret: cfg.WebhookSecret,
		webhookURL:    cfg.WebhookURL,
		logger:        cfg.Logger,
	}, nil
}

func (m *Mollie) Name() string { return "mollie" }

// formatAmount renders cents as Mollie's two-decimal string.
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func (m *Mollie) CreateCheckout(ctx context.Context, c Checkout) (*Session, error) {
	c, err := c.withDefaults()
	if err != nil {
		return nil, err
	}

	meta := make(map[string]interface{}, 5)
	for k, v := range Metadata(c) {
		meta[k] = v
	}

	payment, err := m.payments.Create(ctx, mollie.CreatePayment{
		Amount: &mollie.Amount{
			Currency: strings.ToUpper(c.Currency),
			Value:    formatAmount(c.AmountCents),
		},
		Description: ProductName(c.Domain) + " (" + ProductDescription + ")",
		RedirectURL: c.SuccessURL,
		WebhookURL:  m.webhookURL,
		Metadata:    meta,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Mollie payment: %w", err)
	}

	checkoutURL := ""
	if payment.Links.Checkout != nil {
		checkoutURL = payment.Links.Checkout.Href
	}
	if checkoutURL == "" {
		return nil, fmt.Errorf("mollie payment %s has no checkout link", payment.ID)
	}

	if m.logger != nil {
		m.logger.WithFields(logging.Fields{
			"payment_id": payment.ID,
			"domain":     c.Domain.Wire,
			"owner_id":   c.OwnerID,
		}).Info("Created Mollie payment")
	}
	return &Session{Provider: m.Name(), ID: payment.ID, URL: checkoutURL}, nil
}

// VerifySignature checks an optional hex HMAC-SHA256 of the raw body. With no
// secret configured every body is accepted.
func (m *Mollie) VerifySignature(payload []byte, signature string) bool {
	if m.webhookSecret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(m.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// ResolveWebhook fetches the payment named in a webhook and reports it as a
// completion once paid.
func (m *Mollie) ResolveWebhook(ctx context.Context, paymentID string) (*Completion, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, ErrIgnored
	}
	payment, err := m.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get Mollie payment: %w", err)
	}

	meta := map[string]string{}
	if raw, ok := payment.Metadata.(map[string]interface{}); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				meta[k] = s
			}
		}
	}

	completion, err := completionFromMetadata(m.Name(), payment.ID, meta)
	if err != nil {
		return nil, err
	}
	if string(payment.Status) != "paid" {
		return nil, ErrNotPaid
	}
	return completion, nil
}
