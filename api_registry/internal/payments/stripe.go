package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/rax0nrax/punyfunny/pkg/logging"
)

// StripeConfig for creating a Stripe provider
type StripeConfig struct {
	SecretKey     string // STRIPE_SECRET_KEY
	WebhookSecret string // STRIPE_WEBHOOK_SECRET
	Logger        logging.Logger
	// Backend overrides the API backend, mainly for tests.
	Backend stripe.Backend
}

// Stripe creates payment-mode Checkout Sessions.
type Stripe struct {
	sessions      sessionCreator
	webhookSecret string
	logger        logging.Logger
}

type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripe builds a provider with its own key rather than the package
// global, so several keys can coexist in one process.
func NewStripe(cfg StripeConfig) *Stripe {
	backend := cfg.Backend
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &Stripe{
		sessions:      &checkoutsession.Client{B: backend, Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
		logger:        cfg.Logger,
	}
}

func (s *Stripe) Name() string { return "stripe" }

func (s *Stripe) CreateCheckout(ctx context.Context, c Checkout) (*Session, error) {
	c, err := c.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := Metadata(c)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(c.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(ProductName(c.Domain)),
						Description: stripe.String(ProductDescription),
						Images:      stripe.StringSlice([]string{ProductImage(c.Domain.Label)}),
					},
					UnitAmount: stripe.Int64(c.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.SuccessURL),
		CancelURL:  stripe.String(c.CancelURL),
		Metadata:   meta,
	}

	sess, err := s.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stripe checkout session: %w", err)
	}

	if s.logger != nil {
		s.logger.WithFields(logging.Fields{
			"session_id": sess.ID,
			"domain":     c.Domain.Wire,
			"owner_id":   c.OwnerID,
		}).Info("Created Stripe checkout session")
	}
	return &Session{Provider: s.Name(), ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts a paid
// domain purchase. Unrelated events yield ErrIgnored; sessions still
// awaiting an async payment yield ErrNotPaid.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (*Completion, error) {
	if s.webhookSecret == "" {
		return nil, errors.New("stripe webhook secret not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                300 * time.Second,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	default:
		return nil, ErrIgnored
	}
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}

	var sess stripe.CheckoutSession
	if err := sess.UnmarshalJSON(event.Data.Raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	completion, err := completionFromMetadata(s.Name(), sess.ID, sess.Metadata)
	if err != nil {
		return nil, err
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		return nil, ErrNotPaid
	}
	return completion, nil
}
