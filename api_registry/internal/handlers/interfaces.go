package handlers

import (
	"context"

	"github.com/rax0nrax/punyfunny/api_registry/internal/payments"
	"github.com/rax0nrax/punyfunny/api_registry/internal/provision"
	"github.com/rax0nrax/punyfunny/api_registry/internal/records"
	"github.com/rax0nrax/punyfunny/pkg/turnstile"
)

type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, label string) (bool, error)
}

type CheckoutProvider interface {
	Name() string
	CreateCheckout(ctx context.Context, c payments.Checkout) (*payments.Session, error)
}

type TurnstileVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (*turnstile.VerifyResponse, error)
}

type RecordStore interface {
	Get(ctx context.Context, label string) (*records.Record, error)
	Set(ctx context.Context, rec *records.Record) error
}

type Completer interface {
	Complete(ctx context.Context, c payments.Completion) (*provision.Outcome, error)
}

type StripeWebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payments.Completion, error)
}

type MollieWebhookResolver interface {
	VerifySignature(payload []byte, signature string) bool
	ResolveWebhook(ctx context.Context, paymentID string) (*payments.Completion, error)
}
