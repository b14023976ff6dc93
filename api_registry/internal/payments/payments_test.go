package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/VictorAvelar/mollie-api-go/v4/mollie"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/rax0nrax/punyfunny/pkg/idn"
)

const testWebhookSecret = "whsec_test_secret"

func rocketCheckout(t *testing.T) Checkout {
	t.Helper()
	d, err := idn.MustZone("𓋹.ws").FullyQualify("🚀")
	require.NoError(t, err)
	return Checkout{
		Domain:     d,
		OwnerID:    "user_1",
		SuccessURL: "https://xn--wb8d.ws/dashboard?success=true&subdomain=%F0%9F%9A%80",
		CancelURL:  "https://xn--wb8d.ws/?canceled=true",
	}
}

type fakeSessions struct {
	params *stripe.CheckoutSessionParams
	err    error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func TestStripeCreateCheckout(t *testing.T) {
	fake := &fakeSessions{}
	s := &Stripe{sessions: fake}

	sess, err := s.CreateCheckout(context.Background(), rocketCheckout(t))
	require.NoError(t, err)
	require.Equal(t, "cs_test_1", sess.ID)
	require.Equal(t, "stripe", sess.Provider)
	require.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", sess.URL)

	p := fake.params
	require.Equal(t, "payment", *p.Mode)
	require.Len(t, p.LineItems, 1)
	item := p.LineItems[0]
	require.Equal(t, int64(1), *item.Quantity)
	require.Equal(t, "usd", *item.PriceData.Currency)
	require.Equal(t, DefaultAmountCents, *item.PriceData.UnitAmount)
	require.Equal(t, "Domain Registration: 🚀.𓋹.ws", *item.PriceData.ProductData.Name)
	require.Equal(t, "1 Year Registration", *item.PriceData.ProductData.Description)
	require.Equal(t, "https://api.dicebear.com/7.x/initials/svg?seed=%F0%9F%9A%80", *item.PriceData.ProductData.Images[0])

	require.Equal(t, map[string]string{
		"purpose":         "domain_registration",
		"subdomain":       "🚀",
		"subdomain_ascii": "xn--158h",
		"domain":          "xn--158h.xn--wb8d.ws",
		"owner_id":        "user_1",
	}, p.Metadata)
}

func TestStripeCreateCheckoutErrors(t *testing.T) {
	s := &Stripe{sessions: &fakeSessions{err: errors.New("card_declined")}}
	_, err := s.CreateCheckout(context.Background(), rocketCheckout(t))
	require.ErrorContains(t, err, "card_declined")

	_, err = s.CreateCheckout(context.Background(), Checkout{})
	require.Error(t, err)
}

func signedEvent(t *testing.T, eventType string, session map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":     "evt_test_1",
		"object": "event",
		"type":   eventType,
		"data":   map[string]interface{}{"object": session},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func paidSession(status string) map[string]interface{} {
	return map[string]interface{}{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"payment_status": status,
		"metadata": map[string]string{
			"purpose":         "domain_registration",
			"subdomain":       "🚀",
			"subdomain_ascii": "xn--158h",
			"domain":          "xn--158h.xn--wb8d.ws",
			"owner_id":        "user_1",
		},
	}
}

func TestStripeParseWebhook(t *testing.T) {
	s := NewStripe(StripeConfig{SecretKey: "sk_test", WebhookSecret: testWebhookSecret})

	payload, header := signedEvent(t, "checkout.session.completed", paidSession("paid"))
	c, err := s.ParseWebhook(payload, header)
	require.NoError(t, err)
	require.Equal(t, &Completion{Provider: "stripe", SessionID: "cs_test_1", Label: "🚀", OwnerID: "user_1"}, c)

	payload, header = signedEvent(t, "checkout.session.completed", paidSession("unpaid"))
	_, err = s.ParseWebhook(payload, header)
	require.ErrorIs(t, err, ErrNotPaid)

	payload, header = signedEvent(t, "checkout.session.async_payment_succeeded", paidSession("paid"))
	_, err = s.ParseWebhook(payload, header)
	require.NoError(t, err)

	payload, header = signedEvent(t, "invoice.paid", map[string]interface{}{"id": "in_1", "object": "invoice"})
	_, err = s.ParseWebhook(payload, header)
	require.ErrorIs(t, err, ErrIgnored)

	other := paidSession("paid")
	other["metadata"] = map[string]string{"purpose": "prepaid"}
	payload, header = signedEvent(t, "checkout.session.completed", other)
	_, err = s.ParseWebhook(payload, header)
	require.ErrorIs(t, err, ErrIgnored)
}

func TestStripeParseWebhookRejectsBadSignature(t *testing.T) {
	s := NewStripe(StripeConfig{SecretKey: "sk_test", WebhookSecret: testWebhookSecret})
	payload, _ := signedEvent(t, "checkout.session.completed", paidSession("paid"))

	_, err := s.ParseWebhook(payload, "t=1,v1=deadbeef")
	require.ErrorIs(t, err, ErrInvalidSignature)

	unconfigured := NewStripe(StripeConfig{SecretKey: "sk_test"})
	_, err = unconfigured.ParseWebhook(payload, "t=1,v1=deadbeef")
	require.Error(t, err)
}

type fakeMollie struct {
	created  mollie.CreatePayment
	payments map[string]*mollie.Payment
}

func (f *fakeMollie) Create(_ context.Context, p mollie.CreatePayment) (*mollie.Payment, error) {
	f.created = p
	return &mollie.Payment{
		ID: "tr_test_1",
		Links: mollie.PaymentLinks{
			Checkout: &mollie.URL{Href: "https://www.mollie.com/checkout/tr_test_1"},
		},
	}, nil
}

func (f *fakeMollie) Get(_ context.Context, id string) (*mollie.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, errors.New("payment not found")
	}
	return p, nil
}

func TestMollieCreateCheckout(t *testing.T) {
	fake := &fakeMollie{}
	m := &Mollie{payments: fake, webhookURL: "https://xn--wb8d.ws/webhooks/mollie"}

	co := rocketCheckout(t)
	co.AmountCents = 2505
	co.Currency = "eur"
	sess, err := m.CreateCheckout(context.Background(), co)
	require.NoError(t, err)
	require.Equal(t, &Session{Provider: "mollie", ID: "tr_test_1", URL: "https://www.mollie.com/checkout/tr_test_1"}, sess)

	require.Equal(t, "EUR", fake.created.Amount.Currency)
	require.Equal(t, "25.05", fake.created.Amount.Value)
	require.Equal(t, co.SuccessURL, fake.created.RedirectURL)
	require.Equal(t, "https://xn--wb8d.ws/webhooks/mollie", fake.created.WebhookURL)
	require.Contains(t, fake.created.Description, "Domain Registration: 🚀.𓋹.ws")
	meta, ok := fake.created.Metadata.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "xn--158h", meta["subdomain_ascii"])
}

func TestMollieResolveWebhook(t *testing.T) {
	meta := map[string]interface{}{
		"purpose":         "domain_registration",
		"subdomain":       "☕",
		"subdomain_ascii": "xn--53h",
		"owner_id":        "user_7",
	}
	fake := &fakeMollie{payments: map[string]*mollie.Payment{
		"tr_paid": {ID: "tr_paid", Status: "paid", Metadata: meta},
		"tr_open": {ID: "tr_open", Status: "open", Metadata: meta},
		"tr_other": {ID: "tr_other", Status: "paid", Metadata: map[string]interface{}{
			"purpose": "subscription",
		}},
	}}
	m := &Mollie{payments: fake}

	c, err := m.ResolveWebhook(context.Background(), "tr_paid")
	require.NoError(t, err)
	require.Equal(t, &Completion{Provider: "mollie", SessionID: "tr_paid", Label: "☕", OwnerID: "user_7"}, c)

	_, err = m.ResolveWebhook(context.Background(), "tr_open")
	require.ErrorIs(t, err, ErrNotPaid)

	_, err = m.ResolveWebhook(context.Background(), "tr_other")
	require.ErrorIs(t, err, ErrIgnored)

	_, err = m.ResolveWebhook(context.Background(), "")
	require.ErrorIs(t, err, ErrIgnored)

	_, err = m.ResolveWebhook(context.Background(), "tr_missing")
	require.Error(t, err)
}

func TestMollieVerifySignature(t *testing.T) {
	body := []byte("id=tr_paid")

	open := &Mollie{}
	require.True(t, open.VerifySignature(body, ""))

	m := &Mollie{webhookSecret: "s3cret"}
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(body)
	require.True(t, m.VerifySignature(body, hex.EncodeToString(mac.Sum(nil))))
	require.False(t, m.VerifySignature(body, "00"))
}

func TestCompletionPrefersWireLabel(t *testing.T) {
	c, err := completionFromMetadata("stripe", "cs_1", map[string]string{
		"purpose":         "domain_registration",
		"subdomain":       "mangled",
		"subdomain_ascii": "xn--158h",
	})
	require.NoError(t, err)
	require.Equal(t, "🚀", c.Label)
	require.Equal(t, "guest", c.OwnerID)

	_, err = completionFromMetadata("stripe", "cs_2", map[string]string{"purpose": "domain_registration"})
	require.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	for cents, want := range map[int64]string{2000: "20.00", 5: "0.05", 123456: "1234.56"} {
		require.Equal(t, want, formatAmount(cents))
	}
}
