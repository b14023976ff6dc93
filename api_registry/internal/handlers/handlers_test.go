package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rax0nrax/punyfunny/api_registry/internal/payments"
	"github.com/rax0nrax/punyfunny/api_registry/internal/records"
	"github.com/rax0nrax/punyfunny/pkg/idn"
	"github.com/rax0nrax/punyfunny/pkg/logging"
	"github.com/rax0nrax/punyfunny/pkg/turnstile"
)

var testZone = idn.MustZone("𓋹.ws")

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() logging.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testMetrics() *RegistryMetrics {
	return &RegistryMetrics{
		AvailabilityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "availability_checks_total"}, []string{"result"}),
		Checkouts:          prometheus.NewCounterVec(prometheus.CounterOpts{Name: "checkouts_total"}, []string{"provider", "status"}),
		Webhooks:           prometheus.NewCounterVec(prometheus.CounterOpts{Name: "webhooks_total"}, []string{"provider", "status"}),
		Provisioning:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "provisioning_total"}, []string{"status"}),
	}
}

func seededStore(t *testing.T) *records.MemoryStore {
	t.Helper()
	store, err := records.NewMemoryStore(records.DemoSeed()...)
	require.NoError(t, err)
	return store
}

type checkerStub struct {
	available bool
	err       error
	calls     []string
}

func (s *checkerStub) CheckAvailability(_ context.Context, label string) (bool, error) {
	s.calls = append(s.calls, label)
	return s.available, s.err
}

type providerStub struct {
	checkouts []payments.Checkout
	err       error
}

func (p *providerStub) Name() string { return "stub" }

func (p *providerStub) CreateCheckout(_ context.Context, c payments.Checkout) (*payments.Session, error) {
	p.checkouts = append(p.checkouts, c)
	if p.err != nil {
		return nil, p.err
	}
	return &payments.Session{Provider: "stub", ID: "sess_1", URL: "https://pay.example/sess_1"}, nil
}

type turnstileStub struct {
	resp   *turnstile.VerifyResponse
	err    error
	tokens []string
	ips    []string
}

func (s *turnstileStub) Verify(_ context.Context, token, remoteIP string) (*turnstile.VerifyResponse, error) {
	s.tokens = append(s.tokens, token)
	s.ips = append(s.ips, remoteIP)
	return s.resp, s.err
}

func doJSON(r http.Handler, method, target string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
