package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/rax0nrax/punyfunny/pkg/logging"
)

// ErrCircuitOpen is returned while an upstream's breaker is open.
var ErrCircuitOpen = circuitbreaker.ErrOpen

// maxBodyBytes caps how much of an upstream response is buffered.
const maxBodyBytes = 4 << 20

// CircuitBreakerState represents the state of the circuit breaker.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func convertState(state circuitbreaker.State) CircuitBreakerState {
	switch state {
	case circuitbreaker.HalfOpenState:
		return StateHalfOpen
	case circuitbreaker.OpenState:
		return StateOpen
	default:
		return StateClosed
	}
}

// DefaultShouldRetry retries network errors, 5xx and 429.
func DefaultShouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// HTTPExecutorConfig configures the HTTP executor
type HTTPExecutorConfig struct {
	// Name identifies the upstream in logs and breaker callbacks.
	Name string

	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// ShouldRetry determines if a response should trigger a retry
	ShouldRetry func(resp *http.Response, err error) bool

	// BreakerDisabled turns the circuit breaker off.
	BreakerDisabled bool
	// BreakerDelay is how long the breaker stays open before probing.
	BreakerDelay time.Duration
	// BreakerFailures out of BreakerWindow attempts trip the breaker.
	BreakerFailures uint
	BreakerWindow   uint

	Logger        logging.Logger
	OnStateChange func(name string, from, to CircuitBreakerState)
}

// DefaultHTTPExecutorConfig returns sensible defaults
func DefaultHTTPExecutorConfig(name string) HTTPExecutorConfig {
	return HTTPExecutorConfig{
		Name:            name,
		MaxRetries:      3,
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		ShouldRetry:     DefaultShouldRetry,
		BreakerDelay:    15 * time.Second,
		BreakerFailures: 5,
		BreakerWindow:   10,
	}
}

func normalizeHTTPExecutorConfig(cfg HTTPExecutorConfig) HTTPExecutorConfig {
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = DefaultShouldRetry
	}
	if cfg.BreakerDelay <= 0 {
		cfg.BreakerDelay = 15 * time.Second
	}
	if cfg.BreakerWindow == 0 {
		cfg.BreakerWindow = 10
	}
	if cfg.BreakerFailures == 0 || cfg.BreakerFailures > cfg.BreakerWindow {
		cfg.BreakerFailures = cfg.BreakerWindow/2 + 1
	}
	return cfg
}

// NewHTTPRetryPolicy creates a retry policy for HTTP requests
//
//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter, not an actual response
func NewHTTPRetryPolicy(cfg HTTPExecutorConfig) retrypolicy.RetryPolicy[*http.Response] {
	cfg = normalizeHTTPExecutorConfig(cfg)
	return retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(cfg.ShouldRetry).
		Build()
}

// NewHTTPCircuitBreaker counts errors and 5xx responses as failures.
//
//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter, not an actual response
func NewHTTPCircuitBreaker(cfg HTTPExecutorConfig) circuitbreaker.CircuitBreaker[*http.Response] {
	cfg = normalizeHTTPExecutorConfig(cfg)
	builder := circuitbreaker.NewBuilder[*http.Response]().
		WithFailureThresholdRatio(cfg.BreakerFailures, cfg.BreakerWindow).
		WithDelay(cfg.BreakerDelay).
		WithSuccessThreshold(1).
		HandleIf(func(resp *http.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode >= 500)
		})

	if cfg.Logger != nil || cfg.OnStateChange != nil {
		builder = builder.OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			from, to := convertState(event.OldState), convertState(event.NewState)
			if cfg.Logger != nil {
				cfg.Logger.WithFields(logging.Fields{
					"circuit_breaker": cfg.Name,
					"from_state":      from.String(),
					"to_state":        to.String(),
				}).Warn("circuit breaker state change")
			}
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(cfg.Name, from, to)
			}
		})
	}

	return builder.Build()
}

// NewHTTPExecutor combines the retry policy with an optional breaker. Retry
// is the outer policy so each attempt is counted by the breaker.
//
//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter, not an actual response
func NewHTTPExecutor(cfg HTTPExecutorConfig) failsafe.Executor[*http.Response] {
	retry := NewHTTPRetryPolicy(cfg)
	if cfg.BreakerDisabled {
		return failsafe.With(retry)
	}
	return failsafe.With(retry, NewHTTPCircuitBreaker(cfg))
}

// HTTPClient sends requests to one upstream through a failsafe executor.
// Response bodies are buffered so retried attempts never leak connections.
type HTTPClient struct {
	name     string
	client   *http.Client
	executor failsafe.Executor[*http.Response]
}

// NewHTTPClient builds a client. A nil httpClient gets DefaultTransport and
// a 30s timeout.
func NewHTTPClient(httpClient *http.Client, cfg HTTPExecutorConfig) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second, Transport: DefaultTransport()}
	}
	cfg = normalizeHTTPExecutorConfig(cfg)
	return &HTTPClient{
		name:     cfg.Name,
		client:   httpClient,
		executor: NewHTTPExecutor(cfg),
	}
}

// Do builds a fresh request per attempt with newReq and returns the final
// response. When retries run out on a retryable status, that last response
// is returned without an error so callers can inspect it.
func (c *HTTPClient) Do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		return bufferBody(resp)
	})
	if err != nil {
		if resp != nil {
			return resp, nil
		}
		return nil, fmt.Errorf("%s request failed: %w", c.name, err)
	}
	return resp, nil
}

func bufferBody(resp *http.Response) (*http.Response, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
