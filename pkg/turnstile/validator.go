package turnstile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rax0nrax/punyfunny/pkg/clients"
)

// DefaultVerifyURL is Cloudflare's siteverify endpoint.
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

type Validator struct {
	secretKey  string
	verifyURL  string
	httpClient *http.Client
}

type VerifyResponse struct {
	Success     bool     `json:"success"`
	ErrorCodes  []string `json:"error-codes"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	Action      string   `json:"action"`
}

// NewValidator returns a validator; an empty secret disables verification.
func NewValidator(secretKey string) *Validator {
	return &Validator{
		secretKey: secretKey,
		verifyURL: DefaultVerifyURL,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: clients.DefaultTransport(),
		},
	}
}

// WithEndpoint points the validator at another siteverify URL.
func (v *Validator) WithEndpoint(verifyURL string, httpClient *http.Client) *Validator {
	v.verifyURL = verifyURL
	if httpClient != nil {
		v.httpClient = httpClient
	}
	return v
}

// Enabled reports whether a secret is configured.
func (v *Validator) Enabled() bool {
	return v != nil && v.secretKey != ""
}

// Verify checks a widget token. Tokens are single use, so the request is
// never retried.
func (v *Validator) Verify(ctx context.Context, token, remoteIP string) (*VerifyResponse, error) {
	if !v.Enabled() {
		return &VerifyResponse{Success: true, ErrorCodes: []string{}}, nil
	}

	if token == "" {
		return &VerifyResponse{
			Success:    false,
			ErrorCodes: []string{"missing-input-response"},
		}, nil
	}

	data := url.Values{}
	data.Set("secret", v.secretKey)
	data.Set("response", token)
	if remoteIP != "" {
		data.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}
