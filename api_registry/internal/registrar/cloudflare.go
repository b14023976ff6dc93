package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rax0nrax/punyfunny/pkg/clients"
	"github.com/rax0nrax/punyfunny/pkg/logging"
)

const cloudflareBaseURL = "https://api.cloudflare.com/client/v4"

// CloudflareConfig identifies the zone and the token allowed to edit it.
type CloudflareConfig struct {
	APIToken string
	ZoneID   string
	// Zone is the zone apex in wire form, used to build record names.
	Zone    string
	BaseURL string
	HTTP    *clients.HTTPClient
	Logger  logging.Logger
}

// Cloudflare manages records through the zone DNS records API.
type Cloudflare struct {
	apiToken string
	zoneID   string
	zone     string
	baseURL  string
	http     *clients.HTTPClient
	logger   logging.Logger
}

func NewCloudflare(cfg CloudflareConfig) *Cloudflare {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = cloudflareBaseURL
	}
	hc := cfg.HTTP
	if hc == nil {
		execCfg := clients.DefaultHTTPExecutorConfig("cloudflare")
		execCfg.Logger = cfg.Logger
		hc = clients.NewHTTPClient(nil, execCfg)
	}
	return &Cloudflare{
		apiToken: cfg.APIToken,
		zoneID:   cfg.ZoneID,
		zone:     cfg.Zone,
		baseURL:  baseURL,
		http:     hc,
		logger:   cfg.Logger,
	}
}

func (c *Cloudflare) Name() string { return "cloudflare" }

type dnsRecord struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl,omitempty"`
	Proxied bool   `json:"proxied"`
	Comment string `json:"comment,omitempty"`
}

type cfError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cfResponse struct {
	Success bool            `json:"success"`
	Errors  []cfError       `json:"errors,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// UpsertSubdomain updates the A record named <wireLabel>.<zone> when one
// exists and creates it otherwise.
func (c *Cloudflare) UpsertSubdomain(ctx context.Context, wireLabel, target string) (*Result, error) {
	if err := checkArgs(wireLabel, target); err != nil {
		return nil, err
	}
	fqdn := wireLabel + "." + c.zone

	existing, err := c.findRecord(ctx, fqdn)
	if err != nil {
		return nil, err
	}

	record := dnsRecord{
		Type:    "A",
		Name:    fqdn,
		Content: target,
		TTL:     1,
		Comment: "emoji registry",
	}

	var saved dnsRecord
	created := existing == nil
	if created {
		err = c.do(ctx, http.MethodPost, c.recordsPath(), record, &saved)
	} else {
		err = c.do(ctx, http.MethodPut, c.recordsPath()+"/"+url.PathEscape(existing.ID), record, &saved)
	}
	if err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.WithFields(logging.Fields{
			"fqdn":      fqdn,
			"target":    target,
			"record_id": saved.ID,
			"created":   created,
		}).Info("Cloudflare DNS record upserted")
	}
	return &Result{Provider: c.Name(), FQDN: fqdn, Target: target, RecordID: saved.ID, Created: created}, nil
}

func (c *Cloudflare) recordsPath() string {
	return "/zones/" + url.PathEscape(c.zoneID) + "/dns_records"
}

func (c *Cloudflare) findRecord(ctx context.Context, fqdn string) (*dnsRecord, error) {
	q := url.Values{}
	q.Set("type", "A")
	q.Set("name", fqdn)
	q.Set("per_page", strconv.Itoa(5))

	var found []dnsRecord
	if err := c.do(ctx, http.MethodGet, c.recordsPath()+"?"+q.Encode(), nil, &found); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// do performs one API call and decodes the result field into out.
func (c *Cloudflare) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp cfResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("failed to parse API response: %w (status: %d)", err, resp.StatusCode)
	}
	if !apiResp.Success {
		apiErr := &APIError{Provider: c.Name(), Status: resp.StatusCode, Message: "request failed"}
		if len(apiResp.Errors) > 0 {
			apiErr.Code = strconv.Itoa(apiResp.Errors[0].Code)
			apiErr.Message = apiResp.Errors[0].Message
		}
		return apiErr
	}
	if out == nil || len(apiResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(apiResp.Result, out); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}
