package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rax0nrax/punyfunny/pkg/clients"
	"github.com/rax0nrax/punyfunny/pkg/logging"
)

const dynadotBaseURL = "https://api.dynadot.com/api3.json"

// DynadotConfig holds the account key and the zone being managed.
type DynadotConfig struct {
	APIKey  string
	Zone    string
	BaseURL string
	HTTP    *clients.HTTPClient
	Logger  logging.Logger
}

// Dynadot talks to the api3.json interface.
type Dynadot struct {
	apiKey  string
	zone    string
	baseURL string
	http    *clients.HTTPClient
	logger  logging.Logger
}

func NewDynadot(cfg DynadotConfig) *Dynadot {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = dynadotBaseURL
	}
	hc := cfg.HTTP
	if hc == nil {
		execCfg := clients.DefaultHTTPExecutorConfig("dynadot")
		execCfg.Logger = cfg.Logger
		hc = clients.NewHTTPClient(nil, execCfg)
	}
	return &Dynadot{
		apiKey:  cfg.APIKey,
		zone:    cfg.Zone,
		baseURL: baseURL,
		http:    hc,
		logger:  cfg.Logger,
	}
}

func (d *Dynadot) Name() string { return "dynadot" }

// dynadotCode accepts the response code as a number or a string; the API
// has returned both.
type dynadotCode string

func (c *dynadotCode) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	*c = dynadotCode(b)
	return nil
}

type dynadotEnvelope struct {
	ResponseCode dynadotCode `json:"ResponseCode"`
	Status       string      `json:"Status"`
	Error        string      `json:"Error"`
}

type dynadotResponse struct {
	SetDNS *dynadotEnvelope `json:"SetDnsResponse"`

	// Failures before command dispatch come back under a generic key.
	Generic *dynadotEnvelope `json:"Response"`
}

// UpsertSubdomain adds an A sub-record. add_dns_to_current_setting keeps the
// zone's existing records instead of replacing them.
func (d *Dynadot) UpsertSubdomain(ctx context.Context, wireLabel, target string) (*Result, error) {
	if err := checkArgs(wireLabel, target); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("key", d.apiKey)
	params.Set("command", "set_dns2")
	params.Set("domain", d.zone)
	params.Set("sub_host0", wireLabel)
	params.Set("sub_record_type0", "a")
	params.Set("sub_record0", target)
	params.Set("add_dns_to_current_setting", "1")
	endpoint := d.baseURL + "?" + params.Encode()

	resp, err := d.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read dynadot response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: d.Name(), Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var parsed dynadotResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse dynadot response: %w", err)
	}
	env := parsed.SetDNS
	if env == nil {
		env = parsed.Generic
	}
	if env == nil {
		return nil, &APIError{Provider: d.Name(), Status: resp.StatusCode, Message: "unexpected response shape"}
	}
	if env.ResponseCode != "0" {
		msg := env.Error
		if msg == "" {
			msg = env.Status
		}
		return nil, &APIError{Provider: d.Name(), Status: resp.StatusCode, Code: string(env.ResponseCode), Message: msg}
	}

	fqdn := wireLabel + "." + d.zone
	if d.logger != nil {
		d.logger.WithFields(logging.Fields{
			"fqdn":   fqdn,
			"target": target,
		}).Info("Dynadot DNS record set")
	}
	return &Result{Provider: d.Name(), FQDN: fqdn, Target: target, Created: true}, nil
}
