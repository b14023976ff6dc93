package registrar

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rax0nrax/punyfunny/pkg/clients"
)

func testHTTP(name string) *clients.HTTPClient {
	cfg := clients.DefaultHTTPExecutorConfig(name)
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	cfg.BreakerDisabled = true
	return clients.NewHTTPClient(nil, cfg)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestDynadotUpsertSubdomain(t *testing.T) {
	var query atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		_, _ = io.WriteString(w, `{"SetDnsResponse":{"ResponseCode":0,"Status":"success"}}`)
	}))
	defer server.Close()

	d := NewDynadot(DynadotConfig{
		APIKey:  "key-1",
		Zone:    "xn--wb8d.ws",
		BaseURL: server.URL,
		HTTP:    testHTTP("dynadot"),
		Logger:  quietLogger(),
	})

	res, err := d.UpsertSubdomain(context.Background(), "xn--158h", "203.0.113.7")
	if err != nil {
		t.Fatalf("UpsertSubdomain: %v", err)
	}
	if res.FQDN != "xn--158h.xn--wb8d.ws" || res.Target != "203.0.113.7" || res.Simulated {
		t.Fatalf("unexpected result %+v", res)
	}

	q := query.Load().(url.Values)
	want := map[string]string{
		"key":                        "key-1",
		"command":                    "set_dns2",
		"domain":                     "xn--wb8d.ws",
		"sub_host0":                  "xn--158h",
		"sub_record_type0":           "a",
		"sub_record0":                "203.0.113.7",
		"add_dns_to_current_setting": "1",
	}
	for k, v := range want {
		if got := q[k]; len(got) != 1 || got[0] != v {
			t.Errorf("query %s = %v, want %q", k, got, v)
		}
	}
}

func TestDynadotErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"string code", http.StatusOK, `{"SetDnsResponse":{"ResponseCode":"-1","Status":"error","Error":"invalid domain"}}`, "-1"},
		{"generic envelope", http.StatusOK, `{"Response":{"ResponseCode":"-1","Error":"invalid key"}}`, "-1"},
		{"http failure", http.StatusForbidden, `forbidden`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			d := NewDynadot(DynadotConfig{APIKey: "k", Zone: "xn--wb8d.ws", BaseURL: server.URL, HTTP: testHTTP("dynadot")})
			_, err := d.UpsertSubdomain(context.Background(), "xn--158h", "127.0.0.1")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != tt.wantCode || apiErr.Status != tt.status {
				t.Fatalf("unexpected error %+v", apiErr)
			}
		})
	}
}

func TestDynadotRetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"SetDnsResponse":{"ResponseCode":"0","Status":"success"}}`)
	}))
	defer server.Close()

	d := NewDynadot(DynadotConfig{APIKey: "k", Zone: "xn--wb8d.ws", BaseURL: server.URL, HTTP: testHTTP("dynadot")})
	if _, err := d.UpsertSubdomain(context.Background(), "xn--53h", "127.0.0.1"); err != nil {
		t.Fatalf("UpsertSubdomain: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func writeCF(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "result": result})
}

func TestCloudflareCreatesMissingRecord(t *testing.T) {
	var created atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("unexpected auth header: %s", got)
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/zones/zone-1/dns_records":
			if r.URL.Query().Get("name") != "xn--158h.xn--wb8d.ws" || r.URL.Query().Get("type") != "A" {
				t.Errorf("unexpected lookup query %s", r.URL.RawQuery)
			}
			writeCF(w, []dnsRecord{})
		case r.Method == http.MethodPost && r.URL.Path == "/zones/zone-1/dns_records":
			var rec dnsRecord
			if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
				t.Errorf("decode create: %v", err)
			}
			if rec.Type != "A" || rec.Content != "203.0.113.7" || rec.Name != "xn--158h.xn--wb8d.ws" {
				t.Errorf("unexpected record %+v", rec)
			}
			created.Store(true)
			rec.ID = "rec-1"
			writeCF(w, rec)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewCloudflare(CloudflareConfig{APIToken: "token", ZoneID: "zone-1", Zone: "xn--wb8d.ws", BaseURL: server.URL, HTTP: testHTTP("cloudflare"), Logger: quietLogger()})
	res, err := c.UpsertSubdomain(context.Background(), "xn--158h", "203.0.113.7")
	if err != nil {
		t.Fatalf("UpsertSubdomain: %v", err)
	}
	if !created.Load() || !res.Created || res.RecordID != "rec-1" {
		t.Fatalf("expected create, got %+v", res)
	}
}

func TestCloudflareUpdatesExistingRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			writeCF(w, []dnsRecord{{ID: "rec-9", Type: "A", Name: "xn--53h.xn--wb8d.ws", Content: "10.0.0.1"}})
		case r.Method == http.MethodPut && r.URL.Path == "/zones/zone-1/dns_records/rec-9":
			var rec dnsRecord
			_ = json.NewDecoder(r.Body).Decode(&rec)
			rec.ID = "rec-9"
			writeCF(w, rec)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewCloudflare(CloudflareConfig{APIToken: "token", ZoneID: "zone-1", Zone: "xn--wb8d.ws", BaseURL: server.URL, HTTP: testHTTP("cloudflare")})
	res, err := c.UpsertSubdomain(context.Background(), "xn--53h", "10.0.0.2")
	if err != nil {
		t.Fatalf("UpsertSubdomain: %v", err)
	}
	if res.Created || res.RecordID != "rec-9" || res.Target != "10.0.0.2" {
		t.Fatalf("expected update, got %+v", res)
	}
}

func TestCloudflareAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"success":false,"errors":[{"code":10000,"message":"Authentication error"}]}`)
	}))
	defer server.Close()

	c := NewCloudflare(CloudflareConfig{APIToken: "bad", ZoneID: "zone-1", Zone: "xn--wb8d.ws", BaseURL: server.URL, HTTP: testHTTP("cloudflare")})
	_, err := c.UpsertSubdomain(context.Background(), "xn--158h", "127.0.0.1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "10000" || !strings.Contains(apiErr.Error(), "Authentication error") {
		t.Fatalf("unexpected error: %v", apiErr)
	}
}

func TestNoopSimulates(t *testing.T) {
	n := NewNoop("xn--wb8d.ws", quietLogger())
	res, err := n.UpsertSubdomain(context.Background(), "xn--158h", "127.0.0.1")
	if err != nil {
		t.Fatalf("UpsertSubdomain: %v", err)
	}
	if !res.Simulated || res.FQDN != "xn--158h.xn--wb8d.ws" || res.Provider != "noop" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestArgumentChecks(t *testing.T) {
	n := NewNoop("xn--wb8d.ws", nil)
	for _, tt := range []struct{ label, target string }{
		{"", "127.0.0.1"},
		{"a.b", "127.0.0.1"},
		{"xn--158h", " "},
	} {
		if _, err := n.UpsertSubdomain(context.Background(), tt.label, tt.target); err == nil {
			t.Errorf("expected error for %q -> %q", tt.label, tt.target)
		}
	}
}
