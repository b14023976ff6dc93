package clients

import (
	"net"
	"net/http"
	"time"
)

// DefaultTransport returns an HTTP transport with per-host connection caps.
// Registrar and payment APIs are single hosts, so the cap bounds the number
// of requests that can pile up behind a slow upstream.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     32,
		MaxIdleConnsPerHost: 8,
		MaxIdleConns:        64,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
