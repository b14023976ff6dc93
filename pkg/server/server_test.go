package server

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rax0nrax/punyfunny/pkg/logging"
	"github.com/rax0nrax/punyfunny/pkg/monitoring"
)

func quietLogger() logging.Logger {
	logger := logging.NewLogger()
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

func TestSetupServiceRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hc := monitoring.NewHealthChecker("scribe", "v1")
	mc := monitoring.NewMetricsCollector("scribe", "v1", "abc")
	r := SetupServiceRouter(quietLogger(), "scribe", hc, mc)
	r.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })

	for _, path := range []string{"/ping", "/health", "/metrics"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequestWithContext(context.Background(), "GET", path, nil)
		r.ServeHTTP(w, req)
		if w.Code != 200 {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/metrics", nil)
	r.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `scribe_http_requests_total{endpoint="/ping",method="GET",status="200"} 1`) {
		t.Fatalf("expected request counter for /ping, got:\n%s", w.Body.String())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	cfg := DefaultConfig("scribe", port)
	cfg.Port = port

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, http.NotFoundHandler(), quietLogger())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
