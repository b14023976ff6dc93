package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/rax0nrax/punyfunny/pkg/idn"
	"github.com/rax0nrax/punyfunny/pkg/middleware"
)

func newRewriter(next http.Handler) *HostRewriter {
	return NewHostRewriter(next, idn.MustZone("𓋹.ws"), []string{"localhost:3000", " Example.TEST. "}, nil)
}

func TestMatch(t *testing.T) {
	h := newRewriter(http.NotFoundHandler())

	tests := []struct {
		name      string
		host      string
		path      string
		wantLabel string
		wantOK    bool
	}{
		{"zone wire root", "xn--wb8d.ws", "/", "", false},
		{"zone www", "www.xn--wb8d.ws", "/", "", false},
		{"zone display root", "𓋹.ws", "/", "", false},
		{"root with port", "xn--wb8d.ws:8443", "/", "", false},
		{"extra root", "localhost:3000", "/", "", false},
		{"wire subdomain", "xn--158h.xn--wb8d.ws", "/", "xn--158h", true},
		{"uppercase host", "XN--158H.XN--WB8D.WS", "/", "XN--158H", true},
		{"uppercase display label", "Ä.xn--wb8d.ws", "/", "Ä", true},
		{"uppercase www", "WWW.xn--wb8d.ws", "/", "", false},
		{"display subdomain", "🚀.𓋹.ws", "/", "🚀", true},
		{"subdomain with port", "xn--158h.xn--wb8d.ws:8443", "/", "xn--158h", true},
		{"local dev subdomain", "xn--158h.localhost:3000", "/contact.vcf", "xn--158h", true},
		{"normalized extra root", "xn--53h.example.test", "/", "xn--53h", true},
		{"ascii label forwarded", "cool.xn--wb8d.ws", "/", "cool", true},
		{"nested labels", "a.b.xn--wb8d.ws", "/", "", false},
		{"www on extra root", "www.localhost:3000", "/", "", false},
		{"api passthrough", "xn--158h.xn--wb8d.ws", "/api/check-availability", "", false},
		{"webhook passthrough", "xn--158h.xn--wb8d.ws", "/webhooks/stripe", "", false},
		{"health passthrough", "xn--158h.xn--wb8d.ws", "/health", "", false},
		{"metrics passthrough", "xn--158h.xn--wb8d.ws", "/metrics", "", false},
		{"favicon passthrough", "xn--158h.xn--wb8d.ws", "/favicon.ico", "", false},
		{"static passthrough", "xn--158h.xn--wb8d.ws", "/static/app.css", "", false},
		{"prefix is not a segment", "xn--158h.xn--wb8d.ws", "/apiary", "xn--158h", true},
		{"unknown host", "example.com", "/", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, ok := h.Match(tt.host, tt.path)
			if ok != tt.wantOK || label != tt.wantLabel {
				t.Fatalf("Match(%q, %q) = %q, %v; want %q, %v", tt.host, tt.path, label, ok, tt.wantLabel, tt.wantOK)
			}
		})
	}
}

func TestServeHTTPRewritesPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/p/:label", func(c *gin.Context) {
		c.String(http.StatusOK, "page:"+c.Param("label")+" from:"+c.GetHeader(middleware.RewrittenFromHeader))
	})
	engine.GET("/p/:label/contact.vcf", func(c *gin.Context) {
		c.String(http.StatusOK, "vcf:"+c.Param("label"))
	})
	engine.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "landing") })
	engine.GET("/api/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	h := newRewriter(engine)

	tests := []struct {
		host string
		path string
		want string
	}{
		{"xn--158h.xn--wb8d.ws", "/", "page:xn--158h from:xn--158h.xn--wb8d.ws/"},
		{"xn--158h.xn--wb8d.ws", "/contact.vcf", "vcf:xn--158h"},
		{"xn--wb8d.ws", "/", "landing"},
		{"Σ.XN--WB8D.WS", "/", "page:Σ from:Σ.XN--WB8D.WS/"},
		{"xn--158h.xn--wb8d.ws", "/api/ping", "pong"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Host = tt.host
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK || w.Body.String() != tt.want {
			t.Errorf("%s%s: got %d %q, want %q", tt.host, tt.path, w.Code, w.Body.String(), tt.want)
		}
	}
}

func TestServeHTTPStripsSpoofedHeader(t *testing.T) {
	var got string
	h := newRewriter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(middleware.RewrittenFromHeader)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "xn--wb8d.ws"
	req.Header.Set(middleware.RewrittenFromHeader, "evil")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "" {
		t.Fatalf("expected spoofed header to be removed, got %q", got)
	}
}

func TestRoots(t *testing.T) {
	h := newRewriter(http.NotFoundHandler())
	want := []string{"xn--wb8d.ws", "www.xn--wb8d.ws", "𓋹.ws", "www.𓋹.ws", "localhost:3000", "example.test"}
	got := h.Roots()
	if len(got) != len(want) {
		t.Fatalf("Roots() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Roots()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
