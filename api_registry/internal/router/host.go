// Package router maps subdomain requests onto the page routes. A request for
// <label>.<root>/path is served as /p/<label>/path on the same handler.
package router

import (
	"net"
	"net/http"
	"strings"

	"github.com/rax0nrax/punyfunny/pkg/idn"
	"github.com/rax0nrax/punyfunny/pkg/logging"
	"github.com/rax0nrax/punyfunny/pkg/middleware"
)

// PassthroughPrefixes are served as-is on every host.
var PassthroughPrefixes = []string{"/api", "/webhooks", "/health", "/metrics", "/static", "/favicon.ico"}

// HostRewriter wraps an http.Handler. It runs before routing, so the rewritten
// path is what the router matches.
type HostRewriter struct {
	next   http.Handler
	roots  []string
	logger logging.Logger
}

// NewHostRewriter accepts requests for zone (both renderings, with and
// without www) plus any extra root hosts, e.g. "localhost:3000".
func NewHostRewriter(next http.Handler, zone idn.Zone, extraRoots []string, logger logging.Logger) *HostRewriter {
	seen := map[string]bool{}
	var roots []string
	add := func(h string) {
		h = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(h), "."))
		if h == "" || seen[h] {
			return
		}
		seen[h] = true
		roots = append(roots, h)
	}
	add(zone.Wire())
	add("www." + zone.Wire())
	add(zone.Display())
	add("www." + zone.Display())
	for _, h := range extraRoots {
		add(h)
	}
	return &HostRewriter{next: next, roots: roots, logger: logger}
}

// Roots lists the hosts treated as the main site.
func (h *HostRewriter) Roots() []string {
	return append([]string(nil), h.roots...)
}

func (h *HostRewriter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if label, ok := h.Match(r.Host, r.URL.Path); ok {
		r2 := r.Clone(r.Context())
		r2.URL.Path = rewritePath(label, r.URL.Path)
		r2.URL.RawPath = ""
		r2.RequestURI = r2.URL.RequestURI()
		r2.Header.Set(middleware.RewrittenFromHeader, r.Host+r.URL.Path)
		if h.logger != nil {
			h.logger.WithFields(logging.Fields{
				"host":  r.Host,
				"path":  r.URL.Path,
				"label": label,
			}).Debug("Rewrote subdomain request")
		}
		r = r2
	} else if r.Header.Get(middleware.RewrittenFromHeader) != "" {
		r = r.Clone(r.Context())
		r.Header.Del(middleware.RewrittenFromHeader)
	}
	h.next.ServeHTTP(w, r)
}

// Match reports the subdomain label for host when the request should be
// rewritten. The label is returned exactly as it appears in the host; only
// the root comparison ignores case.
func (h *HostRewriter) Match(host, path string) (string, bool) {
	for _, prefix := range PassthroughPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return "", false
		}
	}

	host = strings.TrimSuffix(host, ".")
	bare := host
	if hostOnly, _, err := net.SplitHostPort(host); err == nil {
		bare = hostOnly
	}

	for _, root := range h.roots {
		if strings.EqualFold(host, root) || strings.EqualFold(bare, root) {
			return "", false
		}
	}

	for _, root := range h.roots {
		label, ok := cutSuffixFold(host, "."+root)
		if !ok && !strings.Contains(root, ":") {
			// Portless roots also match hosts that carry a port.
			label, ok = cutSuffixFold(bare, "."+root)
		}
		if ok && label != "" && !strings.EqualFold(label, "www") && !strings.Contains(label, ".") {
			return label, true
		}
	}
	return "", false
}

// cutSuffixFold is strings.CutSuffix with a case-insensitive suffix match.
func cutSuffixFold(s, suffix string) (string, bool) {
	if len(s) < len(suffix) || !strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s, false
	}
	return s[:len(s)-len(suffix)], true
}

func rewritePath(label, path string) string {
	if path == "" || path == "/" {
		return "/p/" + label
	}
	return "/p/" + label + path
}
