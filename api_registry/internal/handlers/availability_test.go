package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rax0nrax/punyfunny/api_registry/internal/records"
)

func availabilityRouter(checker AvailabilityChecker, metrics *RegistryMetrics) *gin.Engine {
	r := gin.New()
	r.GET("/api/check-availability", NewAvailabilityHandler(checker, testZone, testLogger(), metrics).Handle)
	return r
}

func checkPath(label string) string {
	return "/api/check-availability?subdomain=" + url.QueryEscape(label)
}

func TestAvailabilityRequiresSubdomain(t *testing.T) {
	checker := &checkerStub{}
	r := availabilityRouter(checker, nil)

	for _, target := range []string{"/api/check-availability", checkPath("  ")} {
		w := doJSON(r, http.MethodGet, target, nil, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "Subdomain is required", decode(t, w)["error"])
	}
	require.Empty(t, checker.calls)
}

func TestAvailabilityRejectsInadmissibleWithoutStore(t *testing.T) {
	checker := &checkerStub{available: true}
	metrics := testMetrics()
	r := availabilityRouter(checker, metrics)

	for _, label := range []string{"abc", "🚀1", "xn--158h-a", "xn--a!"} {
		w := doJSON(r, http.MethodGet, checkPath(label), nil, nil)
		require.Equal(t, http.StatusOK, w.Code, label)
		body := decode(t, w)
		require.Equal(t, false, body["available"], label)
		require.Equal(t, InvalidFormatMessage, body["error"], label)
	}
	require.Empty(t, checker.calls)
	require.Equal(t, float64(4), testutil.ToFloat64(metrics.AvailabilityChecks.WithLabelValues("invalid")))
}

func TestAvailabilityRejectsMalformedInput(t *testing.T) {
	checker := &checkerStub{available: true}
	r := availabilityRouter(checker, nil)

	// %FF and %EF%BF%BD would share the wire label xn--zn7c if both passed.
	for _, query := range []string{"%FF", "%F0%9F%9A%80%FF", "%F0%9F%9A%80.%E2%98%95", "%00"} {
		w := doJSON(r, http.MethodGet, "/api/check-availability?subdomain="+query, nil, nil)
		require.Equal(t, http.StatusOK, w.Code, query)
		body := decode(t, w)
		require.Equal(t, false, body["available"], query)
		require.Equal(t, InvalidFormatMessage, body["error"], query)
	}
	require.Empty(t, checker.calls)
}

func TestAvailabilityEncodingFailure(t *testing.T) {
	checker := &checkerStub{available: true}
	r := availabilityRouter(checker, nil)

	w := doJSON(r, http.MethodGet, checkPath(strings.Repeat("🚀☕", 40)), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, false, body["available"])
	require.NotEmpty(t, body["error"])
	require.NotEqual(t, InvalidFormatMessage, body["error"])
	require.Empty(t, checker.calls)
}

func TestAvailabilityReportsDomains(t *testing.T) {
	checker := &checkerStub{available: true}
	r := availabilityRouter(checker, nil)

	w := doJSON(r, http.MethodGet, checkPath("☕"), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, true, body["available"])
	require.Equal(t, "☕", body["subdomain"])
	require.Equal(t, "xn--53h", body["punycode"])
	require.Equal(t, "xn--53h.xn--wb8d.ws", body["fullDomain"])
	require.Equal(t, "☕.𓋹.ws", body["displayDomain"])
	require.NotContains(t, body, "error")
	require.Equal(t, []string{"☕"}, checker.calls)
}

func TestAvailabilityAcceptsWireForm(t *testing.T) {
	checker := &checkerStub{available: true}
	r := availabilityRouter(checker, nil)

	w := doJSON(r, http.MethodGet, checkPath("XN--158H"), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "🚀", decode(t, w)["subdomain"])
	require.Equal(t, []string{"🚀"}, checker.calls)
}

func TestAvailabilityAgainstStore(t *testing.T) {
	metrics := testMetrics()
	r := availabilityRouter(records.NewAvailability(seededStore(t)), metrics)

	w := doJSON(r, http.MethodGet, checkPath("🚀"), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, decode(t, w)["available"])

	w = doJSON(r, http.MethodGet, checkPath("🎉"), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, decode(t, w)["available"])

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.AvailabilityChecks.WithLabelValues("taken")))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.AvailabilityChecks.WithLabelValues("available")))
}

func TestAvailabilityStoreFailure(t *testing.T) {
	r := availabilityRouter(&checkerStub{err: errors.New("redis: connection refused")}, nil)

	w := doJSON(r, http.MethodGet, checkPath("☕"), nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotContains(t, w.Body.String(), "redis")
}
