package handlers

import "github.com/prometheus/client_golang/prometheus"

type RegistryMetrics struct {
	AvailabilityChecks *prometheus.CounterVec
	Checkouts          *prometheus.CounterVec
	Webhooks           *prometheus.CounterVec
	Provisioning       *prometheus.CounterVec
}

func (m *RegistryMetrics) IncAvailability(result string) {
	if m == nil || m.AvailabilityChecks == nil {
		return
	}

	m.AvailabilityChecks.WithLabelValues(result).Inc()
}

func (m *RegistryMetrics) IncCheckout(provider, status string) {
	if m == nil || m.Checkouts == nil {
		return
	}

	m.Checkouts.WithLabelValues(provider, status).Inc()
}

func (m *RegistryMetrics) IncWebhook(provider, status string) {
	if m == nil || m.Webhooks == nil {
		return
	}

	m.Webhooks.WithLabelValues(provider, status).Inc()
}

func (m *RegistryMetrics) IncProvision(status string) {
	if m == nil || m.Provisioning == nil {
		return
	}

	m.Provisioning.WithLabelValues(status).Inc()
}
