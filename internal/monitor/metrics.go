package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Steiner-254/subsentry/pkg/models"
	"github.com/Steiner-254/subsentry/pkg/utils"
)

// Metrics wraps the shared collector with the monitor's instruments. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	collector *utils.MetricsCollector
}

func NewMetrics(collector *utils.MetricsCollector) *Metrics {
	m := &Metrics{collector: collector}
	_ = collector.RegisterCounter("subsentry_cycles_total", "Completed monitor cycles", "domain")
	_ = collector.RegisterCounter("subsentry_provider_failures_total", "Cycles on which all enumeration providers failed", "domain")
	_ = collector.RegisterCounter("subsentry_partial_provider_failures_total", "Individual provider failures on otherwise successful cycles", "domain")
	_ = collector.RegisterCounter("subsentry_new_subdomains_total", "Newly discovered subdomains", "domain")
	_ = collector.RegisterCounter("subsentry_scan_failures_total", "Scan jobs that exited non-zero", "domain")
	_ = collector.RegisterCounter("subsentry_findings_total", "Classified findings", "domain", "severity")
	_ = collector.RegisterGauge("subsentry_known_subdomains", "Size of the known set", "domain")
	return m
}

func (m *Metrics) CycleCompleted(domain string) {
	if m == nil {
		return
	}
	m.collector.IncCounter("subsentry_cycles_total", 1, prometheus.Labels{"domain": domain})
}

func (m *Metrics) ProviderFailure(domain string) {
	if m == nil {
		return
	}
	m.collector.IncCounter("subsentry_provider_failures_total", 1, prometheus.Labels{"domain": domain})
}

func (m *Metrics) PartialProviderFailures(domain string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.collector.IncCounter("subsentry_partial_provider_failures_total", float64(n), prometheus.Labels{"domain": domain})
}

func (m *Metrics) NewSubdomains(domain string, n int) {
	if m == nil {
		return
	}
	m.collector.IncCounter("subsentry_new_subdomains_total", float64(n), prometheus.Labels{"domain": domain})
}

func (m *Metrics) ScanFailure(domain string) {
	if m == nil {
		return
	}
	m.collector.IncCounter("subsentry_scan_failures_total", 1, prometheus.Labels{"domain": domain})
}

func (m *Metrics) Findings(domain string, counts models.BucketCounts) {
	if m == nil {
		return
	}
	for _, sev := range models.SeveritiesByPriority {
		if n := counts.Get(sev); n > 0 {
			m.collector.IncCounter("subsentry_findings_total", float64(n),
				prometheus.Labels{"domain": domain, "severity": string(sev)})
		}
	}
}

func (m *Metrics) KnownSize(domain string, n int) {
	if m == nil {
		return
	}
	m.collector.SetGauge("subsentry_known_subdomains", float64(n), prometheus.Labels{"domain": domain})
}
