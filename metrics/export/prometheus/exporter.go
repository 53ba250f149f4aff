package prometheus

import (
	"net/http"

	"github.com/MrEthical07/pinauth"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSource is the engine surface the exporter reads.
type MetricsSource interface {
	MetricsSnapshot() pinauth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter publishes pinauth metrics for Prometheus.
type Exporter struct {
	source MetricsSource
}

// NewExporter reads from engine.
func NewExporter(engine *pinauth.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource reads from any [MetricsSource].
func NewExporterFromSource(source MetricsSource) *Exporter {
	return &Exporter{source: source}
}

// Registry returns a private registry holding only [Exporter.Collector].
func (p *Exporter) Registry() *promclient.Registry {
	reg := promclient.NewRegistry()
	reg.MustRegister(p.Collector())
	return reg
}

// Handler serves the pinauth metrics through promhttp. Callers that also
// export runtime collectors should register [Exporter.Collector] in their own
// registry instead.
func (p *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.Registry(), promhttp.HandlerOpts{})
}
