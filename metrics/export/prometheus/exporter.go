package prometheus

import (
	"net/http"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() authflow.MetricsSnapshot
	AuditDropped() uint64
}

type histogramDesc struct {
	id   authflow.MetricID
	desc *prometheus.Desc
}

// PrometheusExporter is a [prometheus.Collector] over a client's metrics. Every
// scrape reads one fresh snapshot.
type PrometheusExporter struct {
	source       metricsSource
	counters     map[authflow.MetricID]*prometheus.Desc
	order        []authflow.MetricID
	histograms   []histogramDesc
	auditDropped *prometheus.Desc
	registry     *prometheus.Registry
}

// NewPrometheusExporter creates an exporter that reads from client.
func NewPrometheusExporter(client *authflow.Client) *PrometheusExporter {
	return NewPrometheusExporterFromSource(client)
}

// NewPrometheusExporterFromSource creates an exporter over any metrics source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	p := &PrometheusExporter{
		source:       source,
		counters:     make(map[authflow.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs)),
		auditDropped: prometheus.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		p.counters[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
		p.order = append(p.order, def.ID)
	}
	for _, def := range internaldefs.HistogramDefs {
		p.histograms = append(p.histograms, histogramDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}

	p.registry = prometheus.NewRegistry()
	p.registry.MustRegister(p)
	return p
}

// Describe implements [prometheus.Collector].
func (p *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	for _, id := range p.order {
		ch <- p.counters[id]
	}
	for _, h := range p.histograms {
		ch <- h.desc
	}
	ch <- p.auditDropped
}

// Collect implements [prometheus.Collector].
func (p *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	if p.source == nil {
		return
	}
	snapshot := p.source.MetricsSnapshot()

	for _, id := range p.order {
		ch <- prometheus.MustNewConstMetric(p.counters[id], prometheus.CounterValue, float64(snapshot.Counters[id]))
	}

	for _, h := range p.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		series := internaldefs.SeriesOf(raw)
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for i, le := range internaldefs.HistogramUpperBounds {
			buckets[le] = series.Cumulative[i]
		}
		// the client keeps no sum
		ch <- prometheus.MustNewConstHistogram(h.desc, series.Count, 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(p.auditDropped, prometheus.CounterValue, float64(p.source.AuditDropped()))
}

// Registry returns the private registry the exporter is registered in.
func (p *PrometheusExporter) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the exporter's metrics in Prometheus exposition format.
func (p *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
