package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Constructor errors.
var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// BucketAttribute is the attribute key carrying the upper bound of a histogram bucket.
const BucketAttribute = attribute.Key("le")

type metricsSource interface {
	MetricsSnapshot() authflow.MetricsSnapshot
	AuditDropped() uint64
}

// histogramInstruments publishes one client histogram as a bucket gauge, one series per
// "le" bound, plus a sample counter.
type histogramInstruments struct {
	id      authflow.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableCounter
}

// OTelExporter observes a client's metrics through OpenTelemetry instruments. Each
// collection cycle reads one snapshot.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters     map[authflow.MetricID]metric.Int64ObservableCounter
	order        []authflow.MetricID
	histograms   []histogramInstruments
	bounds       []metric.ObserveOption
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments on meter that read from client.
func NewOTelExporter(meter metric.Meter, client *authflow.Client) (*OTelExporter, error) {
	if client == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, client)
}

// NewOTelExporterFromSource registers instruments on meter that read from source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:   source,
		counters: make(map[authflow.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	for _, label := range internaldefs.BucketLabels() {
		e.bounds = append(e.bounds, metric.WithAttributeSet(attribute.NewSet(BucketAttribute.String(label))))
	}

	observables, err := e.instrument(meter)
	if err != nil {
		return nil, err
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) instrument(meter metric.Meter) ([]metric.Observable, error) {
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		e.order = append(e.order, def.ID)
		observables = append(observables, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."),
			metric.WithUnit("{call}"))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableCounter(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."),
			metric.WithUnit("{call}"))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		e.histograms = append(e.histograms, histogramInstruments{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	return append(observables, dropped), nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, id := range e.order {
		o.ObserveInt64(e.counters[id], int64(snapshot.Counters[id]))
	}
	for _, h := range e.histograms {
		series := internaldefs.SeriesOf(snapshot.Histograms[h.id])
		for i, bound := range e.bounds {
			o.ObserveInt64(h.buckets, int64(series.Cumulative[i]), bound)
		}
		o.ObserveInt64(h.count, int64(series.Count))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
