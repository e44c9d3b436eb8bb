package otel

import (
	"context"
	"errors"
	"fmt"

	hooks "github.com/idplane/hooks"
	"github.com/idplane/hooks/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is the slice of [hooks.Runtime] the exporter reads. Anything
// answering snapshots works, which keeps the exporter testable without a
// built runtime.
type metricsSource interface {
	MetricsSnapshot() hooks.MetricsSnapshot
	AuditDropped() uint64
}

// counterInstrument pairs a decision counter with its observable.
type counterInstrument struct {
	id  hooks.MetricID
	obs metric.Int64ObservableCounter
}

// histogramInstrument carries one gauge per cumulative bucket plus the total
// sample count. An observable gauge per bound keeps the export an exact
// mirror of the snapshot the Prometheus renderer also reads.
type histogramInstrument struct {
	id      hooks.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter republishes runtime snapshots through an OTel meter on every
// collection. Reads happen inside the SDK callback, so the exporter adds no
// sampling goroutine of its own.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []counterInstrument
	histograms   []histogramInstrument
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers an observable per runtime metric on the meter.
func NewOTelExporter(meter metric.Meter, runtime *hooks.Runtime) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, runtime)
}

// NewOTelExporterFromSource is [NewOTelExporter] for any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}

	observables, err := e.buildInstruments(meter)
	if err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) buildInstruments(meter metric.Meter) ([]metric.Observable, error) {
	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*9+1)

	for _, def := range internaldefs.CounterDefs {
		obs, err := meter.Int64ObservableCounter(def.Name,
			metric.WithDescription(def.Help),
			metric.WithUnit("1"),
		)
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, obs: obs})
		observables = append(observables, obs)
	}

	for _, def := range internaldefs.HistogramDefs {
		ins := histogramInstrument{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			obs, err := meter.Int64ObservableGauge(name,
				metric.WithDescription(def.Help+" Cumulative count at bound "+internaldefs.HistogramBounds[i]+"."),
				metric.WithUnit("1"),
			)
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			ins.buckets[i] = obs
			observables = append(observables, obs)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total sample count."),
			metric.WithUnit("1"),
		)
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s_count: %w", def.Name, err)
		}
		ins.count = count
		observables = append(observables, count)
		e.histograms = append(e.histograms, ins)
	}

	dropped, err := meter.Int64ObservableCounter("hooks_audit_dropped_total",
		metric.WithDescription("Audit events discarded by dispatcher backpressure."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	return observables, nil
}

// observe is the SDK collection callback.
func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.obs, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i, value := range cumulative {
			observer.ObserveInt64(h.buckets[i], int64(value))
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
