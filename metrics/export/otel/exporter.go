package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/staffsync"
	"github.com/MrEthical07/staffsync/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type observedCounter struct {
	id         staffsync.MetricID
	instrument metric.Int64ObservableCounter
}

type observedHistogram struct {
	id      staffsync.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

type observedHub struct {
	def        internaldefs.HubDef
	instrument metric.Int64Observable
}

// Exporter keeps the callback registration alive until Close.
type Exporter struct {
	source       internaldefs.MetricsSource
	hub          internaldefs.HubSource
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	hubs         []observedHub
	auditDropped metric.Int64ObservableCounter
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithHub adds the hub series.
func WithHub(hub internaldefs.HubSource) Option {
	return func(e *Exporter) { e.hub = hub }
}

// NewExporter registers instruments on meter that read from source.
func NewExporter(meter metric.Meter, source internaldefs.MetricsSource, opts ...Option) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:     source,
		counters:   make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
	}
	for _, opt := range opts {
		opt(exporter)
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*9+len(internaldefs.HubDefs)+1)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		for i := 0; i < len(internaldefs.HistogramBoundSuffix); i++ {
			name := def.Name + "_bucket_le_" + internaldefs.HistogramBoundSuffix[i]
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		countName := def.Name + "_count"
		countIns, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = countIns
		observables = append(observables, countIns)
		exporter.histograms = append(exporter.histograms, h)
	}

	if exporter.hub != nil {
		for _, def := range internaldefs.HubDefs {
			var (
				ins metric.Int64Observable
				err error
			)
			if def.Gauge {
				ins, err = meter.Int64ObservableGauge(def.Name, metric.WithDescription(def.Help))
			} else {
				ins, err = meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
			}
			if err != nil {
				return nil, fmt.Errorf("create hub instrument %s: %w", def.Name, err)
			}
			exporter.hubs = append(exporter.hubs, observedHub{def: def, instrument: ins})
			observables = append(observables, ins)
		}
	}

	auditDropped, err := meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *Exporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i := 0; i < len(cumulative); i++ {
			observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	if e.hub != nil {
		stats := e.hub.Stats()
		for _, h := range e.hubs {
			observer.ObserveInt64(h.instrument, int64(h.def.Value(stats)))
		}
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
