package prometheus

import (
	"net/http"

	"github.com/MrEthical07/staffsync/metrics/export/internaldefs"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type counterDesc struct {
	def  internaldefs.CounterDef
	desc *prom.Desc
}

type histogramDesc struct {
	def  internaldefs.HistogramDef
	desc *prom.Desc
}

type hubDesc struct {
	def  internaldefs.HubDef
	desc *prom.Desc
}

// Collector is a prom.Collector over an engine and, optionally, a hub.
type Collector struct {
	source internaldefs.MetricsSource
	hub    internaldefs.HubSource

	counters     []counterDesc
	histograms   []histogramDesc
	hubs         []hubDesc
	auditDropped *prom.Desc
}

var _ prom.Collector = (*Collector)(nil)

// Option configures a Collector.
type Option func(*Collector)

// WithHub adds the hub series.
func WithHub(hub internaldefs.HubSource) Option {
	return func(c *Collector) { c.hub = hub }
}

// NewCollector returns a Collector reading from source. *staffsync.Engine
// satisfies source.
func NewCollector(source internaldefs.MetricsSource, opts ...Option) *Collector {
	c := &Collector{
		source:       source,
		auditDropped: prom.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{def: def, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{def: def, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	if c.hub != nil {
		for _, def := range internaldefs.HubDefs {
			c.hubs = append(c.hubs, hubDesc{def: def, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
		}
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.histograms {
		ch <- d.desc
	}
	for _, d := range c.hubs {
		ch <- d.desc
	}
	ch <- c.auditDropped
}

func (c *Collector) Collect(ch chan<- prom.Metric) {
	if c.source != nil {
		snapshot := c.source.MetricsSnapshot()
		// A disabled engine reports an empty snapshot; skip its series.
		if len(snapshot.Counters) > 0 || len(snapshot.Histograms) > 0 {
			for _, d := range c.counters {
				ch <- prom.MustNewConstMetric(d.desc, prom.CounterValue, float64(snapshot.Counters[d.def.ID]))
			}
			for _, d := range c.histograms {
				cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[d.def.ID]))
				buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
				for i, le := range internaldefs.HistogramBounds {
					buckets[le] = cumulative[i]
				}
				// The snapshot carries no sum.
				ch <- prom.MustNewConstHistogram(d.desc, cumulative[len(cumulative)-1], 0, buckets)
			}
		}
		ch <- prom.MustNewConstMetric(c.auditDropped, prom.CounterValue, float64(c.source.AuditDropped()))
	}

	if c.hub != nil {
		stats := c.hub.Stats()
		for _, d := range c.hubs {
			kind := prom.CounterValue
			if d.def.Gauge {
				kind = prom.GaugeValue
			}
			ch <- prom.MustNewConstMetric(d.desc, kind, float64(d.def.Value(stats)))
		}
	}
}

// NewRegistry returns a registry holding c plus the Go runtime and process
// collectors.
func NewRegistry(c *Collector) *prom.Registry {
	reg := prom.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
