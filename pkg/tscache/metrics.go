package tscache

// metrics.go mirrors pkg/placement/metrics.go: a metricsSink interface, a
// no-op implementation, and a Prometheus-backed one selected by whether the
// caller supplied a registry.
//
// © 2025 mapless authors. MIT License.

import "github.com/prometheus/client_golang/prometheus"

type metricsSink interface {
    incLookup(hit bool)
    incEviction(t Type)
    incUpgrade()
    setTypePopulation(t Type, n int)
}

type noopMetrics struct{}

func (noopMetrics) incLookup(bool)             {}
func (noopMetrics) incEviction(Type)           {}
func (noopMetrics) incUpgrade()                {}
func (noopMetrics) setTypePopulation(Type, int) {}

type promMetrics struct {
    lookups    *prometheus.CounterVec
    evictions  *prometheus.CounterVec
    upgrades   prometheus.Counter
    population *prometheus.GaugeVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
    pm := &promMetrics{
        lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "mapless_tscache",
            Name:      "lookups_total",
            Help:      "Number of lookup_idx calls, partitioned by hit/miss.",
        }, []string{"result"}),
        evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "mapless_tscache",
            Name:      "evictions_total",
            Help:      "Number of LRU evictions, partitioned by entry type.",
        }, []string{"type"}),
        upgrades: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: "mapless_tscache",
            Name:      "negative_upgrades_total",
            Help:      "Number of negative entries upgraded to positive on commit.",
        }),
        population: prometheus.NewGaugeVec(prometheus.GaugeOpts{
            Namespace: "mapless_tscache",
            Name:      "lru_entries",
            Help:      "Number of slots in each type's LRU ring.",
        }, []string{"type"}),
    }
    reg.MustRegister(pm.lookups, pm.evictions, pm.upgrades, pm.population)
    return pm
}

func (m *promMetrics) incLookup(hit bool) {
    result := "miss"
    if hit {
        result = "hit"
    }
    m.lookups.WithLabelValues(result).Inc()
}

func (m *promMetrics) incEviction(t Type) {
    m.evictions.WithLabelValues(t.String()).Inc()
}

func (m *promMetrics) incUpgrade() { m.upgrades.Inc() }

func (m *promMetrics) setTypePopulation(t Type, n int) {
    m.population.WithLabelValues(t.String()).Set(float64(n))
}

func newMetricsSink(reg *prometheus.Registry) metricsSink {
    if reg == nil {
        return noopMetrics{}
    }
    return newPromMetrics(reg)
}
