package placement

// metrics.go is a thin abstraction over Prometheus so the placement engine
// can be used with or without metrics: a metricsSink interface, a no-op sink
// used when the caller never passes WithMetrics, and a Prometheus-backed
// sink otherwise.
//
// © 2025 mapless authors. MIT License.

import (
    "github.com/prometheus/client_golang/prometheus"
)

type metricsSink interface {
    addShardsPlaced(n int)
    addRebuildShards(n int)
    incDomainReset()
    incReintegrationCall()
}

type noopMetrics struct{}

func (noopMetrics) addShardsPlaced(int)     {}
func (noopMetrics) addRebuildShards(int)    {}
func (noopMetrics) incDomainReset()         {}
func (noopMetrics) incReintegrationCall()   {}

type promMetrics struct {
    shardsPlaced      prometheus.Counter
    rebuildShards     prometheus.Counter
    domainResets      prometheus.Counter
    reintegrationCalls prometheus.Counter
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
    pm := &promMetrics{
        shardsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: "mapless_placement",
            Name:      "shards_placed_total",
            Help:      "Number of shards assigned a target by Place.",
        }),
        rebuildShards: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: "mapless_placement",
            Name:      "rebuild_shards_total",
            Help:      "Number of shards whose target was replaced by a rebuild selection.",
        }),
        domainResets: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: "mapless_placement",
            Name:      "domain_bitmap_resets_total",
            Help:      "Number of times the reset rule cleared a fully-used domain block.",
        }),
        reintegrationCalls: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: "mapless_placement",
            Name:      "reintegration_calls_total",
            Help:      "Number of calls made to the (unsupported) reintegration entry point.",
        }),
    }
    reg.MustRegister(pm.shardsPlaced, pm.rebuildShards, pm.domainResets, pm.reintegrationCalls)
    return pm
}

func (m *promMetrics) addShardsPlaced(n int)   { m.shardsPlaced.Add(float64(n)) }
func (m *promMetrics) addRebuildShards(n int)  { m.rebuildShards.Add(float64(n)) }
func (m *promMetrics) incDomainReset()         { m.domainResets.Inc() }
func (m *promMetrics) incReintegrationCall()   { m.reintegrationCalls.Inc() }

func newMetricsSink(reg *prometheus.Registry) metricsSink {
    if reg == nil {
        return noopMetrics{}
    }
    return newPromMetrics(reg)
}
