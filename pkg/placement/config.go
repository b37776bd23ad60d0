package placement

// config.go holds construction-time configuration: a private config struct
// filled in by defaultConfig() and mutated by a slice of functional Options,
// validated once in applyOptions() before the Map is built.
//
// © 2025 mapless authors. MIT License.

import (
    "errors"

    "github.com/prometheus/client_golang/prometheus"
    "go.uber.org/zap"

    "github.com/mapless-project/mapless/internal/topology"
)

type config struct {
    provider     topology.Provider
    leaderOracle LeaderOracle
    registry     *prometheus.Registry
    logger       *zap.Logger
}

func defaultConfig(classifier ObjectClassifier) *config {
    return &config{
        provider:     topology.StaticProvider{},
        leaderOracle: DefaultLeaderOracle{Classifier: classifier},
        logger:       zap.NewNop(),
    }
}

// Option configures a Map at construction time.
type Option func(*config)

// WithProvider overrides the default in-memory topology.Provider. Useful in
// tests that want to observe or fault-inject FindDomain/FindTarget calls.
func WithProvider(p topology.Provider) Option {
    return func(c *config) {
        if p != nil {
            c.provider = p
        }
    }
}

// WithLeaderOracle overrides the default group-leader policy used by
// FindRebuild's leader filtering.
func WithLeaderOracle(o LeaderOracle) Option {
    return func(c *config) {
        if o != nil {
            c.leaderOracle = o
        }
    }
}

// WithMetrics enables Prometheus metrics collection for this Map. Passing nil
// disables metrics (the default).
func WithMetrics(reg *prometheus.Registry) Option {
    return func(c *config) {
        c.registry = reg
    }
}

// WithLogger plugs an external zap.Logger. The engine never logs on the
// Place/FindRebuild hot path; only rare events (a bitmap reset sweep, a
// rebuild reusing an already-claimed top-level domain, a reintegration call)
// are emitted.
func WithLogger(l *zap.Logger) Option {
    return func(c *config) {
        if l != nil {
            c.logger = l
        }
    }
}

func applyOptions(cfg *config, opts []Option) error {
    for _, opt := range opts {
        opt(cfg)
    }
    if cfg.provider == nil {
        return errors.New("placement: provider must not be nil")
    }
    if cfg.leaderOracle == nil {
        return errors.New("placement: leader oracle must not be nil")
    }
    return nil
}
