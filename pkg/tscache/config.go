package tscache

// config.go mirrors pkg/placement/config.go: a private config struct, a
// defaultConfig, and a slice of functional Options validated once before
// the table is built.
//
// © 2025 mapless authors. MIT License.

import (
    "fmt"

    "github.com/prometheus/client_golang/prometheus"
    "go.uber.org/zap"
)

// budgets is the slot-count partition across the eight types: container
// 1024, object 96K, dkey 896K, akey the remainder, with each positive
// type's negative counterpart budgeted separately (32K, 128K, 1M, 2M).
type budgets struct {
    cont, contNeg       int
    obj, objNeg         int
    dkey, dkeyNeg       int
    akey, akeyNeg       int
}

func defaultBudgets() budgets {
    return budgets{
        cont:    1024,
        contNeg: 32 * 1024,
        obj:     96 * 1024,
        objNeg:  128 * 1024,
        dkey:    896 * 1024,
        dkeyNeg: 1024 * 1024,
        akeyNeg: 2 * 1024 * 1024,
        // akey (positive) is computed as the remainder of NumSlots in
        // resolve().
    }
}

func (b budgets) resolve(totalSlots int) (budgets, error) {
    fixed := b.cont + b.contNeg + b.obj + b.objNeg + b.dkey + b.dkeyNeg + b.akeyNeg
    if fixed >= totalSlots {
        return budgets{}, fmt.Errorf("%w: fixed type budgets (%d) leave no room for akey entries in %d slots", ErrOutOfMemory, fixed, totalSlots)
    }
    b.akey = totalSlots - fixed
    return b, nil
}

func (b budgets) forType(t Type) int {
    switch t {
    case TypeCont:
        return b.cont
    case TypeContNeg:
        return b.contNeg
    case TypeObj:
        return b.obj
    case TypeObjNeg:
        return b.objNeg
    case TypeDkey:
        return b.dkey
    case TypeDkeyNeg:
        return b.dkeyNeg
    case TypeAkey:
        return b.akey
    case TypeAkeyNeg:
        return b.akeyNeg
    default:
        return 0
    }
}

type config struct {
    budgets budgets
    // negHashBuckets sizes every positive entry's missIdx array (and the
    // table's root miss index used for TypeContNeg lookups, which have no
    // real parent entry to hang a missIdx off of).
    negHashBuckets int

    // totalSlots is the entry array size the budgets are partitioned
    // across. Production tables always use NumSlots (2^23); WithTotalSlots
    // exists so tests can build a much smaller table instead of an
    // ~8.39M-entry one.
    totalSlots int

    registry *prometheus.Registry
    logger   *zap.Logger
}

func defaultConfig() *config {
    return &config{
        budgets:        defaultBudgets(),
        negHashBuckets: 8,
        totalSlots:     NumSlots,
        logger:         zap.NewNop(),
    }
}

// Option configures a Table at construction time.
type Option func(*config)

// WithBudgets overrides the default per-type slot partition. akeyPositive
// is always computed as whatever remains of the table's total slot count
// (NumSlots, or the WithTotalSlots value).
func WithBudgets(cont, contNeg, obj, objNeg, dkey, dkeyNeg, akeyNeg int) Option {
    return func(c *config) {
        c.budgets = budgets{
            cont: cont, contNeg: contNeg,
            obj: obj, objNeg: objNeg,
            dkey: dkey, dkeyNeg: dkeyNeg,
            akeyNeg: akeyNeg,
        }
    }
}

// WithNegativeHashBuckets overrides the per-entry missing-child hash table
// size. Must be a power of two; not validated to be so (a non-power-of-two
// value degrades bucket distribution but stays memory-safe, since bucket
// selection always masks with size-1).
func WithNegativeHashBuckets(n int) Option {
    return func(c *config) {
        if n > 0 {
            c.negHashBuckets = n
        }
    }
}

// WithMetrics enables Prometheus metrics collection for this Table.
func WithMetrics(reg *prometheus.Registry) Option {
    return func(c *config) {
        c.registry = reg
    }
}

// WithLogger plugs an external zap.Logger. The table never logs
// per-operation: construction emits one debug line, and sustained eviction
// pressure is reported at a sampled interval (one warning per
// evictionLogInterval evictions).
func WithLogger(l *zap.Logger) Option {
    return func(c *config) {
        if l != nil {
            c.logger = l
        }
    }
}

// WithTotalSlots overrides the table's entry array size. Intended for
// tests: production callers should accept the NumSlots default.
func WithTotalSlots(n int) Option {
    return func(c *config) {
        if n > 0 {
            c.totalSlots = n
        }
    }
}

func applyOptions(opts []Option) (*config, error) {
    cfg := defaultConfig()
    for _, opt := range opts {
        opt(cfg)
    }
    resolved, err := cfg.budgets.resolve(cfg.totalSlots)
    if err != nil {
        return nil, err
    }
    cfg.budgets = resolved
    return cfg, nil
}
