package topology

import "fmt"

// DomainType selects which kind of named domain FindDomain looks up.
// Only the root lookup is exercised by the placement engine today; the type
// exists so a richer provider (addressing racks or hosts by id) can be
// substituted without changing the Provider contract.
type DomainType int

const (
    // DomainTypeRoot selects the tree's single root domain.
    DomainTypeRoot DomainType = iota
)

// IDAll selects "any" when used as idSelector with DomainTypeRoot.
const IDAll = -1

// Provider is the read-only external collaborator the placement engine
// depends on. It never mutates the pool; AddRef/DecRef are
// atomic refcount operations on the underlying *Pool.
type Provider interface {
    FindDomain(pool *Pool, domType DomainType, idSelector int) (*Domain, error)
    FindTarget(pool *Pool, id uint32) (*Target, error)
    TargetUnavailable(t *Target) bool
    AddRef(pool *Pool)
    DecRef(pool *Pool)
}

// StaticProvider is the in-process Provider used when the pool topology is
// held entirely in memory (the common case for this module — no external
// pool service is in scope). It simply delegates to Pool's own methods.
type StaticProvider struct{}

// FindDomain returns the pool's root domain. idSelector is accepted for
// interface parity with a richer provider but is otherwise unused: this
// engine only ever looks up the root.
func (StaticProvider) FindDomain(pool *Pool, domType DomainType, idSelector int) (*Domain, error) {
    if domType != DomainTypeRoot {
        return nil, fmt.Errorf("%w: unsupported domain type %d", ErrNotFound, domType)
    }
    root := pool.Root()
    if root == nil {
        return nil, fmt.Errorf("%w: pool has no root domain", ErrNotFound)
    }
    return root, nil
}

// FindTarget looks up a target by id.
func (StaticProvider) FindTarget(pool *Pool, id uint32) (*Target, error) {
    t, ok := pool.TargetByID(id)
    if !ok {
        return nil, fmt.Errorf("%w: target %d", ErrNotFound, id)
    }
    return t, nil
}

// TargetUnavailable reports whether the placement engine must route around
// t.
func (StaticProvider) TargetUnavailable(t *Target) bool {
    return t.Unavailable()
}

// AddRef increments pool's refcount.
func (StaticProvider) AddRef(pool *Pool) { pool.AddRef() }

// DecRef decrements pool's refcount.
func (StaticProvider) DecRef(pool *Pool) { pool.DecRef() }
