// Package tscache implements the per-thread record-timestamp cache: a
// fixed-size, type-partitioned LRU used by the storage engine to detect
// read/write conflicts over a container -> object -> dkey -> akey
// hierarchy, plus a negative-entry facility for caching "this subtree does
// not exist" answers.
//
// A Table must never be shared across goroutines that could run on
// different OS threads concurrently — it has no internal locking, matching
// the process-per-thread model it serves. Table.checkout/checkin
// provide a cheap same-goroutine-at-a-time assertion, not true thread
// affinity, since Go has no portable way to pin a goroutine to an OS
// thread; callers are expected to hold one Table per processing thread,
// exactly as a single zap.Logger or zapcore.Core is held per subsystem.
//
// © 2025 mapless authors. MIT License.
package tscache

import (
    "fmt"
    "sync/atomic"

    "go.uber.org/zap"
)

// evictionLogInterval is how many evictions pass between "sustained
// eviction pressure" log lines.
const evictionLogInterval = 1 << 16

// typeInfo is the per-type bookkeeping record: LRU ring endpoints, the
// negative-hash bucket mask (positive types with a child level only), and
// the global water marks folded forward on every eviction.
type typeInfo struct {
    lruIdx uint32 // oldest entry in the ring
    mruIdx uint32 // newest entry in the ring
    mask   uint32
    count  int

    ttTsRL, ttTsRH, ttTsW Epoch
}

// Table is the fixed-size, type-partitioned timestamp cache. Construct one
// per processing thread with NewTable.
type Table struct {
    entries []entry
    types   [numTypes]typeInfo

    rootMissIdx []Idx
    rootMask    uint32

    negHashBuckets int
    generation     uint64
    evictions      uint64

    metrics metricsSink
    logger  *zap.Logger

    inUse atomic.Bool
}

// NewTable allocates the entry array (NumSlots entries unless WithTotalSlots
// overrides the size) and partitions it across
// the eight types per cfg.budgets, linking each type's slots into an
// initial circular LRU ring.
func NewTable(opts ...Option) (*Table, error) {
    cfg, err := applyOptions(opts)
    if err != nil {
        return nil, err
    }

    t := &Table{
        entries:        make([]entry, cfg.totalSlots),
        negHashBuckets: cfg.negHashBuckets,
        metrics:        newMetricsSink(cfg.registry),
        logger:         cfg.logger,
        generation:     1,
    }
    t.rootMask = uint32(cfg.negHashBuckets - 1)
    t.rootMissIdx = make([]Idx, cfg.negHashBuckets)

    order := [numTypes]Type{TypeCont, TypeContNeg, TypeObj, TypeObjNeg, TypeDkey, TypeDkeyNeg, TypeAkey, TypeAkeyNeg}
    base := uint32(0)
    for _, typ := range order {
        count := uint32(cfg.budgets.forType(typ))
        t.initType(typ, base, count)
        base += count
    }
    if int(base) != cfg.totalSlots {
        return nil, fmt.Errorf("%w: type budgets sum to %d, want %d", ErrOutOfMemory, base, cfg.totalSlots)
    }
    t.logger.Debug("timestamp table initialized",
        zap.Int("slots", cfg.totalSlots),
        zap.Int("neg_hash_buckets", cfg.negHashBuckets))
    return t, nil
}

func (t *Table) initType(typ Type, base, count uint32) {
    ti := &t.types[typ]
    ti.count = int(count)
    t.metrics.setTypePopulation(typ, int(count))
    if typ == TypeCont || typ == TypeObj || typ == TypeDkey {
        ti.mask = uint32(t.negHashBuckets - 1)
    }
    if count == 0 {
        return
    }

    for i := uint32(0); i < count; i++ {
        slot := base + i
        e := &t.entries[slot]
        e.typ = typ
        e.homeTyp = typ
        e.prevIdx = base + (i+count-1)%count
        e.nextIdx = base + (i+1)%count
    }
    ti.lruIdx = base
    ti.mruIdx = base + count - 1
}

// checkout/checkin guard every public entry point against accidental
// concurrent use. They are not a substitute for callers keeping one Table
// per thread; they only catch the mistake if it happens.
func (t *Table) checkout() {
    if !t.inUse.CompareAndSwap(false, true) {
        panic("tscache: concurrent access to a per-thread Table")
    }
}

func (t *Table) checkin() {
    t.inUse.Store(false)
}

func (t *Table) unlink(ti *typeInfo, slot uint32) {
    e := &t.entries[slot]
    p, n := e.prevIdx, e.nextIdx
    t.entries[p].nextIdx = n
    t.entries[n].prevIdx = p
    if ti.lruIdx == slot {
        ti.lruIdx = n
    }
    if ti.mruIdx == slot {
        ti.mruIdx = p
    }
}

func (t *Table) linkAtMRU(ti *typeInfo, slot uint32) {
    e := &t.entries[slot]
    head, tail := ti.lruIdx, ti.mruIdx
    e.prevIdx = tail
    e.nextIdx = head
    t.entries[tail].nextIdx = slot
    t.entries[head].prevIdx = slot
    ti.mruIdx = slot
}

// nextGeneration returns a generation counter value that is never zero,
// since a zero Idx must always mean "never assigned" (entry.go's live()
// check). The counter is a uint64, but only its low 41 bits fit in an Idx
// (idx.go), so handle generations repeat only after on the order of 2^41
// evictions across the table's entire lifetime — stale handles must keep
// missing unconditionally, and at that width a repeat is not a scenario any
// real process lifetime reaches.
func (t *Table) nextGeneration() uint64 {
    t.generation++
    if t.generation == 0 {
        t.generation = 1
    }
    return t.generation
}

// evictLRU takes the LRU entry of typ, folds its timestamps into the
// type's global water marks, reinitializes it as a fresh child of parent
// (record_ptr, parent_ptr, hash_idx), and moves it to the MRU end of its
// own ring.
func (t *Table) evictLRU(typ Type, parent Idx, hashIdx uint32) (Idx, *entry) {
    ti := &t.types[typ]
    slot := ti.lruIdx
    e := &t.entries[slot]

    if e.tsRL > ti.ttTsRL {
        ti.ttTsRL = e.tsRL
    }
    if e.tsRH > ti.ttTsRH {
        ti.ttTsRH = e.tsRH
    }
    if e.tsW > ti.ttTsW {
        ti.ttTsW = e.tsW
    }

    t.unlink(ti, slot)

    idx := makeIdx(slot, t.nextGeneration())
    missLen := 0
    if typ == TypeCont || typ == TypeObj || typ == TypeDkey {
        missLen = t.negHashBuckets
    }
    e.reset(typ, missLen)
    e.recordPtr = idx
    e.parentPtr = parent
    e.hashIdx = hashIdx
    // New entries start from the type's water marks: a conflict check
    // against a record this table has never seen conservatively assumes
    // something at least this recent happened.
    e.tsRL, e.tsRH, e.tsW = ti.ttTsRL, ti.ttTsRH, ti.ttTsW

    t.linkAtMRU(ti, slot)
    t.metrics.incEviction(typ)
    t.evictions++
    // Sampled, not per-eviction: one line per evictionLogInterval evictions
    // keeps sustained pressure visible without touching the hot path cost.
    if t.evictions%evictionLogInterval == 0 {
        t.logger.Warn("sustained eviction pressure",
            zap.Uint64("evictions", t.evictions),
            zap.String("last_type", typ.String()))
    }
    return idx, e
}

// lookupIdx resolves a handle to its entry: idx is live only if the slot it
// names still holds the exact same handle. On a live hit the entry is
// spliced to the MRU end of its type's ring.
func (t *Table) lookupIdx(idx Idx) (*entry, bool) {
    if idx.IsZero() {
        t.metrics.incLookup(false)
        return nil, false
    }
    slot := idx.Slot()
    if int(slot) >= len(t.entries) {
        t.metrics.incLookup(false)
        return nil, false
    }
    e := &t.entries[slot]
    if !e.live(idx) {
        t.metrics.incLookup(false)
        return nil, false
    }

    // Splice within the slot's home ring, not types[e.typ]: an upgraded
    // entry's typ is positive while the slot stays in its negative ring.
    ti := &t.types[e.homeTyp]
    if ti.mruIdx != slot {
        t.unlink(ti, slot)
        t.linkAtMRU(ti, slot)
    }
    t.metrics.incLookup(true)
    return e, true
}

// allocTop evicts a fresh TypeCont entry — the one type with no real
// parent entry, since containers hang directly off the table.
func (t *Table) allocTop(hash uint64) (Idx, *entry) {
    return t.evictLRU(TypeCont, 0, 0)
}

// allocChild evicts a fresh positive child entry of parentEntry, whose type
// must be TypeCont, TypeObj, or TypeDkey (the three levels with a level
// below them).
func (t *Table) allocChild(parentIdx Idx, parentEntry *entry, hash uint64) (Idx, *entry) {
    childType := parentEntry.typ.Positive().child()
    hashIdx := uint32(hash) & t.types[parentEntry.typ].mask
    return t.evictLRU(childType, parentIdx, hashIdx)
}

// missHashIdx computes which miss bucket hash falls into under parentEntry
// (or the table's root miss index, when parentEntry is nil).
func (t *Table) missHashIdx(parentEntry *entry, hash uint64) uint32 {
    if parentEntry == nil {
        return uint32(hash) & t.rootMask
    }
    return uint32(hash) & t.types[parentEntry.typ].mask
}

// lookupMiss returns the current occupant of the miss bucket hashIdx under
// parentEntry (or the table's root miss index if parentEntry is nil, for a
// TypeContNeg lookup).
func (t *Table) lookupMiss(parentEntry *entry, hashIdx uint32) Idx {
    if parentEntry == nil {
        return t.rootMissIdx[hashIdx]
    }
    return parentEntry.missIdx[hashIdx]
}

func (t *Table) setMiss(parentEntry *entry, hashIdx uint32, idx Idx) {
    if parentEntry == nil {
        t.rootMissIdx[hashIdx] = idx
        return
    }
    parentEntry.missIdx[hashIdx] = idx
}

// allocNegative evicts a fresh negative entry for a missing child of
// parentEntry (or, if parentEntry is nil, a missing top-level container)
// and records it in the appropriate miss bucket.
func (t *Table) allocNegative(parentIdx Idx, parentEntry *entry, hash uint64) (Idx, *entry) {
    var negType Type
    if parentEntry == nil {
        negType = TypeContNeg
    } else {
        negType = parentEntry.typ.Positive().child().Negative()
    }
    hashIdx := t.missHashIdx(parentEntry, hash)
    idx, e := t.evictLRU(negType, parentIdx, hashIdx)
    t.setMiss(parentEntry, hashIdx, idx)
    return idx, e
}

// upgrade converts a negative entry in place to its positive counterpart,
// preserving its accumulated timestamps: the negative entry's read history
// is inherited by the newly materialized record.
//
// The upgraded entry stays linked in its original (negative) type's LRU
// ring rather than migrating to the positive type's ring: the ring a slot
// belongs to is fixed at table construction by which budgeted range it
// falls in, not by its current type tag, so eviction pressure on the
// positive type never reclaims a slot it was never budgeted. The entry is
// reclaimed the next time its home ring's LRU cycles back around to it,
// at which point evictLRU resets its type back to negative.
func (t *Table) upgrade(idx Idx) (*entry, bool) {
    e, ok := t.lookupIdx(idx)
    if !ok || !e.typ.IsNegative() {
        return nil, false
    }
    e.typ = e.typ.Positive()
    if e.typ == TypeCont || e.typ == TypeObj || e.typ == TypeDkey {
        e.missIdx = make([]Idx, t.negHashBuckets)
    } else {
        e.missIdx = nil
    }
    t.metrics.incUpgrade()
    return e, true
}
