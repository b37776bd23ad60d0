package tscache

// entry.go defines the fixed-layout record the table's slot array holds.
// Every field here is sized/typed so the whole array can be preallocated
// once at table construction and never reallocated afterward: a small,
// dense struct whose lifetime is governed entirely by an LRU ring, not by
// Go's GC.
//
// © 2025 mapless authors. MIT License.

// entry is one record in the table's fixed 2^23-slot array.
type entry struct {
    // recordPtr is the exact Idx currently occupying this slot. A lookup by
    // idx is a live hit only when idx == recordPtr; eviction overwrites this
    // with the slot's new Idx (a fresh generation), which is how stale
    // handles reliably miss.
    recordPtr Idx

    // parentPtr is an upward reference to this entry's parent in the
    // cont/obj/dkey/akey hierarchy — a relation, not an ownership edge; the
    // parent is never freed because a child still references it.
    parentPtr Idx

    typ Type
    // homeTyp names the ring this slot was budgeted to at table
    // construction. It never changes: an upgraded entry's typ flips to the
    // positive counterpart while the slot stays linked in (and is evicted
    // from) its home ring.
    homeTyp Type

    // missIdx holds hash-bucketed references to negative children of this
    // entry — only populated for TypeCont/TypeObj/TypeDkey entries, which
    // have a level below them. Its length is fixed at table construction
    // (config.go's negHashBuckets) and never resized.
    missIdx []Idx
    // hashIdx is which bucket of the *parent's* missIdx (or the table's
    // root miss index, for a TypeContNeg entry) named this entry. Only
    // meaningful for negative entries.
    hashIdx uint32

    tsRL Epoch
    tsRH Epoch
    tsW  Epoch

    txRL TxID
    txRH TxID
    txW  TxID

    // prevIdx/nextIdx thread this entry into its type's doubly-linked LRU
    // ring. Index-based rather than pointer-based so the whole array stays
    // one contiguous allocation.
    prevIdx uint32
    nextIdx uint32
}

// live reports whether idx is still the current occupant of its slot.
func (e *entry) live(idx Idx) bool {
    return e.recordPtr != 0 && e.recordPtr == idx
}

func (e *entry) reset(typ Type, missLen int) {
    e.typ = typ
    if missLen > 0 {
        if cap(e.missIdx) >= missLen {
            e.missIdx = e.missIdx[:missLen]
            for i := range e.missIdx {
                e.missIdx[i] = 0
            }
        } else {
            e.missIdx = make([]Idx, missLen)
        }
    } else {
        e.missIdx = nil
    }
    e.parentPtr = 0
    e.hashIdx = 0
    e.tsRL, e.tsRH, e.tsW = 0, 0, 0
    e.txRL, e.txRH, e.txW = TxID{}, TxID{}, TxID{}
}
