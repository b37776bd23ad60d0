package tscache

// idx.go implements tagged index handles: a consumer-held Idx packs a slot
// number (low slotBits bits) and a generation counter (the remaining high
// bits). Looking a handle back up only succeeds while the slot's current
// occupant still carries the exact same Idx value — the generation changes
// every time the slot is evicted and reassigned, so a stale handle reliably
// misses instead of aliasing onto whatever now lives there. This is how the
// table gets O(1) tombstoning without ever rehashing or walking a list.
//
// Idx is 64 bits wide specifically so the generation half has room to spare:
// slotBits (23) leaves 41 generation bits, i.e. table.go's single table-wide
// counter would need on the order of 2^41 evictions before it could wrap and
// risk aliasing a long-held stale handle back onto a live entry — the
// stale-handle guarantee has to hold unconditionally, not just for handles
// that go stale within a few hundred evictions of being issued.
//
// © 2025 mapless authors. MIT License.

const (
    slotBits = 23
    slotMask = 1<<slotBits - 1

    // NumSlots is the fixed size of the table's entry array.
    NumSlots = 1 << slotBits
)

// Idx is an opaque handle a caller stores to refer back to a cache entry.
// The zero Idx never refers to a live entry — generation 0 is never handed
// out (table.go's generation counter starts at 1).
type Idx uint64

// Slot returns the low slotBits bits: idx's position in the table's entry
// array.
func (idx Idx) Slot() uint32 {
    return uint32(idx) & slotMask
}

// generation returns the high bits: the occupancy epoch this handle was
// issued against.
func (idx Idx) generation() uint64 {
    return uint64(idx) >> slotBits
}

// IsZero reports whether idx is the zero handle (never assigned).
func (idx Idx) IsZero() bool {
    return idx == 0
}

func makeIdx(slot uint32, generation uint64) Idx {
    return Idx(generation<<slotBits | uint64(slot&slotMask))
}
