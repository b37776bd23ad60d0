package tscache

// set.go implements the per-operation scratchpad: a fixed-capacity array
// walked container -> object -> dkey -> akey[...],
// borrowing entries from a Table and never owning them. A Set is created
// at the start of a storage operation and discarded at its end; it must
// never outlive the Table it was built against.
//
// © 2025 mapless authors. MIT License.

import "fmt"

// setEntry is one filled position of a Set's scratch array.
type setEntry struct {
    idx Idx
    e   *entry
    // createIdx is recorded by MarkEntry: the idx this negative entry will
    // become if the caller goes on to materialize the record. Upgrade only
    // converts entries whose createIdx still matches idx exactly — proof
    // that nothing evicted the slot between mark and commit.
    createIdx Idx
}

// Set is the fixed-capacity per-operation scratchpad. Its backing array is
// one owning allocation sized at construction; resizing mid-op is
// forbidden.
type Set struct {
    table   *Table
    entries []setEntry
    count   int // filled length
}

// NewSet allocates a scratchpad with room for depth 0 (container) through
// depth 2+akeyCount (one slot per akey touched by the operation).
func NewSet(table *Table, akeyCount int) (*Set, error) {
    if table == nil {
        return nil, fmt.Errorf("tscache: NewSet requires a non-nil Table")
    }
    if akeyCount < 0 {
        return nil, fmt.Errorf("tscache: NewSet akeyCount must be >= 0, got %d", akeyCount)
    }
    capacity := 3 + akeyCount // cont, obj, dkey, then one per akey
    return &Set{
        table:   table,
        entries: make([]setEntry, capacity),
    }, nil
}

// Len returns the set's current filled length.
func (s *Set) Len() int {
    return s.count
}

// dkeyDepth is the deepest set position that can parent a fresh child:
// every akey of an operation hangs off the shared dkey entry, never off a
// sibling akey.
const dkeyDepth = 2

func (s *Set) tail() *setEntry {
    if s.count == 0 {
        return nil
    }
    return &s.entries[s.count-1]
}

// parent resolves the entry a fresh child (or negative child) hangs off of:
// the filled tail, capped at the dkey depth. Without the cap, the second
// akey of an operation would parent off the first akey — and akey entries
// have no child level to allocate in.
func (s *Set) parent() *setEntry {
    if s.count == 0 {
        return nil
    }
    i := s.count - 1
    if i > dkeyDepth {
        i = dkeyDepth
    }
    return &s.entries[i]
}

func (s *Set) append(idx Idx, e *entry) *setEntry {
    if s.count >= len(s.entries) {
        panic("tscache: set capacity exceeded")
    }
    s.entries[s.count] = setEntry{idx: idx, e: e}
    s.count++
    return &s.entries[s.count-1]
}

// Reset trims the set's filled length back to the depth named by (typ,
// akeyIdx) — used when an operation backs up to re-walk a shallower level,
// or moves on to a sibling akey at the same dkey.
func (s *Set) Reset(typ Type, akeyIdx int) {
    depth := typ.Depth() + akeyIdx
    if depth < 0 {
        depth = 0
    }
    if depth > len(s.entries) {
        depth = len(s.entries)
    }
    s.count = depth
}

// Lookup looks idx up in the table; on a live hit the entry is appended to
// the set and returned. doReset, when true, first trims the set to the
// depth named by (typ, akeyIdx) — the caller is re-entering the walk at
// that level.
func (s *Set) Lookup(typ Type, akeyIdx int, idx Idx, doReset bool) (*entry, bool) {
    s.table.checkout()
    defer s.table.checkin()

    if doReset {
        s.Reset(typ, akeyIdx)
    }
    e, ok := s.table.lookupIdx(idx)
    if !ok {
        return nil, false
    }
    s.append(idx, e)
    return e, true
}

// Alloc evicts a fresh positive entry one level below the set's current
// parent (or a top-level container entry, if the set is empty) and appends
// it. Past the dkey level, every allocation is an akey child of the shared
// dkey entry.
func (s *Set) Alloc(hash uint64) (Idx, *entry) {
    s.table.checkout()
    defer s.table.checkin()

    par := s.parent()
    var idx Idx
    var e *entry
    if par == nil {
        idx, e = s.table.allocTop(hash)
    } else {
        idx, e = s.table.allocChild(par.idx, par.e, hash)
    }
    s.append(idx, e)
    return idx, e
}

// GetNegative returns the negative entry standing in for a missing child
// of the set's current parent (or a missing top-level container, if the
// set is empty): the parent's own negative entry when the parent is itself
// negative (a missing subtree has no distinguishable deeper levels), or
// whatever lives in the relevant miss-hash bucket, allocating on miss.
func (s *Set) GetNegative(typ Type, akeyIdx int, hash uint64, doReset bool) (Idx, *entry) {
    s.table.checkout()
    defer s.table.checkin()

    if doReset {
        s.Reset(typ, akeyIdx)
    }

    par := s.parent()
    if par != nil && par.e.typ.IsNegative() {
        s.append(par.idx, par.e)
        return par.idx, par.e
    }

    var parentIdx Idx
    var parentEntry *entry
    if par != nil {
        parentIdx, parentEntry = par.idx, par.e
    }

    hashIdx := s.table.missHashIdx(parentEntry, hash)
    if existing := s.table.lookupMiss(parentEntry, hashIdx); !existing.IsZero() {
        if e, ok := s.table.lookupIdx(existing); ok {
            s.append(existing, e)
            return existing, e
        }
    }

    idx, e := s.table.allocNegative(parentIdx, parentEntry, hash)
    s.append(idx, e)
    return idx, e
}

// MarkEntry records createIdx against the set's tail entry, which must be
// negative — the slot the caller will fill if it goes on to materialize
// this record. In the common case createIdx is the tail's own current idx;
// Upgrade later re-validates it is still exactly that before converting.
func (s *Set) MarkEntry(createIdx Idx) error {
    tail := s.tail()
    if tail == nil {
        return fmt.Errorf("tscache: MarkEntry on an empty set")
    }
    if !tail.e.typ.IsNegative() {
        return fmt.Errorf("tscache: MarkEntry on a non-negative tail entry (type %s)", tail.e.typ)
    }
    tail.createIdx = createIdx
    return nil
}

// Entry returns the set's current tail entry.
func (s *Set) Entry() (*entry, bool) {
    tail := s.tail()
    if tail == nil {
        return nil, false
    }
    return tail.e, true
}

// EntryAt returns the entry at the depth named by (typ, akeyIdx), if the
// set has walked that far.
func (s *Set) EntryAt(typ Type, akeyIdx int) (*entry, bool) {
    depth := typ.Depth() + akeyIdx
    if depth < 0 || depth >= s.count {
        return nil, false
    }
    return s.entries[depth].e, true
}

// Upgrade walks the set tail-to-head and converts every negative entry
// whose MarkEntry-recorded createIdx still names exactly that entry from
// negative to positive, inheriting its accumulated read timestamps.
// Entries whose slot was reused in the meantime are silently skipped.
func (s *Set) Upgrade() {
    s.table.checkout()
    defer s.table.checkin()

    for i := s.count - 1; i >= 0; i-- {
        se := &s.entries[i]
        if se.createIdx.IsZero() || !se.e.typ.IsNegative() {
            continue
        }
        if se.createIdx != se.idx {
            continue
        }
        if e, ok := s.table.upgrade(se.idx); ok {
            se.e = e
        }
    }
}
