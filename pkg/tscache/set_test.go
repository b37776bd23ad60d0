package tscache

import "testing"

func TestSetWalkContainerObjectDkeyAkey(t *testing.T) {
    tbl := newTestTable(t)
    set, err := NewSet(tbl, 2)
    if err != nil {
        t.Fatalf("NewSet: %v", err)
    }

    contIdx, contEntry := set.Alloc(1)
    if contEntry.typ != TypeCont {
        t.Fatalf("first Alloc type = %v, want TypeCont", contEntry.typ)
    }
    _, objEntry := set.Alloc(2)
    if objEntry.typ != TypeObj || objEntry.parentPtr != contIdx {
        t.Fatalf("object entry = %+v, want typ=TypeObj parentPtr=%v", objEntry, contIdx)
    }
    _, dkeyEntry := set.Alloc(3)
    if dkeyEntry.typ != TypeDkey {
        t.Fatalf("dkey entry type = %v, want TypeDkey", dkeyEntry.typ)
    }
    _, akeyEntry := set.Alloc(4)
    if akeyEntry.typ != TypeAkey {
        t.Fatalf("akey entry type = %v, want TypeAkey", akeyEntry.typ)
    }

    if set.Len() != 4 {
        t.Fatalf("set.Len() = %d, want 4", set.Len())
    }
    if e, ok := set.EntryAt(TypeObj, 0); !ok || e != objEntry {
        t.Fatalf("EntryAt(TypeObj,0) = %v,%v want %v,true", e, ok, objEntry)
    }
}

// TestSetSecondAkeySharesDkeyParent: past the dkey level, every akey
// allocation must hang off the shared dkey entry, not the previous akey.
func TestSetSecondAkeySharesDkeyParent(t *testing.T) {
    tbl := newTestTable(t)
    set, err := NewSet(tbl, 2)
    if err != nil {
        t.Fatalf("NewSet: %v", err)
    }
    set.Alloc(1) // cont
    set.Alloc(2) // obj
    dkeyIdx, _ := set.Alloc(3)
    _, akey1 := set.Alloc(4)
    _, akey2 := set.Alloc(5)

    if akey1.typ != TypeAkey || akey2.typ != TypeAkey {
        t.Fatalf("akey entry types = %v, %v, want TypeAkey both", akey1.typ, akey2.typ)
    }
    if akey1.parentPtr != dkeyIdx {
        t.Fatalf("first akey parentPtr = %v, want dkey %v", akey1.parentPtr, dkeyIdx)
    }
    if akey2.parentPtr != dkeyIdx {
        t.Fatalf("second akey parentPtr = %v, want dkey %v", akey2.parentPtr, dkeyIdx)
    }
    if set.Len() != 5 {
        t.Fatalf("set.Len() = %d, want 5", set.Len())
    }
}

// TestSetNegativeAkeysShareDkeyParent is the negative-entry counterpart:
// a second missing akey under the same dkey buckets into the dkey's miss
// index rather than treating the first akey's negative entry as a parent.
func TestSetNegativeAkeysShareDkeyParent(t *testing.T) {
    tbl := newTestTable(t)
    set, err := NewSet(tbl, 2)
    if err != nil {
        t.Fatalf("NewSet: %v", err)
    }
    set.Alloc(1) // cont
    set.Alloc(2) // obj
    dkeyIdx, _ := set.Alloc(3)

    idx1, n1 := set.GetNegative(TypeAkey, 0, 7, false)
    idx2, n2 := set.GetNegative(TypeAkey, 1, 8, false)

    if n1.typ != TypeAkeyNeg || n2.typ != TypeAkeyNeg {
        t.Fatalf("negative akey types = %v, %v, want TypeAkeyNeg both", n1.typ, n2.typ)
    }
    if idx1 == idx2 {
        t.Fatalf("distinct miss buckets returned the same negative entry %v", idx1)
    }
    if n1.parentPtr != dkeyIdx || n2.parentPtr != dkeyIdx {
        t.Fatalf("negative akey parents = %v, %v, want dkey %v", n1.parentPtr, n2.parentPtr, dkeyIdx)
    }
}

func TestSetResetTrimsToDepth(t *testing.T) {
    tbl := newTestTable(t)
    set, err := NewSet(tbl, 1)
    if err != nil {
        t.Fatalf("NewSet: %v", err)
    }
    set.Alloc(1) // cont, depth 0
    set.Alloc(2) // obj, depth 1
    set.Alloc(3) // dkey, depth 2

    set.Reset(TypeObj, 0)
    if set.Len() != 1 {
        t.Fatalf("after Reset(TypeObj,0) Len() = %d, want 1", set.Len())
    }
}

func TestSetGetNegativeCachesByHashBucket(t *testing.T) {
    tbl := newTestTable(t)
    parentIdx, _ := tbl.allocTop(1)

    set1, err := NewSet(tbl, 1)
    if err != nil {
        t.Fatalf("NewSet: %v", err)
    }
    set1.Lookup(TypeCont, 0, parentIdx, false)
    idx1, e1 := set1.GetNegative(TypeObj, 0, 55, false)
    if !e1.typ.IsNegative() {
        t.Fatalf("GetNegative entry type = %v, want negative", e1.typ)
    }

    // A second, independent Set walking the same parent/hash bucket with no
    // intervening eviction of that bucket's occupant must observe the same
    // negative entry rather than allocating a fresh one.
    set2, err := NewSet(tbl, 1)
    if err != nil {
        t.Fatalf("NewSet: %v", err)
    }
    set2.Lookup(TypeCont, 0, parentIdx, false)
    idx2, _ := set2.GetNegative(TypeObj, 0, 55, false)

    if idx1 != idx2 {
        t.Fatalf("GetNegative returned different entries for the same bucket: %v vs %v", idx1, idx2)
    }
}

func TestSetMarkAndUpgrade(t *testing.T) {
    tbl := newTestTable(t)
    set, err := NewSet(tbl, 0)
    if err != nil {
        t.Fatalf("NewSet: %v", err)
    }

    idx, neg := set.GetNegative(TypeCont, 0, 9, false)
    UpdateReadLow(neg, 77)
    if err := set.MarkEntry(idx); err != nil {
        t.Fatalf("MarkEntry: %v", err)
    }

    set.Upgrade()

    e, ok := set.Entry()
    if !ok {
        t.Fatal("Entry() empty after Upgrade")
    }
    if e.typ.IsNegative() {
        t.Fatalf("entry still negative after Upgrade: %v", e.typ)
    }
    if e.tsRL != 77 {
        t.Fatalf("tsRL changed across Upgrade: got %d, want 77", e.tsRL)
    }
}

func TestMarkEntryRejectsPositiveTail(t *testing.T) {
    tbl := newTestTable(t)
    set, err := NewSet(tbl, 0)
    if err != nil {
        t.Fatalf("NewSet: %v", err)
    }
    idx, _ := set.Alloc(1)
    if err := set.MarkEntry(idx); err == nil {
        t.Fatal("MarkEntry succeeded on a positive tail")
    }
}

func TestNewSetRejectsNilTable(t *testing.T) {
    if _, err := NewSet(nil, 0); err == nil {
        t.Fatal("NewSet accepted a nil table")
    }
}
