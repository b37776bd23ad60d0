package tscache

// ops.go implements the monotone timestamp updates and conflict
// predicates. Every update is non-decreasing; the only way a timestamp
// moves backward is eviction folding it into the type's water mark, which
// new allocations then read forward from — there is no direct "lower this
// timestamp" operation anywhere in this package.
//
// © 2025 mapless authors. MIT License.

// UpdateReadLow advances e's read-low epoch to epoch if epoch is newer.
func UpdateReadLow(e *entry, epoch Epoch) {
    if epoch > e.tsRL {
        e.tsRL = epoch
    }
}

// UpdateReadHigh advances e's read-high epoch to epoch if epoch is newer.
func UpdateReadHigh(e *entry, epoch Epoch) {
    if epoch > e.tsRH {
        e.tsRH = epoch
    }
}

// UpdateWrite advances e's write epoch (and the transaction id associated
// with it) to epoch/tx if epoch is newer. A write that does not advance
// the timestamp is discarded silently.
func UpdateWrite(e *entry, epoch Epoch, tx TxID) {
    if epoch > e.tsW {
        e.tsW = epoch
        e.txW = tx
    }
}

// ReadLow, ReadHigh, Write return e's current epochs.
func ReadLow(e *entry) Epoch  { return e.tsRL }
func ReadHigh(e *entry) Epoch { return e.tsRH }
func Write(e *entry) Epoch    { return e.tsW }

// WriteTx returns the transaction id associated with e's current write
// epoch.
func WriteTx(e *entry) TxID { return e.txW }

// CheckReadLowConflict reports whether committing writeTime against the
// set's current tail entry would conflict with a prior read: true iff the
// tail exists and writeTime <= entry.ts_rl.
func CheckReadLowConflict(s *Set, writeTime Epoch) bool {
    e, ok := s.Entry()
    if !ok {
        return false
    }
    return writeTime <= e.tsRL
}

// CheckReadHighConflict is the read-high counterpart of
// CheckReadLowConflict.
func CheckReadHighConflict(s *Set, writeTime Epoch) bool {
    e, ok := s.Entry()
    if !ok {
        return false
    }
    return writeTime <= e.tsRH
}
