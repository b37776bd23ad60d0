package tscache

import "errors"

// ErrOutOfMemory is the only user-visible error the table surfaces — table
// construction allocating the full slot array. Lookups are total (hit or
// miss) and conflict checks are total boolean predicates.
var ErrOutOfMemory = errors.New("tscache: out of memory")
