package topology

import "errors"

var (
    // ErrNotFound is returned when a requested domain or target does not
    // exist in the pool.
    ErrNotFound = errors.New("topology: not found")
    // ErrInvalidArgument is returned when the tree violates an invariant
    // (e.g. duplicate target ids) or a caller argument is malformed.
    ErrInvalidArgument = errors.New("topology: invalid argument")
)
