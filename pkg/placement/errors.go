package placement

import "errors"

// Error kinds surfaced by the placement engine. All errors returned by this
// package wrap one of these sentinels so callers can test with errors.Is.
var (
    // ErrInvalidArgument covers a zero group size or group count, a pool
    // with no targets, and FindRebuild being called with a rebuild version
    // newer than the map's own version. A layout with more shards than the
    // pool has targets is not an error: targets are reused.
    ErrInvalidArgument = errors.New("placement: invalid argument")
    // ErrNotFound covers a topology with no root domain.
    ErrNotFound = errors.New("placement: not found")
    // ErrOutOfMemory covers scratch or output allocation failure.
    ErrOutOfMemory = errors.New("placement: out of memory")
    // ErrNotSupported covers the reintegration entry point.
    ErrNotSupported = errors.New("placement: not supported")
)
