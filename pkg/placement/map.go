// Package placement implements mapless object placement: given a pool
// topology tree and an object id, it deterministically recomputes the
// object's shard layout on every call rather than persisting one, walking
// the fault-domain tree with a jump consistent hash at each level.
//
// © 2025 mapless authors. MIT License.
package placement

import (
    "fmt"

    "golang.org/x/sync/errgroup"

    "github.com/mapless-project/mapless/internal/topology"
    "github.com/mapless-project/mapless/internal/xhash"
)

// Map is a handle on one pool topology, ready to place objects and select
// rebuild targets against it. It holds a reference on the underlying
// *topology.Pool for its whole lifetime — callers must Close it.
type Map struct {
    pool       *topology.Pool
    classifier ObjectClassifier
    cfg        *config
    metrics    metricsSink
}

// New builds a Map over pool using classifier to resolve each object's
// redundancy shape. The Map holds a reference on pool until Close.
func New(pool *topology.Pool, classifier ObjectClassifier, opts ...Option) (*Map, error) {
    if pool == nil {
        return nil, fmt.Errorf("%w: pool is nil", ErrInvalidArgument)
    }
    if classifier == nil {
        return nil, fmt.Errorf("%w: classifier is nil", ErrInvalidArgument)
    }

    cfg := defaultConfig(classifier)
    if err := applyOptions(cfg, opts); err != nil {
        return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
    }

    // Resolve the root up front: a map over a rootless topology could never
    // place anything, and failing here leaves nothing to unwind.
    if _, err := cfg.provider.FindDomain(pool, topology.DomainTypeRoot, topology.IDAll); err != nil {
        return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
    }

    cfg.provider.AddRef(pool)
    return &Map{
        pool:       pool,
        classifier: classifier,
        cfg:        cfg,
        metrics:    newMetricsSink(cfg.registry),
    }, nil
}

// Close releases the Map's reference on its pool. A Map must not be used
// after Close.
func (m *Map) Close() {
    m.cfg.provider.DecRef(m.pool)
}

// Place computes the full shard layout for an object: group_count groups of
// group_size shards each, walking the tree once per shard with state
// (dom_used, used_targets) accumulated across the whole call. The walk is
// sequential by necessity: shard k's choices depend on the claims shards
// 0..k-1 made.
func (m *Map) Place(md ObjectMetadata) (*Layout, error) {
    groupSize, groupCount, err := m.classifier.Classify(md.ID)
    if err != nil {
        return nil, fmt.Errorf("place: classify object: %w", err)
    }
    if groupSize == 0 || groupCount == 0 {
        return nil, fmt.Errorf("%w: group size and group count must be non-zero", ErrInvalidArgument)
    }
    if m.pool.TargetCount() == 0 {
        return nil, fmt.Errorf("%w: pool has no targets", ErrInvalidArgument)
    }

    root, err := m.cfg.provider.FindDomain(m.pool, topology.DomainTypeRoot, topology.IDAll)
    if err != nil {
        return nil, fmt.Errorf("place: %w", err)
    }

    totalShards := int(groupSize) * int(groupCount)
    ws := newShardScratch(m.pool, m.onDomainReset)
    shards := make([]Shard, 0, totalShards)

    k := 0
    for g := 0; g < int(groupCount); g++ {
        for s := 0; s < int(groupSize); s++ {
            objKey := xhash.CRC(md.ID.Lo, uint32(k))
            target, err := getTarget(root, objKey, ws)
            if err != nil {
                return nil, fmt.Errorf("place: shard %d: %w", k, err)
            }
            shards = append(shards, Shard{TargetID: target.ID, ShardIndex: k})
            k++
        }
    }

    m.metrics.addShardsPlaced(len(shards))
    return &Layout{Version: m.pool.Version(), Shards: shards}, nil
}

// FindRebuild recomputes the layout for md and returns a rebuild target for
// every shard whose currently-placed target is unavailable, skipping any
// shard whose group leader is not hosted on selfRank (the remote leader
// will drive its own rebuild instead). Passing selfRank == -1 disables this
// filter entirely.
//
// rebuildVersion must not be newer than the pool's own version: a newer
// value means this map was built from a topology older than the rebuild
// being driven, and choosing replacement targets from a stale tree would
// scatter shards to targets the current pool may no longer have.
//
// shardMeta is accepted but unused — rebuild callers thread an opaque
// per-shard metadata blob through to the object classifier alongside the
// rebuild request; kept for call-site parity even though nothing here reads
// it.
func (m *Map) FindRebuild(md ObjectMetadata, rebuildVersion uint32, selfRank int32, shardMeta []byte) ([]RebuildEntry, error) {
    if rebuildVersion > m.pool.Version() {
        return nil, fmt.Errorf("%w: map version %d is older than rebuild version %d",
            ErrInvalidArgument, m.pool.Version(), rebuildVersion)
    }

    layout, err := m.Place(md)
    if err != nil {
        return nil, fmt.Errorf("find rebuild: %w", err)
    }

    root, err := m.cfg.provider.FindDomain(m.pool, topology.DomainTypeRoot, topology.IDAll)
    if err != nil {
        return nil, fmt.Errorf("find rebuild: %w", err)
    }

    getter := layout.TargetAt
    candidates := make([]int, 0, layout.Len())
    for i, shard := range layout.Shards {
        target, err := m.cfg.provider.FindTarget(m.pool, shard.TargetID)
        if err != nil {
            return nil, fmt.Errorf("find rebuild: %w", err)
        }
        if !m.cfg.provider.TargetUnavailable(target) {
            continue
        }
        candidates = append(candidates, i)
    }

    if len(candidates) == 0 {
        return nil, nil
    }

    // Each candidate's leader check is independent of every other's — none
    // of them mutate shared state — so these run concurrently, unlike the
    // Place walk above.
    leaderRanks := make([]uint32, len(candidates))
    g := new(errgroup.Group)
    for i, shardIndex := range candidates {
        i, shardIndex := i, shardIndex
        g.Go(func() error {
            leaderShardIndex, err := m.cfg.leaderOracle.SelectLeader(md.ID, shardIndex, layout.Len(), getter)
            if err != nil {
                return fmt.Errorf("shard %d: %w", shardIndex, err)
            }
            leaderTarget, err := m.cfg.provider.FindTarget(m.pool, layout.TargetAt(leaderShardIndex))
            if err != nil {
                return fmt.Errorf("shard %d: leader target: %w", shardIndex, err)
            }
            leaderRanks[i] = leaderTarget.Rank
            return nil
        })
    }
    if err := g.Wait(); err != nil {
        return nil, fmt.Errorf("find rebuild: select leader: %w", err)
    }

    entries := make([]RebuildEntry, 0, len(candidates))
    domUsed := rebuiltDomUsed(m.pool, md.ID, layout.Len(), root)
    for i, shardIndex := range candidates {
        if selfRank != -1 && leaderRanks[i] != uint32(selfRank) {
            continue // the remote leader will drive its own rebuild
        }

        key := xhash.CRC(md.ID.Lo, uint32(shardIndex))
        target, err := getRebuildTarget(m.cfg.provider, root, key, domUsed, m.onRebuildFallback)
        if err != nil {
            return nil, fmt.Errorf("find rebuild: shard %d: %w", shardIndex, err)
        }
        entries = append(entries, RebuildEntry{Rank: target.Rank, ShardIndex: shardIndex})
    }

    m.metrics.addRebuildShards(len(entries))
    return entries, nil
}

// onDomainReset fires whenever the placement walk clears a fully-used child
// block — a rare event outside more-shards-than-targets layouts.
func (m *Map) onDomainReset() {
    m.metrics.incDomainReset()
    m.cfg.logger.Debug("domain bitmap reset sweep")
}

// onRebuildFallback fires when a rebuild search exhausts the unused
// top-level domains and has to reuse one already carrying the object.
func (m *Map) onRebuildFallback() {
    m.cfg.logger.Warn("rebuild reusing an already-claimed top-level domain")
}

// rebuiltDomUsed replays the same top-level domain assignment Place made so
// FindRebuild's search over root's children starts from "which top-level
// subtrees already carry a shard of this object".
func rebuiltDomUsed(pool *topology.Pool, oid ObjectID, numShards int, root *topology.Domain) []byte {
    ws := newShardScratch(pool, nil)
    for k := 0; k < numShards; k++ {
        objKey := xhash.CRC(oid.Lo, uint32(k))
        _, _ = getTarget(root, objKey, ws) // rebuilds dom_used bits only; targets discarded
    }
    return ws.domUsed
}

// Reintegrate is not supported: reintegration (restoring a previously down
// target to active service) belongs to the pool rebalancing subsystem, not
// mapless placement itself.
func (m *Map) Reintegrate(ObjectMetadata) error {
    m.metrics.incReintegrationCall()
    m.cfg.logger.Warn("reintegration requested on a mapless placement map")
    return fmt.Errorf("%w: reintegration is handled by the pool rebalancer", ErrNotSupported)
}
