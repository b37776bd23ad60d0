package placement

import (
    "errors"
    "testing"

    "github.com/google/go-cmp/cmp"

    "github.com/mapless-project/mapless/internal/topology"
)

// buildRackOfNodes builds root -> 1 rack -> n nodes, each node owning a
// single target — small enough that shards can outnumber targets and
// exercise the reuse rule.
func buildRackOfNodes(t *testing.T, n int) *topology.Pool {
    t.Helper()
    nodes := make([]*topology.Domain, n)
    for i := range nodes {
        nodes[i] = &topology.Domain{Targets: []*topology.Target{
            topology.NewTarget(uint32(10+i), uint32(i), topology.Available),
        }}
    }
    rack := &topology.Domain{Children: nodes}
    root := &topology.Domain{Children: []*topology.Domain{rack}}
    pool, err := topology.Build(root)
    if err != nil {
        t.Fatalf("Build: %v", err)
    }
    return pool
}

func mustMap(t *testing.T, pool *topology.Pool, groupSize, groupCount uint32, opts ...Option) *Map {
    t.Helper()
    m, err := New(pool, FixedClassifier(groupSize, groupCount), opts...)
    if err != nil {
        t.Fatalf("New: %v", err)
    }
    t.Cleanup(m.Close)
    return m
}

func TestPlaceTrivialLayoutHasOneShardPerTarget(t *testing.T) {
    pool := buildRackOfNodes(t, 4)
    m := mustMap(t, pool, 1, 4)

    layout, err := m.Place(ObjectMetadata{ID: ObjectID{Lo: 42}})
    if err != nil {
        t.Fatalf("Place: %v", err)
    }
    if layout.Len() != 4 {
        t.Fatalf("layout length = %d, want 4", layout.Len())
    }

    seen := make(map[uint32]bool)
    for _, s := range layout.Shards {
        if seen[s.TargetID] {
            t.Fatalf("target %d used twice in a 4-shard/4-target layout", s.TargetID)
        }
        seen[s.TargetID] = true
    }
}

func TestPlaceReuseRuleAllowsRepeatOnlyAfterFullCoverage(t *testing.T) {
    pool := buildRackOfNodes(t, 4)
    m := mustMap(t, pool, 5, 1) // 5 shards, only 4 targets available

    layout, err := m.Place(ObjectMetadata{ID: ObjectID{Lo: 7}})
    if err != nil {
        t.Fatalf("Place: %v", err)
    }
    if layout.Len() != 5 {
        t.Fatalf("layout length = %d, want 5", layout.Len())
    }

    first4 := make(map[uint32]bool)
    for _, s := range layout.Shards[:4] {
        first4[s.TargetID] = true
    }
    if len(first4) != 4 {
        t.Fatalf("first 4 shards must cover all 4 distinct targets, got %d distinct", len(first4))
    }

    fifth := layout.Shards[4].TargetID
    if !first4[fifth] {
        t.Fatalf("5th shard target %d was not among the first 4 distinct targets", fifth)
    }
}

func TestPlaceIsDeterministic(t *testing.T) {
    pool := buildRackOfNodes(t, 4)
    m := mustMap(t, pool, 2, 2)

    oid := ObjectID{Lo: 123456789}
    first, err := m.Place(ObjectMetadata{ID: oid})
    if err != nil {
        t.Fatalf("Place: %v", err)
    }
    second, err := m.Place(ObjectMetadata{ID: oid})
    if err != nil {
        t.Fatalf("Place: %v", err)
    }

    if diff := cmp.Diff(first, second); diff != "" {
        t.Fatalf("repeated Place for the same object id produced different layouts (-first +second):\n%s", diff)
    }
}

func TestPlaceRejectsZeroGroupSize(t *testing.T) {
    pool := buildRackOfNodes(t, 4)
    m := mustMap(t, pool, 0, 1)

    if _, err := m.Place(ObjectMetadata{ID: ObjectID{Lo: 1}}); !errors.Is(err, ErrInvalidArgument) {
        t.Fatalf("Place with zero group size: got %v, want ErrInvalidArgument", err)
    }
}

func TestFindRebuildSkipsAvailableTargets(t *testing.T) {
    pool := buildRackOfNodes(t, 4)
    m := mustMap(t, pool, 1, 4)

    entries, err := m.FindRebuild(ObjectMetadata{ID: ObjectID{Lo: 55}}, 0, -1, nil)
    if err != nil {
        t.Fatalf("FindRebuild: %v", err)
    }
    if len(entries) != 0 {
        t.Fatalf("expected no rebuild entries when every target is available, got %d", len(entries))
    }
}

func TestFindRebuildReplacesUnavailableTarget(t *testing.T) {
    pool := buildRackOfNodes(t, 4)
    m := mustMap(t, pool, 1, 4)

    oid := ObjectID{Lo: 55}
    layout, err := m.Place(ObjectMetadata{ID: oid})
    if err != nil {
        t.Fatalf("Place: %v", err)
    }

    downTargetID := layout.Shards[0].TargetID
    tgt, ok := pool.TargetByID(downTargetID)
    if !ok {
        t.Fatalf("target %d not found in pool", downTargetID)
    }
    tgt.SetStatus(topology.Down, 1)

    entries, err := m.FindRebuild(ObjectMetadata{ID: oid}, 0, -1, nil)
    if err != nil {
        t.Fatalf("FindRebuild: %v", err)
    }
    if len(entries) != 1 {
        t.Fatalf("expected exactly 1 rebuild entry, got %d", len(entries))
    }
    if entries[0].ShardIndex != 0 {
        t.Fatalf("rebuild entry shard index = %d, want 0", entries[0].ShardIndex)
    }
}

// TestFindRebuildLeaderFilteringUsesSelfRank covers the rank comparison:
// a queued shard is skipped only when its group leader's rank differs from
// selfRank, not merely because the shard happens to be its own group's
// leader.
func TestFindRebuildLeaderFilteringUsesSelfRank(t *testing.T) {
    pool := buildRackOfNodes(t, 4)
    m := mustMap(t, pool, 2, 2) // group size 2: shard 1's leader is shard 0

    oid := ObjectID{Lo: 9}
    layout, err := m.Place(ObjectMetadata{ID: oid})
    if err != nil {
        t.Fatalf("Place: %v", err)
    }

    downTarget, ok := pool.TargetByID(layout.Shards[1].TargetID)
    if !ok {
        t.Fatalf("target %d not found in pool", layout.Shards[1].TargetID)
    }
    downTarget.SetStatus(topology.Down, 1)

    leaderTarget, ok := pool.TargetByID(layout.Shards[0].TargetID)
    if !ok {
        t.Fatalf("target %d not found in pool", layout.Shards[0].TargetID)
    }
    leaderRank := leaderTarget.Rank

    entries, err := m.FindRebuild(ObjectMetadata{ID: oid}, 0, int32(leaderRank), nil)
    if err != nil {
        t.Fatalf("FindRebuild: %v", err)
    }
    if len(entries) != 1 {
        t.Fatalf("selfRank == leader's rank: expected 1 rebuild entry, got %d", len(entries))
    }

    entries, err = m.FindRebuild(ObjectMetadata{ID: oid}, 0, int32(leaderRank)+1000, nil)
    if err != nil {
        t.Fatalf("FindRebuild: %v", err)
    }
    if len(entries) != 0 {
        t.Fatalf("selfRank != leader's rank: expected the remote-leader shard to be filtered out, got %d entries", len(entries))
    }
}

// TestFindRebuildPicksUnusedTopLevelDomain: with two racks and a
// single-shard layout, only one rack carries the object — its target going
// down must pull the replacement from the other rack.
func TestFindRebuildPicksUnusedTopLevelDomain(t *testing.T) {
    rackTargets := func(base uint32) []*topology.Domain {
        nodes := make([]*topology.Domain, 2)
        for i := range nodes {
            nodes[i] = &topology.Domain{Targets: []*topology.Target{
                topology.NewTarget(base+uint32(i), base+uint32(i), topology.Available),
            }}
        }
        return nodes
    }
    rackA := &topology.Domain{Children: rackTargets(10)}
    rackB := &topology.Domain{Children: rackTargets(20)}
    root := &topology.Domain{Children: []*topology.Domain{rackA, rackB}}
    pool, err := topology.Build(root)
    if err != nil {
        t.Fatalf("Build: %v", err)
    }
    m := mustMap(t, pool, 1, 1)

    oid := ObjectID{Lo: 3}
    layout, err := m.Place(ObjectMetadata{ID: oid})
    if err != nil {
        t.Fatalf("Place: %v", err)
    }
    placedID := layout.Shards[0].TargetID
    tgt, _ := pool.TargetByID(placedID)
    tgt.SetStatus(topology.Down, 1)

    entries, err := m.FindRebuild(ObjectMetadata{ID: oid}, 0, -1, nil)
    if err != nil {
        t.Fatalf("FindRebuild: %v", err)
    }
    if len(entries) != 1 {
        t.Fatalf("expected 1 rebuild entry, got %d", len(entries))
    }

    sameRack := func(a, b uint32) bool { return a/10 == b/10 }
    if sameRack(entries[0].Rank, placedID) {
        t.Fatalf("rebuild rank %d came from the same rack as the failed target %d", entries[0].Rank, placedID)
    }
}

func TestFindRebuildRejectsStaleMapVersion(t *testing.T) {
    pool := buildRackOfNodes(t, 4)
    pool.SetVersion(5)
    m := mustMap(t, pool, 1, 4)

    // A rebuild version newer than the map's own means the map is stale.
    _, err := m.FindRebuild(ObjectMetadata{ID: ObjectID{Lo: 1}}, 6, -1, nil)
    if !errors.Is(err, ErrInvalidArgument) {
        t.Fatalf("FindRebuild against a stale map: got %v, want ErrInvalidArgument", err)
    }

    // An older rebuild version is fine: the map is at least as new as the
    // rebuild being driven.
    if _, err := m.FindRebuild(ObjectMetadata{ID: ObjectID{Lo: 1}}, 3, -1, nil); err != nil {
        t.Fatalf("FindRebuild with an older rebuild version: %v", err)
    }
}

func TestReintegrateIsNotSupported(t *testing.T) {
    pool := buildRackOfNodes(t, 4)
    m := mustMap(t, pool, 1, 4)

    if err := m.Reintegrate(ObjectMetadata{ID: ObjectID{Lo: 1}}); !errors.Is(err, ErrNotSupported) {
        t.Fatalf("Reintegrate: got %v, want ErrNotSupported", err)
    }
}

func TestNewRejectsNilPool(t *testing.T) {
    if _, err := New(nil, FixedClassifier(1, 1)); !errors.Is(err, ErrInvalidArgument) {
        t.Fatalf("New(nil pool): got %v, want ErrInvalidArgument", err)
    }
}

func TestMapHoldsPoolRefUntilClose(t *testing.T) {
    pool := buildRackOfNodes(t, 4)
    if pool.RefCount() != 1 {
        t.Fatalf("initial refcount = %d, want 1", pool.RefCount())
    }

    m, err := New(pool, FixedClassifier(1, 4))
    if err != nil {
        t.Fatalf("New: %v", err)
    }
    if pool.RefCount() != 2 {
        t.Fatalf("refcount after New = %d, want 2", pool.RefCount())
    }

    m.Close()
    if pool.RefCount() != 1 {
        t.Fatalf("refcount after Close = %d, want 1", pool.RefCount())
    }
}
