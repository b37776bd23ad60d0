package placement

import "fmt"

// ObjectID identifies the object being placed. Only the low 64 bits are ever
// used for hashing — Hi is carried for completeness and passed through to
// the ObjectClassifier/LeaderOracle untouched.
type ObjectID struct {
    Lo uint64
    Hi uint64
}

// ObjectMetadata is the subset of an object's metadata the placement engine
// needs: its id. Richer object metadata (attribute schemas, acls, ...)
// belongs to the client surface, which this engine never sees.
type ObjectMetadata struct {
    ID ObjectID
}

// ObjectClassifier is the external object-class provider: given an object
// id, it returns the redundancy group size and group count.
// Placement never interprets object ids any other way.
type ObjectClassifier interface {
    Classify(id ObjectID) (groupSize, groupCount uint32, err error)
}

// ClassifierFunc adapts a plain function to ObjectClassifier.
type ClassifierFunc func(id ObjectID) (groupSize, groupCount uint32, err error)

// Classify implements ObjectClassifier.
func (f ClassifierFunc) Classify(id ObjectID) (uint32, uint32, error) {
    return f(id)
}

// FixedClassifier returns every object's redundancy shape as a constant
// (groupSize, groupCount) pair — the common case for a single object class.
func FixedClassifier(groupSize, groupCount uint32) ObjectClassifier {
    return ClassifierFunc(func(ObjectID) (uint32, uint32, error) {
        return groupSize, groupCount, nil
    })
}

// Shard is one entry of a layout: the target it was assigned and its
// position in the flat shard sequence.
type Shard struct {
    TargetID   uint32
    ShardIndex int
}

// Layout is the ordered list of group_count*group_size shards produced by
// Place.
type Layout struct {
    // Version is the placement map version this layout was computed
    // against.
    Version uint32
    Shards  []Shard
}

// Len returns the number of shards in the layout.
func (l *Layout) Len() int {
    return len(l.Shards)
}

// TargetAt returns the target id assigned to shardIndex. It is the
// ShardTargetGetter callback passed to LeaderOracle.SelectLeader.
func (l *Layout) TargetAt(shardIndex int) uint32 {
    return l.Shards[shardIndex].TargetID
}

// RebuildEntry describes one shard whose originally-selected target is
// unavailable, along with the rank of its replacement target.
type RebuildEntry struct {
    Rank       uint32
    ShardIndex int
}

// ShardTargetGetter indexes a layout by shard, used by LeaderOracle
// implementations without giving them the Layout type directly.
type ShardTargetGetter func(shardIndex int) uint32

// LeaderOracle resolves which shard holds a redundancy group's leader
// replica: given an object id and a candidate shard, it returns the leader's
// shard index. It is a pure function of the layout.
type LeaderOracle interface {
    SelectLeader(oid ObjectID, shardIndex, layoutLen int, getter ShardTargetGetter) (leaderShardIndex int, err error)
}

// DefaultLeaderOracle implements the common redundancy-group convention:
// the leader is always the first shard of the group a given shard belongs
// to (shard_index rounded down to a multiple of group_size).
type DefaultLeaderOracle struct {
    Classifier ObjectClassifier
}

// SelectLeader implements LeaderOracle.
func (o DefaultLeaderOracle) SelectLeader(oid ObjectID, shardIndex, layoutLen int, getter ShardTargetGetter) (int, error) {
    groupSize, _, err := o.Classifier.Classify(oid)
    if err != nil {
        return 0, fmt.Errorf("select leader: %w", err)
    }
    if groupSize == 0 {
        return 0, fmt.Errorf("%w: group size is zero", ErrInvalidArgument)
    }
    leader := shardIndex - shardIndex%int(groupSize)
    if leader < 0 || leader >= layoutLen {
        return 0, fmt.Errorf("%w: leader shard %d out of range [0,%d)", ErrInvalidArgument, leader, layoutLen)
    }
    _ = getter // available to richer oracles; the default policy needs only arithmetic.
    return leader, nil
}
