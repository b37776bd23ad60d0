package placement

// walk.go implements the two tree walks behind Place and FindRebuild: the
// per-shard placement walk (getTarget) and the replacement walk run for each
// shard whose placed target is unavailable (getRebuildTarget). Both are
// iterative, not recursive — the traversal has no true stack dependency, a
// loop over a current-domain pointer suffices.
//
// © 2025 mapless authors. MIT License.

import (
    "fmt"

    "github.com/mapless-project/mapless/internal/bitmap"
    "github.com/mapless-project/mapless/internal/topology"
    "github.com/mapless-project/mapless/internal/xhash"
)

// shardScratch is the bookkeeping state shared across every shard of a
// single Place call. dom_used and used_targets accumulate across shards in
// ascending shard-index order — that accumulation is what makes the "reuse a
// target only after every target has been used once" rule hold, so shards
// must be walked sequentially, never in parallel.
type shardScratch struct {
    domUsed         []byte
    usedTargets     map[uint32]struct{}
    usedCounts      map[uint32]int
    poolTargetCount int
    onDomainReset   func()
}

func newShardScratch(pool *topology.Pool, onDomainReset func()) *shardScratch {
    return &shardScratch{
        domUsed:         make([]byte, bitmap.Bytes(pool.DomainBitmapWidth())),
        usedTargets:     make(map[uint32]struct{}),
        usedCounts:      make(map[uint32]int),
        poolTargetCount: pool.TargetCount(),
        onDomainReset:   onDomainReset,
    }
}

// getTarget walks the tree from root to a single leaf target for one shard:
// at each internal domain, jump-hash picks an unused child and the key is
// remixed before descending.
func getTarget(root *topology.Domain, objKey uint64, ws *shardScratch) (*topology.Target, error) {
    currDom := root
    depth := uint32(0)

    for {
        if currDom.IsLeaf() {
            return ws.selectLeafTarget(currDom, objKey)
        }

        numChildren := len(currDom.Children)
        if numChildren == 0 {
            return nil, fmt.Errorf("%w: internal domain has no children", ErrInvalidArgument)
        }

        childBase := uint64(currDom.ChildBitmapBase())
        startBit := childBase
        endBit := childBase + uint64(numChildren) - 1

        // Reset rule: once every child in this block has been used, the
        // only way to keep placing shards is to let the subtree be reused —
        // clear the block and the domain's own bit, then retry.
        if bitmap.IsRangeSet(ws.domUsed, startBit, endBit) {
            bitmap.ClearRange(ws.domUsed, uint64(currDom.BitmapIndex()), uint64(currDom.BitmapIndex()))
            bitmap.ClearRange(ws.domUsed, startBit, endBit)
            if ws.onDomainReset != nil {
                ws.onDomainReset()
            }
        }

        key := objKey
        failNum := uint32(0)
        var selected uint32
        for {
            selected = xhash.JumpConsistentHash(key, uint32(numChildren))
            key = xhash.CRC(key, failNum)
            failNum++
            if !bitmap.Get(ws.domUsed, startBit+uint64(selected)) {
                break
            }
        }
        bitmap.Set(ws.domUsed, startBit+uint64(selected))

        depth++
        currDom = currDom.Children[selected]
        objKey = xhash.CRC(objKey, depth)
    }
}

// selectLeafTarget picks a target within a leaf domain, rehashing on
// collision with an already-used target. Once every target in the pool has
// been used at least once, reuse is allowed (callers may ask for more shards
// than the pool has targets). An unbounded retry loop can spin forever on a
// single-target leaf domain once that target is already used but the pool as
// a whole is not yet exhausted, so attempts are capped and the walk falls
// back to the least-used target in this domain — still total, still
// deterministic.
func (ws *shardScratch) selectLeafTarget(dom *topology.Domain, key uint64) (*topology.Target, error) {
    numTargets := len(dom.Targets)
    if numTargets == 0 {
        return nil, fmt.Errorf("%w: leaf domain has no targets", ErrInvalidArgument)
    }

    full := len(ws.usedTargets) >= ws.poolTargetCount && ws.poolTargetCount > 0
    failNum := uint32(0)
    maxAttempts := numTargets*4 + 8

    var candidate *topology.Target
    for attempt := 0; attempt < maxAttempts; attempt++ {
        key = xhash.CRC(key, failNum)
        failNum++
        idx := xhash.JumpConsistentHash(key, uint32(numTargets))
        candidate = dom.Targets[idx]
        if _, used := ws.usedTargets[candidate.ID]; !used || full {
            ws.markUsed(candidate.ID)
            return candidate, nil
        }
    }

    // Deterministic fallback: the least-used target in this domain, ties
    // broken by lowest id.
    best := dom.Targets[0]
    for _, t := range dom.Targets[1:] {
        if ws.usedCounts[t.ID] < ws.usedCounts[best.ID] ||
            (ws.usedCounts[t.ID] == ws.usedCounts[best.ID] && t.ID < best.ID) {
            best = t
        }
    }
    ws.markUsed(best.ID)
    return best, nil
}

func (ws *shardScratch) markUsed(id uint32) {
    ws.usedTargets[id] = struct{}{}
    ws.usedCounts[id]++
}

// getRebuildTarget picks a replacement target for a shard whose
// originally-placed target is unavailable, drawn from a top-level domain not
// already used for this object. The dom_used bitmap bits for root's
// immediate children are the same bits getTarget set during the main
// placement pass — reusing them is how the rebuild search avoids the
// subtree(s) already carrying shards of this object.
func getRebuildTarget(pv topology.Provider, root *topology.Domain, key uint64, domUsed []byte, onReuse func()) (*topology.Target, error) {
    numRoot := len(root.Children)
    if numRoot == 0 {
        return nil, fmt.Errorf("%w: root has no top-level domains", ErrNotFound)
    }

    base := uint64(root.ChildBitmapBase())
    failNum := uint32(0)

    for attempt := 0; attempt < numRoot; attempt++ {
        selected, ok := pickUnsetChild(&key, &failNum, numRoot, domUsed, base)
        if !ok {
            break // every top-level domain already claimed by this object
        }
        bitmap.Set(domUsed, base+uint64(selected))

        if target, found := searchSubtreeForAvailable(pv, root.Children[selected], key); found {
            return target, nil
        }

        key = xhash.CRC(key, failNum)
        failNum++
    }

    // Every top-level domain already carries a shard of this object (or its
    // subtree is fully dead). Reuse a claimed subtree rather than failing
    // the rebuild outright, walking candidates in hash order.
    if onReuse != nil {
        onReuse()
    }
    visited := make(map[int]bool, numRoot)
    for len(visited) < numRoot {
        selected := int(xhash.JumpConsistentHash(key, uint32(numRoot)))
        key = xhash.CRC(key, failNum)
        failNum++
        if visited[selected] {
            continue
        }
        visited[selected] = true
        if target, found := searchSubtreeForAvailable(pv, root.Children[selected], key); found {
            return target, nil
        }
    }

    return nil, fmt.Errorf("%w: no available rebuild target found", ErrNotFound)
}

// pickUnsetChild repeatedly jump-hashes until it finds a root child whose
// dom_used bit is clear, bounding the number of hash attempts before
// falling back to a deterministic linear scan. Keeps picking while the
// candidate's bit is already set, stopping at the first unused domain.
func pickUnsetChild(key *uint64, failNum *uint32, n int, domUsed []byte, base uint64) (int, bool) {
    maxAttempts := n*4 + 8
    for i := 0; i < maxAttempts; i++ {
        selected := int(xhash.JumpConsistentHash(*key, uint32(n)))
        *key = xhash.CRC(*key, *failNum)
        *failNum++
        if !bitmap.Get(domUsed, base+uint64(selected)) {
            return selected, true
        }
    }
    for i := 0; i < n; i++ {
        if !bitmap.Get(domUsed, base+uint64(i)) {
            return i, true
        }
    }
    return 0, false
}

// searchSubtreeForAvailable walks down from dom looking for any available
// target, tracking visited children/targets in a local scratch so a fully
// unavailable subtree is abandoned rather than retried forever.
func searchSubtreeForAvailable(pv topology.Provider, dom *topology.Domain, key uint64) (*topology.Target, bool) {
    if dom.IsLeaf() {
        return searchLeafForAvailable(pv, dom, key)
    }

    n := len(dom.Children)
    if n == 0 {
        return nil, false
    }
    visited := make(map[int]bool, n)
    failNum := uint32(0)
    for len(visited) < n {
        idx := int(xhash.JumpConsistentHash(key, uint32(n)))
        key = xhash.CRC(key, failNum)
        failNum++
        if visited[idx] {
            continue
        }
        visited[idx] = true
        if target, ok := searchSubtreeForAvailable(pv, dom.Children[idx], key); ok {
            return target, true
        }
    }
    return nil, false
}

func searchLeafForAvailable(pv topology.Provider, dom *topology.Domain, key uint64) (*topology.Target, bool) {
    n := len(dom.Targets)
    if n == 0 {
        return nil, false
    }
    visited := make(map[int]bool, n)
    failNum := uint32(0)
    for len(visited) < n {
        idx := int(xhash.JumpConsistentHash(key, uint32(n)))
        key = xhash.CRC(key, failNum)
        failNum++
        if visited[idx] {
            continue
        }
        visited[idx] = true
        t := dom.Targets[idx]
        if !pv.TargetUnavailable(t) {
            return t, true
        }
    }
    return nil, false
}
