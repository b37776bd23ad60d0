// Package bench provides reproducible micro-benchmarks for the mapless
// placement and TS-cache packages.
// Run via: go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// © 2025 mapless authors. MIT License.
package bench

import (
	"math/rand"
	"testing"

	"github.com/mapless-project/mapless/internal/topology"
	"github.com/mapless-project/mapless/pkg/placement"
)

const (
	benchRacks        = 8
	benchNodesPerRack = 16
	benchObjects      = 1 << 16
)

func newBenchPool() *topology.Pool {
	var id uint32
	root := &topology.Domain{}
	for r := 0; r < benchRacks; r++ {
		rack := &topology.Domain{}
		for n := 0; n < benchNodesPerRack; n++ {
			rack.Children = append(rack.Children, &topology.Domain{Targets: []*topology.Target{
				topology.NewTarget(id, uint32(r*benchNodesPerRack+n), topology.Available),
			}})
			id++
		}
		root.Children = append(root.Children, rack)
	}
	pool, err := topology.Build(root)
	if err != nil {
		panic(err)
	}
	return pool
}

// global dataset reused across benches to avoid reallocating large slices.
var benchObjIDs = func() []uint64 {
	rnd := rand.New(rand.NewSource(42))
	arr := make([]uint64, benchObjects)
	for i := range arr {
		arr[i] = rnd.Uint64()
	}
	return arr
}()

func BenchmarkPlace(b *testing.B) {
	pool := newBenchPool()
	m, err := placement.New(pool, placement.FixedClassifier(3, 4))
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		oid := benchObjIDs[i&(benchObjects-1)]
		if _, err := m.Place(placement.ObjectMetadata{ID: placement.ObjectID{Lo: oid}}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPlaceParallel(b *testing.B) {
	pool := newBenchPool()
	m, err := placement.New(pool, placement.FixedClassifier(3, 4))
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(benchObjects)
		for pb.Next() {
			idx = (idx + 1) & (benchObjects - 1)
			if _, err := m.Place(placement.ObjectMetadata{ID: placement.ObjectID{Lo: benchObjIDs[idx]}}); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkFindRebuild(b *testing.B) {
	pool := newBenchPool()
	m, err := placement.New(pool, placement.FixedClassifier(3, 4))
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()

	// Take one target per rack down so many layouts have something to rebuild.
	for r := 0; r < benchRacks; r++ {
		target, ok := pool.TargetByID(uint32(r * benchNodesPerRack))
		if !ok {
			b.Fatal("missing target")
		}
		target.SetStatus(topology.Unavailable, 1)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		oid := benchObjIDs[i&(benchObjects-1)]
		if _, err := m.FindRebuild(placement.ObjectMetadata{ID: placement.ObjectID{Lo: oid}}, pool.Version(), -1, nil); err != nil {
			b.Fatal(err)
		}
	}
}
