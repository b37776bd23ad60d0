package main

// topology_gen.go is a tiny helper utility to generate deterministic pool
// topologies for standalone benchmarking of pkg/placement (outside `go
// test`). Generated trees are persisted to a Badger directory so a
// benchmark run can be repeated against the exact same dataset later.
//
// Usage:
//   go run ./tools/topology_gen -racks 8 -nodes 16 -targets 1 -db ./bench_db
//
// © 2025 mapless authors. MIT License.

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"

	badger "github.com/dgraph-io/badger/v4"
)

type domainDTO struct {
	Children []domainDTO `json:"children,omitempty"`
	Targets  []targetDTO `json:"targets,omitempty"`
}

type targetDTO struct {
	ID   uint32 `json:"id"`
	Rank uint32 `json:"rank"`
}

func generate(rnd *rand.Rand, racks, nodesPerRack, targetsPerNode int) domainDTO {
	var id uint32
	root := domainDTO{}
	for r := 0; r < racks; r++ {
		rack := domainDTO{}
		for n := 0; n < nodesPerRack; n++ {
			node := domainDTO{}
			for tg := 0; tg < targetsPerNode; tg++ {
				node.Targets = append(node.Targets, targetDTO{ID: id, Rank: uint32(rnd.Intn(1 << 16))})
				id++
			}
			rack.Children = append(rack.Children, node)
		}
		root.Children = append(root.Children, rack)
	}
	return root
}

func main() {
	var (
		racks   = flag.Int("racks", 8, "number of racks")
		nodes   = flag.Int("nodes", 16, "nodes per rack")
		targets = flag.Int("targets", 1, "targets per node")
		seed    = flag.Int64("seed", 42, "PRNG seed — deterministic by default so the dataset is reproducible")
		dbDir   = flag.String("db", "", "Badger directory to persist the generated topology into (default: stdout JSON only)")
		key     = flag.String("key", "pool-topology/v1", "Badger key the topology is stored under")
	)
	flag.Parse()

	rnd := rand.New(rand.NewSource(*seed))
	dto := generate(rnd, *racks, *nodes, *targets)

	blob, err := json.Marshal(dto)
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal:", err)
		os.Exit(1)
	}

	if *dbDir == "" {
		os.Stdout.Write(blob)
		fmt.Println()
		return
	}

	bdb, err := badger.Open(badger.DefaultOptions(*dbDir).WithLogger(nil))
	if err != nil {
		fmt.Fprintln(os.Stderr, "badger open:", err)
		os.Exit(1)
	}
	defer bdb.Close()

	if err := bdb.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(*key), blob)
	}); err != nil {
		fmt.Fprintln(os.Stderr, "badger set:", err)
		os.Exit(1)
	}
	fmt.Printf("persisted %d-rack/%d-node/%d-target topology under %q in %s\n", *racks, *nodes, *targets, *key, *dbDir)
}
