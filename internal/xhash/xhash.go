// Package xhash implements the two hash primitives the placement engine
// builds its determinism on: the jump consistent hash bucket selector and the
// CRC32C-based key whitening used to decorrelate successive tree levels.
//
// The reference implementation computes its CRC32C with a single x86 SSE4.2
// `crc32l` instruction. Go's standard hash/crc32 package already dispatches
// Castagnoli-polynomial CRCs to the equivalent hardware instruction on amd64
// (SSE4.2) and arm64 (the CRC32 extension) and falls back to a table-driven
// software implementation elsewhere, so it is the natural substitute here —
// see the Design Note on CRC32C substitution. golang.org/x/sys/cpu is used
// only by HardwareAccelerated, an on-demand diagnostic query; it does not
// change which code runs (hash/crc32 decides that internally), and this
// package neither calls it at startup nor logs its result.
//
// © 2025 mapless authors. MIT License.
package xhash

import (
    "encoding/binary"
    "hash/crc32"

    "golang.org/x/sys/cpu"
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// HardwareAccelerated reports whether the current CPU exposes a dedicated
// CRC32C instruction that hash/crc32 can use for the Castagnoli table. It is
// informational only — callers that want a guaranteed software
// implementation for determinism across heterogeneous fleets should note
// that hash/crc32 already produces identical output regardless of the code
// path taken; this is purely a diagnostic signal for logs.
func HardwareAccelerated() bool {
    return cpu.X86.HasSSE42 || cpu.ARM64.HasCRC32
}

// crc32cU32 computes a running CRC32C over the 4 little-endian bytes of data,
// seeded with initVal. This mirrors the single `crc32l` instruction the
// original placement engine issued per 32-bit half of its input key.
func crc32cU32(data uint32, initVal uint32) uint32 {
    var buf [4]byte
    binary.LittleEndian.PutUint32(buf[:], data)
    return crc32.Update(initVal, castagnoliTable, buf[:])
}

// CRC computes the 64-bit whitening hash used throughout placement: a
// CRC32C of the low 32 bits of data concatenated with a CRC32C of the high 32
// bits, both seeded with initVal. Whitening keeps jump consistent hash's
// output evenly distributed even though shard indices and object IDs often
// differ only in their low bits.
func CRC(data uint64, initVal uint32) uint64 {
    lo := crc32cU32(uint32(data&0xFFFFFFFF), initVal)
    hi := crc32cU32(uint32((data>>32)&0xFFFFFFFF), initVal)
    return uint64(lo) | uint64(hi)<<32
}

// JumpConsistentHash implements Lamping & Veach's jump consistent hash. It
// returns a bucket in [0, numBuckets) for the given key. Growing numBuckets
// by one moves only ~1/numBuckets of keys to the new bucket.
//
// numBuckets must be > 0.
func JumpConsistentHash(key uint64, numBuckets uint32) uint32 {
    if numBuckets == 0 {
        panic("xhash: numBuckets must be > 0")
    }

    var z, y int64 = -1, 0
    for y < int64(numBuckets) {
        z = y
        key = key*2862933555777941757 + 1
        y = int64(float64(z+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
    }
    return uint32(z)
}
