// Package index provides the in-memory join structures built during table
// ingestion: segment → customers, customer → orders, and order → line item
// totals.
//
// All three indexes are sharded by a murmur3 hash of the key. Writers take a
// per-shard lock only to create a missing bucket; once ingestion has passed its
// barrier the index is frozen, new inserts are rejected, and lookups read the
// shard maps without locking.
package index

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/spaolacci/murmur3"

	engerrors "github.com/arkilian/segavg/internal/errors"
)

// DefaultShards is the shard count used when none is configured.
const DefaultShards = 64

// ErrFrozen is returned by any insert attempted after Freeze.
var ErrFrozen = engerrors.New(engerrors.ErrCategoryIngest, engerrors.CodeIndexFrozen, "index is frozen")

// shardCount rounds n up to a power of two.
func shardCount(n int) int {
	if n <= 0 {
		n = DefaultShards
	}
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}

func hashKey(key uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], key)
	return murmur3.Sum64(b[:])
}

// freezable tracks the write/read mode switch shared by all indexes.
type freezable struct {
	frozen atomic.Bool
}

// Freeze ends the ingestion phase. It must be called only after every writer
// has returned.
func (f *freezable) Freeze() {
	f.frozen.Store(true)
}

// Frozen reports whether the index is read-only.
func (f *freezable) Frozen() bool {
	return f.frozen.Load()
}
