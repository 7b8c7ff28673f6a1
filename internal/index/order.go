package index

import (
	"sort"
	"sync"
)

// OrderIndex maps a customer key to the order keys placed by that customer.
// Order keys are kept in arrival order without deduplication.
type OrderIndex struct {
	freezable
	shards []orderShard
	mask   uint64
}

type orderShard struct {
	mu     sync.Mutex
	orders map[uint64][]uint64
}

// NewOrderIndex creates an empty order index with the given shard count.
func NewOrderIndex(shards int) *OrderIndex {
	n := shardCount(shards)
	idx := &OrderIndex{
		shards: make([]orderShard, n),
		mask:   uint64(n - 1),
	}
	for i := range idx.shards {
		idx.shards[i].orders = make(map[uint64][]uint64)
	}
	return idx
}

// Add appends orderKey to the orders of custKey.
func (o *OrderIndex) Add(custKey, orderKey uint64) error {
	if o.Frozen() {
		return ErrFrozen
	}
	sh := &o.shards[hashKey(custKey)&o.mask]
	sh.mu.Lock()
	sh.orders[custKey] = append(sh.orders[custKey], orderKey)
	sh.mu.Unlock()
	return nil
}

// Orders returns the order keys of custKey. The returned slice is shared with
// the index and must not be modified. The second result is false when the
// customer has no orders.
func (o *OrderIndex) Orders(custKey uint64) ([]uint64, bool) {
	sh := &o.shards[hashKey(custKey)&o.mask]
	if !o.Frozen() {
		sh.mu.Lock()
		defer sh.mu.Unlock()
		keys, ok := sh.orders[custKey]
		return append([]uint64(nil), keys...), ok
	}
	keys, ok := sh.orders[custKey]
	return keys, ok
}

// Len returns the number of customers with at least one order.
func (o *OrderIndex) Len() int {
	frozen := o.Frozen()
	n := 0
	for i := range o.shards {
		sh := &o.shards[i]
		if !frozen {
			sh.mu.Lock()
		}
		n += len(sh.orders)
		if !frozen {
			sh.mu.Unlock()
		}
	}
	return n
}

// Snapshot returns a copy of the index with each customer's orders sorted.
func (o *OrderIndex) Snapshot() map[uint64][]uint64 {
	frozen := o.Frozen()
	out := make(map[uint64][]uint64)
	for i := range o.shards {
		sh := &o.shards[i]
		if !frozen {
			sh.mu.Lock()
		}
		for cust, orders := range sh.orders {
			cp := append([]uint64(nil), orders...)
			sort.Slice(cp, func(a, b int) bool { return cp[a] < cp[b] })
			out[cust] = cp
		}
		if !frozen {
			sh.mu.Unlock()
		}
	}
	return out
}
