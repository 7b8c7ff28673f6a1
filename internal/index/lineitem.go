package index

import (
	"sync"
	"sync/atomic"
)

// Totals is the accumulated line item count and scaled quantity sum of one
// order.
type Totals struct {
	Count int64
	Sum   int64
}

// Add merges other into t.
func (t *Totals) Add(other Totals) {
	t.Count += other.Count
	t.Sum += other.Sum
}

// accumulator is the mutable per-order cell. Both fields are updated with
// atomic adds so workers holding only a shard read lock can accumulate into it.
type accumulator struct {
	count atomic.Int64
	sum   atomic.Int64
}

// LineItemAggregate maps an order key to its running line item totals. Raw
// quantities are not retained.
type LineItemAggregate struct {
	freezable
	shards []lineItemShard
	mask   uint64
}

type lineItemShard struct {
	mu    sync.RWMutex
	cells map[uint64]*accumulator
}

// NewLineItemAggregate creates an empty aggregate with the given shard count.
func NewLineItemAggregate(shards int) *LineItemAggregate {
	n := shardCount(shards)
	agg := &LineItemAggregate{
		shards: make([]lineItemShard, n),
		mask:   uint64(n - 1),
	}
	for i := range agg.shards {
		agg.shards[i].cells = make(map[uint64]*accumulator)
	}
	return agg
}

// Add counts one line item of orderKey with the given scaled quantity.
func (l *LineItemAggregate) Add(orderKey uint64, scaledQuantity int64) error {
	if l.Frozen() {
		return ErrFrozen
	}
	cell := l.getOrCreate(orderKey)
	cell.count.Add(1)
	cell.sum.Add(scaledQuantity)
	return nil
}

func (l *LineItemAggregate) getOrCreate(orderKey uint64) *accumulator {
	sh := &l.shards[hashKey(orderKey)&l.mask]

	sh.mu.RLock()
	cell, ok := sh.cells[orderKey]
	sh.mu.RUnlock()
	if ok {
		return cell
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cell, ok := sh.cells[orderKey]; ok {
		return cell
	}
	cell = &accumulator{}
	sh.cells[orderKey] = cell
	return cell
}

// Get returns the totals of orderKey, or false when the order has no line
// items.
func (l *LineItemAggregate) Get(orderKey uint64) (Totals, bool) {
	sh := &l.shards[hashKey(orderKey)&l.mask]
	var cell *accumulator
	var ok bool
	if l.Frozen() {
		cell, ok = sh.cells[orderKey]
	} else {
		sh.mu.RLock()
		cell, ok = sh.cells[orderKey]
		sh.mu.RUnlock()
	}
	if !ok {
		return Totals{}, false
	}
	return Totals{Count: cell.count.Load(), Sum: cell.sum.Load()}, true
}

// Len returns the number of orders with at least one line item.
func (l *LineItemAggregate) Len() int {
	frozen := l.Frozen()
	n := 0
	for i := range l.shards {
		sh := &l.shards[i]
		if !frozen {
			sh.mu.RLock()
		}
		n += len(sh.cells)
		if !frozen {
			sh.mu.RUnlock()
		}
	}
	return n
}

// Snapshot returns a copy of all order totals.
func (l *LineItemAggregate) Snapshot() map[uint64]Totals {
	frozen := l.Frozen()
	out := make(map[uint64]Totals)
	for i := range l.shards {
		sh := &l.shards[i]
		if !frozen {
			sh.mu.RLock()
		}
		for key, cell := range sh.cells {
			out[key] = Totals{Count: cell.count.Load(), Sum: cell.sum.Load()}
		}
		if !frozen {
			sh.mu.RUnlock()
		}
	}
	return out
}
