package aggregator

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/arkilian/segavg/internal/index"
	"github.com/arkilian/segavg/internal/workerpool"
)

// JoinAggregator runs the segment → customer → order → line item join over
// frozen indexes. It never mutates the indexes.
type JoinAggregator struct {
	segments *index.SegmentIndex
	orders   *index.OrderIndex
	items    *index.LineItemAggregate
	pool     *workerpool.Pool
	scale    int64
}

// New creates an aggregator over the given indexes. scale is the factor the
// line item quantities were multiplied by and is reported with each result.
func New(
	segments *index.SegmentIndex,
	orders *index.OrderIndex,
	items *index.LineItemAggregate,
	pool *workerpool.Pool,
	scale int64,
) *JoinAggregator {
	return &JoinAggregator{
		segments: segments,
		orders:   orders,
		items:    items,
		pool:     pool,
		scale:    scale,
	}
}

// Average computes the floor of the mean scaled quantity over every line item
// reachable from segment. An unknown segment or a segment without reachable
// line items yields a NoData result, not an error. An error is returned only
// when a task failed or the fan-out did not finish within the pool's wait
// bound; no partial average is ever returned.
func (a *JoinAggregator) Average(segment string) (Result, error) {
	customers, ok := a.segments.Customers(segment)
	if !ok {
		return Result{Segment: segment, Reason: ReasonUnknownSegment, Scale: a.scale}, nil
	}

	var acc PartialAverage
	var orders atomic.Int64

	g := a.pool.Group(context.Background(), "aggregate:"+segment)
	for _, keys := range splitKeys(customers, a.pool.Size()) {
		g.Go(func(ctx context.Context) error {
			var local index.Totals
			var n int64
			for i, custKey := range keys {
				if i%cancelCheckInterval == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				t, visited := a.customerTotals(custKey)
				local.Add(t)
				n += visited
			}
			orders.Add(n)
			acc.Merge(local)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		g.Drain()
		return Result{}, fmt.Errorf("aggregator: segment %q: %w", segment, err)
	}

	return finalize(segment, len(customers), orders.Load(), acc.Totals(), a.scale), nil
}

// cancelCheckInterval is the number of customers visited between context
// checks.
const cancelCheckInterval = 1024

// splitKeys divides keys into at most n contiguous shares of nearly equal
// size. Empty input yields no shares.
func splitKeys(keys []uint64, n int) [][]uint64 {
	if len(keys) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if n > len(keys) {
		n = len(keys)
	}
	shares := make([][]uint64, 0, n)
	base, extra := len(keys)/n, len(keys)%n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		shares = append(shares, keys[start:start+size])
		start += size
	}
	return shares
}

// customerTotals sums the line item totals of every order of custKey and
// returns them along with the number of orders visited.
func (a *JoinAggregator) customerTotals(custKey uint64) (index.Totals, int64) {
	var local index.Totals
	orderKeys, ok := a.orders.Orders(custKey)
	if !ok {
		return local, 0
	}
	for _, orderKey := range orderKeys {
		if t, ok := a.items.Get(orderKey); ok {
			local.Add(t)
		}
	}
	return local, int64(len(orderKeys))
}
