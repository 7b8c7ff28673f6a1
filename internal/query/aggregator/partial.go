// Package aggregator answers the segment average query by joining the
// segment, order, and line item indexes and reducing the reachable line items
// to a single average.
package aggregator

import (
	"sync/atomic"

	"github.com/arkilian/segavg/internal/index"
)

// PartialAverage holds the running count and scaled sum of one query. Tasks
// fold their task-local totals into it with atomic adds, so the reduction is
// independent of task order.
type PartialAverage struct {
	count atomic.Int64
	sum   atomic.Int64
}

// Merge adds one task's totals.
func (p *PartialAverage) Merge(t index.Totals) {
	if t.Count == 0 {
		return
	}
	p.count.Add(t.Count)
	p.sum.Add(t.Sum)
}

// Totals returns the accumulated count and sum.
func (p *PartialAverage) Totals() index.Totals {
	return index.Totals{Count: p.count.Load(), Sum: p.sum.Load()}
}

// Reason explains why a Result carries no average.
type Reason string

const (
	// ReasonNone marks a result with a valid average.
	ReasonNone Reason = ""
	// ReasonUnknownSegment: no customer record carries the segment label.
	ReasonUnknownSegment Reason = "unknown_segment"
	// ReasonNoLineItems: the segment exists but no line item is reachable
	// through its customers' orders.
	ReasonNoLineItems Reason = "no_line_items"
)

// Result is the outcome of one segment average query.
type Result struct {
	Segment   string
	Customers int
	Orders    int64
	Count     int64
	Sum       int64
	Average   int64
	Reason    Reason
	// Scale is the factor quantities were multiplied by at ingestion.
	Scale int64
}

// NoData reports whether the query produced no average.
func (r Result) NoData() bool {
	return r.Reason != ReasonNone
}

// Value returns the scaled average, or false when there is no data.
func (r Result) Value() (int64, bool) {
	if r.NoData() {
		return 0, false
	}
	return r.Average, true
}

// Unscaled returns the average in original quantity units for reporting.
func (r Result) Unscaled() (float64, bool) {
	if r.NoData() || r.Scale == 0 {
		return 0, false
	}
	return float64(r.Average) / float64(r.Scale), true
}

// finalize turns accumulated totals into a Result. Division only happens
// when at least one line item was reached.
func finalize(segment string, customers int, orders int64, totals index.Totals, scale int64) Result {
	res := Result{
		Segment:   segment,
		Customers: customers,
		Orders:    orders,
		Count:     totals.Count,
		Sum:       totals.Sum,
		Scale:     scale,
	}
	if totals.Count == 0 {
		res.Reason = ReasonNoLineItems
		return res
	}
	res.Average = floorDiv(totals.Sum, totals.Count)
	return res
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
