package parser

import (
	"bytes"
	"context"

	"github.com/arkilian/segavg/internal/chunk"
	"github.com/arkilian/segavg/internal/index"
)

// recordFunc handles one record. It returns false when the record is
// malformed; an error aborts the whole table.
type recordFunc func(record []byte) (bool, error)

// cancelCheckInterval is the number of lines scanned between context checks.
const cancelCheckInterval = 4096

// scan walks the newline-terminated records of an aligned range. A malformed
// record ends the range: the records before it are kept and the rest of the
// range is skipped. A cancelled ctx stops the scan with ctx.Err().
func scan(ctx context.Context, data []byte, r chunk.Range, handle recordFunc) (chunk.Stats, error) {
	var st chunk.Stats
	pos := r.Start
	for lines := 0; pos < r.End; lines++ {
		if lines%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return st, err
			}
		}
		var record []byte
		next := r.End
		if nl := bytes.IndexByte(data[pos:r.End], '\n'); nl >= 0 {
			record = data[pos : pos+nl]
			next = pos + nl + 1
		} else {
			record = data[pos:r.End]
		}
		if n := len(record); n > 0 && record[n-1] == '\r' {
			record = record[:n-1]
		}

		if len(record) > 0 {
			ok, err := handle(record)
			if err != nil {
				return st, err
			}
			if !ok {
				st.Truncated = 1
				st.Offset = pos
				return st, nil
			}
			st.Records++
		}
		pos = next
	}
	return st, nil
}

// Customer parses customer records into a SegmentIndex.
type Customer struct {
	schema Schema
	idx    *index.SegmentIndex
}

// NewCustomer creates a customer parser writing into idx.
func NewCustomer(idx *index.SegmentIndex) *Customer {
	return &Customer{schema: CustomerSchema, idx: idx}
}

// Parse scans one aligned range of the customer table.
func (p *Customer) Parse(ctx context.Context, data []byte, r chunk.Range) (chunk.Stats, error) {
	return scan(ctx, data, r, p.record)
}

func (p *Customer) record(record []byte) (bool, error) {
	key, segment, ok := FieldPair(record, p.schema.KeyField, p.schema.ValueField)
	if !ok || len(segment) == 0 {
		return false, nil
	}
	custKey, ok := ParseUint(key)
	if !ok {
		return false, nil
	}
	return true, p.idx.Add(segment, custKey)
}

// Order parses order records into an OrderIndex.
type Order struct {
	schema Schema
	idx    *index.OrderIndex
}

// NewOrder creates an order parser writing into idx.
func NewOrder(idx *index.OrderIndex) *Order {
	return &Order{schema: OrderSchema, idx: idx}
}

// Parse scans one aligned range of the orders table.
func (p *Order) Parse(ctx context.Context, data []byte, r chunk.Range) (chunk.Stats, error) {
	return scan(ctx, data, r, p.record)
}

func (p *Order) record(record []byte) (bool, error) {
	okey, ckey, ok := FieldPair(record, p.schema.KeyField, p.schema.ValueField)
	if !ok {
		return false, nil
	}
	orderKey, ok := ParseUint(okey)
	if !ok {
		return false, nil
	}
	custKey, ok := ParseUint(ckey)
	if !ok {
		return false, nil
	}
	return true, p.idx.Add(custKey, orderKey)
}

// LineItem parses line item records into a LineItemAggregate.
type LineItem struct {
	schema Schema
	scale  int64
	agg    *index.LineItemAggregate
}

// NewLineItem creates a line item parser writing into agg. Quantities are
// multiplied by scale; a non-positive scale selects ScaleFactor.
func NewLineItem(agg *index.LineItemAggregate, scale int64) *LineItem {
	if scale <= 0 {
		scale = ScaleFactor
	}
	return &LineItem{schema: LineItemSchema, scale: scale, agg: agg}
}

// Parse scans one aligned range of the lineitem table.
func (p *LineItem) Parse(ctx context.Context, data []byte, r chunk.Range) (chunk.Stats, error) {
	return scan(ctx, data, r, p.record)
}

func (p *LineItem) record(record []byte) (bool, error) {
	okey, qty, ok := FieldPair(record, p.schema.KeyField, p.schema.ValueField)
	if !ok {
		return false, nil
	}
	orderKey, ok := ParseUint(okey)
	if !ok {
		return false, nil
	}
	quantity, ok := ParseUint(qty)
	if !ok || quantity > uint64(1<<62)/uint64(p.scale) {
		return false, nil
	}
	return true, p.agg.Add(orderKey, int64(quantity)*p.scale)
}
