package parser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/arkilian/segavg/internal/chunk"
	"github.com/arkilian/segavg/internal/index"
)

const lineItemSample = "4|88035|5560|1|30|30690.90|0.03|0.08|N|O|1996-01-10|1995-12-14|1996-01-18|DELIVER IN PERSON|REG AIR|- quickly regular packages sleep. idly|"

func whole(data []byte) chunk.Range {
	return chunk.Range{Start: 0, End: len(data)}
}

func TestField(t *testing.T) {
	record := []byte(lineItemSample)
	tests := []struct {
		ordinal int
		want    string
		ok      bool
	}{
		{0, "4", true},
		{1, "88035", true},
		{4, "30", true},
		{13, "DELIVER IN PERSON", true},
		{15, "- quickly regular packages sleep. idly", true},
		{16, "", false},
	}
	for _, tt := range tests {
		got, ok := Field(record, tt.ordinal)
		if ok != tt.ok || string(got) != tt.want {
			t.Errorf("Field(%d) = %q, %v; want %q, %v", tt.ordinal, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFieldPair(t *testing.T) {
	record := []byte(lineItemSample)
	a, b, ok := FieldPair(record, 0, 4)
	if !ok || string(a) != "4" || string(b) != "30" {
		t.Errorf("FieldPair(0, 4) = %q, %q, %v", a, b, ok)
	}

	a, b, ok = FieldPair(record, 0, 1)
	if !ok || string(a) != "4" || string(b) != "88035" {
		t.Errorf("FieldPair(0, 1) = %q, %q, %v", a, b, ok)
	}

	if _, _, ok := FieldPair([]byte("1|2|3"), 0, 4); ok {
		t.Error("FieldPair should fail on a short record")
	}
	if _, _, ok := FieldPair([]byte("12"), 0, 1); ok {
		t.Error("FieldPair should fail without any delimiter")
	}
}

func TestParseUint(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"0", 0, true},
		{"7", 7, true},
		{"150000", 150000, true},
		{"18446744073709551615", 18446744073709551615, true},
		{"18446744073709551616", 0, false},
		{"", 0, false},
		{"12a", 0, false},
		{"-1", 0, false},
		{" 1", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseUint([]byte(tt.in))
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseUint(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

// TestProperty_ParseUintMatchesStrconv validates that byte-level integer
// parsing agrees with the standard decimal formatting for every uint64.
func TestProperty_ParseUintMatchesStrconv(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("ParseUint inverts FormatUint", prop.ForAll(
		func(v uint64) bool {
			got, ok := ParseUint([]byte(strconv.FormatUint(v, 10)))
			return ok && got == v
		},
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

func TestCustomer_Parse(t *testing.T) {
	data := []byte(
		"1|Customer#000000001|IVhzIApeRb ot,c,E|15|25-989-741-2988|711.56|BUILDING|to the even, regular platelets|\n" +
			"2|Customer#000000002|XSTf4,NCwDVaWNe6tEgvwfmRchLXak|13|23-768-687-3665|121.65|AUTOMOBILE|l accounts|\n" +
			"3|Customer#000000003|MG9kdTD2WBHm|1|11-719-748-3364|7498.12|AUTOMOBILE| deposits eat slyly ironic|\n")

	idx := index.NewSegmentIndex(4)
	st, err := NewCustomer(idx).Parse(context.Background(), data, whole(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if st.Records != 3 || st.Truncated != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
	if !idx.Contains("BUILDING", 1) {
		t.Error("customer 1 should be in BUILDING")
	}
	if !idx.Contains("AUTOMOBILE", 2) || !idx.Contains("AUTOMOBILE", 3) {
		t.Error("customers 2 and 3 should be in AUTOMOBILE")
	}
}

func TestOrder_Parse(t *testing.T) {
	data := []byte(
		"1|36901|O|173665.47|1996-01-02|5-LOW|Clerk#000000951|0|nstructions sleep furiously among |\n" +
			"2|78002|O|46929.18|1996-12-01|1-URGENT|Clerk#000000880|0| foxes. pending accounts at the pending|\n" +
			"3|36901|F|193846.25|1993-10-14|5-LOW|Clerk#000000955|0|sly final accounts boost. |\n")

	idx := index.NewOrderIndex(4)
	st, err := NewOrder(idx).Parse(context.Background(), data, whole(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if st.Records != 3 {
		t.Errorf("got %d records, want 3", st.Records)
	}
	orders, ok := idx.Orders(36901)
	if !ok || len(orders) != 2 || orders[0] != 1 || orders[1] != 3 {
		t.Errorf("orders of 36901 = %v", orders)
	}
}

func TestLineItem_ParseScalesQuantity(t *testing.T) {
	data := []byte(lineItemSample + "\n" +
		"4|1|1|2|20|1.00|0.00|0.00|N|O|1996-01-10|1995-12-14|1996-01-18|NONE|AIR|x|\n" +
		"5|1|1|1|15|1.00|0.00|0.00|R|F|1994-10-31|1994-08-31|1994-11-20|NONE|AIR|y|\n")

	agg := index.NewLineItemAggregate(4)
	st, err := NewLineItem(agg, 0).Parse(context.Background(), data, whole(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if st.Records != 3 {
		t.Errorf("got %d records, want 3", st.Records)
	}
	if got, _ := agg.Get(4); got != (index.Totals{Count: 2, Sum: 5000}) {
		t.Errorf("order 4 totals = %+v", got)
	}
	if got, _ := agg.Get(5); got != (index.Totals{Count: 1, Sum: 1500}) {
		t.Errorf("order 5 totals = %+v", got)
	}
}

func TestLineItem_CustomScale(t *testing.T) {
	data := []byte("9|1|1|1|3|x|\n")
	agg := index.NewLineItemAggregate(1)
	if _, err := NewLineItem(agg, 1).Parse(context.Background(), data, whole(data)); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got, _ := agg.Get(9); got.Sum != 3 {
		t.Errorf("got sum %d, want 3", got.Sum)
	}
}

func TestParse_MalformedRecordTruncatesRange(t *testing.T) {
	data := []byte(
		"1|36901|O|\n" +
			"2|785\n" +
			"3|36901|F|\n")

	idx := index.NewOrderIndex(1)
	st, err := NewOrder(idx).Parse(context.Background(), data, whole(data))
	if err != nil {
		t.Fatalf("malformed input must not be fatal: %v", err)
	}
	if st.Records != 1 || st.Truncated != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.Offset != len("1|36901|O|\n") {
		t.Errorf("got offset %d", st.Offset)
	}
	// The record after the malformed one belongs to the truncated range and is skipped.
	if _, ok := idx.Orders(36901); !ok {
		t.Error("order 1 should have been indexed")
	}
	orders, _ := idx.Orders(36901)
	if len(orders) != 1 {
		t.Errorf("got %v, want only the first order", orders)
	}
}

func TestParse_NonDigitKeyIsMalformed(t *testing.T) {
	data := []byte("x1|Customer|a|1|p|1.0|BUILDING|c|\n")
	idx := index.NewSegmentIndex(1)
	st, err := NewCustomer(idx).Parse(context.Background(), data, whole(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Truncated != 1 || idx.Len() != 0 {
		t.Errorf("expected truncation, got %+v and %d keys", st, idx.Len())
	}
}

func TestParse_SkipsBlankLinesAndCarriageReturns(t *testing.T) {
	data := []byte("1|10|\r\n\n2|10|\r\n")
	idx := index.NewOrderIndex(1)
	st, err := NewOrder(idx).Parse(context.Background(), data, whole(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Records != 2 || st.Truncated != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestParse_FrozenIndexFails(t *testing.T) {
	data := []byte("1|10|\n")
	idx := index.NewOrderIndex(1)
	idx.Freeze()
	if _, err := NewOrder(idx).Parse(context.Background(), data, whole(data)); err == nil {
		t.Fatal("expected an error writing into a frozen index")
	}
}

func TestSchemas(t *testing.T) {
	schemas := Schemas()
	if len(schemas) != 3 {
		t.Fatalf("got %d schemas", len(schemas))
	}
	if schemas[0].File != "customer.tbl" || schemas[1].File != "orders.tbl" || schemas[2].File != "lineitem.tbl" {
		t.Errorf("unexpected files %+v", schemas)
	}
}

func TestParse_StopsOnCancelledContext(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 3*cancelCheckInterval; i++ {
		fmt.Fprintf(&sb, "%d|1|1|1|5|x|\n", i)
	}
	data := []byte(sb.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := index.NewLineItemAggregate(4)
	st, err := NewLineItem(agg, 0).Parse(ctx, data, whole(data))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if st.Records != 0 || agg.Len() != 0 {
		t.Errorf("cancelled scan indexed %d records into %d orders", st.Records, agg.Len())
	}
}
