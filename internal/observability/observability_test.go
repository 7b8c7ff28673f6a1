package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSegmentStats_RecordConcurrent(t *testing.T) {
	st := NewSegmentStats(time.Hour)
	var wg sync.WaitGroup
	numGoroutines := 10
	recordsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPerGoroutine; j++ {
				st.Record("AUTOMOBILE", OutcomeOK)
				st.Record("BUILDING", OutcomeNoLineItems)
			}
		}()
	}
	wg.Wait()

	top := st.Top(10)
	if len(top) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(top))
	}
	want := int64(numGoroutines * recordsPerGoroutine)
	for _, s := range top {
		if s.Frequency != want {
			t.Errorf("expected frequency %d for %s, got %d", want, s.Segment, s.Frequency)
		}
	}
}

func TestSegmentStats_TopOrdering(t *testing.T) {
	st := NewSegmentStats(time.Hour)
	for i := 0; i < 3; i++ {
		st.Record("BUILDING", OutcomeOK)
	}
	for i := 0; i < 7; i++ {
		st.Record("MACHINERY", OutcomeOK)
	}
	st.Record("FURNITURE", OutcomeOK)
	st.Record("AUTOMOBILE", OutcomeOK)
	st.Record("AUTOMOBILE", OutcomeError)

	top := st.Top(3)
	got := []string{top[0].Segment, top[1].Segment, top[2].Segment}
	want := []string{"MACHINERY", "BUILDING", "AUTOMOBILE"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Top(3) = %v, want %v", got, want)
		}
	}
	if top[2].Outcomes[OutcomeError] != 1 || top[2].Outcomes[OutcomeOK] != 1 {
		t.Errorf("unexpected outcomes for AUTOMOBILE: %v", top[2].Outcomes)
	}

	if len(st.Top(0)) != 0 {
		t.Error("Top(0) should be empty")
	}
}

func TestSegmentStats_TopReturnsCopies(t *testing.T) {
	st := NewSegmentStats(time.Hour)
	st.Record("HOUSEHOLD", OutcomeOK)

	top := st.Top(1)
	top[0].Outcomes[OutcomeOK] = 100
	top[0].Frequency = 100

	again := st.Top(1)
	if again[0].Frequency != 1 || again[0].Outcomes[OutcomeOK] != 1 {
		t.Errorf("internal state was modified through a copy: %+v", again[0])
	}
}

func TestSegmentStats_Prune(t *testing.T) {
	st := NewSegmentStats(50 * time.Millisecond)
	st.Record("AUTOMOBILE", OutcomeOK)
	time.Sleep(100 * time.Millisecond)
	st.Record("BUILDING", OutcomeOK)

	st.Prune()

	top := st.Top(10)
	if len(top) != 1 || top[0].Segment != "BUILDING" {
		t.Fatalf("expected only BUILDING after prune, got %+v", top)
	}
}

func TestMetrics_ObserveIngestAndQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveIngest("orders", 15, 1, 20*time.Millisecond)
	m.ObserveIngest("orders", 5, 0, 10*time.Millisecond)
	m.ObserveQuery(OutcomeOK, time.Millisecond)
	m.ObserveQuery(OutcomeUnknownSegment, time.Millisecond)
	m.ObserveQuery(OutcomeOK, time.Millisecond)
	m.SetIndexEntries("segment", 42)

	if got := testutil.ToFloat64(m.RecordsIngested.WithLabelValues("orders")); got != 20 {
		t.Errorf("records_total = %v, want 20", got)
	}
	if got := testutil.ToFloat64(m.RangesTruncated.WithLabelValues("orders")); got != 1 {
		t.Errorf("truncated_ranges_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues(OutcomeOK)); got != 2 {
		t.Errorf("queries ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.IndexEntries.WithLabelValues("segment")); got != 42 {
		t.Errorf("index entries = %v, want 42", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveIngest("customer", 1, 0, time.Second)
	m.ObserveQuery(OutcomeOK, time.Second)
	m.SetIndexEntries("order", 1)
}

func TestNewMetrics_NilRegisterer(t *testing.T) {
	a := NewMetrics(nil)
	b := NewMetrics(nil)
	a.ObserveQuery(OutcomeOK, time.Millisecond)
	if got := testutil.ToFloat64(b.QueriesTotal.WithLabelValues(OutcomeOK)); got != 0 {
		t.Errorf("unregistered metrics should be independent, got %v", got)
	}
}
