package chunk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	engerrors "github.com/arkilian/segavg/internal/errors"
	"github.com/arkilian/segavg/internal/workerpool"
)

func countLines(_ context.Context, data []byte, r Range) (Stats, error) {
	return Stats{Records: int64(bytes.Count(data[r.Start:r.End], []byte{'\n'}))}, nil
}

func TestScheduler_RunCountsEveryRecordOnce(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&sb, "%d|row|\n", i)
	}
	data := []byte(sb.String())

	pool := workerpool.New(4, time.Minute)
	for _, chunks := range []int{1, 2, 3, 7, 64, 4096} {
		s := NewScheduler(pool, chunks, nil)
		report, err := s.Run(context.Background(), "rows", data, countLines)
		if err != nil {
			t.Fatalf("chunks=%d: Run failed: %v", chunks, err)
		}
		if report.Records != 1000 {
			t.Errorf("chunks=%d: got %d records, want 1000", chunks, report.Records)
		}
		if report.Bytes != int64(len(data)) {
			t.Errorf("chunks=%d: got %d bytes, want %d", chunks, report.Bytes, len(data))
		}
	}
}

func TestScheduler_DefaultsToPoolSize(t *testing.T) {
	pool := workerpool.New(6, time.Minute)
	s := NewScheduler(pool, 0, nil)
	if s.Chunks() != 6 {
		t.Errorf("got %d chunks, want 6", s.Chunks())
	}
}

func TestScheduler_AccumulatesTruncation(t *testing.T) {
	pool := workerpool.New(2, time.Minute)
	s := NewScheduler(pool, 2, nil)
	data := []byte("a\nb\nc\nd\n")

	report, err := s.Run(context.Background(), "bad", data, func(_ context.Context, data []byte, r Range) (Stats, error) {
		return Stats{Truncated: 1, Offset: r.Start}, nil
	})
	if err != nil {
		t.Fatalf("truncation must not fail the run: %v", err)
	}
	if report.Truncated != int64(report.Ranges) {
		t.Errorf("got %d truncated, want %d", report.Truncated, report.Ranges)
	}
}

func TestScheduler_PropagatesParseError(t *testing.T) {
	pool := workerpool.New(2, time.Minute)
	s := NewScheduler(pool, 4, nil)
	sentinel := errors.New("index frozen")

	_, err := s.Run(context.Background(), "orders", []byte("1\n2\n3\n4\n"), func(_ context.Context, data []byte, r Range) (Stats, error) {
		return Stats{}, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

func TestScheduler_TimeoutWaitsForRunningRanges(t *testing.T) {
	pool := workerpool.New(2, 10*time.Millisecond)
	s := NewScheduler(pool, 8, nil)

	var started, finished atomic.Int64
	slow := func(ctx context.Context, data []byte, r Range) (Stats, error) {
		started.Add(1)
		defer finished.Add(1)
		<-ctx.Done()
		// Keep reading after cancellation, like a scan between context checks.
		time.Sleep(30 * time.Millisecond)
		return Stats{}, ctx.Err()
	}

	_, err := s.Run(context.Background(), "lineitem", []byte("1\n2\n3\n4\n5\n6\n7\n8\n"), slow)
	if engerrors.GetCode(err) != engerrors.CodeBarrierTimeout {
		t.Fatalf("expected BARRIER_TIMEOUT, got %v", err)
	}
	if started.Load() == 0 {
		t.Fatal("no range was started")
	}
	if got, want := finished.Load(), started.Load(); got != want {
		t.Errorf("Run returned with %d of %d ranges still running", want-got, want)
	}
}

func TestScheduler_FailureWaitsForRunningRanges(t *testing.T) {
	pool := workerpool.New(4, time.Minute)
	s := NewScheduler(pool, 4, nil)
	sentinel := errors.New("index frozen")

	var running atomic.Int64
	_, err := s.Run(context.Background(), "orders", []byte("1\n2\n3\n4\n"), func(ctx context.Context, data []byte, r Range) (Stats, error) {
		running.Add(1)
		defer running.Add(-1)
		if r.Start == 0 {
			return Stats{}, sentinel
		}
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return Stats{}, ctx.Err()
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if n := running.Load(); n != 0 {
		t.Errorf("Run returned with %d ranges still running", n)
	}
}
