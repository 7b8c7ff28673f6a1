package chunk

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arkilian/segavg/internal/workerpool"
)

// Stats summarizes the scan of one aligned range.
type Stats struct {
	// Records is the number of records written to the index.
	Records int64
	// Truncated is 1 when the scan stopped early at a malformed record.
	Truncated int64
	// Offset is the file offset of the malformed record, valid when Truncated > 0.
	Offset int
}

// ParseFunc scans one aligned range of data. It should return ctx.Err()
// promptly once ctx is cancelled.
type ParseFunc func(ctx context.Context, data []byte, r Range) (Stats, error)

// Report describes a completed table ingestion.
type Report struct {
	Table     string
	Ranges    int
	Bytes     int64
	Records   int64
	Truncated int64
	Duration  time.Duration
}

// Scheduler drives a ParseFunc over the aligned ranges of a table on a shared
// worker pool.
type Scheduler struct {
	pool   *workerpool.Pool
	chunks int
	logger *zap.Logger
}

// NewScheduler creates a scheduler splitting each table into chunks ranges.
// A non-positive chunks uses one range per pool worker.
func NewScheduler(pool *workerpool.Pool, chunks int, logger *zap.Logger) *Scheduler {
	if chunks <= 0 {
		chunks = pool.Size()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		pool:   pool,
		chunks: chunks,
		logger: logger,
	}
}

// Chunks returns the number of nominal ranges per table.
func (s *Scheduler) Chunks() int {
	return s.chunks
}

// Run submits one task per aligned range of data and blocks until all of them
// have finished. It returns an error if any task failed or the pool's wait
// bound elapsed; in either case the table's index is incomplete. Run never
// returns while a task may still read data, so the caller may release the
// buffer as soon as it returns.
func (s *Scheduler) Run(ctx context.Context, table string, data []byte, parse ParseFunc) (Report, error) {
	startTime := time.Now()
	ranges := Plan(data, s.chunks)

	var records, truncated atomic.Int64
	g := s.pool.Group(ctx, table)
	for _, r := range ranges {
		g.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			st, err := parse(ctx, data, r)
			records.Add(st.Records)
			if st.Truncated > 0 {
				truncated.Add(st.Truncated)
				s.logger.Warn("malformed record, range truncated",
					zap.String("table", table),
					zap.Int("range_start", r.Start),
					zap.Int("range_end", r.End),
					zap.Int("offset", st.Offset),
				)
			}
			if err != nil {
				return fmt.Errorf("chunk: %s [%d,%d): %w", table, r.Start, r.End, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		g.Drain()
	}
	report := Report{
		Table:     table,
		Ranges:    len(ranges),
		Bytes:     int64(len(data)),
		Records:   records.Load(),
		Truncated: truncated.Load(),
		Duration:  time.Since(startTime),
	}
	if err != nil {
		return report, err
	}

	s.logger.Debug("table scanned",
		zap.String("table", table),
		zap.Int("ranges", report.Ranges),
		zap.Int64("records", report.Records),
		zap.Int64("truncated", report.Truncated),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}
