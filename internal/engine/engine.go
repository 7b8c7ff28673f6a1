// Package engine builds the segment, order, and line item indexes from the
// three input tables and answers segment average queries against them.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arkilian/segavg/internal/chunk"
	engerrors "github.com/arkilian/segavg/internal/errors"
	"github.com/arkilian/segavg/internal/index"
	"github.com/arkilian/segavg/internal/observability"
	"github.com/arkilian/segavg/internal/parser"
	"github.com/arkilian/segavg/internal/query/aggregator"
	"github.com/arkilian/segavg/internal/tblfile"
	"github.com/arkilian/segavg/internal/workerpool"
)

// Result is the outcome of a segment average query.
type Result = aggregator.Result

// Engine answers segment average queries over frozen indexes. It is safe for
// concurrent use once Open returns.
type Engine struct {
	runID   string
	logger  *zap.Logger
	metrics *observability.Metrics
	stats   *observability.SegmentStats

	pool     *workerpool.Pool
	segments *index.SegmentIndex
	orders   *index.OrderIndex
	items    *index.LineItemAggregate
	agg      *aggregator.JoinAggregator
	scale    int64
	paths    Paths
	reports  []chunk.Report

	closed atomic.Bool
}

// Open loads the three tables, ingests them concurrently on a shared worker
// pool, and freezes the resulting indexes. It returns only after every table
// has been fully ingested; any failure leaves no engine behind.
func Open(ctx context.Context, cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	runID := uuid.New().String()
	logger := cfg.Logger.With(zap.String("run_id", runID))

	paths, err := cfg.resolvePaths()
	if err != nil {
		return nil, err
	}

	files, err := openTables(paths)
	if err != nil {
		return nil, err
	}
	// ingest returns only after every range task has stopped reading.
	defer closeTables(files, logger)

	e := &Engine{
		runID:    runID,
		logger:   logger,
		metrics:  cfg.Metrics,
		stats:    cfg.Stats,
		pool:     workerpool.New(cfg.Workers, cfg.WaitTimeout),
		segments: index.NewSegmentIndex(cfg.Shards),
		orders:   index.NewOrderIndex(cfg.Shards),
		items:    index.NewLineItemAggregate(cfg.Shards),
		scale:    cfg.ScaleFactor,
		paths:    paths,
	}

	logger.Info("ingesting tables",
		zap.String("customer", paths.Customer),
		zap.String("orders", paths.Orders),
		zap.String("lineitem", paths.LineItem),
		zap.Int("workers", e.pool.Size()),
	)

	startTime := time.Now()
	if err := e.ingest(ctx, files, cfg.Chunks); err != nil {
		logger.Error("ingestion failed", zap.Error(err))
		return nil, err
	}

	e.segments.Freeze()
	e.orders.Freeze()
	e.items.Freeze()
	e.agg = aggregator.New(e.segments, e.orders, e.items, e.pool, e.scale)

	e.metrics.SetIndexEntries("segment", e.segments.Len())
	e.metrics.SetIndexEntries("order", e.orders.Len())
	e.metrics.SetIndexEntries("lineitem", e.items.Len())

	logger.Info("indexes frozen",
		zap.Int("customers", e.segments.Len()),
		zap.Int("order_customers", e.orders.Len()),
		zap.Int("lineitem_orders", e.items.Len()),
		zap.Strings("segments", e.segments.Segments()),
		zap.Duration("duration", time.Since(startTime)),
	)
	return e, nil
}

type tables struct {
	customer, orders, lineitem *tblfile.File
}

func openTables(p Paths) (tables, error) {
	var t tables
	var err error
	if t.customer, err = tblfile.Open(p.Customer); err != nil {
		return tables{}, err
	}
	if t.orders, err = tblfile.Open(p.Orders); err != nil {
		t.customer.Close()
		return tables{}, err
	}
	if t.lineitem, err = tblfile.Open(p.LineItem); err != nil {
		t.customer.Close()
		t.orders.Close()
		return tables{}, err
	}
	return t, nil
}

func closeTables(t tables, logger *zap.Logger) {
	for _, f := range []*tblfile.File{t.customer, t.orders, t.lineitem} {
		if err := f.Close(); err != nil {
			logger.Warn("failed to release table", zap.String("path", f.Path), zap.Error(err))
		}
	}
}

// ingest runs the three tables concurrently. Each table is its own barrier
// group on the shared pool; the table drivers themselves hold no pool slot.
func (e *Engine) ingest(ctx context.Context, t tables, chunks int) error {
	sched := chunk.NewScheduler(e.pool, chunks, e.logger)

	jobs := []struct {
		table string
		file  *tblfile.File
		parse chunk.ParseFunc
	}{
		{parser.CustomerSchema.Table, t.customer, parser.NewCustomer(e.segments).Parse},
		{parser.OrderSchema.Table, t.orders, parser.NewOrder(e.orders).Parse},
		{parser.LineItemSchema.Table, t.lineitem, parser.NewLineItem(e.items, e.scale).Parse},
	}

	reports := make([]chunk.Report, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			report, err := sched.Run(gctx, job.table, job.file.Bytes(), job.parse)
			reports[i] = report
			if err != nil {
				return err
			}
			e.metrics.ObserveIngest(report.Table, report.Records, report.Truncated, report.Duration)
			e.logger.Info("table ingested",
				zap.String("table", report.Table),
				zap.Int("ranges", report.Ranges),
				zap.Int64("bytes", report.Bytes),
				zap.Int64("records", report.Records),
				zap.Int64("truncated", report.Truncated),
				zap.Duration("duration", report.Duration),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	e.reports = reports
	return nil
}

// AverageQuantityForSegment returns the floor of the average scaled quantity
// of every line item reachable from segment. Missing data is reported through
// the result's Reason, not as an error.
func (e *Engine) AverageQuantityForSegment(segment string) (Result, error) {
	if e.closed.Load() {
		return Result{}, engerrors.NewQueryError(engerrors.CodeEngineClosed, "engine is closed")
	}

	startTime := time.Now()
	res, err := e.agg.Average(segment)
	elapsed := time.Since(startTime)

	outcome := outcomeOf(res, err)
	e.metrics.ObserveQuery(outcome, elapsed)
	if e.stats != nil {
		e.stats.Record(segment, outcome)
	}

	if err != nil {
		e.logger.Error("query failed", zap.String("segment", segment), zap.Error(err))
		return Result{}, err
	}
	e.logger.Debug("query answered",
		zap.String("segment", segment),
		zap.String("outcome", outcome),
		zap.Int64("count", res.Count),
		zap.Duration("duration", elapsed),
	)
	return res, nil
}

func outcomeOf(res Result, err error) string {
	switch {
	case err != nil:
		return observability.OutcomeError
	case res.Reason == aggregator.ReasonUnknownSegment:
		return observability.OutcomeUnknownSegment
	case res.Reason == aggregator.ReasonNoLineItems:
		return observability.OutcomeNoLineItems
	default:
		return observability.OutcomeOK
	}
}

// Segments returns the sorted set of segment labels seen during ingestion.
func (e *Engine) Segments() []string {
	return e.segments.Segments()
}

// Reports returns the per-table ingestion reports in customer, orders,
// lineitem order.
func (e *Engine) Reports() []chunk.Report {
	out := make([]chunk.Report, len(e.reports))
	copy(out, e.reports)
	return out
}

// RunID identifies this engine build in logs.
func (e *Engine) RunID() string {
	return e.runID
}

// Paths returns the table files the engine was built from.
func (e *Engine) Paths() Paths {
	return e.paths
}

// Workers returns the size of the shared worker pool.
func (e *Engine) Workers() int {
	return e.pool.Size()
}

// ScaleFactor returns the factor quantities were multiplied by.
func (e *Engine) ScaleFactor() int64 {
	return e.scale
}

// Close marks the engine closed. Queries issued afterwards fail with
// ENGINE_CLOSED. Close is idempotent.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.logger.Info("engine closed")
	return nil
}
