// Package workerpool provides the fixed-size worker pool shared by table
// ingestion and segment aggregation.
//
// A Pool owns a weighted semaphore sized to the configured parallelism. Work is
// submitted through a Group: each group is one barrier (all ranges of one table,
// or all customer tasks of one query) and fails fast on the first task error.
// Groups from different phases share the same semaphore, so the total number of
// running tasks never exceeds the pool size.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	engerrors "github.com/arkilian/segavg/internal/errors"
)

// MinSize is the smallest pool the engine will run with.
const MinSize = 2

// DefaultWaitTimeout bounds every barrier wait unless configured otherwise.
const DefaultWaitTimeout = 10 * time.Minute

// DefaultSize returns the detected hardware parallelism, at least MinSize.
func DefaultSize() int {
	n := runtime.NumCPU()
	if n < MinSize {
		return MinSize
	}
	return n
}

// Pool is a fixed-size worker pool.
type Pool struct {
	sem         *semaphore.Weighted
	size        int
	waitTimeout time.Duration
	running     atomic.Int64
}

// New creates a pool running at most size tasks at once. A size below MinSize
// is raised to MinSize; a non-positive waitTimeout selects DefaultWaitTimeout.
func New(size int, waitTimeout time.Duration) *Pool {
	if size < MinSize {
		size = MinSize
	}
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	return &Pool{
		sem:         semaphore.NewWeighted(int64(size)),
		size:        size,
		waitTimeout: waitTimeout,
	}
}

// Size returns the maximum number of concurrently running tasks.
func (p *Pool) Size() int {
	return p.size
}

// WaitTimeout returns the bound applied to Group.Wait.
func (p *Pool) WaitTimeout() time.Duration {
	return p.waitTimeout
}

// Running returns the number of tasks currently holding a worker slot.
func (p *Pool) Running() int64 {
	return p.running.Load()
}

// Group starts a new barrier group. The group's context is derived from ctx
// and is cancelled as soon as any task fails or the wait bound is exceeded.
func (p *Pool) Group(ctx context.Context, name string) *Group {
	ctx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(ctx)
	return &Group{
		pool:   p,
		name:   name,
		eg:     eg,
		ctx:    egCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Group is one barrier: Wait returns only after every submitted task has
// returned, the first error has been observed, or the wait bound expired.
type Group struct {
	pool    *Pool
	name    string
	eg      *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	pending atomic.Int64

	waitOnce sync.Once
	done     chan struct{}
	err      error
}

// Go submits a task. The task runs once a worker slot is free; tasks still
// queued when the group fails are never started.
func (g *Group) Go(task func(ctx context.Context) error) {
	g.pending.Add(1)
	g.eg.Go(func() (err error) {
		defer g.pending.Add(-1)

		if err := g.pool.sem.Acquire(g.ctx, 1); err != nil {
			return err
		}
		g.pool.running.Add(1)
		defer func() {
			g.pool.running.Add(-1)
			g.pool.sem.Release(1)
		}()

		defer func() {
			if r := recover(); r != nil {
				err = engerrors.New(engerrors.ErrCategoryInternal, engerrors.CodeTaskPanic,
					fmt.Sprintf("%s: task panicked: %v", g.name, r))
			}
		}()

		return task(g.ctx)
	})
}

// Wait blocks until all tasks of the group are done and returns the first task
// error. If the pool's wait bound elapses first, the group is cancelled and a
// BARRIER_TIMEOUT error reporting the number of unfinished tasks is returned;
// results gathered so far must not be used, and tasks may still be running
// until Drain returns.
func (g *Group) Wait() error {
	g.startWaiter()

	timer := time.NewTimer(g.pool.waitTimeout)
	defer timer.Stop()

	select {
	case <-g.done:
		g.cancel()
		return g.err
	case <-timer.C:
		pending := g.pending.Load()
		g.cancel()
		return engerrors.NewBarrierTimeout(
			fmt.Sprintf("%s: %d tasks still in flight after %s", g.name, pending, g.pool.waitTimeout),
		).WithDetails(map[string]interface{}{
			"group":   g.name,
			"pending": pending,
		})
	}
}

// Drain cancels the group and blocks until every submitted task has
// returned, with no time bound. Memory read by the tasks may be released
// once Drain returns.
func (g *Group) Drain() {
	g.startWaiter()
	g.cancel()
	<-g.done
}

// Done is closed once every submitted task has returned.
func (g *Group) Done() <-chan struct{} {
	g.startWaiter()
	return g.done
}

func (g *Group) startWaiter() {
	g.waitOnce.Do(func() {
		go func() {
			g.err = g.eg.Wait()
			close(g.done)
		}()
	})
}
