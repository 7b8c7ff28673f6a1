package engine

import (
	"time"

	"go.uber.org/zap"

	engerrors "github.com/arkilian/segavg/internal/errors"
	"github.com/arkilian/segavg/internal/observability"
	"github.com/arkilian/segavg/internal/parser"
	"github.com/arkilian/segavg/internal/tblfile"
	"github.com/arkilian/segavg/internal/workerpool"
)

// Paths locates the three input tables.
type Paths struct {
	Customer string
	Orders   string
	LineItem string
}

// Config holds the construction-time settings of an Engine.
type Config struct {
	// DataDir is searched for customer.tbl, orders.tbl and lineitem.tbl (or
	// their .sz variants) when the matching entry of Paths is empty.
	DataDir string
	Paths   Paths

	// Workers is the size of the shared worker pool. Zero selects
	// workerpool.DefaultSize.
	Workers int
	// Chunks is the number of nominal ranges each table is split into. Zero
	// selects one range per worker.
	Chunks int
	// Shards is the shard count of each index. Zero selects index.DefaultShards.
	Shards int
	// WaitTimeout bounds every barrier wait. Zero selects
	// workerpool.DefaultWaitTimeout.
	WaitTimeout time.Duration
	// ScaleFactor multiplies every quantity. Zero selects parser.ScaleFactor.
	ScaleFactor int64

	Logger  *zap.Logger
	Metrics *observability.Metrics
	Stats   *observability.SegmentStats
}

func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = workerpool.DefaultSize()
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = workerpool.DefaultWaitTimeout
	}
	if c.ScaleFactor == 0 {
		c.ScaleFactor = parser.ScaleFactor
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.Workers < 0:
		return engerrors.NewConfigError("workers must not be negative", nil)
	case c.Chunks < 0:
		return engerrors.NewConfigError("chunks must not be negative", nil)
	case c.Shards < 0:
		return engerrors.NewConfigError("shards must not be negative", nil)
	case c.WaitTimeout < 0:
		return engerrors.NewConfigError("wait timeout must not be negative", nil)
	case c.ScaleFactor < 0:
		return engerrors.NewConfigError("scale factor must not be negative", nil)
	}
	return nil
}

// resolvePaths fills empty entries of Paths from DataDir.
func (c Config) resolvePaths() (Paths, error) {
	p := c.Paths
	for _, t := range []struct {
		path *string
		name string
	}{
		{&p.Customer, parser.CustomerSchema.File},
		{&p.Orders, parser.OrderSchema.File},
		{&p.LineItem, parser.LineItemSchema.File},
	} {
		if *t.path != "" {
			continue
		}
		resolved, err := tblfile.Resolve(c.DataDir, t.name)
		if err != nil {
			return Paths{}, err
		}
		*t.path = resolved
	}
	return p, nil
}
