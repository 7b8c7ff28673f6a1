package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arkilian/segavg/internal/app"
	"github.com/arkilian/segavg/internal/engine"
)

func newQueryCommand(opts *globalOptions) *cobra.Command {
	var chunks int

	cmd := &cobra.Command{
		Use:   "query [segment...]",
		Short: "Build the engine and print the average quantity of each segment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cmd.Flags().Changed("chunks") {
				cfg.Chunks = chunks
			}

			segments := args
			if len(segments) == 0 {
				segments = cfg.Segments
			}

			out := cmd.OutOrStdout()
			start := time.Now()
			eng, err := engine.Open(cmd.Context(), app.EngineConfig(cfg, logger, nil, nil))
			if err != nil {
				return err
			}
			defer eng.Close()

			fmt.Fprintf(out, "built engine in %v (workers=%d, run=%s)\n",
				time.Since(start).Round(time.Microsecond), eng.Workers(), eng.RunID())
			for _, r := range eng.Reports() {
				fmt.Fprintf(out, "  %-9s %d records, %d ranges, %d truncated, %v\n",
					r.Table, r.Records, r.Ranges, r.Truncated, r.Duration.Round(time.Microsecond))
			}

			for _, segment := range segments {
				if err := printAverage(out, eng, segment); err != nil {
					logger.Error("query failed", zap.String("segment", segment), zap.Error(err))
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&chunks, "chunks", 0, "Ranges per table (0 selects one per worker)")
	return cmd
}

func printAverage(out io.Writer, eng *engine.Engine, segment string) error {
	start := time.Now()
	res, err := eng.AverageQuantityForSegment(segment)
	elapsed := time.Since(start).Round(time.Microsecond)
	if err != nil {
		return err
	}
	if v, ok := res.Value(); ok {
		u, _ := res.Unscaled()
		fmt.Fprintf(out, "%-12s %d (%.2f) over %d line items in %v\n", segment, v, u, res.Count, elapsed)
		return nil
	}
	fmt.Fprintf(out, "%-12s no data (%s) in %v\n", segment, res.Reason, elapsed)
	return nil
}
