package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arkilian/segavg/internal/app"
	"github.com/arkilian/segavg/internal/engine"
	"github.com/arkilian/segavg/internal/oracle"
)

func newVerifyCommand(opts *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "verify [segment...]",
		Short: "Compare engine answers against an in-memory SQLite evaluation of the join",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			eng, err := engine.Open(ctx, app.EngineConfig(cfg, logger, nil, nil))
			if err != nil {
				return err
			}
			defer eng.Close()

			paths := eng.Paths()
			o, err := oracle.Load(ctx, oracle.Tables{
				Customer: paths.Customer,
				Orders:   paths.Orders,
				LineItem: paths.LineItem,
			}, eng.ScaleFactor())
			if err != nil {
				return fmt.Errorf("failed to load oracle: %w", err)
			}
			defer o.Close()

			segments := args
			switch {
			case all:
				if segments, err = o.Segments(ctx); err != nil {
					return err
				}
			case len(segments) == 0:
				segments = cfg.Segments
			}

			out := cmd.OutOrStdout()
			mismatches := 0
			for _, segment := range segments {
				want, err := o.Average(ctx, segment)
				if err != nil {
					return err
				}
				got, err := eng.AverageQuantityForSegment(segment)
				if err != nil {
					return err
				}

				ok := got.NoData() == want.NoData() &&
					(got.NoData() || (got.Average == want.Average && got.Count == want.Count && got.Sum == want.Sum))
				if !ok {
					mismatches++
					fmt.Fprintf(out, "MISMATCH %-12s engine=%d/%d oracle=%d/%d\n",
						segment, got.Average, got.Count, want.Average, want.Count)
					continue
				}
				if got.NoData() {
					fmt.Fprintf(out, "ok       %-12s no data\n", segment)
				} else {
					fmt.Fprintf(out, "ok       %-12s %d\n", segment, got.Average)
				}
			}
			if mismatches > 0 {
				return fmt.Errorf("%d of %d segments disagree with the oracle", mismatches, len(segments))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Verify every segment present in the customer table")
	return cmd
}
