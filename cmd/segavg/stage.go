package main

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/arkilian/segavg/internal/app"
	"github.com/arkilian/segavg/internal/config"
	"github.com/arkilian/segavg/internal/tblfile"
)

func newStageCommand(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Download the tables from object storage into the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.Storage.Type == config.StorageNone {
				return fmt.Errorf("no object storage configured (set storage.type to local or s3)")
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			res, err := app.StageTables(cmd.Context(), cfg, force, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tables := make([]string, 0, len(res.LocalPaths))
			for table := range res.LocalPaths {
				tables = append(tables, table)
			}
			sort.Strings(tables)
			for _, table := range tables {
				fmt.Fprintf(out, "%-9s %s\n", table, res.LocalPaths[table])
			}
			fmt.Fprintf(out, "%d downloaded, %d already present\n", res.Downloads, res.CacheHits)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Download even when the table is already present")
	return cmd
}

func newPackCommand(opts *globalOptions) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Snappy-compress the tables in the data directory, optionally publishing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			out := cmd.OutOrStdout()
			customer, orders, lineitem := cfg.TablePaths()
			var packed []string
			for _, src := range []string{customer, orders, lineitem} {
				dst := src + tblfile.CompressedExt
				if err := tblfile.Compress(src, dst); err != nil {
					return err
				}
				packed = append(packed, dst)
				fmt.Fprintf(out, "packed %s\n", filepath.Base(dst))
			}

			if !publish {
				return nil
			}
			store, err := app.NewObjectStorage(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("no object storage configured (set storage.type to local or s3)")
			}
			for _, local := range packed {
				object := path.Join(cfg.Storage.Prefix, filepath.Base(local))
				if err := store.Upload(cmd.Context(), local, object); err != nil {
					return fmt.Errorf("failed to publish %s: %w", filepath.Base(local), err)
				}
				fmt.Fprintf(out, "published %s\n", object)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&publish, "publish", false, "Upload the tables to the configured object storage")
	return cmd
}
