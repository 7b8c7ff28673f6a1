package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arkilian/segavg/internal/app"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		httpAddr string
		grpcAddr string
		noGRPC   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build the engine and serve queries over HTTP and gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			flags := cmd.Flags()
			if flags.Changed("http-addr") {
				cfg.HTTP.Addr = httpAddr
			}
			if flags.Changed("grpc-addr") {
				cfg.GRPC.Addr = grpcAddr
			}
			if noGRPC {
				cfg.GRPC.Enabled = false
			}

			logger.Info("starting segavg",
				zap.String("version", version),
				zap.String("data_dir", cfg.DataDir),
				zap.String("storage", cfg.Storage.Type),
				zap.String("http_addr", cfg.HTTP.Addr),
			)

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			return application.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address")
	cmd.Flags().BoolVar(&noGRPC, "no-grpc", false, "Disable the gRPC server")
	return cmd
}
