package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arkilian/segavg/internal/config"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configFile string
	envFiles   []string
	dataDir    string
	workers    int
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "segavg",
		Short:         "Concurrent flat-file ingestion and star-join segment averages",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flags.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "Dotenv files loaded before environment variables")
	flags.StringVar(&opts.dataDir, "data-dir", "", "Directory holding customer.tbl, orders.tbl and lineitem.tbl")
	flags.IntVar(&opts.workers, "workers", 0, "Worker pool size (0 selects the number of CPUs)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newQueryCommand(opts),
		newVerifyCommand(opts),
		newServeCommand(opts),
		newStageCommand(opts),
		newPackCommand(opts),
	)
	return root
}

// loadConfig layers the configuration: defaults or file, then dotenv and
// environment variables, then command line flags.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if o.configFile != "" {
		loaded, err := config.LoadFromFile(o.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = o.dataDir
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds a production logger for the json format and a development
// logger otherwise.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// setup loads the configuration and builds its logger.
func (o *globalOptions) setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
