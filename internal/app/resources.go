package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arkilian/segavg/internal/config"
	"github.com/arkilian/segavg/internal/engine"
	"github.com/arkilian/segavg/internal/observability"
	"github.com/arkilian/segavg/internal/storage"
)

// NewObjectStorage opens the object storage described by cfg. It returns nil
// for storage type none.
func NewObjectStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	switch cfg.Type {
	case config.StorageNone, "":
		return nil, nil
	case config.StorageLocal:
		return storage.NewLocalStorage(cfg.Path)
	case config.StorageS3:
		return storage.NewS3Storage(ctx, cfg.S3.Bucket, storage.S3Config{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.Endpoint != "",
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// StageTables downloads the tables from the configured object storage into
// the data directory. It is a no-op for storage type none.
func StageTables(ctx context.Context, cfg *config.Config, force bool, logger *zap.Logger) (*storage.StageResult, error) {
	store, err := NewObjectStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if store == nil {
		return &storage.StageResult{}, nil
	}
	logger.Info("staging tables",
		zap.String("storage", cfg.Storage.Type),
		zap.String("prefix", cfg.Storage.Prefix),
		zap.String("data_dir", cfg.DataDir),
	)
	return storage.Stage(ctx, store, cfg.Storage.Prefix, cfg.DataDir, storage.StageOptions{
		Force:  force,
		Logger: logger,
	})
}

// EngineConfig translates the application configuration into an engine
// configuration.
func EngineConfig(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics, stats *observability.SegmentStats) engine.Config {
	return engine.Config{
		DataDir:     cfg.DataDir,
		Workers:     cfg.Workers,
		Chunks:      cfg.Chunks,
		WaitTimeout: cfg.WaitTimeout,
		ScaleFactor: cfg.ScaleFactor,
		Logger:      logger,
		Metrics:     metrics,
		Stats:       stats,
	}
}
