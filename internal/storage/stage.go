package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	engerrors "github.com/arkilian/segavg/internal/errors"
	"github.com/arkilian/segavg/internal/parser"
	"github.com/arkilian/segavg/internal/tblfile"
)

// StageOptions controls Stage.
type StageOptions struct {
	// Concurrency is the maximum number of parallel downloads (default 3).
	Concurrency int
	// Force re-downloads tables already present in the data directory.
	Force bool
	Logger *zap.Logger
}

// StageResult reports what Stage did.
type StageResult struct {
	// LocalPaths maps each table name to its file in the data directory.
	LocalPaths map[string]string
	CacheHits  int
	Downloads  int
}

// Stage copies customer, orders, and lineitem tables stored under prefix into
// dir. For each table the plain object is preferred over its compressed
// variant. A table missing from storage fails the whole stage with
// OBJECT_NOT_FOUND.
func Stage(ctx context.Context, store ObjectStorage, prefix, dir string, opts StageOptions) (*StageResult, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, engerrors.NewStorageError(engerrors.CodeDownloadFailed,
			fmt.Sprintf("create %s", dir), err)
	}

	result := &StageResult{LocalPaths: make(map[string]string)}
	var mu sync.Mutex

	sem := semaphore.NewWeighted(int64(opts.Concurrency))
	g, ctx := errgroup.WithContext(ctx)
	for _, schema := range parser.Schemas() {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			local, downloaded, err := stageTable(ctx, store, prefix, dir, schema.File, opts.Force)
			if err != nil {
				return err
			}

			mu.Lock()
			result.LocalPaths[schema.Table] = local
			if downloaded {
				result.Downloads++
			} else {
				result.CacheHits++
			}
			mu.Unlock()

			logger.Info("table staged",
				zap.String("table", schema.Table),
				zap.String("path", local),
				zap.Bool("downloaded", downloaded),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func stageTable(ctx context.Context, store ObjectStorage, prefix, dir, name string, force bool) (string, bool, error) {
	object, file, err := locate(ctx, store, prefix, name)
	if err != nil {
		return "", false, err
	}

	local := filepath.Join(dir, file)
	if !force {
		if _, err := os.Stat(local); err == nil {
			return local, false, nil
		}
	}

	if err := store.Download(ctx, object, local); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return "", false, engerrors.NewStorageError(engerrors.CodeObjectNotFound,
				fmt.Sprintf("object %s disappeared", object), err)
		}
		return "", false, engerrors.NewStorageError(engerrors.CodeDownloadFailed,
			fmt.Sprintf("download %s", object), err)
	}

	// tblfile.Resolve prefers the plain file, so a stale plain copy must not
	// shadow a freshly staged compressed one.
	if file != name {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", false, engerrors.NewStorageError(engerrors.CodeDownloadFailed,
				fmt.Sprintf("remove stale %s", name), err)
		}
	}
	return local, true, nil
}

// locate returns the object key and file name of the table, plain first.
func locate(ctx context.Context, store ObjectStorage, prefix, name string) (string, string, error) {
	for _, file := range []string{name, name + tblfile.CompressedExt} {
		object := path.Join(prefix, file)
		ok, err := store.Exists(ctx, object)
		if err != nil {
			return "", "", engerrors.NewStorageError(engerrors.CodeDownloadFailed,
				fmt.Sprintf("stat %s", object), err)
		}
		if ok {
			return object, file, nil
		}
	}
	return "", "", engerrors.NewStorageError(engerrors.CodeObjectNotFound,
		fmt.Sprintf("table %s not found under %q", name, prefix), ErrObjectNotFound)
}

// Publish uploads the three tables found in dir (plain or compressed) under
// prefix. It returns the uploaded object keys.
func Publish(ctx context.Context, store ObjectStorage, prefix, dir string) ([]string, error) {
	var objects []string
	for _, schema := range parser.Schemas() {
		local, err := tblfile.Resolve(dir, schema.File)
		if err != nil {
			return nil, err
		}
		object := path.Join(prefix, filepath.Base(local))
		if err := store.Upload(ctx, local, object); err != nil {
			return nil, fmt.Errorf("storage: publish %s: %w", schema.Table, err)
		}
		objects = append(objects, object)
	}
	return objects, nil
}
