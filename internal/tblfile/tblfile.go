// Package tblfile loads table files into memory for parsing.
//
// Plain tables are memory-mapped read-only. A table may instead be stored
// snappy-compressed next to the data directory as "<name>.sz"; such files are
// decoded into a heap buffer.
package tblfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/golang/snappy"

	engerrors "github.com/arkilian/segavg/internal/errors"
)

// CompressedExt is the suffix of snappy-compressed tables.
const CompressedExt = ".sz"

// File is a read-only table held in memory.
type File struct {
	Path string
	data []byte
	// unmap releases a memory mapping; nil for heap buffers.
	unmap func() error
}

// Bytes returns the table contents. The slice must not be modified and is
// invalid after Close.
func (f *File) Bytes() []byte {
	return f.data
}

// Size returns the table length in bytes.
func (f *File) Size() int {
	return len(f.data)
}

// Close releases the table's memory.
func (f *File) Close() error {
	f.data = nil
	if f.unmap == nil {
		return nil
	}
	unmap := f.unmap
	f.unmap = nil
	return unmap()
}

// Resolve returns the path of the table named name in dir, preferring the
// plain file over its compressed variant. A missing table is reported as
// TABLE_MISSING.
func Resolve(dir, name string) (string, error) {
	plain := filepath.Join(dir, name)
	if _, err := os.Stat(plain); err == nil {
		return plain, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", engerrors.NewIngestError(engerrors.CodeTableUnreadable,
			fmt.Sprintf("stat %s", plain), err)
	}

	compressed := plain + CompressedExt
	if _, err := os.Stat(compressed); err == nil {
		return compressed, nil
	}

	return "", engerrors.NewIngestError(engerrors.CodeTableMissing,
		fmt.Sprintf("table %s not found in %s", name, dir), fs.ErrNotExist)
}

// Open loads the table at path. Paths ending in CompressedExt are decoded;
// all others are memory-mapped.
func Open(path string) (*File, error) {
	if filepath.Ext(path) == CompressedExt {
		return openCompressed(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, openError(path, err)
	}
	if info.Size() == 0 {
		return &File{Path: path, data: []byte{}}, nil
	}

	data, unmap, err := mapFile(f, int(info.Size()))
	if err != nil {
		return nil, engerrors.NewIngestError(engerrors.CodeTableUnreadable,
			fmt.Sprintf("map %s", path), err)
	}
	return &File{Path: path, data: data, unmap: unmap}, nil
}

func openCompressed(path string) (*File, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, openError(path, err)
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, engerrors.NewIngestError(engerrors.CodeTableUnreadable,
			fmt.Sprintf("decode %s", path), err)
	}
	return &File{Path: path, data: data}, nil
}

func openError(path string, err error) error {
	code := engerrors.CodeTableUnreadable
	if errors.Is(err, fs.ErrNotExist) {
		code = engerrors.CodeTableMissing
	}
	return engerrors.NewIngestError(code, fmt.Sprintf("open %s", path), err)
}

// Compress writes a snappy-compressed copy of src to dst.
func Compress(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("tblfile: failed to read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, snappy.Encode(nil, data), 0644); err != nil {
		return fmt.Errorf("tblfile: failed to write %s: %w", dst, err)
	}
	return nil
}
