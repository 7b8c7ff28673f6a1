// Package config provides the configuration of the segavg engine and its
// servers.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	engerrors "github.com/arkilian/segavg/internal/errors"
	"github.com/arkilian/segavg/internal/parser"
	"github.com/arkilian/segavg/internal/workerpool"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "SEGAVG_"

// Config holds the unified configuration for the engine, the CLI, and the
// servers.
type Config struct {
	// DataDir is the directory holding customer.tbl, orders.tbl and lineitem.tbl
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Workers is the worker pool size; 0 selects the number of CPUs (min 2)
	Workers int `json:"workers" yaml:"workers"`

	// Chunks is the number of ranges per table; 0 selects one per worker
	Chunks int `json:"chunks" yaml:"chunks"`

	// WaitTimeout bounds every barrier wait
	WaitTimeout time.Duration `json:"wait_timeout" yaml:"wait_timeout"`

	// ScaleFactor multiplies every line item quantity
	ScaleFactor int64 `json:"scale_factor" yaml:"scale_factor"`

	// Segments are queried by default by the query and verify commands
	Segments []string `json:"segments" yaml:"segments"`

	Log     LogConfig     `json:"log" yaml:"log"`
	HTTP    HTTPConfig    `json:"http" yaml:"http"`
	GRPC    GRPCConfig    `json:"grpc" yaml:"grpc"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is json or console
	Format string `json:"format" yaml:"format"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	// Addr is the gRPC server address
	Addr string `json:"addr" yaml:"addr"`

	// Enabled controls whether gRPC is enabled
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Storage types.
const (
	StorageNone  = "none"
	StorageLocal = "local"
	StorageS3    = "s3"
)

// StorageConfig describes where tables are staged from.
type StorageConfig struct {
	// Type is the storage type: none, local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// Prefix is the object key prefix under which the tables are stored
	Prefix string `json:"prefix" yaml:"prefix"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultSegments are the market segments queried when none are given.
var DefaultSegments = []string{"AUTOMOBILE", "BUILDING", "FURNITURE", "HOUSEHOLD", "MACHINERY"}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir:     "./data",
		WaitTimeout: workerpool.DefaultWaitTimeout,
		ScaleFactor: parser.ScaleFactor,
		Segments:    append([]string(nil), DefaultSegments...),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: true,
		},
		Storage: StorageConfig{
			Type: StorageNone,
		},
	}
}

// Resolve fills derived settings left empty.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = workerpool.DefaultWaitTimeout
	}
	if c.ScaleFactor == 0 {
		c.ScaleFactor = parser.ScaleFactor
	}
	if len(c.Segments) == 0 {
		c.Segments = append([]string(nil), DefaultSegments...)
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageNone
	}
	if c.Storage.Type == StorageLocal && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
}

// TablePaths returns the plain table paths under DataDir.
func (c *Config) TablePaths() (customer, orders, lineitem string) {
	return filepath.Join(c.DataDir, parser.CustomerSchema.File),
		filepath.Join(c.DataDir, parser.OrderSchema.File),
		filepath.Join(c.DataDir, parser.LineItemSchema.File)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return engerrors.NewConfigError("data_dir is required", nil)
	}
	if c.Workers < 0 {
		return engerrors.NewConfigError(fmt.Sprintf("workers must not be negative, got %d", c.Workers), nil)
	}
	if c.Chunks < 0 {
		return engerrors.NewConfigError(fmt.Sprintf("chunks must not be negative, got %d", c.Chunks), nil)
	}
	if c.WaitTimeout <= 0 {
		return engerrors.NewConfigError(fmt.Sprintf("wait_timeout must be positive, got %s", c.WaitTimeout), nil)
	}
	if c.ScaleFactor <= 0 {
		return engerrors.NewConfigError(fmt.Sprintf("scale_factor must be positive, got %d", c.ScaleFactor), nil)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return engerrors.NewConfigError(fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level), nil)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return engerrors.NewConfigError(fmt.Sprintf("invalid log format: %s (must be json or console)", c.Log.Format), nil)
	}

	switch c.Storage.Type {
	case StorageNone, StorageLocal:
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return engerrors.NewConfigError("s3.bucket is required when storage type is s3", nil)
		}
	default:
		return engerrors.NewConfigError(fmt.Sprintf("invalid storage type: %s (must be none, local, or s3)", c.Storage.Type), nil)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file on top of
// DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engerrors.NewConfigError("failed to read config file", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, engerrors.NewConfigError("failed to parse YAML config", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, engerrors.NewConfigError("failed to parse JSON config", err)
		}
	default:
		return nil, engerrors.NewConfigError(fmt.Sprintf("unsupported config file format: %s", ext), nil)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return engerrors.NewConfigError(fmt.Sprintf("failed to load %s", f), err)
		}
	}
	return nil
}

// LoadFromEnv overrides cfg with environment variables using the SEGAVG_
// prefix. Malformed numeric values are reported; unset variables are
// ignored.
func LoadFromEnv(cfg *Config) error {
	env := envReader{}

	env.str("DATA_DIR", &cfg.DataDir)
	env.integer("WORKERS", &cfg.Workers)
	env.integer("CHUNKS", &cfg.Chunks)
	env.duration("WAIT_TIMEOUT", &cfg.WaitTimeout)
	env.int64("SCALE_FACTOR", &cfg.ScaleFactor)
	if v := os.Getenv(EnvPrefix + "SEGMENTS"); v != "" {
		cfg.Segments = splitList(v)
	}

	// Logging
	env.str("LOG_LEVEL", &cfg.Log.Level)
	env.str("LOG_FORMAT", &cfg.Log.Format)

	// HTTP configuration
	env.str("HTTP_ADDR", &cfg.HTTP.Addr)
	env.duration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	env.duration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)

	// gRPC configuration
	env.str("GRPC_ADDR", &cfg.GRPC.Addr)
	if v := os.Getenv(EnvPrefix + "GRPC_ENABLED"); v != "" {
		cfg.GRPC.Enabled = v == "true" || v == "1"
	}

	// Storage configuration
	env.str("STORAGE_TYPE", &cfg.Storage.Type)
	env.str("STORAGE_PATH", &cfg.Storage.Path)
	env.str("STORAGE_PREFIX", &cfg.Storage.Prefix)
	env.str("S3_BUCKET", &cfg.Storage.S3.Bucket)
	env.str("S3_REGION", &cfg.Storage.S3.Region)
	env.str("S3_ENDPOINT", &cfg.Storage.S3.Endpoint)

	return env.err
}

// envReader reads prefixed variables and keeps the first parse error.
type envReader struct {
	err error
}

func (r *envReader) lookup(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func (r *envReader) fail(key, v string, err error) {
	if r.err == nil {
		r.err = engerrors.NewConfigError(fmt.Sprintf("invalid %s%s=%q", EnvPrefix, key, v), err)
	}
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r *envReader) integer(key string, dst *int) {
	if v, ok := r.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) int64(key string, dst *int64) {
	if v, ok := r.lookup(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	if v, ok := r.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = d
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EnsureDirectories creates the data and local storage directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Storage.Type == StorageLocal {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
