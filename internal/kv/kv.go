// Package kv provides string key-value storage backends.
//
// A [Storage] mirrors the contract of a browser's local storage: a flat
// namespace of string keys holding string values, read and written whole.
// hrdesk keeps its entire document under one key and the local session
// markers under two others.
//
// Backends are selected by driver name through [Open]:
//
//	memory    in-process map, lost on exit
//	dir       one file per key in a directory
//	bolt      a single bucket in a bolt database file
//	sqlite    a kv table in a SQLite database file
//	postgres  a kv table in a PostgreSQL database
//	s3        one object per key in an S3 bucket
//
// The contract has no context: network backends bound each call with
// [Config.Timeout].
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

// Storage is a flat string key-value store.
type Storage interface {
	// Get returns the value for key or ErrNotFound.
	Get(key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
	// Close releases the backend's resources.
	Close() error
}

// Driver names a storage backend.
type Driver string

// Supported drivers.
const (
	DriverMemory   Driver = "memory"
	DriverDir      Driver = "dir"
	DriverBolt     Driver = "bolt"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverS3       Driver = "s3"
)

// Config selects and parameterizes a backend.
type Config struct {
	Driver Driver `toml:"driver" yaml:"driver" env:"DRIVER"`
	// Path is the directory (dir) or database file (bolt, sqlite).
	Path string `toml:"path" yaml:"path" env:"PATH"`
	// DSN is the PostgreSQL connection string.
	DSN string `toml:"dsn" yaml:"dsn" env:"DSN"`
	// S3 settings.
	Bucket    string `toml:"bucket" yaml:"bucket" env:"BUCKET"`
	Region    string `toml:"region" yaml:"region" env:"REGION"`
	Endpoint  string `toml:"endpoint" yaml:"endpoint" env:"ENDPOINT"`
	Prefix    string `toml:"prefix" yaml:"prefix" env:"PREFIX"`
	PathStyle bool   `toml:"path_style" yaml:"path_style" env:"PATH_STYLE"`
	// Timeout bounds each call on network backends.
	Timeout time.Duration `toml:"timeout" yaml:"timeout" env:"TIMEOUT"`
	// GitHistory commits every write of the dir backend to a git repository.
	GitHistory bool `toml:"git_history" yaml:"git_history" env:"GIT_HISTORY"`
}

// DefaultTimeout is used by network backends when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Open returns the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg *Config) (Storage, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverDir, "":
		d, err := NewDir(cfg.Path)
		if err != nil {
			return nil, err
		}
		if cfg.GitHistory {
			return NewGitHistory(d, "hrdesk", "hrdesk@localhost")
		}
		return d, nil
	case DriverBolt:
		return NewBolt(cfg.Path)
	case DriverSQLite:
		return NewSQLite(cfg.Path, cfg.timeout())
	case DriverPostgres:
		return NewPostgres(ctx, cfg.DSN, cfg.timeout())
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			Prefix:    cfg.Prefix,
			PathStyle: cfg.PathStyle,
			Timeout:   cfg.timeout(),
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
