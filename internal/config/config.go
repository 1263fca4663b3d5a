// Package config loads hrdesk's configuration.
//
// Values are layered: built-in defaults, then a TOML or YAML file, then
// HRDESK_* environment variables, then command line flags that were set
// explicitly.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/maruel/hrdesk/internal/hr"
	"github.com/maruel/hrdesk/internal/kv"
)

// EnvPrefix prefixes every environment variable read by ParseEnv.
const EnvPrefix = "HRDESK_"

// Config is the server and command line configuration.
type Config struct {
	HTTP     string `toml:"http" yaml:"http" env:"HTTP"`
	DataDir  string `toml:"data_dir" yaml:"data_dir" env:"DATA_DIR"`
	LogLevel string `toml:"log_level" yaml:"log_level" env:"LOG_LEVEL"`

	// Storage selects the backend holding the document and session markers.
	// An empty Path is derived from DataDir.
	Storage kv.Config `toml:"storage" yaml:"storage" envPrefix:"STORAGE_"`
	// Key is the storage key of the document.
	Key string `toml:"key" yaml:"key" env:"KEY"`
	// Watch logs writes to the document by another process. dir driver only.
	Watch bool `toml:"watch" yaml:"watch" env:"WATCH"`

	// JWTSecret signs session cookies. Generated at startup when empty, which
	// logs everyone out on restart.
	JWTSecret  string        `toml:"jwt_secret" yaml:"jwt_secret" env:"JWT_SECRET"`
	SessionTTL time.Duration `toml:"session_ttl" yaml:"session_ttl" env:"SESSION_TTL"`

	// LoginRate is the sustained login attempts per minute per client IP.
	LoginRate  float64 `toml:"login_rate" yaml:"login_rate" env:"LOGIN_RATE"`
	LoginBurst int     `toml:"login_burst" yaml:"login_burst" env:"LOGIN_BURST"`

	// SeedFile is a YAML document replacing the built-in seed data.
	SeedFile string `toml:"seed_file" yaml:"seed_file" env:"SEED_FILE"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		HTTP:       "localhost:8080",
		DataDir:    "data",
		LogLevel:   "info",
		Storage:    kv.Config{Driver: kv.DriverDir, Timeout: kv.DefaultTimeout},
		Key:        hr.DefaultKey,
		SessionTTL: 24 * time.Hour,
		LoginRate:  10,
		LoginBurst: 5,
	}
}

// Load returns the defaults overlaid with the file at path, if not empty, and
// then the environment.
func Load(path string) (*Config, error) {
	c := New()
	if path != "" {
		if err := c.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := ParseEnv(c); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile overlays the TOML (.toml) or YAML (.yaml, .yml) file at path.
// Unknown keys are an error.
func (c *Config) LoadFile(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.DecodeFile(path, c)
		if err != nil {
			return fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
		if u := md.Undecoded(); len(u) != 0 {
			return fmt.Errorf("unknown keys in config file %s: %v", path, u)
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		defer f.Close()
		d := yaml.NewDecoder(f)
		d.KnownFields(true)
		if err := d.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	return nil
}

// ParseEnv overlays the HRDESK_* environment variables on target.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	switch c.Storage.Driver {
	case kv.DriverMemory, kv.DriverDir, kv.DriverBolt, kv.DriverSQLite:
	case kv.DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required with the postgres driver")
		}
	case kv.DriverS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required with the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.GitHistory && c.Storage.Driver != kv.DriverDir {
		return errors.New("storage.git_history requires the dir driver")
	}
	if c.Watch && c.Storage.Driver != kv.DriverDir {
		return errors.New("watch requires the dir driver")
	}
	if strings.TrimSpace(c.Key) == "" {
		return errors.New("key is required")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session_ttl must be positive")
	}
	if c.LoginRate < 0 || c.LoginBurst < 0 {
		return errors.New("login_rate and login_burst must be non-negative")
	}
	return nil
}

// StorageConfig returns Storage with Path defaulted under DataDir.
func (c *Config) StorageConfig() *kv.Config {
	s := c.Storage
	if s.Path == "" {
		switch s.Driver {
		case kv.DriverDir, "":
			s.Path = filepath.Join(c.DataDir, "store")
		case kv.DriverBolt:
			s.Path = filepath.Join(c.DataDir, "hrdesk.db")
		case kv.DriverSQLite:
			s.Path = filepath.Join(c.DataDir, "hrdesk.sqlite")
		}
	}
	return &s
}

// Secret returns JWTSecret, generating a random one when empty.
func (c *Config) Secret() ([]byte, error) {
	if c.JWTSecret != "" {
		return []byte(c.JWTSecret), nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	c.JWTSecret = hex.EncodeToString(b)
	return []byte(c.JWTSecret), nil
}

// Flags holds the command line overrides registered by RegisterFlags.
type Flags struct {
	fs *flag.FlagSet
	v  Config
}

// RegisterFlags defines the overriding flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	d := New()
	f := &Flags{fs: fs}
	fs.StringVar(&f.v.HTTP, "http", d.HTTP, "address and port to bind to")
	fs.StringVar(&f.v.DataDir, "data-dir", d.DataDir, "data directory")
	fs.StringVar(&f.v.LogLevel, "log-level", d.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar((*string)(&f.v.Storage.Driver), "storage", string(d.Storage.Driver), "storage driver: memory, dir, bolt, sqlite, postgres, s3")
	fs.StringVar(&f.v.Storage.Path, "storage-path", "", "storage directory or database file; defaults under -data-dir")
	fs.StringVar(&f.v.Storage.DSN, "storage-dsn", "", "PostgreSQL connection string")
	fs.BoolVar(&f.v.Storage.GitHistory, "git-history", false, "commit every document write to git (dir storage)")
	fs.StringVar(&f.v.Key, "key", d.Key, "storage key of the document")
	fs.BoolVar(&f.v.Watch, "watch", false, "log writes to the document by other processes (dir storage)")
	fs.StringVar(&f.v.SeedFile, "seed", "", "YAML file replacing the built-in seed data")
	return f
}

// Apply copies the flags that were set on the command line into c.
func (f *Flags) Apply(c *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "http":
			c.HTTP = f.v.HTTP
		case "data-dir":
			c.DataDir = f.v.DataDir
		case "log-level":
			c.LogLevel = f.v.LogLevel
		case "storage":
			c.Storage.Driver = f.v.Storage.Driver
		case "storage-path":
			c.Storage.Path = f.v.Storage.Path
		case "storage-dsn":
			c.Storage.DSN = f.v.Storage.DSN
		case "git-history":
			c.Storage.GitHistory = f.v.Storage.GitHistory
		case "key":
			c.Key = f.v.Key
		case "watch":
			c.Watch = f.v.Watch
		case "seed":
			c.SeedFile = f.v.SeedFile
		}
	})
}
