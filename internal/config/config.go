// Package config provides configuration for the arkorm tool.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ormerrors "github.com/arkilian/arkorm/pkg/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Compression names how snapshots are encoded before upload.
type Compression string

const (
	CompressionSnappy Compression = "snappy"
	CompressionNone   Compression = "none"
)

// Config holds the configuration for the arkorm tool.
type Config struct {
	// DataDir is the base directory for the database and local storage
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Backup configuration
	Backup BackupConfig `json:"backup" yaml:"backup"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Models declares record types to migrate and query
	Models []ModelConfig `json:"models" yaml:"models"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	// Path is the database file; defaults to <data_dir>/arkorm.db
	Path string `json:"path" yaml:"path"`

	// BusyTimeout is how long SQLite waits on a locked file
	BusyTimeout time.Duration `json:"busy_timeout" yaml:"busy_timeout"`

	// JournalMode is the SQLite journal mode
	JournalMode string `json:"journal_mode" yaml:"journal_mode"`
}

// BackupConfig holds snapshot configuration.
type BackupConfig struct {
	// Prefix is the object key prefix snapshots are stored under
	Prefix string `json:"prefix" yaml:"prefix"`

	// Compression is snappy or none
	Compression Compression `json:"compression" yaml:"compression"`
}

// StorageConfig holds snapshot storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

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

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/arkorm",
		Database: DatabaseConfig{
			BusyTimeout: 5 * time.Second,
			JournalMode: "WAL",
		},
		Backup: BackupConfig{
			Prefix:      "snapshots",
			Compression: CompressionSnappy,
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/arkorm"
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.DataDir, "arkorm.db")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
	if c.Backup.Prefix == "" {
		c.Backup.Prefix = "snapshots"
	}
	if c.Backup.Compression == "" {
		c.Backup.Compression = CompressionSnappy
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ormerrors.NewConfigError("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return ormerrors.NewConfigError(fmt.Sprintf("invalid storage type: %s (must be local or s3)", c.Storage.Type))
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return ormerrors.NewConfigError("s3.bucket is required when storage type is s3")
	}

	switch c.Backup.Compression {
	case CompressionSnappy, CompressionNone:
	default:
		return ormerrors.NewConfigError(fmt.Sprintf("invalid backup.compression: %s (must be snappy or none)", c.Backup.Compression))
	}

	if c.Database.BusyTimeout < 0 {
		return ormerrors.NewConfigError("database.busy_timeout must not be negative")
	}

	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.Name == "" {
			return ormerrors.NewConfigError("models: every model needs a name")
		}
		if seen[m.Name] {
			return ormerrors.NewConfigError(fmt.Sprintf("models: %s declared twice", m.Name))
		}
		seen[m.Name] = true
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ARKORM_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("ARKORM_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Database configuration
	if v := os.Getenv("ARKORM_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ARKORM_DB_BUSY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Database.BusyTimeout = d
		}
	}
	if v := os.Getenv("ARKORM_DB_JOURNAL_MODE"); v != "" {
		cfg.Database.JournalMode = v
	}

	// Backup configuration
	if v := os.Getenv("ARKORM_BACKUP_PREFIX"); v != "" {
		cfg.Backup.Prefix = v
	}
	if v := os.Getenv("ARKORM_BACKUP_COMPRESSION"); v != "" {
		cfg.Backup.Compression = Compression(v)
	}

	// Storage configuration
	if v := os.Getenv("ARKORM_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("ARKORM_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("ARKORM_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("ARKORM_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("ARKORM_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, filepath.Dir(c.Database.Path)}
	if c.Storage.Type == "local" {
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

// LoadDotEnv loads KEY=value lines from a dotenv file into the process
// environment, without overriding variables that are already set. A
// missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
