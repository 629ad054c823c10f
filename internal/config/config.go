// Package config provides unified configuration for the SureChEMBL client.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// Config holds the full client configuration.
type Config struct {
	// WorkDir is the base directory for scratch downloads and state files.
	WorkDir string `json:"work_dir" yaml:"work_dir"`

	// BacklogPath is the backlog file for missed front-file partitions.
	// Defaults to <work_dir>/schembl_backlog.txt.
	BacklogPath string `json:"backlog_path" yaml:"backlog_path"`

	// Remote configures the feed transport.
	Remote RemoteConfig `json:"remote" yaml:"remote"`

	// DB configures the destination store.
	DB DBConfig `json:"db" yaml:"db"`

	// Ingest configures run behavior.
	Ingest IngestConfig `json:"ingest" yaml:"ingest"`
}

// RemoteConfig holds feed transport configuration.
type RemoteConfig struct {
	// Type is the transport backend: ftp, s3
	Type string `json:"type" yaml:"type"`

	// Addr is the FTP server address (for ftp type).
	Addr string `json:"addr" yaml:"addr"`

	// User and Password are the FTP credentials (for ftp type).
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`

	// Timeout bounds FTP dial and control operations.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// FrontfileDir is the feed root for daily partitions.
	FrontfileDir string `json:"frontfile_dir" yaml:"frontfile_dir"`

	// BackfileDir is the feed root for yearly archive partitions.
	BackfileDir string `json:"backfile_dir" yaml:"backfile_dir"`

	// S3 configuration (for s3 type).
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds configuration for a mirrored feed in object storage.
type S3Config struct {
	// Bucket is the bucket holding the mirrored feed tree.
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region.
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage).
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DBConfig holds destination store configuration.
type DBConfig struct {
	// Driver selects the dialect: postgres, sqlite
	Driver string `json:"driver" yaml:"driver"`

	// Postgres connection parameters.
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Name     string `json:"name" yaml:"name"`

	// Schema optionally routes Postgres writes via search_path.
	Schema string `json:"schema" yaml:"schema"`

	// Path is the database file (for sqlite driver).
	// Defaults to <work_dir>/surechembl.db.
	Path string `json:"path" yaml:"path"`

	// Table is the destination table name.
	Table string `json:"table" yaml:"table"`
}

// IngestConfig holds run behavior configuration.
type IngestConfig struct {
	// Workers is the number of parallel back-file fetches. 1 keeps fetching
	// strictly sequential over a single connection.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		WorkDir: "./data/surechembl",
		Remote: RemoteConfig{
			Type:         "ftp",
			Addr:         "ftp-private.ebi.ac.uk",
			Timeout:      30 * time.Second,
			FrontfileDir: "data/external/frontfile",
			BackfileDir:  "data/external/backfile",
		},
		DB: DBConfig{
			Driver: "postgres",
			Host:   "localhost",
			Port:   5432,
			Table:  "schembl_chemical_structure",
		},
		Ingest: IngestConfig{
			Workers: 1,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on WorkDir.
func (c *Config) Resolve() {
	if c.WorkDir == "" {
		c.WorkDir = "./data/surechembl"
	}
	if c.BacklogPath == "" {
		c.BacklogPath = filepath.Join(c.WorkDir, "schembl_backlog.txt")
	}
	if c.DB.Path == "" {
		c.DB.Path = filepath.Join(c.WorkDir, "surechembl.db")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Remote.Type {
	case "ftp":
		if c.Remote.Addr == "" {
			return fmt.Errorf("%w: remote.addr is required for ftp", types.ErrConfiguration)
		}
	case "s3":
		if c.Remote.S3.Bucket == "" {
			return fmt.Errorf("%w: s3.bucket is required when remote type is s3", types.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: invalid remote type: %s (must be ftp or s3)", types.ErrConfiguration, c.Remote.Type)
	}

	switch c.DB.Driver {
	case "postgres":
		if c.DB.Host == "" || c.DB.Name == "" {
			return fmt.Errorf("%w: db.host and db.name are required for postgres", types.ErrConfiguration)
		}
	case "sqlite":
		// Path is defaulted by Resolve.
	default:
		return fmt.Errorf("%w: invalid db driver: %s (must be postgres or sqlite)", types.ErrConfiguration, c.DB.Driver)
	}

	if c.DB.Table == "" {
		return fmt.Errorf("%w: db.table is required", types.ErrConfiguration)
	}
	if c.Remote.FrontfileDir == "" || c.Remote.BackfileDir == "" {
		return fmt.Errorf("%w: remote.frontfile_dir and remote.backfile_dir are required", types.ErrConfiguration)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("%w: ingest.workers must be at least 1, got %d", types.ErrConfiguration, c.Ingest.Workers)
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
// Environment variables use the SCHEMBL_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SCHEMBL_WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("SCHEMBL_BACKLOG_PATH"); v != "" {
		cfg.BacklogPath = v
	}

	// Remote configuration
	if v := os.Getenv("SCHEMBL_REMOTE_TYPE"); v != "" {
		cfg.Remote.Type = v
	}
	if v := os.Getenv("SCHEMBL_FTP_ADDR"); v != "" {
		cfg.Remote.Addr = v
	}
	if v := os.Getenv("SCHEMBL_FTP_USER"); v != "" {
		cfg.Remote.User = v
	}
	if v := os.Getenv("SCHEMBL_FTP_PASSWORD"); v != "" {
		cfg.Remote.Password = v
	}
	if v := os.Getenv("SCHEMBL_S3_BUCKET"); v != "" {
		cfg.Remote.S3.Bucket = v
	}
	if v := os.Getenv("SCHEMBL_S3_REGION"); v != "" {
		cfg.Remote.S3.Region = v
	}
	if v := os.Getenv("SCHEMBL_S3_ENDPOINT"); v != "" {
		cfg.Remote.S3.Endpoint = v
	}

	// Destination configuration
	if v := os.Getenv("SCHEMBL_DB_DRIVER"); v != "" {
		cfg.DB.Driver = v
	}
	if v := os.Getenv("SCHEMBL_DB_HOST"); v != "" {
		cfg.DB.Host = v
	}
	if v := os.Getenv("SCHEMBL_DB_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.DB.Port)
	}
	if v := os.Getenv("SCHEMBL_DB_USER"); v != "" {
		cfg.DB.User = v
	}
	if v := os.Getenv("SCHEMBL_DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}
	if v := os.Getenv("SCHEMBL_DB_NAME"); v != "" {
		cfg.DB.Name = v
	}
	if v := os.Getenv("SCHEMBL_DB_SCHEMA"); v != "" {
		cfg.DB.Schema = v
	}
	if v := os.Getenv("SCHEMBL_DB_PATH"); v != "" {
		cfg.DB.Path = v
	}

	// Ingest configuration
	if v := os.Getenv("SCHEMBL_INGEST_WORKERS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Ingest.Workers)
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.WorkDir,
		filepath.Dir(c.BacklogPath),
	}
	if c.DB.Driver == "sqlite" {
		dirs = append(dirs, filepath.Dir(c.DB.Path))
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
