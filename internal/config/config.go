package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level on-disk configuration for both the client CLI
// and the agent daemon (§6 "operator surface"). A single file serves
// both processes since they always refer to the same repository root.
type Config struct {
	HostID    string          `toml:"host_id"`
	RepoRoot  string          `toml:"repo_root"`
	LogDir    string          `toml:"log_dir"`
	SocketDir string          `toml:"socket_dir"`
	Agent     AgentConfig     `toml:"agent"`
	BlockStore BlockStoreConfig `toml:"block_store"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Retention RetentionConfig `toml:"retention"`
	Sync      SyncConfig      `toml:"sync"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// AgentConfig controls the long-lived RPC agent (§4.8).
type AgentConfig struct {
	SocketPath     string `toml:"socket_path"`
	ReaderPoolSize int    `toml:"reader_pool_size"`
}

// BlockStoreConfig selects and configures the block store backend
// (§4.4). This uses a tagged union pattern - the Type field determines
// which other fields are relevant.
type BlockStoreConfig struct {
	Type string `toml:"type"` // "filesystem" or "s3"

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
}

// CatalogConfig controls the metadata catalog (§4.5).
type CatalogConfig struct {
	Type    string `toml:"type"`               // "sqlite" (also used when empty); a DataDir of ":memory:" gives an in-memory catalog
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// RetentionConfig controls GC defaults (§4.9); a `gc` invocation may
// still override these per-run.
type RetentionConfig struct {
	MaxAgeDays int `toml:"max_age_days"` // default retention window before a non-latest Version becomes eligible for expiry
}

// SyncConfig controls the delta-sync engine's batching/pipelining knobs
// (§4.6); zero values fall back to the package defaults.
type SyncConfig struct {
	ProbeBatchSize  int `toml:"probe_batch_size"`
	InFlightWindow  int `toml:"in_flight_window"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a new Config with the provided values and default
// derived paths.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:    hostID,
		RepoRoot:  baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		SocketDir: filepath.Join(baseDir, "run"),
		Agent: AgentConfig{
			SocketPath:     filepath.Join(baseDir, "run", "agent.sock"),
			ReaderPoolSize: 8,
		},
		BlockStore: BlockStoreConfig{
			Type:   "filesystem",
			FSRoot: baseDir,
		},
		Catalog: CatalogConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "catalog"),
		},
		Retention: RetentionConfig{
			MaxAgeDays: 30,
		},
		Sync: SyncConfig{
			ProbeBatchSize: 1024,
			InFlightWindow: 8,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
