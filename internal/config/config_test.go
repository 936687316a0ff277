package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		HostID:   "test-host-abc",
		RepoRoot: "/home/user/.local/share/bt",
		LogDir:   "/home/user/.local/share/bt/log",
		BlockStore: BlockStoreConfig{
			Type:   "filesystem",
			FSRoot: "/backup/repo",
		},
		Catalog: CatalogConfig{Type: "sqlite", DataDir: "/home/user/.local/share/bt/catalog"},
		Agent:   AgentConfig{SocketPath: "/home/user/.local/share/bt/run/agent.sock", ReaderPoolSize: 8},
		Retention: RetentionConfig{
			MaxAgeDays: 30,
		},
		Sync: SyncConfig{ProbeBatchSize: 1024, InFlightWindow: 8},
		Filesystem: FilesystemConfig{
			Ignore: []string{"*.log", ".git"},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.HostID != original.HostID {
		t.Errorf("HostID = %q, want %q", got.HostID, original.HostID)
	}
	if got.RepoRoot != original.RepoRoot {
		t.Errorf("RepoRoot = %q, want %q", got.RepoRoot, original.RepoRoot)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.BlockStore.Type != "filesystem" {
		t.Errorf("BlockStore.Type = %q, want %q", got.BlockStore.Type, "filesystem")
	}
	if got.BlockStore.FSRoot != "/backup/repo" {
		t.Errorf("BlockStore.FSRoot = %q, want %q", got.BlockStore.FSRoot, "/backup/repo")
	}
	if got.Catalog.Type != "sqlite" {
		t.Errorf("Catalog.Type = %q, want %q", got.Catalog.Type, "sqlite")
	}
	if got.Retention.MaxAgeDays != 30 {
		t.Errorf("Retention.MaxAgeDays = %d, want %d", got.Retention.MaxAgeDays, 30)
	}
	if got.Sync.ProbeBatchSize != 1024 {
		t.Errorf("Sync.ProbeBatchSize = %d, want %d", got.Sync.ProbeBatchSize, 1024)
	}
	if len(got.Filesystem.Ignore) != 2 {
		t.Fatalf("len(Filesystem.Ignore) = %d, want 2", len(got.Filesystem.Ignore))
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("host-1", "/data/bt")

	if cfg.HostID != "host-1" {
		t.Errorf("HostID = %q, want %q", cfg.HostID, "host-1")
	}
	if cfg.RepoRoot != "/data/bt" {
		t.Errorf("RepoRoot = %q, want %q", cfg.RepoRoot, "/data/bt")
	}
	if cfg.LogDir != "/data/bt/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/bt/log")
	}
	if cfg.Agent.SocketPath != "/data/bt/run/agent.sock" {
		t.Errorf("Agent.SocketPath = %q, want %q", cfg.Agent.SocketPath, "/data/bt/run/agent.sock")
	}
	if cfg.Catalog.DataDir != "/data/bt/catalog" {
		t.Errorf("Catalog.DataDir = %q, want %q", cfg.Catalog.DataDir, "/data/bt/catalog")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bt.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bt.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bt.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Catalog = CatalogConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.HostID != "read-test" {
			t.Errorf("HostID = %q, want %q", got.HostID, "read-test")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/bt.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
