package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTestFile writes content to relPath under dir, creating any parent
// directories as needed, and returns the absolute path written.
func WriteTestFile(t *testing.T, dir, relPath string, content []byte) string {
	t.Helper()

	full := filepath.Join(dir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("creating parent dirs for %s: %v", relPath, err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		t.Fatalf("writing %s: %v", relPath, err)
	}
	return full
}
