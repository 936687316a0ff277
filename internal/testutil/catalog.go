package testutil

import (
	"testing"

	"bt-go/internal/catalog"
)

// NewTestCatalog creates a fresh in-memory SQLite catalog with migrations
// applied. The catalog is automatically closed when the test completes.
func NewTestCatalog(t *testing.T) catalog.Catalog {
	t.Helper()

	c, err := catalog.NewSQLiteCatalog(":memory:")
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}

	t.Cleanup(func() {
		c.Close()
	})

	return c
}
