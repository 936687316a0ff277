package retention

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"bt-go/internal/blockstore"
	"bt-go/internal/catalog"
	"bt-go/internal/errs"
	"bt-go/internal/testutil"
)

func newTestGC(t *testing.T) (*GC, catalog.Catalog, *blockstore.MemoryBlockStore) {
	t.Helper()
	cat := testutil.NewTestCatalog(t)
	blocks := testutil.NewTestBlockStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cat, blocks, log), cat, blocks
}

func alwaysExists(hash string) (bool, error) { return true, nil }

func commitOneChunk(t *testing.T, cat catalog.Catalog, path, hash string, ts time.Time) int64 {
	t.Helper()
	id, err := cat.CommitVersion(catalog.CommitInput{
		Path:        path,
		Action:      "modified",
		PlainSize:   100,
		ContentHash: "deadbeef",
		Chunks: []catalog.ChunkRef{
			{Sequence: 0, ChunkHash: hash, Offset: 0, Length: 100, PlainSize: 100},
		},
		StoredSize: 100,
	}, ts, alwaysExists)
	if err != nil {
		t.Fatalf("CommitVersion() error = %v", err)
	}
	return id
}

func TestRun_ExpiresOldVersionsButKeepsLatest(t *testing.T) {
	gc, cat, blocks := newTestGC(t)
	if err := blocks.PutIfAbsent("h1", []byte("block-one")); err != nil {
		t.Fatalf("PutIfAbsent() error = %v", err)
	}
	if err := blocks.PutIfAbsent("h2", []byte("block-two")); err != nil {
		t.Fatalf("PutIfAbsent() error = %v", err)
	}

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-1 * time.Minute)
	commitOneChunk(t, cat, "a.txt", "h1", old)
	commitOneChunk(t, cat, "a.txt", "h2", recent)

	result, err := gc.Run(24*time.Hour, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.ExpiredVersions) != 1 {
		t.Fatalf("ExpiredVersions = %+v, want exactly the old version", result.ExpiredVersions)
	}

	versions, err := cat.ListVersions("a.txt")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("ListVersions() after Run = %+v, want exactly the latest version retained", versions)
	}

	if exists, _ := blocks.Exists("h1"); exists {
		t.Error("block h1 should have been unlinked once its chunk's refcount hit zero")
	}
	if exists, _ := blocks.Exists("h2"); !exists {
		t.Error("block h2 backs the retained version and must still exist")
	}
}

func TestRun_DryRunMutatesNothing(t *testing.T) {
	gc, cat, blocks := newTestGC(t)
	if err := blocks.PutIfAbsent("h1", []byte("block-one")); err != nil {
		t.Fatalf("PutIfAbsent() error = %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	commitOneChunk(t, cat, "a.txt", "h1", old)
	commitOneChunk(t, cat, "a.txt", "h2-unused", time.Now())

	result, err := gc.Run(24*time.Hour, true)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.ExpiredVersions) != 1 {
		t.Fatalf("ExpiredVersions (dry run) = %+v, want the old version reported", result.ExpiredVersions)
	}

	versions, err := cat.ListVersions("a.txt")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("ListVersions() after dry-run Run = %+v, want both versions untouched", versions)
	}
	if exists, _ := blocks.Exists("h1"); !exists {
		t.Error("dry run must not unlink any block")
	}
}

func TestRun_NothingToExpireIsNotAnError(t *testing.T) {
	gc, cat, _ := newTestGC(t)
	commitOneChunk(t, cat, "a.txt", "h1", time.Now())

	result, err := gc.Run(24*time.Hour, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.ExpiredVersions) != 0 || len(result.SweptChunks) != 0 {
		t.Fatalf("Run() = %+v, want nothing expired or swept", result)
	}
}

func TestAudit_CleanRepositoryReportsNothing(t *testing.T) {
	gc, cat, blocks := newTestGC(t)
	if err := blocks.PutIfAbsent("h1", []byte("block-one")); err != nil {
		t.Fatalf("PutIfAbsent() error = %v", err)
	}
	commitOneChunk(t, cat, "a.txt", "h1", time.Now())

	report, err := gc.Audit()
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(report.OrphanBlocks) != 0 || len(report.IntegrityViolations) != 0 {
		t.Fatalf("Audit() = %+v, want a clean report", report)
	}
}

func TestAudit_FindsOrphanBlock(t *testing.T) {
	gc, cat, blocks := newTestGC(t)
	if err := blocks.PutIfAbsent("h1", []byte("block-one")); err != nil {
		t.Fatalf("PutIfAbsent() error = %v", err)
	}
	if err := blocks.PutIfAbsent("orphan", []byte("nobody references this")); err != nil {
		t.Fatalf("PutIfAbsent() error = %v", err)
	}
	commitOneChunk(t, cat, "a.txt", "h1", time.Now())

	report, err := gc.Audit()
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(report.OrphanBlocks) != 1 || report.OrphanBlocks[0] != "orphan" {
		t.Fatalf("OrphanBlocks = %v, want [orphan]", report.OrphanBlocks)
	}
	if len(report.IntegrityViolations) != 0 {
		t.Fatalf("IntegrityViolations = %v, want none", report.IntegrityViolations)
	}
}

func TestAudit_FindsIntegrityViolationForMissingBlock(t *testing.T) {
	gc, cat, blocks := newTestGC(t)
	// Commit referencing a chunk, then delete its block directly out from
	// under the catalog to simulate corruption.
	if err := blocks.PutIfAbsent("h1", []byte("block-one")); err != nil {
		t.Fatalf("PutIfAbsent() error = %v", err)
	}
	commitOneChunk(t, cat, "a.txt", "h1", time.Now())
	if err := blocks.Unlink("h1"); err != nil {
		t.Fatalf("Unlink() error = %v", err)
	}

	report, err := gc.Audit()
	if !errors.Is(err, errs.ErrIntegrityViolation) {
		t.Fatalf("Audit() error = %v, want errs.ErrIntegrityViolation", err)
	}
	if len(report.IntegrityViolations) != 1 || report.IntegrityViolations[0] != "h1" {
		t.Fatalf("IntegrityViolations = %v, want [h1]", report.IntegrityViolations)
	}
}
