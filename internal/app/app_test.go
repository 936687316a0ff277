package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bt-go/internal/agent"
	"bt-go/internal/deltasync"
	"bt-go/internal/repo"
	"bt-go/internal/rpc"
	"bt-go/internal/testutil"
)

// newTestApp wires an App to a real in-process agent.Agent over a real
// Unix socket, the same way New dials it in production, bypassing only
// the on-disk manifest read so the client pipeline
// (BackupFile/RestoreFile/ListFiles/...) can be exercised without a
// real filesystem repository.
func newTestApp(t *testing.T) *App {
	t.Helper()

	cat := testutil.NewTestCatalog(t)
	blocks := testutil.NewTestBlockStore()
	sealer := testutil.NewTestSealer()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := agent.New(cat, blocks, sealer, log)
	sockPath := filepath.Join(t.TempDir(), "agent.sock")
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	go a.Serve(listener)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	client := rpc.Dial(conn)
	t.Cleanup(func() { client.Close() })

	sync := deltasync.New(client, sealer)
	ck := testutil.NewTestChunker()
	vm := repo.NewVersionManager(ck, sync, client)

	return &App{
		client: client,
		vm:     vm,
		sealer: sealer,
		log:    log,
		op:     NewBackupOperation("test", ""),
	}
}

func TestApp_BackupFileThenListFiles(t *testing.T) {
	a := newTestApp(t)

	result, err := a.BackupFile("docs/a.txt", strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("BackupFile() error = %v", err)
	}
	if result.VersionID == 0 {
		t.Fatal("BackupFile() returned a zero VersionID")
	}

	files, err := a.ListFiles("docs/")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if len(files) != 1 || files[0].Path != "docs/a.txt" {
		t.Fatalf("ListFiles() = %+v, want exactly docs/a.txt", files)
	}
}

func TestApp_BackupFileThenRestoreFileRoundTrips(t *testing.T) {
	a := newTestApp(t)
	content := "the quick brown fox jumps over the lazy dog, repeated a few times for good measure"

	result, err := a.BackupFile("f.txt", strings.NewReader(content))
	if err != nil {
		t.Fatalf("BackupFile() error = %v", err)
	}

	var out bytes.Buffer
	if err := a.RestoreFile("f.txt", result.VersionID, &out); err != nil {
		t.Fatalf("RestoreFile() error = %v", err)
	}
	if out.String() != content {
		t.Fatalf("RestoreFile() = %q, want %q", out.String(), content)
	}
}

func TestApp_DeleteFileThenListVersions(t *testing.T) {
	a := newTestApp(t)

	if _, err := a.BackupFile("f.txt", strings.NewReader("v1")); err != nil {
		t.Fatalf("BackupFile() error = %v", err)
	}
	if _, err := a.DeleteFile("f.txt"); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}

	versions, err := a.ListVersions("f.txt")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("ListVersions() = %+v, want one modified + one deleted version", versions)
	}
}

func TestApp_DeleteVersionRemovesIt(t *testing.T) {
	a := newTestApp(t)

	result, err := a.BackupFile("f.txt", strings.NewReader("v1"))
	if err != nil {
		t.Fatalf("BackupFile() error = %v", err)
	}
	if err := a.DeleteVersion(result.VersionID); err != nil {
		t.Fatalf("DeleteVersion() error = %v", err)
	}

	versions, err := a.ListVersions("f.txt")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("ListVersions() after DeleteVersion = %+v, want none", versions)
	}
}

func TestApp_StatsReflectsOneCommit(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.BackupFile("f.txt", strings.NewReader("content")); err != nil {
		t.Fatalf("BackupFile() error = %v", err)
	}

	stats, err := a.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1", stats.FileCount)
	}
}

func TestApp_HistoryRecordsOperation(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.BackupFile("f.txt", strings.NewReader("content")); err != nil {
		t.Fatalf("BackupFile() error = %v", err)
	}

	ops, err := a.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("History() = %+v, want a single recorded operation", ops)
	}
}

func TestApp_OperationReportsLabel(t *testing.T) {
	a := newTestApp(t)
	if a.Operation() != "test" {
		t.Errorf("Operation() = %q, want %q", a.Operation(), "test")
	}
}

func TestApp_WatchCommitsBaselineThenStopsOnCancel(t *testing.T) {
	a := newTestApp(t)
	root := t.TempDir()
	testutil.WriteTestFile(t, root, "a.txt", []byte("hello"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx, root) }()

	// Give the initial Scan a moment to commit the baseline file before
	// tearing the pipeline down.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after context cancellation")
	}

	files, err := a.ListFiles("")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if len(files) != 1 || files[0].Path != "a.txt" {
		t.Fatalf("ListFiles() after Watch = %+v, want the baseline-scanned a.txt", files)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
