package agent

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"

	"bt-go/internal/errs"
	"bt-go/internal/rpc"
	"bt-go/internal/testutil"
)

func TestAgent_PutThenGetChunkRoundTrip(t *testing.T) {
	cat := testutil.NewTestCatalog(t)
	blocks := testutil.NewTestBlockStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(cat, blocks, nil, log)

	serverConn, clientConn := net.Pipe()
	go a.handleConn(serverConn)
	client := rpc.Dial(clientConn)
	defer client.Close()

	if err := client.PutChunk("hash1", []byte("sealed record")); err != nil {
		t.Fatalf("PutChunk() error = %v", err)
	}

	got, err := client.GetChunk("hash1")
	if err != nil {
		t.Fatalf("GetChunk() error = %v", err)
	}
	if string(got) != "sealed record" {
		t.Errorf("GetChunk() = %q, want %q", got, "sealed record")
	}
}

func TestAgent_ProbeReportsOnlyPresentHashes(t *testing.T) {
	cat := testutil.NewTestCatalog(t)
	blocks := testutil.NewTestBlockStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(cat, blocks, nil, log)

	serverConn, clientConn := net.Pipe()
	go a.handleConn(serverConn)
	client := rpc.Dial(clientConn)
	defer client.Close()

	if err := client.PutChunk("present1", []byte("x")); err != nil {
		t.Fatalf("PutChunk() error = %v", err)
	}

	present, err := client.Probe([]string{"present1", "absent1"})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if len(present) != 1 || present[0] != "present1" {
		t.Fatalf("Probe() = %v, want [present1]", present)
	}
}

func TestAgent_CommitVersionThenRestore(t *testing.T) {
	cat := testutil.NewTestCatalog(t)
	blocks := testutil.NewTestBlockStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(cat, blocks, nil, log)

	serverConn, clientConn := net.Pipe()
	go a.handleConn(serverConn)
	client := rpc.Dial(clientConn)
	defer client.Close()

	if err := client.PutChunk("chash", []byte("sealed")); err != nil {
		t.Fatalf("PutChunk() error = %v", err)
	}

	versionID, err := client.CommitVersion(rpc.CommitVersionRequest{
		Path:        "doc.txt",
		Action:      "created",
		PlainSize:   4,
		StoredSize:  4,
		ContentHash: "deadbeef",
		Chunks:      []rpc.ChunkHeader{{Sequence: 0, Hash: "chash", Offset: 0, Length: 4}},
	})
	if err != nil {
		t.Fatalf("CommitVersion() error = %v", err)
	}
	if versionID == 0 {
		t.Fatalf("CommitVersion() returned zero version id")
	}

	chunks, err := client.Restore("doc.txt", versionID)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].Hash != "chash" {
		t.Fatalf("Restore() = %+v, want one chunk chash", chunks)
	}

	files, err := client.ListFiles("")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if len(files) != 1 || files[0].Path != "doc.txt" {
		t.Fatalf("ListFiles() = %+v, want doc.txt", files)
	}

	versions, err := client.ListVersions("doc.txt")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 1 || versions[0].VersionID != versionID {
		t.Fatalf("ListVersions() = %+v, want one version %d", versions, versionID)
	}

	stats, err := client.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.FileCount != 1 || stats.ChunkCount != 1 {
		t.Fatalf("Stats() = %+v, want 1 file, 1 chunk", stats)
	}

	ops, err := client.ListOperations(10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != "commit_version" || ops[0].Status != "success" {
		t.Fatalf("ListOperations() = %+v, want one successful commit_version", ops)
	}
}

func TestAgent_CommitVersionRejectsPathEscape(t *testing.T) {
	cat := testutil.NewTestCatalog(t)
	blocks := testutil.NewTestBlockStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(cat, blocks, nil, log)

	serverConn, clientConn := net.Pipe()
	go a.handleConn(serverConn)
	client := rpc.Dial(clientConn)
	defer client.Close()

	_, err := client.CommitVersion(rpc.CommitVersionRequest{
		Path:        "../escape.txt",
		Action:      "created",
		PlainSize:   1,
		ContentHash: "h",
	})
	if err == nil {
		t.Fatal("CommitVersion() with escaping path did not error")
	}
}

func TestAgent_RestoreRejectsPathEscape(t *testing.T) {
	cat := testutil.NewTestCatalog(t)
	blocks := testutil.NewTestBlockStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(cat, blocks, nil, log)

	serverConn, clientConn := net.Pipe()
	go a.handleConn(serverConn)
	client := rpc.Dial(clientConn)
	defer client.Close()

	_, err := client.Restore("../../etc/passwd", 1)
	if err == nil {
		t.Fatal("Restore() with escaping path did not error")
	}
	if !errors.Is(err, errs.ErrPathEscape) {
		t.Fatalf("Restore() error = %v, want errs.ErrPathEscape", err)
	}
}

func TestAgent_GetChunkMissingReturnsError(t *testing.T) {
	cat := testutil.NewTestCatalog(t)
	blocks := testutil.NewTestBlockStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(cat, blocks, nil, log)

	serverConn, clientConn := net.Pipe()
	go a.handleConn(serverConn)
	client := rpc.Dial(clientConn)
	defer client.Close()

	if _, err := client.GetChunk("missing"); err == nil {
		t.Fatal("GetChunk() on missing hash did not error")
	}
}

func TestAgent_DeleteVersion(t *testing.T) {
	cat := testutil.NewTestCatalog(t)
	blocks := testutil.NewTestBlockStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(cat, blocks, nil, log)

	serverConn, clientConn := net.Pipe()
	go a.handleConn(serverConn)
	client := rpc.Dial(clientConn)
	defer client.Close()

	if err := client.PutChunk("c1", []byte("x")); err != nil {
		t.Fatalf("PutChunk() error = %v", err)
	}
	versionID, err := client.CommitVersion(rpc.CommitVersionRequest{
		Path: "f.txt", Action: "created", PlainSize: 1, StoredSize: 1, ContentHash: "h",
		Chunks: []rpc.ChunkHeader{{Sequence: 0, Hash: "c1", Offset: 0, Length: 1}},
	})
	if err != nil {
		t.Fatalf("CommitVersion() error = %v", err)
	}

	if err := client.DeleteVersion(versionID); err != nil {
		t.Fatalf("DeleteVersion() error = %v", err)
	}

	versions, err := client.ListVersions("f.txt")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("ListVersions() after delete = %+v, want empty", versions)
	}
}

func TestErrorKind_MapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{errs.ErrPathEscape, "PathEscape"},
		{errs.ErrNotFound, "NotFound"},
		{errs.ErrMissingBlock, "MissingBlock"},
		{errors.New("unmapped"), "Unknown"},
	}
	for _, c := range cases {
		if got := errorKind(c.err); got != c.want {
			t.Errorf("errorKind(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
