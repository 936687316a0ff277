package repo

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"bt-go/internal/chunker"
	"bt-go/internal/compress"
	"bt-go/internal/deltasync"
	"bt-go/internal/errs"
	"bt-go/internal/rpc"
)

// maxCommitRetries bounds how many times a version commit is retried on
// a timestamp collision before giving up (§7: "CatalogConflict ... is
// retried with a regenerated timestamp up to three times").
const maxCommitRetries = 3

// VersionManager orchestrates a version commit (§4.7): chunk the file,
// delta-sync the chunk list against the agent, then commit the version
// with timestamp-collision retry.
type VersionManager struct {
	chunker *chunker.Chunker
	sync    *deltasync.Engine
	client  CommitClient
}

// CommitClient is the subset of *rpc.Client a commit needs. The agent
// assigns the commit timestamp itself, so a collision retry is just
// another call — the client never generates or passes a timestamp.
type CommitClient interface {
	CommitVersion(req rpc.CommitVersionRequest) (int64, error)
}

// NewVersionManager builds a VersionManager from a repository's chunker
// parameters, a delta-sync engine bound to the same connection, and a
// commit client.
func NewVersionManager(ck *chunker.Chunker, sync *deltasync.Engine, client CommitClient) *VersionManager {
	return &VersionManager{chunker: ck, sync: sync, client: client}
}

// CommitResult is what a successful commit produced.
type CommitResult struct {
	VersionID int64
}

// CommitFile backs up one file's current content: chunk it, sync missing
// chunks to the agent, and commit the version. path must already be
// repository-relative; the caller sandboxes it.
func (vm *VersionManager) CommitFile(path string, rd io.Reader) (CommitResult, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rd); err != nil {
		return CommitResult{}, fmt.Errorf("reading %s: %w", path, err)
	}
	plaintext := buf.Bytes()

	chunks, err := vm.chunker.Split(bytes.NewReader(plaintext))
	if err != nil {
		return CommitResult{}, fmt.Errorf("chunking %s: %w", path, err)
	}

	contentHash := sha256.Sum256(plaintext)

	result, err := vm.sync.Sync(chunks, compress.LooksCompressible(path))
	if err != nil {
		return CommitResult{}, fmt.Errorf("syncing chunks for %s: %w", path, err)
	}

	return vm.commitWithRetry(path, "modified", int64(len(plaintext)), hex.EncodeToString(contentHash[:]), result)
}

// CommitDelete writes a tombstone Version for path: no chunks, no
// content hash (I5).
func (vm *VersionManager) CommitDelete(path string) (CommitResult, error) {
	return vm.commitWithRetry(path, "deleted", 0, "", deltasync.Result{})
}

func (vm *VersionManager) commitWithRetry(path, action string, plainSize int64, contentHash string, result deltasync.Result) (CommitResult, error) {
	var lastErr error

	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		req := rpc.CommitVersionRequest{
			Path:         path,
			Action:       action,
			PlainSize:    plainSize,
			StoredSize:   result.StoredSize,
			IsCompressed: result.AnyCompressed,
			ContentHash:  contentHash,
			Chunks:       result.Chunks,
		}

		versionID, err := vm.client.CommitVersion(req)
		if err == nil {
			return CommitResult{VersionID: versionID}, nil
		}

		lastErr = err
		if !errors.Is(err, errs.ErrCatalogConflict) {
			return CommitResult{}, fmt.Errorf("committing version for %s: %w", path, err)
		}
		// A collision means another commit landed on the same
		// (path, timestamp) instant; the agent assigns a fresh timestamp
		// on every call, so simply retrying is sufficient.
	}

	return CommitResult{}, fmt.Errorf("committing version for %s after %d attempts: %w", path, maxCommitRetries, lastErr)
}
