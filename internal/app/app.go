package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"bt-go/internal/chunker"
	"bt-go/internal/committer"
	"bt-go/internal/compress"
	"bt-go/internal/config"
	"bt-go/internal/crypto"
	"bt-go/internal/debounce"
	"bt-go/internal/deltasync"
	"bt-go/internal/repo"
	"bt-go/internal/rpc"
	"bt-go/internal/watch"
)

// App is the application layer between the CLI and the client-side
// pipeline: it dials the agent, constructs a VersionManager bound to
// that connection, and exposes the high-level operations the CLI
// commands call directly. It manages the agent connection's lifecycle
// (and, when Watch is running, the watch/debounce/committer pipeline's)
// on Close.
type App struct {
	cfg     *config.Config
	conn    net.Conn
	client  *rpc.Client
	vm      *repo.VersionManager
	sealer  *crypto.Sealer
	log     *slog.Logger
	op      *BackupOperation
	logFile *os.File

	watcher   watch.Watcher
	debouncer *debounce.Debouncer
	committer *committer.Committer
}

// New dials the agent over its configured Unix socket and wires a fully
// constructed App. operation identifies the CLI command being run (e.g.
// "backup", "watch", "restore"); passphrase unlocks the repository's
// block encryption key, which never leaves this process — the agent
// only ever sees already-sealed records.
func New(cfg *config.Config, passphrase, operation string) (*App, error) {
	manifest, err := repo.ReadManifest(cfg.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("reading repository manifest: %w", err)
	}

	salt, err := hex.DecodeString(manifest.PBKDF2SaltHex)
	if err != nil {
		return nil, fmt.Errorf("decoding manifest salt: %w", err)
	}
	key := crypto.DeriveKey(passphrase, salt, manifest.PBKDF2Iterations)
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return nil, fmt.Errorf("creating sealer: %w", err)
	}

	conn, err := net.Dial("unix", cfg.Agent.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("dialing agent at %s: %w", cfg.Agent.SocketPath, err)
	}
	client := rpc.Dial(conn)

	sync := deltasync.New(client, sealer)
	ck := chunker.New(manifest.ChunkerParams())
	vm := repo.NewVersionManager(ck, sync, client)

	opID := fmt.Sprintf("%s-%s", operation, time.Now().UTC().Format("20060102T150405Z"))
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &App{
		cfg:     cfg,
		conn:    conn,
		client:  client,
		vm:      vm,
		sealer:  sealer,
		log:     logger,
		op:      NewBackupOperation(operation, ""),
		logFile: logFile,
	}, nil
}

// Operation reports the CLI command name this App instance was created
// for, as passed to New.
func (a *App) Operation() string { return a.op.Operation }

// BackupFile chunks, syncs, and commits a single repository-relative
// path's current content (read from rd) as a new Version.
func (a *App) BackupFile(path string, rd io.Reader) (repo.CommitResult, error) {
	return a.vm.CommitFile(path, rd)
}

// DeleteFile commits a tombstone Version for path.
func (a *App) DeleteFile(path string) (repo.CommitResult, error) {
	return a.vm.CommitDelete(path)
}

// ListFiles lists tracked files under pathPrefix.
func (a *App) ListFiles(pathPrefix string) ([]rpc.FileSummary, error) {
	return a.client.ListFiles(pathPrefix)
}

// ListVersions lists the Version history for path.
func (a *App) ListVersions(path string) ([]rpc.VersionSummary, error) {
	return a.client.ListVersions(path)
}

// Restore fetches the chunk list for versionID; the caller reassembles,
// decompresses, and writes the file — Restore itself only resolves
// which chunks to fetch, since the CLI decides the destination. path is
// the repository-relative path the version belongs to, carried along so
// the agent can reject a path escape before touching the catalog.
func (a *App) Restore(path string, versionID int64) ([]rpc.ChunkHeader, error) {
	return a.client.Restore(path, versionID)
}

// GetChunk fetches one sealed chunk record by hash, for use during
// restore reassembly.
func (a *App) GetChunk(hash string) ([]byte, error) {
	return a.client.GetChunk(hash)
}

// RestoreFile reassembles versionID's plaintext and writes it to w, in
// chunk order: fetch each sealed record, unseal it, undo the per-chunk
// compression flag, and write the recovered plaintext in sequence.
func (a *App) RestoreFile(path string, versionID int64, w io.Writer) error {
	chunks, err := a.client.Restore(path, versionID)
	if err != nil {
		return fmt.Errorf("resolving chunk plan for version %d: %w", versionID, err)
	}

	for _, c := range chunks {
		record, err := a.client.GetChunk(c.Hash)
		if err != nil {
			return fmt.Errorf("fetching chunk %s: %w", c.Hash, err)
		}

		plaintext, flag, err := a.sealer.Open(record)
		if err != nil {
			return fmt.Errorf("unsealing chunk %s: %w", c.Hash, err)
		}

		decoded, err := compress.Decode(plaintext, flag)
		if err != nil {
			return fmt.Errorf("decompressing chunk %s: %w", c.Hash, err)
		}

		if _, err := w.Write(decoded); err != nil {
			return fmt.Errorf("writing restored content: %w", err)
		}
	}

	return nil
}

// DeleteVersion removes a specific Version outright (distinct from a
// retention-driven expiry).
func (a *App) DeleteVersion(versionID int64) error {
	return a.client.DeleteVersion(versionID)
}

// Stats reports repository-wide counters.
func (a *App) Stats() (rpc.StatsResponse, error) {
	return a.client.Stats()
}

// History returns the most recent backup operations the agent has
// recorded (one CreateBackupOperation/FinishBackupOperation pair per
// commit_version or delete_version call it has serviced).
func (a *App) History(limit int) ([]rpc.OperationSummary, error) {
	return a.client.ListOperations(limit)
}

// Watch starts watching watchRoot for changes and committing them
// through the debouncer and committer pipeline until ctx is cancelled.
// watchRoot is the on-disk directory corresponding to the repository
// root; paths are reported relative to it. Watch blocks until ctx is
// done.
func (a *App) Watch(ctx context.Context, watchRoot string) error {
	if watchRoot == "" {
		watchRoot = a.cfg.RepoRoot
	}
	w, err := watch.NewFSWatcher(watchRoot)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	a.watcher = w

	a.debouncer = debounce.New(debounce.DefaultIdle, debounce.DefaultQueueSize)
	a.committer = committer.New(watchRoot, a.vm, a.log)

	if err := a.committer.Scan(ctx); err != nil && ctx.Err() == nil {
		a.log.Warn("initial scan failed", "error", err)
	}

	go a.debouncer.Run(w.Events())
	go func() {
		for err := range w.Errors() {
			a.log.Warn("watch error", "error", err)
		}
	}()

	a.committer.Run(ctx, a.debouncer.Ready())
	return nil
}

// Close shuts down the watch pipeline (if running) and the agent
// connection.
func (a *App) Close() error {
	var firstErr error

	if a.debouncer != nil {
		a.debouncer.Stop()
	}
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing watcher: %w", err)
		}
	}
	if err := a.client.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing agent connection: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
