package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bt-go/internal/catalog/migrations"
	"bt-go/internal/catalog/sqlc"
	"bt-go/internal/errs"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCatalog implements Catalog using SQLite via database/sql.
type SQLiteCatalog struct {
	db      *sql.DB
	queries *sqlc.Queries
	path    string
}

// NewSQLiteCatalog opens (creating if absent) a SQLite catalog at path.
// path may be ":memory:" for an ephemeral catalog (tests, or a
// `catalog.data_dir = ":memory:"` config).
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog schema: %w", err)
	}
	return NewSQLiteCatalogFromDB(db, path), nil
}

// NewSQLiteCatalogFromDB wraps an already-open, already-configured connection.
func NewSQLiteCatalogFromDB(db *sql.DB, path string) *SQLiteCatalog {
	return &SQLiteCatalog{db: db, queries: sqlc.New(db), path: path}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the catalog requires. Exported for tools/tests that need a correctly
// configured connection without the Catalog wrapper.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	return db, nil
}

func (c *SQLiteCatalog) CommitVersion(in CommitInput, timestamp time.Time, blockExists func(hash string) (bool, error)) (int64, error) {
	ctx := context.Background()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := c.queries.WithTx(tx)

	// 1. Resolve or create the File row (a tombstoned path is revived by a
	// non-delete commit simply by inserting a new non-deleted Version;
	// last_action is updated in step 4 regardless).
	if _, err := qtx.GetFileByPath(ctx, in.Path); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("finding file: %w", err)
		}
		if err := qtx.InsertFile(ctx, sqlc.InsertFileParams{
			Path:        in.Path,
			FirstSeenAt: timestamp,
			LastAction:  in.Action,
			CurrentSize: in.PlainSize,
		}); err != nil {
			return 0, fmt.Errorf("creating file: %w", err)
		}
	}

	// 2. Insert Version row; (path, timestamp) uniqueness is enforced by
	// idx_versions_path_timestamp. The caller regenerates the timestamp and
	// retries on conflict (I3, §7 CatalogConflict policy).
	var contentHash sql.NullString
	if in.ContentHash != "" {
		contentHash = sql.NullString{String: in.ContentHash, Valid: true}
	}

	version, err := qtx.InsertVersion(ctx, sqlc.InsertVersionParams{
		Path:         in.Path,
		Timestamp:    timestamp,
		Action:       in.Action,
		PlainSize:    in.PlainSize,
		StoredSize:   in.StoredSize,
		IsCompressed: in.IsCompressed,
		ContentHash:  contentHash,
	})
	if err != nil {
		if isUniqueConstraintErr(err) {
			return 0, fmt.Errorf("version at %s: %w", timestamp, errs.ErrCatalogConflict)
		}
		return 0, fmt.Errorf("inserting version: %w", err)
	}

	// 3. For each chunk: verify the block exists, upsert the Chunk row,
	// insert the VersionChunk edge, bump refcount. Skipped entirely for
	// tombstone commits (I5).
	if in.Action != "deleted" {
		for _, ref := range in.Chunks {
			if _, err := qtx.GetChunkByHash(ctx, ref.ChunkHash); err != nil {
				if !errors.Is(err, sql.ErrNoRows) {
					return 0, fmt.Errorf("finding chunk %s: %w", ref.ChunkHash, err)
				}

				exists, err := blockExists(ref.ChunkHash)
				if err != nil {
					return 0, fmt.Errorf("checking block store for %s: %w", ref.ChunkHash, err)
				}
				if !exists {
					return 0, fmt.Errorf("chunk %s: %w", ref.ChunkHash, errs.ErrMissingBlock)
				}

				if err := qtx.InsertChunk(ctx, sqlc.InsertChunkParams{
					ChunkHash:  ref.ChunkHash,
					PlainSize:  ref.PlainSize,
					StoredSize: ref.Length,
					CreatedAt:  timestamp,
				}); err != nil {
					return 0, fmt.Errorf("creating chunk %s: %w", ref.ChunkHash, err)
				}
			}

			if err := qtx.InsertVersionChunk(ctx, sqlc.InsertVersionChunkParams{
				VersionID: version.ID,
				Sequence:  ref.Sequence,
				ChunkHash: ref.ChunkHash,
				Offset:    ref.Offset,
				Length:    ref.Length,
			}); err != nil {
				return 0, fmt.Errorf("linking chunk %s: %w", ref.ChunkHash, err)
			}

			if err := qtx.IncrementChunkRefcount(ctx, ref.ChunkHash); err != nil {
				return 0, fmt.Errorf("incrementing refcount for %s: %w", ref.ChunkHash, err)
			}
		}
	}

	// 4. Update the File's last_action and current_size.
	if err := qtx.UpdateFileState(ctx, sqlc.UpdateFileStateParams{
		LastAction:  in.Action,
		CurrentSize: in.PlainSize,
		Path:        in.Path,
	}); err != nil {
		return 0, fmt.Errorf("updating file state: %w", err)
	}

	// 5. Commit.
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	return version.ID, nil
}

func (c *SQLiteCatalog) DeleteVersion(versionID int64) error {
	ctx := context.Background()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := c.queries.WithTx(tx)

	chunks, err := qtx.ListVersionChunksByVersion(ctx, versionID)
	if err != nil {
		return fmt.Errorf("listing version chunks: %w", err)
	}

	if err := qtx.DeleteVersionChunksByVersion(ctx, versionID); err != nil {
		return fmt.Errorf("deleting version chunks: %w", err)
	}

	for _, vc := range chunks {
		if err := qtx.DecrementChunkRefcount(ctx, vc.ChunkHash); err != nil {
			return fmt.Errorf("decrementing refcount for %s: %w", vc.ChunkHash, err)
		}
	}

	if err := qtx.DeleteVersion(ctx, versionID); err != nil {
		return fmt.Errorf("deleting version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) ListFiles(prefix string) ([]sqlc.File, error) {
	ctx := context.Background()
	if prefix == "" {
		files, err := c.queries.ListAllFiles(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing files: %w", err)
		}
		return files, nil
	}
	files, err := c.queries.ListFilesByPathPrefix(ctx, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("listing files by prefix: %w", err)
	}
	return files, nil
}

func (c *SQLiteCatalog) ListVersions(path string) ([]sqlc.Version, error) {
	versions, err := c.queries.ListVersionsByPath(context.Background(), path)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	return versions, nil
}

func (c *SQLiteCatalog) GetVersion(versionID int64) (sqlc.Version, error) {
	v, err := c.queries.GetVersionByID(context.Background(), versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sqlc.Version{}, fmt.Errorf("version %d: %w", versionID, errs.ErrNotFound)
		}
		return sqlc.Version{}, fmt.Errorf("getting version: %w", err)
	}
	return v, nil
}

func (c *SQLiteCatalog) GetVersionChunks(versionID int64) ([]sqlc.VersionChunk, error) {
	chunks, err := c.queries.ListVersionChunksByVersion(context.Background(), versionID)
	if err != nil {
		return nil, fmt.Errorf("listing version chunks: %w", err)
	}
	return chunks, nil
}

// ExpireVersions implements §4.9 Phase A: group by path, always keep the
// single latest Version regardless of age, delete every other Version
// older than cutoff in its own transaction.
func (c *SQLiteCatalog) ExpireVersions(cutoff time.Time, dryRun bool) ([]VersionExpiry, error) {
	ctx := context.Background()

	candidates, err := c.queries.ListVersionsOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing expired versions: %w", err)
	}

	latestByPath := make(map[string]int64)
	for _, v := range candidates {
		latest, err := c.queries.GetLatestVersionByPath(ctx, v.Path)
		if err != nil {
			return nil, fmt.Errorf("finding latest version for %s: %w", v.Path, err)
		}
		latestByPath[v.Path] = latest.ID
	}

	var expired []VersionExpiry
	for _, v := range candidates {
		if v.ID == latestByPath[v.Path] {
			continue // latest-always-retained rule
		}

		chunks, err := c.queries.ListVersionChunksByVersion(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("listing chunks for version %d: %w", v.ID, err)
		}
		hashes := make([]string, len(chunks))
		for i, vc := range chunks {
			hashes[i] = vc.ChunkHash
		}

		if !dryRun {
			if err := c.DeleteVersion(v.ID); err != nil {
				return nil, fmt.Errorf("expiring version %d: %w", v.ID, err)
			}
		}

		expired = append(expired, VersionExpiry{Version: v, ChunkHashes: hashes})
	}

	return expired, nil
}

// SweepChunks implements the catalog half of §4.9 Phase B. The caller is
// responsible for unlinking each returned chunk's backing block after its
// row has been deleted — SweepOneChunk does one row at a time so that
// ordering is preserved end to end (row before file).
func (c *SQLiteCatalog) SweepChunks(dryRun bool) ([]ChunkSweep, error) {
	ctx := context.Background()

	zero, err := c.queries.ListZeroRefcountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing zero-refcount chunks: %w", err)
	}

	sweeps := make([]ChunkSweep, len(zero))
	for i, chunk := range zero {
		sweeps[i] = ChunkSweep{ChunkHash: chunk.ChunkHash, StoredSize: chunk.StoredSize}
		if !dryRun {
			if err := c.SweepOneChunk(chunk.ChunkHash); err != nil {
				return nil, err
			}
		}
	}
	return sweeps, nil
}

func (c *SQLiteCatalog) SweepOneChunk(chunkHash string) error {
	if err := c.queries.DeleteChunk(context.Background(), chunkHash); err != nil {
		return fmt.Errorf("deleting chunk %s: %w", chunkHash, err)
	}
	return nil
}

func (c *SQLiteCatalog) IterChunkHashes() ([]string, error) {
	ctx := context.Background()
	rows, err := c.db.QueryContext(ctx, "SELECT chunk_hash FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("listing chunk hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scanning chunk hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

func (c *SQLiteCatalog) Stats() (Stats, error) {
	ctx := context.Background()

	files, err := c.queries.ListAllFiles(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting files: %w", err)
	}
	chunkCount, err := c.queries.CountChunks(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting chunks: %w", err)
	}
	totalStored, err := c.queries.SumStoredSize(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("summing stored size: %w", err)
	}

	return Stats{
		FileCount:       int64(len(files)),
		ChunkCount:      chunkCount,
		TotalStoredSize: totalStored,
	}, nil
}

func (c *SQLiteCatalog) CreateBackupOperation(operation, parameters string) (*sqlc.BackupOperation, error) {
	op, err := c.queries.InsertBackupOperation(context.Background(), sqlc.InsertBackupOperationParams{
		StartedAt:  time.Now().UTC(),
		Operation:  operation,
		Parameters: parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("creating backup operation: %w", err)
	}
	return &op, nil
}

func (c *SQLiteCatalog) FinishBackupOperation(id int64, status string) error {
	err := c.queries.UpdateBackupOperationFinished(context.Background(), sqlc.UpdateBackupOperationFinishedParams{
		FinishedAt: sql.NullTime{Time: time.Now().UTC(), Valid: true},
		Status:     status,
		ID:         id,
	})
	if err != nil {
		return fmt.Errorf("finishing backup operation: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) ListBackupOperations(limit int) ([]*sqlc.BackupOperation, error) {
	ops, err := c.queries.GetBackupOperations(context.Background(), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing backup operations: %w", err)
	}
	result := make([]*sqlc.BackupOperation, len(ops))
	for i := range ops {
		result[i] = &ops[i]
	}
	return result, nil
}

func (c *SQLiteCatalog) MaxBackupOperationID() (int64, error) {
	id, err := c.queries.GetMaxBackupOperationID(context.Background())
	if err != nil {
		return 0, fmt.Errorf("getting max backup operation ID: %w", err)
	}
	return id, nil
}

func (c *SQLiteCatalog) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(c.db)
}

// BackupTo creates a complete copy of the catalog at destPath using VACUUM INTO.
func (c *SQLiteCatalog) BackupTo(destPath string) error {
	if _, err := c.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up catalog: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the catalog's file path (or ":memory:").
func (c *SQLiteCatalog) Path() string { return c.path }

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

var _ Catalog = (*SQLiteCatalog)(nil)
