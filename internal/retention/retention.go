// Package retention implements the GC algorithm of §4.9: version expiry
// (Phase A) followed by a block sweep (Phase B), plus an audit
// subcommand that cross-checks the catalog against the block store.
package retention

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bt-go/internal/blockstore"
	"bt-go/internal/catalog"
	"bt-go/internal/errs"
)

// GC drives retention and garbage collection against one repository's
// catalog and block store.
type GC struct {
	catalog catalog.Catalog
	blocks  blockstore.BlockStore
	log     *slog.Logger
}

// New builds a GC.
func New(cat catalog.Catalog, blocks blockstore.BlockStore, log *slog.Logger) *GC {
	return &GC{catalog: cat, blocks: blocks, log: log}
}

// RunResult summarizes one Run invocation.
type RunResult struct {
	ExpiredVersions []catalog.VersionExpiry
	SweptChunks     []catalog.ChunkSweep
}

// Run executes Phase A then Phase B. In dry-run mode it mutates nothing:
// Phase A reports the versions it would expire, and Phase B reports only
// the chunks whose refcount is already zero. A dry-run Phase A leaves
// refcounts untouched, so chunks that would reach zero only through that
// expiry are not included in SweptChunks.
func (g *GC) Run(retention time.Duration, dryRun bool) (RunResult, error) {
	cutoff := time.Now().Add(-retention)

	expired, err := g.catalog.ExpireVersions(cutoff, dryRun)
	if err != nil {
		return RunResult{}, fmt.Errorf("expiring versions: %w", err)
	}

	sweeps, err := g.sweepBlocks(dryRun)
	if err != nil {
		return RunResult{}, fmt.Errorf("sweeping blocks: %w", err)
	}

	return RunResult{ExpiredVersions: expired, SweptChunks: sweeps}, nil
}

// sweepBlocks implements Phase B: for each zero-refcount chunk, delete
// the catalog row first, then unlink its block — in that order, so a
// crash between the two steps can only leave an orphan block (reclaimed
// later by Audit), never a dangling catalog row (§4.9).
func (g *GC) sweepBlocks(dryRun bool) ([]catalog.ChunkSweep, error) {
	if dryRun {
		return g.catalog.SweepChunks(true)
	}

	zero, err := g.catalog.SweepChunks(true)
	if err != nil {
		return nil, err
	}

	var swept []catalog.ChunkSweep
	for _, chunk := range zero {
		if err := g.catalog.SweepOneChunk(chunk.ChunkHash); err != nil {
			return swept, fmt.Errorf("deleting chunk row %s: %w", chunk.ChunkHash, err)
		}

		if err := g.blocks.Unlink(chunk.ChunkHash); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				g.log.Warn("block already missing during sweep, repair needed", "chunk_hash", chunk.ChunkHash)
			} else {
				return swept, fmt.Errorf("unlinking block %s: %w", chunk.ChunkHash, err)
			}
		}

		swept = append(swept, chunk)
	}

	return swept, nil
}

// AuditReport is what Audit found.
type AuditReport struct {
	// OrphanBlocks are block-store hashes with no Chunk row — reclaimable,
	// not a correctness problem.
	OrphanBlocks []string
	// IntegrityViolations are Chunk rows with no backing block — should
	// be impossible under I1; a non-empty result means the repository is
	// corrupt.
	IntegrityViolations []string
}

// Audit cross-checks every block against the catalog and vice versa.
func (g *GC) Audit() (AuditReport, error) {
	catalogHashes, err := g.catalog.IterChunkHashes()
	if err != nil {
		return AuditReport{}, fmt.Errorf("listing catalog chunk hashes: %w", err)
	}
	inCatalog := make(map[string]bool, len(catalogHashes))
	for _, h := range catalogHashes {
		inCatalog[h] = true
	}

	inBlocks := make(map[string]bool)
	var report AuditReport

	err = g.blocks.Iter(func(hash string) error {
		inBlocks[hash] = true
		if !inCatalog[hash] {
			report.OrphanBlocks = append(report.OrphanBlocks, hash)
		}
		return nil
	})
	if err != nil {
		return AuditReport{}, fmt.Errorf("iterating block store: %w", err)
	}

	for _, h := range catalogHashes {
		if !inBlocks[h] {
			report.IntegrityViolations = append(report.IntegrityViolations, h)
		}
	}

	if len(report.IntegrityViolations) > 0 {
		return report, fmt.Errorf("found %d chunk rows with no backing block: %w", len(report.IntegrityViolations), errs.ErrIntegrityViolation)
	}

	return report, nil
}
