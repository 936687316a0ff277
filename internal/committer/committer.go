// Package committer drains debounced paths and commits each one as a
// new Version through the repository's VersionManager (§5). It runs one
// path at a time end to end (chunk, delta-sync, commit), while the
// delta-sync engine underneath it pipelines individual chunk uploads
// within that path across the in-flight window.
package committer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	btfs "bt-go/internal/fs"
	"bt-go/internal/repo"
)

// VersionManager is the subset of *repo.VersionManager the committer
// drives. Kept as an interface so tests can substitute a fake.
type VersionManager interface {
	CommitFile(path string, rd io.Reader) (repo.CommitResult, error)
	CommitDelete(path string) (repo.CommitResult, error)
}

// Committer drains a stream of repository-relative paths and commits
// each one, re-statting the path itself to decide modified vs deleted
// since the debouncer intentionally does not carry that decision. Paths
// matching a .btignore pattern at root are skipped entirely, both for
// debounced events and for the initial Scan.
type Committer struct {
	root   string
	vm     VersionManager
	log    *slog.Logger
	ignore *btfs.IgnoreMatcher
}

// New creates a Committer rooted at root (the on-disk directory being
// backed up, not the repository's block-store root). It reads a
// .btignore file directly under root, if present.
func New(root string, vm VersionManager, log *slog.Logger) *Committer {
	if log == nil {
		log = slog.Default()
	}
	patterns, err := btfs.ParseIgnoreFile(filepath.Join(root, ".btignore"))
	if err != nil {
		log.Warn("reading .btignore failed, proceeding without it", "error", err)
	}
	return &Committer{root: root, vm: vm, log: log, ignore: btfs.NewIgnoreMatcher(patterns)}
}

// Scan walks root and commits the current content of every regular file
// not excluded by .btignore, establishing a baseline Version for each
// tracked file before Run starts reacting to live changes.
func (c *Committer) Scan(ctx context.Context) error {
	return filepath.WalkDir(c.root, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(c.root, full)
		if err != nil {
			return fmt.Errorf("computing relative path for %s: %w", full, err)
		}
		rel = filepath.ToSlash(rel)
		if c.ignore.Match(rel) {
			return nil
		}
		if err := c.commitOne(rel); err != nil {
			c.log.Error("scan commit failed", "path", rel, "error", err)
		}
		return nil
	})
}

// Run consumes paths from ready until ctx is cancelled or ready is
// closed. In-flight commits are allowed to finish — CommitFile/
// CommitDelete calls are idempotent from the agent's point of view
// (re-uploading an already-present chunk is a no-op PutIfAbsent), so
// draining one more commit after cancellation never corrupts state.
func (c *Committer) Run(ctx context.Context, ready <-chan string) {
	for {
		select {
		case path, ok := <-ready:
			if !ok {
				return
			}
			if err := c.commitOne(path); err != nil {
				c.log.Error("commit failed", "path", path, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Committer) commitOne(path string) error {
	if c.ignore.Match(path) {
		return nil
	}
	full := filepath.Join(c.root, path)

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			_, delErr := c.vm.CommitDelete(path)
			if delErr != nil {
				return fmt.Errorf("committing delete for %s: %w", path, delErr)
			}
			return nil
		}
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("statting %s: %w", path, err)
	}
	if info.IsDir() {
		return nil
	}

	res, err := c.vm.CommitFile(path, f)
	if err != nil {
		return err
	}
	c.log.Info("committed version", "path", path, "version_id", res.VersionID)
	return nil
}
