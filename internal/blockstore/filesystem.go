package blockstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bt-go/internal/errs"
)

// FilesystemBlockStore stores sealed records under
// <root>/blocks/<aa>/<bb>/<hexhash>, where aa and bb are the first two
// hex-byte prefixes of the hash — generalized from the teacher's
// single-level content directory to the two-level sharding §4.4 requires
// so no directory ever holds an unbounded number of entries.
type FilesystemBlockStore struct {
	root string
}

// NewFilesystemBlockStore creates (if absent) and returns a block store
// rooted at root/blocks.
func NewFilesystemBlockStore(root string) (*FilesystemBlockStore, error) {
	blocksDir := filepath.Join(root, "blocks")
	if err := os.MkdirAll(blocksDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blocks directory: %w", err)
	}
	return &FilesystemBlockStore{root: blocksDir}, nil
}

func (s *FilesystemBlockStore) pathFor(hash string) (dir, full string, err error) {
	if len(hash) < 4 {
		return "", "", fmt.Errorf("hash %q too short to shard: %w", hash, errs.ErrMalformedRecord)
	}
	dir = filepath.Join(s.root, hash[0:2], hash[2:4])
	full = filepath.Join(dir, hash)
	return dir, full, nil
}

// PutIfAbsent writes record to a temp file in the target shard directory,
// fsyncs the file, renames it into place, then fsyncs the directory — the
// rename-then-fsync-directory sequence is what makes the write survive a
// crash at any point without leaving a half-written block visible under
// its final name.
func (s *FilesystemBlockStore) PutIfAbsent(hash string, record []byte) error {
	dir, full, err := s.pathFor(hash)
	if err != nil {
		return err
	}

	if _, err := os.Stat(full); err == nil {
		return nil // idempotent (P9)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating shard directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(record); err != nil {
		tmp.Close()
		return fmt.Errorf("writing block: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsyncing block file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing block file: %w", err)
	}

	if err := os.Rename(tmpPath, full); err != nil {
		return fmt.Errorf("renaming block into place: %w", err)
	}

	if err := fsyncDir(dir); err != nil {
		return fmt.Errorf("fsyncing shard directory: %w", err)
	}

	success = true
	return nil
}

func (s *FilesystemBlockStore) Get(hash string) ([]byte, error) {
	_, full, err := s.pathFor(hash)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("block %s: %w", hash, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("reading block %s: %w", hash, err)
	}
	return data, nil
}

func (s *FilesystemBlockStore) Exists(hash string) (bool, error) {
	_, full, err := s.pathFor(hash)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat block %s: %w", hash, err)
	}
	return true, nil
}

func (s *FilesystemBlockStore) Iter(fn func(hash string) error) error {
	return filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking block store: %w", err)
		}
		if d.IsDir() {
			return nil
		}
		return fn(d.Name())
	})
}

func (s *FilesystemBlockStore) Unlink(hash string) error {
	_, full, err := s.pathFor(hash)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("block %s: %w", hash, errs.ErrNotFound)
		}
		return fmt.Errorf("unlinking block %s: %w", hash, err)
	}
	return nil
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

var _ BlockStore = (*FilesystemBlockStore)(nil)
