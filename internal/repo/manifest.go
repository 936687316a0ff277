// Package repo implements the repository manifest and the version-commit
// orchestration of §4.7 and §6: the on-disk root layout, the manifest
// record fixing a repository's chunker/crypto parameters forever, and
// the client-side driver that turns "back up this file" into a
// commit_version RPC.
package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"bt-go/internal/chunker"
	"bt-go/internal/errs"
)

// ManifestVersion is the on-disk format version for Manifest. Bumped
// only if a future change to the manifest's fields would otherwise be
// misread by older software.
const ManifestVersion = 1

// ManifestFileName is the manifest's fixed location under the repository
// root, per §6.
const ManifestFileName = "manifest"

// Manifest is the versioned record written once at `init`, read at every
// `open`, and never rewritten (§6): the rolling-hash parameters, the
// PBKDF2 salt and iteration count, and the format versions a repository
// was created with.
type Manifest struct {
	FormatVersion    int    `json:"format_version"`
	ChunkerVersion   int    `json:"chunker_version"`
	CryptoVersion    int    `json:"crypto_version"`
	Polynomial       uint64 `json:"polynomial"`
	MinChunkSize     int    `json:"min_chunk_size"`
	AvgChunkSize     int    `json:"avg_chunk_size"`
	MaxChunkSize     int    `json:"max_chunk_size"`
	PBKDF2SaltHex    string `json:"pbkdf2_salt_hex"`
	PBKDF2Iterations int    `json:"pbkdf2_iterations"`
}

// ChunkerParams reconstructs chunker.Params from the manifest.
func (m Manifest) ChunkerParams() chunker.Params {
	return chunker.Params{
		Polynomial: m.Polynomial,
		Min:        m.MinChunkSize,
		Avg:        m.AvgChunkSize,
		Max:        m.MaxChunkSize,
	}
}

// WriteManifest serializes m to <root>/manifest. It refuses to overwrite
// an existing manifest — a repository's format parameters are fixed at
// init and never rewritten.
func WriteManifest(root string, m Manifest) error {
	path := filepath.Join(root, ManifestFileName)

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("manifest already exists at %s: %w", path, errs.ErrConfig)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating repository root: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest reads and decodes <root>/manifest.
func ReadManifest(root string) (Manifest, error) {
	path := filepath.Join(root, ManifestFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, fmt.Errorf("no manifest at %s (repository not initialized): %w", path, errs.ErrConfig)
		}
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decoding manifest: %w", err)
	}
	return m, nil
}
