// Package blockstore implements the content-addressed block store of
// §4.4: one sealed record per file, named by chunk_hash, sharded two hex
// bytes deep on disk.
package blockstore

// BlockStore is the storage backend for sealed chunk records. Every
// method is keyed by hash alone — the store never inspects or trusts
// plaintext content, only what was announced at PutIfAbsent time (§4.6:
// "server stores by announced hash and verifies on restore").
type BlockStore interface {
	// PutIfAbsent stores record under hash unless a block with that hash
	// already exists, in which case it discards record and returns nil
	// (P9: idempotent put). The write is durable before PutIfAbsent
	// returns.
	PutIfAbsent(hash string, record []byte) error

	// Get returns the sealed record stored under hash, or errs.ErrNotFound.
	Get(hash string) ([]byte, error)

	// Exists reports whether a block with hash is present.
	Exists(hash string) (bool, error)

	// Iter calls fn once per stored hash. Iteration order is unspecified.
	// Used by the audit subcommand (§4.9) to find orphan blocks.
	Iter(fn func(hash string) error) error

	// Unlink removes the block stored under hash. Removing an
	// already-absent hash returns errs.ErrNotFound so Phase B (§4.9) can
	// log-and-continue rather than fail the sweep.
	Unlink(hash string) error
}
