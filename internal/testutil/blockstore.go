package testutil

import "bt-go/internal/blockstore"

// NewTestBlockStore returns a fresh in-memory block store for tests that
// don't need to exercise filesystem or S3 I/O.
func NewTestBlockStore() *blockstore.MemoryBlockStore {
	return blockstore.NewMemoryBlockStore()
}
