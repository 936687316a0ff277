package testutil

import "bt-go/internal/chunker"

// FixedPolynomial is a constant rolling-hash polynomial for tests that need
// chunk boundaries to be reproducible across runs, not just within one.
const FixedPolynomial = 0x3DA3358B4DC173

// NewTestChunker returns a Chunker with the package default size bounds and
// a fixed polynomial.
func NewTestChunker() *chunker.Chunker {
	return chunker.New(chunker.Params{Polynomial: FixedPolynomial})
}
