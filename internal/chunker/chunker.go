// Package chunker splits a byte stream into content-defined variable-size
// chunks using a rolling polynomial hash, per §4.1. The same input and
// parameters always yield the same chunk boundaries (P1), which is what
// makes cross-version dedup possible at all.
package chunker

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/aclements/go-rabin/rabin"
	restic "github.com/restic/chunker"
)

const (
	kib = 1024

	// DefaultMin, DefaultAvg, and DefaultMax are the chunk-size bounds from
	// §4.1: MIN = 2 KiB, AVG = 8 KiB, MAX = 64 KiB.
	DefaultMin = 2 * kib
	DefaultAvg = 8 * kib
	DefaultMax = 64 * kib

	// rollingWindowSize is the Rabin fingerprint's rolling window, matching
	// the pack's own go-rabin usage.
	rollingWindowSize = 64
)

// DefaultPolynomial is the Rabin polynomial used when Params.Polynomial is
// left unset, e.g. by a test building a Chunker directly rather than
// through DefaultParams.
const DefaultPolynomial = uint64(rabin.Poly64)

// Params are the rolling-hash parameters a repository fixes at init time
// and carries forever in its manifest (§6), so that a repository stays
// chunk-compatible across software versions.
type Params struct {
	// Polynomial is the irreducible polynomial the rolling hash's table is
	// built over. Chosen once per repository via NewRandomPolynomial so
	// that distinct repositories don't produce colliding chunk boundaries
	// for unrelated data (a restic-recommended practice, not a security
	// requirement); restic/chunker's own irreducibility search is reused
	// here purely to source that polynomial, independent of which library
	// actually performs the split.
	Polynomial uint64
	Min        int
	Avg        int
	Max        int
}

// NewRandomPolynomial draws a fresh irreducible polynomial for a new
// repository's manifest.
func NewRandomPolynomial() (uint64, error) {
	pol, err := restic.RandomPolynomial()
	if err != nil {
		return 0, fmt.Errorf("generating chunker polynomial: %w", err)
	}
	return uint64(pol), nil
}

// DefaultParams returns the §4.1 default bounds paired with a fresh random
// polynomial, for use at repository init.
func DefaultParams() (Params, error) {
	pol, err := NewRandomPolynomial()
	if err != nil {
		return Params{}, err
	}
	return Params{Polynomial: pol, Min: DefaultMin, Avg: DefaultAvg, Max: DefaultMax}, nil
}

// Chunk is one content-defined slice of the source stream: its byte range
// in the source, and the SHA-256 hash of its plaintext bytes (the
// chunk_hash of §3).
type Chunk struct {
	Offset int64
	Length int64
	Hash   string
	Data   []byte
}

// Chunker wraps go-rabin's content-defined chunker, fixing it to one
// repository's Params so callers never have to think about the
// rolling-hash internals directly. restic/chunker (used elsewhere in the
// pack) has no public way to steer its average chunk size away from its
// fixed ~1MiB splitmask via Min/Max alone, so the actual split is driven
// by go-rabin's rabin.NewChunker, whose Next() is parameterized directly
// on min/avg/max (§4.1's MASK = AVG−1 is exactly what its avg argument
// controls).
type Chunker struct {
	params Params
	table  *rabin.Table
}

// New builds a Chunker bound to params. A zero Min/Avg/Max or Polynomial
// falls back to the package defaults.
func New(params Params) *Chunker {
	if params.Min == 0 {
		params.Min = DefaultMin
	}
	if params.Avg == 0 {
		params.Avg = DefaultAvg
	}
	if params.Max == 0 {
		params.Max = DefaultMax
	}
	if params.Polynomial == 0 {
		params.Polynomial = DefaultPolynomial
	}
	return &Chunker{
		params: params,
		table:  rabin.NewTable(params.Polynomial, rollingWindowSize),
	}
}

// Split reads rd to completion and returns its content-defined chunk list
// in offset order. It is pure and restartable: the same bytes and Params
// always produce the same result (P1).
func (c *Chunker) Split(rd io.Reader) ([]Chunk, error) {
	content, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("reading content to chunk: %w", err)
	}

	ck := rabin.NewChunker(c.table, bytes.NewReader(content), c.params.Min, c.params.Avg, c.params.Max)

	var chunks []Chunk
	var offset int64

	for {
		length, err := ck.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading chunk at offset %d: %w", offset, err)
		}

		data := content[offset : offset+int64(length)]
		sum := sha256.Sum256(data)
		chunks = append(chunks, Chunk{
			Offset: offset,
			Length: int64(length),
			Hash:   hex.EncodeToString(sum[:]),
			Data:   data,
		})
		offset += int64(length)
	}

	return chunks, nil
}
