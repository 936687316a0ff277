// Package deltasync implements the delta-sync algorithm of §4.6: given a
// local file's chunk list, it determines which chunks the agent doesn't
// already have and uploads only those, batching probes and pipelining
// uploads within a bounded window, retrying transient failures with
// exponential backoff.
package deltasync

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"bt-go/internal/chunker"
	"bt-go/internal/compress"
	"bt-go/internal/crypto"
	"bt-go/internal/errs"
	"bt-go/internal/rpc"
)

const (
	// ProbeBatchSize caps how many hashes go in a single probe request.
	ProbeBatchSize = 1024
	// DefaultInFlightWindow bounds concurrent pipelined uploads.
	DefaultInFlightWindow = 8

	retryBase   = 250 * time.Millisecond
	retryFactor = 2
	retryCap    = 8 * time.Second
	retryMax    = 5
)

// AgentClient is the subset of *rpc.Client the sync engine needs, so
// tests can substitute a fake transport.
type AgentClient interface {
	Probe(hashes []string) ([]string, error)
	PutChunk(hash string, record []byte) error
}

// Engine drives probe/upload for one repository connection.
type Engine struct {
	client   AgentClient
	sealer   *crypto.Sealer
	window   int
}

// New builds an Engine using the default in-flight window.
func New(client AgentClient, sealer *crypto.Sealer) *Engine {
	return &Engine{client: client, sealer: sealer, window: DefaultInFlightWindow}
}

// Result is what Sync contributes to a version commit: the chunk
// references in source order, the total stored (post-seal) size, and
// whether any chunk was actually stored gzip'd. AnyCompressed reflects
// compress.Encode's real per-chunk decision, not a size heuristic — every
// sealed record carries ~29 bytes of AES-GCM framing overhead regardless
// of compression, so StoredSize alone can't tell plain from gzip'd.
type Result struct {
	Chunks        []rpc.ChunkHeader
	StoredSize    int64
	AnyCompressed bool
}

// Sync probes for chunks already present, uploads the rest (sealed, with
// the §4.3 compression gate applied per chunk), and returns the full
// chunk reference list in source order for the eventual commit_version
// call. compressible is the whole file's MIME-category verdict from
// §4.3, applied uniformly to every chunk of that file.
func (e *Engine) Sync(chunks []chunker.Chunk, compressible bool) (Result, error) {
	present, err := e.probeAll(chunks)
	if err != nil {
		return Result{}, err
	}

	missing := make([]chunker.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !present[c.Hash] {
			missing = append(missing, c)
		}
	}

	uploads, err := e.uploadAll(missing, compressible)
	if err != nil {
		return Result{}, err
	}

	headers := make([]rpc.ChunkHeader, len(chunks))
	var total int64
	var anyCompressed bool
	for i, c := range chunks {
		length := c.Length
		if u, ok := uploads[c.Hash]; ok {
			length = u.storedSize
			anyCompressed = anyCompressed || u.compressed
		}
		headers[i] = rpc.ChunkHeader{Sequence: int64(i), Hash: c.Hash, Offset: c.Offset, Length: length}
		total += length
	}

	return Result{Chunks: headers, StoredSize: total, AnyCompressed: anyCompressed}, nil
}

// probeAll batches hashes at ProbeBatchSize per request (§4.6) and
// returns the set already present in the block store.
func (e *Engine) probeAll(chunks []chunker.Chunk) (map[string]bool, error) {
	present := make(map[string]bool)

	for start := 0; start < len(chunks); start += ProbeBatchSize {
		end := start + ProbeBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		hashes := make([]string, end-start)
		for i := start; i < end; i++ {
			hashes[i-start] = chunks[i].Hash
		}

		found, err := e.client.Probe(hashes)
		if err != nil {
			return nil, fmt.Errorf("probing chunks: %w", err)
		}
		for _, h := range found {
			present[h] = true
		}
	}

	return present, nil
}

// uploadOutcome is one chunk's upload result: its sealed size on disk and
// whether compress.Encode actually chose FlagGzip for it.
type uploadOutcome struct {
	storedSize int64
	compressed bool
}

// uploadAll pipelines uploads of missing chunks up to the in-flight
// window, retrying each with bounded exponential backoff. If any chunk
// exhausts its retries, the whole commit is abandoned and no partial
// upload set is reported — the caller must not proceed to
// commit_version (§4.6).
func (e *Engine) uploadAll(missing []chunker.Chunk, compressible bool) (map[string]uploadOutcome, error) {
	results := make(map[string]uploadOutcome, len(missing))
	var mu sync.Mutex

	sem := make(chan struct{}, e.window)
	errCh := make(chan error, len(missing))
	var wg sync.WaitGroup

	for _, c := range missing {
		sem <- struct{}{}
		wg.Add(1)
		go func(c chunker.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, err := e.uploadOneWithRetry(c, compressible)
			if err != nil {
				errCh <- err
				return
			}

			mu.Lock()
			results[c.Hash] = outcome
			mu.Unlock()
		}(c)
	}

	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok {
		return nil, err
	}
	return results, nil
}

func (e *Engine) uploadOneWithRetry(c chunker.Chunk, compressible bool) (uploadOutcome, error) {
	encoded, flag, err := compress.Encode(c.Data, compressible)
	if err != nil {
		return uploadOutcome{}, fmt.Errorf("compressing chunk %s: %w", c.Hash, err)
	}

	record, err := e.sealer.Seal(encoded, flag)
	if err != nil {
		return uploadOutcome{}, fmt.Errorf("sealing chunk %s: %w", c.Hash, err)
	}

	delay := retryBase
	var lastErr error
	for attempt := 1; attempt <= retryMax; attempt++ {
		if err := e.client.PutChunk(c.Hash, record); err != nil {
			lastErr = err
			if attempt == retryMax {
				break
			}
			time.Sleep(jitter(delay))
			delay *= retryFactor
			if delay > retryCap {
				delay = retryCap
			}
			continue
		}
		return uploadOutcome{storedSize: int64(len(record)), compressed: flag == compress.FlagGzip}, nil
	}

	return uploadOutcome{}, fmt.Errorf("uploading chunk %s after %d attempts: %w: %v", c.Hash, retryMax, errs.ErrRetryExhausted, lastErr)
}

// jitter adds up to 20% random variance to a backoff delay so a burst of
// concurrent retries doesn't all re-fire in lockstep.
func jitter(d time.Duration) time.Duration {
	variance := time.Duration(rand.Int63n(int64(d) / 5))
	return d + variance
}
