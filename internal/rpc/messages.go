package rpc

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Envelope wraps every frame body with the request ID the client uses to
// demultiplex responses on its single shared connection (§5 "a single
// transport connection to the agent is shared; the client multiplexes
// via request IDs and demultiplexes responses on a reader task").
type Envelope struct {
	RequestID uint64
	Payload   msgpack.RawMessage
}

// Encode marshals v as an Envelope's payload.
func Encode(requestID uint64, v any) ([]byte, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	body, err := msgpack.Marshal(Envelope{RequestID: requestID, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope: %w", err)
	}
	return body, nil
}

// Decode unmarshals a frame body into an Envelope and then v.
func Decode(body []byte, v any) (requestID uint64, err error) {
	requestID, payload, err := DecodeEnvelope(body)
	if err != nil {
		return 0, err
	}
	if v != nil {
		if err := msgpack.Unmarshal(payload, v); err != nil {
			return 0, fmt.Errorf("unmarshaling payload: %w", err)
		}
	}
	return requestID, nil
}

// DecodeEnvelope unwraps a frame body's Envelope without touching the
// typed payload, so a dispatcher can route on Opcode before deciding
// which struct to unmarshal Payload into.
func DecodeEnvelope(body []byte) (requestID uint64, payload []byte, err error) {
	var env Envelope
	if err := msgpack.Unmarshal(body, &env); err != nil {
		return 0, nil, fmt.Errorf("unmarshaling envelope: %w", err)
	}
	return env.RequestID, env.Payload, nil
}

// ChunkHeader is the (sequence, hash, offset, length) the client sends
// for each chunk in a commit and receives in a restore plan (a probe
// carries bare hashes only), mirroring catalog.ChunkRef
// without importing the catalog package into the wire layer.
type ChunkHeader struct {
	Sequence int64
	Hash     string
	Offset   int64
	Length   int64
}

// ProbeRequest asks the agent which of Hashes already have backing
// blocks. Batched client-side at ≤1024 hashes per request (§4.6).
type ProbeRequest struct {
	Hashes []string
}

// ProbeResponse reports the subset of the request's hashes already
// present in the block store.
type ProbeResponse struct {
	Present []string
}

// PutChunkRequest uploads one sealed chunk record, announced under Hash.
// The server trusts Hash and verifies it lazily at restore time — it
// cannot rehash encrypted content (§4.6).
type PutChunkRequest struct {
	Hash   string
	Record []byte
}

// PutChunkResponse acknowledges a put. Ok is false only in states the
// protocol otherwise prevents; a real failure surfaces as an OpError
// frame instead.
type PutChunkResponse struct {
	Ok bool
}

// GetChunkRequest fetches one sealed chunk record by hash.
type GetChunkRequest struct {
	Hash string
}

// GetChunkResponse carries the sealed record for a GetChunkRequest.
type GetChunkResponse struct {
	Record []byte
}

// CommitVersionRequest asks the agent to atomically record a new Version
// and its chunk graph (§4.7). ContentHash is empty for Action == "deleted"
// (I5).
type CommitVersionRequest struct {
	Path         string
	Action       string
	PlainSize    int64
	StoredSize   int64
	IsCompressed bool
	ContentHash  string
	Chunks       []ChunkHeader
}

// CommitVersionResponse returns the catalog-assigned version ID.
type CommitVersionResponse struct {
	VersionID int64
}

// ListFilesRequest lists tracked files under PathPrefix ("" for all).
type ListFilesRequest struct {
	PathPrefix string
}

// FileSummary is one row of a ListFilesResponse.
type FileSummary struct {
	Path        string
	LastAction  string
	CurrentSize int64
}

// ListFilesResponse carries the matched files.
type ListFilesResponse struct {
	Files []FileSummary
}

// ListVersionsRequest lists every Version recorded for Path.
type ListVersionsRequest struct {
	Path string
}

// VersionSummary is one row of a ListVersionsResponse.
type VersionSummary struct {
	VersionID  int64
	Timestamp  time.Time
	Action     string
	PlainSize  int64
	StoredSize int64
}

// ListVersionsResponse carries the matched versions, oldest first.
type ListVersionsResponse struct {
	Versions []VersionSummary
}

// RestoreRequest asks the agent to reassemble one version's plaintext.
// Large restores stream GetChunkResponse-shaped frames rather than one
// giant body; RestoreResponse here carries only the chunk plan, and the
// caller fetches each chunk with GetChunkRequest.
type RestoreRequest struct {
	Path      string
	VersionID int64
}

// RestoreResponse carries the ordered chunk list needed to reassemble a
// version's plaintext.
type RestoreResponse struct {
	Chunks []ChunkHeader
}

// DeleteVersionRequest removes one Version row outright (distinct from a
// tombstone commit).
type DeleteVersionRequest struct {
	VersionID int64
}

// DeleteVersionResponse acknowledges the delete.
type DeleteVersionResponse struct {
	Ok bool
}

// StatsRequest asks for repository-wide aggregates.
type StatsRequest struct{}

// StatsResponse carries the aggregates.
type StatsResponse struct {
	FileCount       int64
	ChunkCount      int64
	TotalStoredSize int64
}

// ListOperationsRequest asks for the most recent recorded backup
// operations (§4.5's audit trail — every commit_version/delete_version
// call the agent has serviced).
type ListOperationsRequest struct {
	Limit int
}

// OperationSummary is one row of a ListOperationsResponse.
type OperationSummary struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Operation  string
	Parameters string
	Status     string
}

// ListOperationsResponse carries the matched operations, most recent
// first.
type ListOperationsResponse struct {
	Operations []OperationSummary
}

// ErrorResponse is the body of an OpError frame: a message and an error
// kind string matching one of errs's sentinel names, so the client can
// reconstruct the right errors.Is check without sharing Go types over
// the wire.
type ErrorResponse struct {
	Kind    string
	Message string
}
