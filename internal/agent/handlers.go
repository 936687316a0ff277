package agent

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"bt-go/internal/catalog"
	"bt-go/internal/errs"
	"bt-go/internal/rpc"
)

func (a *Agent) handleMutating(req request) response {
	switch req.opcode {
	case rpc.OpPutChunk:
		return a.handlePutChunk(req)
	case rpc.OpCommitVersion:
		return a.handleCommitVersion(req)
	case rpc.OpDeleteVersion:
		return a.handleDeleteVersion(req)
	default:
		return errResponse(req, fmt.Errorf("unexpected mutating opcode %d", req.opcode))
	}
}

func (a *Agent) handleReadOnly(req request) response {
	switch req.opcode {
	case rpc.OpProbe:
		return a.handleProbe(req)
	case rpc.OpGetChunk:
		return a.handleGetChunk(req)
	case rpc.OpListFiles:
		return a.handleListFiles(req)
	case rpc.OpListVersions:
		return a.handleListVersions(req)
	case rpc.OpRestore:
		return a.handleRestore(req)
	case rpc.OpStats:
		return a.handleStats(req)
	case rpc.OpListOperations:
		return a.handleListOperations(req)
	default:
		return errResponse(req, fmt.Errorf("unexpected read-only opcode %d", req.opcode))
	}
}

func errResponse(req request, err error) response {
	return response{requestID: req.requestID, errKind: err}
}

func (a *Agent) handleProbe(req request) response {
	var in rpc.ProbeRequest
	if err := msgpack.Unmarshal(req.body, &in); err != nil {
		return errResponse(req, fmt.Errorf("decoding probe request: %w", errs.ErrMalformedRecord))
	}

	var present []string
	for _, h := range in.Hashes {
		ok, err := a.blocks.Exists(h)
		if err != nil {
			return errResponse(req, err)
		}
		if ok {
			present = append(present, h)
		}
	}

	return response{requestID: req.requestID, opcode: rpc.OpProbeResult, payload: rpc.ProbeResponse{Present: present}}
}

func (a *Agent) handlePutChunk(req request) response {
	var in rpc.PutChunkRequest
	if err := msgpack.Unmarshal(req.body, &in); err != nil {
		return errResponse(req, fmt.Errorf("decoding put_chunk request: %w", errs.ErrMalformedRecord))
	}

	if err := a.blocks.PutIfAbsent(in.Hash, in.Record); err != nil {
		return errResponse(req, err)
	}

	return response{requestID: req.requestID, opcode: rpc.OpPutChunkResult, payload: rpc.PutChunkResponse{Ok: true}}
}

func (a *Agent) handleGetChunk(req request) response {
	var in rpc.GetChunkRequest
	if err := msgpack.Unmarshal(req.body, &in); err != nil {
		return errResponse(req, fmt.Errorf("decoding get_chunk request: %w", errs.ErrMalformedRecord))
	}

	record, err := a.blocks.Get(in.Hash)
	if err != nil {
		return errResponse(req, err)
	}

	return response{requestID: req.requestID, opcode: rpc.OpGetChunkResult, payload: rpc.GetChunkResponse{Record: record}}
}

func (a *Agent) handleCommitVersion(req request) response {
	var in rpc.CommitVersionRequest
	if err := msgpack.Unmarshal(req.body, &in); err != nil {
		return errResponse(req, fmt.Errorf("decoding commit_version request: %w", errs.ErrMalformedRecord))
	}

	path, err := SandboxPath(in.Path)
	if err != nil {
		return errResponse(req, err)
	}

	chunks := make([]catalog.ChunkRef, len(in.Chunks))
	for i, c := range in.Chunks {
		chunks[i] = catalog.ChunkRef{Sequence: c.Sequence, ChunkHash: c.Hash, Offset: c.Offset, Length: c.Length}
	}

	commitInput := catalog.CommitInput{
		Path:         path,
		Action:       in.Action,
		PlainSize:    in.PlainSize,
		ContentHash:  in.ContentHash,
		IsCompressed: in.IsCompressed,
		Chunks:       chunks,
		StoredSize:   in.StoredSize,
	}

	op, opErr := a.catalog.CreateBackupOperation("commit_version", path)
	if opErr != nil {
		a.log.Warn("recording backup operation failed", "path", path, "error", opErr)
	}

	versionID, err := a.catalog.CommitVersion(commitInput, time.Now().UTC(), a.blocks.Exists)

	if opErr == nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		if finishErr := a.catalog.FinishBackupOperation(op.ID, status); finishErr != nil {
			a.log.Warn("finishing backup operation failed", "operation_id", op.ID, "error", finishErr)
		}
	}

	if err != nil {
		return errResponse(req, err)
	}

	return response{requestID: req.requestID, opcode: rpc.OpCommitVersionResult, payload: rpc.CommitVersionResponse{VersionID: versionID}}
}

func (a *Agent) handleDeleteVersion(req request) response {
	var in rpc.DeleteVersionRequest
	if err := msgpack.Unmarshal(req.body, &in); err != nil {
		return errResponse(req, fmt.Errorf("decoding delete_version request: %w", errs.ErrMalformedRecord))
	}

	op, opErr := a.catalog.CreateBackupOperation("delete_version", fmt.Sprintf("%d", in.VersionID))
	if opErr != nil {
		a.log.Warn("recording backup operation failed", "version_id", in.VersionID, "error", opErr)
	}

	err := a.catalog.DeleteVersion(in.VersionID)

	if opErr == nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		if finishErr := a.catalog.FinishBackupOperation(op.ID, status); finishErr != nil {
			a.log.Warn("finishing backup operation failed", "operation_id", op.ID, "error", finishErr)
		}
	}

	if err != nil {
		return errResponse(req, err)
	}

	return response{requestID: req.requestID, opcode: rpc.OpDeleteVersionResult, payload: rpc.DeleteVersionResponse{Ok: true}}
}

func (a *Agent) handleListFiles(req request) response {
	var in rpc.ListFilesRequest
	if err := msgpack.Unmarshal(req.body, &in); err != nil {
		return errResponse(req, fmt.Errorf("decoding list_files request: %w", errs.ErrMalformedRecord))
	}

	files, err := a.catalog.ListFiles(in.PathPrefix)
	if err != nil {
		return errResponse(req, err)
	}

	summaries := make([]rpc.FileSummary, len(files))
	for i, f := range files {
		summaries[i] = rpc.FileSummary{Path: f.Path, LastAction: f.LastAction, CurrentSize: f.CurrentSize}
	}

	return response{requestID: req.requestID, opcode: rpc.OpListFilesResult, payload: rpc.ListFilesResponse{Files: summaries}}
}

func (a *Agent) handleListVersions(req request) response {
	var in rpc.ListVersionsRequest
	if err := msgpack.Unmarshal(req.body, &in); err != nil {
		return errResponse(req, fmt.Errorf("decoding list_versions request: %w", errs.ErrMalformedRecord))
	}

	versions, err := a.catalog.ListVersions(in.Path)
	if err != nil {
		return errResponse(req, err)
	}

	summaries := make([]rpc.VersionSummary, len(versions))
	for i, v := range versions {
		summaries[i] = rpc.VersionSummary{
			VersionID:  v.ID,
			Timestamp:  v.Timestamp,
			Action:     v.Action,
			PlainSize:  v.PlainSize,
			StoredSize: v.StoredSize,
		}
	}

	return response{requestID: req.requestID, opcode: rpc.OpListVersionsResult, payload: rpc.ListVersionsResponse{Versions: summaries}}
}

func (a *Agent) handleRestore(req request) response {
	var in rpc.RestoreRequest
	if err := msgpack.Unmarshal(req.body, &in); err != nil {
		return errResponse(req, fmt.Errorf("decoding restore request: %w", errs.ErrMalformedRecord))
	}

	if _, err := SandboxPath(in.Path); err != nil {
		return errResponse(req, err)
	}

	versionChunks, err := a.catalog.GetVersionChunks(in.VersionID)
	if err != nil {
		return errResponse(req, err)
	}

	chunks := make([]rpc.ChunkHeader, len(versionChunks))
	for i, vc := range versionChunks {
		chunks[i] = rpc.ChunkHeader{Sequence: vc.Sequence, Hash: vc.ChunkHash, Offset: vc.Offset, Length: vc.Length}
	}

	return response{requestID: req.requestID, opcode: rpc.OpRestoreResult, payload: rpc.RestoreResponse{Chunks: chunks}}
}

func (a *Agent) handleStats(req request) response {
	stats, err := a.catalog.Stats()
	if err != nil {
		return errResponse(req, err)
	}

	return response{requestID: req.requestID, opcode: rpc.OpStatsResult, payload: rpc.StatsResponse{
		FileCount:       stats.FileCount,
		ChunkCount:      stats.ChunkCount,
		TotalStoredSize: stats.TotalStoredSize,
	}}
}

func (a *Agent) handleListOperations(req request) response {
	var in rpc.ListOperationsRequest
	if err := msgpack.Unmarshal(req.body, &in); err != nil {
		return errResponse(req, fmt.Errorf("decoding list_operations request: %w", errs.ErrMalformedRecord))
	}

	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}

	ops, err := a.catalog.ListBackupOperations(limit)
	if err != nil {
		return errResponse(req, err)
	}

	summaries := make([]rpc.OperationSummary, len(ops))
	for i, op := range ops {
		summaries[i] = rpc.OperationSummary{
			ID:         op.ID,
			StartedAt:  op.StartedAt,
			FinishedAt: op.FinishedAt.Time,
			Operation:  op.Operation,
			Parameters: op.Parameters,
			Status:     op.Status,
		}
	}

	return response{requestID: req.requestID, opcode: rpc.OpListOperationsResult, payload: rpc.ListOperationsResponse{Operations: summaries}}
}
