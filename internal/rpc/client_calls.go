package rpc

// The typed wrappers below give callers (deltasync, repo, cmd/bt) a
// plain Go method per opcode instead of hand-rolling Call() at every
// site.

func (c *Client) Probe(hashes []string) ([]string, error) {
	var out ProbeResponse
	if err := c.Call(OpProbe, ProbeRequest{Hashes: hashes}, &out, DefaultControlTimeout); err != nil {
		return nil, err
	}
	return out.Present, nil
}

func (c *Client) PutChunk(hash string, record []byte) error {
	var out PutChunkResponse
	return c.Call(OpPutChunk, PutChunkRequest{Hash: hash, Record: record}, &out, DefaultChunkTimeout)
}

func (c *Client) GetChunk(hash string) ([]byte, error) {
	var out GetChunkResponse
	if err := c.Call(OpGetChunk, GetChunkRequest{Hash: hash}, &out, DefaultChunkTimeout); err != nil {
		return nil, err
	}
	return out.Record, nil
}

func (c *Client) CommitVersion(req CommitVersionRequest) (int64, error) {
	var out CommitVersionResponse
	if err := c.Call(OpCommitVersion, req, &out, DefaultControlTimeout); err != nil {
		return 0, err
	}
	return out.VersionID, nil
}

func (c *Client) DeleteVersion(versionID int64) error {
	var out DeleteVersionResponse
	return c.Call(OpDeleteVersion, DeleteVersionRequest{VersionID: versionID}, &out, DefaultControlTimeout)
}

func (c *Client) ListFiles(pathPrefix string) ([]FileSummary, error) {
	var out ListFilesResponse
	if err := c.Call(OpListFiles, ListFilesRequest{PathPrefix: pathPrefix}, &out, DefaultControlTimeout); err != nil {
		return nil, err
	}
	return out.Files, nil
}

func (c *Client) ListVersions(path string) ([]VersionSummary, error) {
	var out ListVersionsResponse
	if err := c.Call(OpListVersions, ListVersionsRequest{Path: path}, &out, DefaultControlTimeout); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

func (c *Client) Restore(path string, versionID int64) ([]ChunkHeader, error) {
	var out RestoreResponse
	if err := c.Call(OpRestore, RestoreRequest{Path: path, VersionID: versionID}, &out, DefaultControlTimeout); err != nil {
		return nil, err
	}
	return out.Chunks, nil
}

func (c *Client) Stats() (StatsResponse, error) {
	var out StatsResponse
	if err := c.Call(OpStats, StatsRequest{}, &out, DefaultControlTimeout); err != nil {
		return StatsResponse{}, err
	}
	return out, nil
}

func (c *Client) ListOperations(limit int) ([]OperationSummary, error) {
	var out ListOperationsResponse
	if err := c.Call(OpListOperations, ListOperationsRequest{Limit: limit}, &out, DefaultControlTimeout); err != nil {
		return nil, err
	}
	return out.Operations, nil
}
