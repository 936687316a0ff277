// Package agent implements the long-lived RPC agent of §4.8: it accepts
// framed connections (internal/rpc), runs each connection's
// catalog-mutating operations one at a time on that connection's read
// loop, and fans read-only operations out across a bounded pool of reader
// goroutines. A frame that arrives behind a mutating operation on the
// same connection is not read until that operation finishes.
package agent

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"bt-go/internal/blockstore"
	"bt-go/internal/catalog"
	"bt-go/internal/crypto"
	"bt-go/internal/errs"
	"bt-go/internal/rpc"
)

// DefaultReaderPoolSize bounds how many read-only RPCs one connection may
// have in flight concurrently.
const DefaultReaderPoolSize = 8

// request is one decoded frame waiting for a handler. Responses on a
// single connection are serialized through that connection's writeCh
// regardless of which goroutine produced them.
type request struct {
	requestID uint64
	opcode    rpc.Opcode
	body      []byte
}

// response is a fully-formed reply awaiting its turn to be written.
type response struct {
	requestID uint64
	opcode    rpc.Opcode
	payload   any
	errKind   error
}

// Agent dispatches RPC frames against a catalog and block store. All
// catalog-mutating opcodes (put_chunk, commit_version, delete_version)
// are executed inline on each connection's read loop, one at a time in
// frame-arrival order; read-only opcodes (probe, get_chunk, list_files,
// list_versions, restore, stats) run on a bounded pool of reader
// goroutines. One writer goroutine per connection writes every response
// frame. Mutating opcodes arriving on different connections are not
// serialized against each other by the agent.
type Agent struct {
	catalog  catalog.Catalog
	blocks   blockstore.BlockStore
	sealer   *crypto.Sealer
	log      *slog.Logger
	poolSize int
}

// New builds an Agent. sealer may be nil if the agent is only ever asked
// to store/fetch already-sealed records (the common case — sealing
// happens client-side).
func New(cat catalog.Catalog, blocks blockstore.BlockStore, sealer *crypto.Sealer, log *slog.Logger) *Agent {
	return &Agent{catalog: cat, blocks: blocks, sealer: sealer, log: log, poolSize: DefaultReaderPoolSize}
}

// Serve accepts connections from listener until it errors or is closed.
func (a *Agent) Serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("accepting connection: %w", err)
		}
		go a.handleConn(conn)
	}
}

func (a *Agent) handleConn(conn net.Conn) {
	defer conn.Close()

	writeCh := make(chan response, a.poolSize*2)
	var writeWG sync.WaitGroup
	writeWG.Add(1)
	go func() {
		defer writeWG.Done()
		a.writeLoop(conn, writeCh)
	}()

	readerSem := make(chan struct{}, a.poolSize)
	var handlerWG sync.WaitGroup

	for {
		frame, err := rpc.ReadFrame(conn)
		if err != nil {
			break
		}

		requestID, payload, err := rpc.DecodeEnvelope(frame.Body)
		if err != nil {
			continue
		}
		req := request{requestID: requestID, opcode: frame.Opcode, body: payload}

		if isMutating(req.opcode) {
			// The read loop handles mutating opcodes itself, in
			// frame-arrival order, so only one of them at a time calls
			// into the catalog's write path for this connection.
			handlerWG.Add(1)
			resp := a.handleMutating(req)
			writeCh <- resp
			handlerWG.Done()
			continue
		}

		readerSem <- struct{}{}
		handlerWG.Add(1)
		go func(req request) {
			defer handlerWG.Done()
			defer func() { <-readerSem }()
			writeCh <- a.handleReadOnly(req)
		}(req)
	}

	handlerWG.Wait()
	close(writeCh)
	writeWG.Wait()
}

func (a *Agent) writeLoop(conn net.Conn, writeCh <-chan response) {
	for resp := range writeCh {
		frame, err := encodeResponse(resp)
		if err != nil {
			a.log.Error("encoding response", "error", err)
			continue
		}
		if err := rpc.WriteFrame(conn, frame); err != nil {
			if !errors.Is(err, io.EOF) {
				a.log.Warn("writing response frame", "error", err)
			}
			return
		}
	}
}

func isMutating(op rpc.Opcode) bool {
	switch op {
	case rpc.OpPutChunk, rpc.OpCommitVersion, rpc.OpDeleteVersion:
		return true
	default:
		return false
	}
}

func encodeResponse(resp response) (rpc.Frame, error) {
	if resp.errKind != nil {
		body, err := rpc.Encode(resp.requestID, rpc.ErrorResponse{
			Kind:    errorKind(resp.errKind),
			Message: resp.errKind.Error(),
		})
		if err != nil {
			return rpc.Frame{}, err
		}
		return rpc.Frame{Opcode: rpc.OpError, Body: body}, nil
	}

	body, err := rpc.Encode(resp.requestID, resp.payload)
	if err != nil {
		return rpc.Frame{}, err
	}
	return rpc.Frame{Opcode: resp.opcode, Body: body}, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, errs.ErrPathEscape):
		return "PathEscape"
	case errors.Is(err, errs.ErrNotFound):
		return "NotFound"
	case errors.Is(err, errs.ErrAuthFailure):
		return "AuthFailure"
	case errors.Is(err, errs.ErrMalformedRecord):
		return "MalformedRecord"
	case errors.Is(err, errs.ErrHashMismatch):
		return "HashMismatch"
	case errors.Is(err, errs.ErrMissingBlock):
		return "MissingBlock"
	case errors.Is(err, errs.ErrCatalogConflict):
		return "CatalogConflict"
	case errors.Is(err, errs.ErrTransport):
		return "Transport"
	case errors.Is(err, errs.ErrIntegrityViolation):
		return "IntegrityViolation"
	default:
		return "Unknown"
	}
}
