package rpc

import (
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"bt-go/internal/errs"
)

// DefaultControlTimeout and DefaultChunkTimeout are the per-RPC
// client-side timeouts of §5: 30s for control calls, 120s for chunk
// transfer (streaming progress would reset the timer; this client has no
// streaming progress yet, so it uses the flat 120s ceiling).
const (
	DefaultControlTimeout = 30 * time.Second
	DefaultChunkTimeout   = 120 * time.Second
)

// pending is one in-flight request awaiting its response.
type pending struct {
	opcode Opcode
	result chan Frame
	err    chan error
}

// Client is a single shared connection to the agent, multiplexing
// concurrent RPCs by request ID and demultiplexing responses on one
// reader goroutine (§5).
type Client struct {
	conn      net.Conn
	nextID    uint64
	mu        sync.Mutex
	pendingMu sync.Mutex
	pendingBy map[uint64]*pending
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the agent over conn and starts its reader goroutine.
// The caller owns conn's lifecycle beyond Close.
func Dial(conn net.Conn) *Client {
	c := &Client{
		conn:      conn,
		pendingBy: make(map[uint64]*pending),
		closed:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	for {
		frame, err := ReadFrame(c.conn)
		if err != nil {
			c.failAllPending(fmt.Errorf("connection closed: %w", errs.ErrTransport))
			return
		}

		requestID, payload, err := DecodeEnvelope(frame.Body)
		if err != nil {
			continue
		}

		c.pendingMu.Lock()
		p, ok := c.pendingBy[requestID]
		if ok {
			delete(c.pendingBy, requestID)
		}
		c.pendingMu.Unlock()

		if !ok {
			continue
		}
		p.result <- Frame{Opcode: frame.Opcode, Body: payload}
	}
}

func (c *Client) failAllPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, p := range c.pendingBy {
		p.err <- err
		delete(c.pendingBy, id)
	}
}

// Call sends v under opcode and blocks for the matching response,
// unmarshaling its payload into out (which may be nil). It returns an
// OpError response's decoded message as an error.
func (c *Client) Call(opcode Opcode, v any, out any, timeout time.Duration) error {
	requestID := atomic.AddUint64(&c.nextID, 1)

	body, err := Encode(requestID, v)
	if err != nil {
		return err
	}

	p := &pending{opcode: opcode, result: make(chan Frame, 1), err: make(chan error, 1)}
	c.pendingMu.Lock()
	c.pendingBy[requestID] = p
	c.pendingMu.Unlock()

	c.mu.Lock()
	writeErr := WriteFrame(c.conn, Frame{Opcode: opcode, Body: body})
	c.mu.Unlock()
	if writeErr != nil {
		c.pendingMu.Lock()
		delete(c.pendingBy, requestID)
		c.pendingMu.Unlock()
		return writeErr
	}

	select {
	case frame := <-p.result:
		if frame.Opcode == OpError {
			var errBody ErrorResponse
			if err := msgpack.Unmarshal(frame.Body, &errBody); err != nil {
				return fmt.Errorf("decoding error response: %w", err)
			}
			if sentinel := sentinelForKind(errBody.Kind); sentinel != nil {
				return fmt.Errorf("%s: %w", errBody.Message, sentinel)
			}
			return fmt.Errorf("%s: %s", errBody.Kind, errBody.Message)
		}
		if out != nil {
			if err := msgpack.Unmarshal(frame.Body, out); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
		}
		return nil
	case err := <-p.err:
		return err
	case <-time.After(timeout):
		c.pendingMu.Lock()
		delete(c.pendingBy, requestID)
		c.pendingMu.Unlock()
		return fmt.Errorf("rpc opcode %d timed out after %s: %w", opcode, timeout, errs.ErrTransport)
	}
}

// Close closes the underlying connection and releases pending callers.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

var _ io.Closer = (*Client)(nil)
