// Package rpc bridges request/response callers (HTTP handlers, tests) to the
// single worker that services panel commands. Every call is keyed by a
// monotonically increasing correlation id held in a pending-id-to-resolver
// table, so replies always reach the caller that asked.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Command names the operations the panel can request.
type Command string

const (
	CommandGetStreams Command = "getStreamsInfo"
	CommandGetUser    Command = "getUserInfo"
	CommandLogin      Command = "login"
	CommandLogout     Command = "logout"
	CommandRefresh    Command = "refresh"
)

// Request is one command in flight, tagged with its correlation id.
type Request struct {
	ID      uint64          `json:"id"`
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response carries the reply for the request with the matching id. Exactly one
// of Data and Err is set.
type Response struct {
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
	Err  string          `json:"error,omitempty"`
}

// RemoteError is a failure reported by the dispatcher.
type RemoteError struct {
	Code string
}

func (e *RemoteError) Error() string { return fmt.Sprintf("rpc: %s", e.Code) }

// ErrClosed is returned by Call after Close.
var ErrClosed = errors.New("rpc: broker closed")

// Broker owns the correlation-id table and the request queue.
type Broker struct {
	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]chan Response
	requests chan Request
	closed   bool
}

// NewBroker returns a broker whose request queue holds up to queue entries.
func NewBroker(queue int) *Broker {
	if queue <= 0 {
		queue = 16
	}
	return &Broker{
		pending:  make(map[uint64]chan Response),
		requests: make(chan Request, queue),
	}
}

// Requests is the dispatcher side of the broker.
func (b *Broker) Requests() <-chan Request { return b.requests }

// Call enqueues a command and blocks until its reply arrives or ctx is done.
func (b *Broker) Call(ctx context.Context, cmd Command, payload json.RawMessage) (json.RawMessage, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.nextID++
	id := b.nextID
	ch := make(chan Response, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	select {
	case b.requests <- Request{ID: id, Command: cmd, Payload: payload}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-ch:
		if resp.Err != "" {
			return nil, &RemoteError{Code: resp.Err}
		}
		return resp.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve delivers a reply to the caller holding the matching id. It reports
// whether a caller was still waiting.
func (b *Broker) Resolve(resp Response) bool {
	b.mu.Lock()
	ch, ok := b.pending[resp.ID]
	if ok {
		delete(b.pending, resp.ID)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

// Close rejects future calls. In-flight calls finish normally.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
