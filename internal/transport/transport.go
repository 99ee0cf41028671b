// Package transport implements the two MCP wire transports described in
// spec §4.2-4.3: SSE-with-side-channel-POST and streamable HTTP. Both
// satisfy the Transport interface so protocol.Client is polymorphic over
// the capability set, per spec §9's "heterogeneous transports → interface
// abstraction" design note.
package transport

import (
	"context"
	"encoding/json"
)

// Transport is the capability set protocol.Client depends on. Every
// inbound JSON-RPC frame — whether it arrived as an immediate HTTP
// response body or asynchronously over a stream — is delivered through
// OnMessage, never as Send's return value; this lets both transports
// share one correlation path in the protocol client.
type Transport interface {
	// Start performs whatever handshake the transport needs (SSE endpoint
	// announcement wait, streamable session negotiation) before Send can
	// be called.
	Start(ctx context.Context) error

	// Send dispatches one JSON-RPC request or notification. It returns an
	// error only for request-level send failures; the eventual response
	// (if any) arrives via the OnMessage callback.
	Send(ctx context.Context, message json.RawMessage) error

	// Close tears down the transport's connections.
	Close() error

	// OnMessage registers the callback invoked for every inbound JSON-RPC
	// frame. Only one callback is retained; registering again replaces it.
	OnMessage(func(json.RawMessage))

	// OnError registers the callback invoked for transport-level failures
	// that aren't tied to one particular request (stream read errors).
	OnError(func(error))

	// OnClose registers the callback invoked once the transport has torn
	// down, whether by explicit Close or by a fatal stream error.
	OnClose(func())

	// SessionID returns the session identifier negotiated during Start,
	// or "" if none has been established yet.
	SessionID() string

	// SetProtocolVersion records the negotiated MCP protocol version so
	// the transport can include it on later requests if the wire format
	// requires it.
	SetProtocolVersion(version string)
}

// callbacks is the embeddable bundle of the three handler fields both
// transport implementations need; it exists so SSE and streamable don't
// duplicate the same three nil-checked setters.
type callbacks struct {
	onMessage func(json.RawMessage)
	onError   func(error)
	onClose   func()
}

func (c *callbacks) OnMessage(f func(json.RawMessage)) { c.onMessage = f }
func (c *callbacks) OnError(f func(error))             { c.onError = f }
func (c *callbacks) OnClose(f func())                  { c.onClose = f }

func (c *callbacks) emitMessage(raw json.RawMessage) {
	if c.onMessage != nil {
		c.onMessage(raw)
	}
}

func (c *callbacks) emitError(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

func (c *callbacks) emitClose() {
	if c.onClose != nil {
		c.onClose()
	}
}
