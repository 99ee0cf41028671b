// Package protocol implements the MCP JSON-RPC 2.0 client described in
// spec §4.4: request/response correlation over a transport.Transport,
// the initialize handshake, artifact enumeration, and schema-driven
// argument coercion for tool invocation.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/mcpsentry/internal/logging"
	"github.com/giantswarm/mcpsentry/internal/mcperr"
	"github.com/giantswarm/mcpsentry/internal/mcptypes"
	"github.com/giantswarm/mcpsentry/internal/transport"
)

// Default request budgets.
const (
	ListTimeout      = 10 * time.Second
	InvocationTimeout = 30 * time.Second
)

// Observer receives every successful invocation's parameters and result so
// PassiveMonitor can run detection over live traffic without the protocol
// client depending on the detection package directly.
type Observer interface {
	Observe(kind mcptypes.ArtifactKind, targetName string, params, result any, uri string)
}

// InitializeResult is the server's reply to the initialize handshake.
type InitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type pendingRequest struct {
	resultCh chan response
	timer    *time.Timer
}

// Client is the JSON-RPC 2.0 client wired to one Transport. It owns the
// pending-request correlation table, guarded by mu and written by the
// calling goroutine, the transport's OnMessage callback, and each
// request's timeout timer; there is no single dispatcher goroutine. It
// also owns the coercion logic for tool-call arguments.
type Client struct {
	transport     transport.Transport
	clientName    string
	clientVersion string

	mu      sync.Mutex
	pending map[string]*pendingRequest
	nextID  int64

	initMu     sync.Mutex
	initResult *InitializeResult

	observer Observer
}

// New wraps an already-constructed transport in a protocol client.
func New(t transport.Transport, clientName, clientVersion string) *Client {
	c := &Client{
		transport:     t,
		clientName:    clientName,
		clientVersion: clientVersion,
		pending:       make(map[string]*pendingRequest),
	}
	t.OnMessage(c.handleMessage)
	return c
}

// SetObserver installs the PassiveMonitor hook. A nil observer disables
// observation.
func (c *Client) SetObserver(o Observer) { c.observer = o }

// Start begins the transport and performs the initialize handshake,
// skipping the second initialize if the transport already performed one
// automatically during Start (spec §4.4, §9 flag #3).
func (c *Client) Start(ctx context.Context) (*InitializeResult, error) {
	if err := c.transport.Start(ctx); err != nil {
		return nil, err
	}

	type already interface {
		AlreadyInitialized() (json.RawMessage, bool)
	}
	if a, ok := c.transport.(already); ok {
		if raw, done := a.AlreadyInitialized(); done {
			var result InitializeResult
			if err := json.Unmarshal(raw, &result); err != nil {
				return nil, mcperr.Connect(mcperr.StageInitialize, err)
			}
			c.initMu.Lock()
			c.initResult = &result
			c.initMu.Unlock()
			c.transport.SetProtocolVersion(result.ProtocolVersion)
			return &result, nil
		}
	}

	return c.Initialize(ctx)
}

// Initialize sends the initialize handshake and, on success, fires the
// notifications/initialized notification.
func (c *Client) Initialize(ctx context.Context) (*InitializeResult, error) {
	c.initMu.Lock()
	if c.initResult != nil {
		defer c.initMu.Unlock()
		return c.initResult, nil
	}
	c.initMu.Unlock()

	params := map[string]any{
		"protocolVersion": protocolVersionConst,
		"capabilities": map[string]any{
			"roots":    map[string]any{"listChanged": true},
			"sampling": map[string]any{},
		},
		"clientInfo": map[string]any{
			"name":    c.clientName,
			"version": c.clientVersion,
		},
	}

	raw, err := c.call(ctx, "initialize", params, ListTimeout)
	if err != nil {
		return nil, err
	}
	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, mcperr.Connect(mcperr.StageInitialize, err)
	}

	c.initMu.Lock()
	c.initResult = &result
	c.initMu.Unlock()
	c.transport.SetProtocolVersion(result.ProtocolVersion)

	c.notify("notifications/initialized", nil)
	return &result, nil
}

const protocolVersionConst = "2024-11-05"

// notify sends a fire-and-forget JSON-RPC notification (no id, no reply
// expected).
func (c *Client) notify(method string, params any) {
	req := request{JSONRPC: "2.0", Method: method, Params: params}
	raw, err := json.Marshal(req)
	if err != nil {
		logging.Warn("protocol", "failed to marshal notification %s: %v", method, err)
		return
	}
	if err := c.transport.Send(context.Background(), raw); err != nil {
		logging.Warn("protocol", "failed to send notification %s: %v", method, err)
	}
}

// call sends a JSON-RPC request and waits for its correlated response, or
// fails with a Timeout error once d elapses.
func (c *Client) call(ctx context.Context, method string, params any, d time.Duration) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)
	key := fmt.Sprintf("%d", id)

	pending := &pendingRequest{resultCh: make(chan response, 1)}
	c.mu.Lock()
	c.pending[key] = pending
	c.mu.Unlock()

	timer := time.AfterFunc(d, func() {
		c.mu.Lock()
		if _, ok := c.pending[key]; ok {
			delete(c.pending, key)
		}
		c.mu.Unlock()
		select {
		case pending.resultCh <- response{}:
		default:
		}
	})
	pending.timer = timer

	req := request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	raw, err := json.Marshal(req)
	if err != nil {
		c.cancelPending(key)
		return nil, err
	}

	if err := c.transport.Send(ctx, raw); err != nil {
		c.cancelPending(key)
		return nil, err
	}

	select {
	case resp := <-pending.resultCh:
		timer.Stop()
		if resp.JSONRPC == "" && resp.Result == nil && resp.Error == nil {
			return nil, mcperr.Timeout(fmt.Sprintf("%s timed out after %s", method, d))
		}
		if resp.Error != nil {
			return nil, mcperr.Protocol(resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.cancelPending(key)
		return nil, mcperr.Cancelled(fmt.Sprintf("%s: %s", method, ctx.Err()))
	}
}

func (c *Client) cancelPending(key string) {
	c.mu.Lock()
	if p, ok := c.pending[key]; ok {
		p.timer.Stop()
		delete(c.pending, key)
	}
	c.mu.Unlock()
}

// handleMessage is the Transport.OnMessage callback: it looks up the
// pending entry for an inbound response's id and fulfills it. Unknown ids
// are logged and dropped.
func (c *Client) handleMessage(raw json.RawMessage) {
	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		logging.Warn("protocol", "failed to parse inbound message: %v", err)
		return
	}
	if resp.Method != "" {
		// A server-initiated notification; this client has no registered
		// notification handlers to dispatch to.
		return
	}
	if len(resp.ID) == 0 {
		logging.Warn("protocol", "dropping response with no id")
		return
	}
	key := idKey(resp.ID)

	c.mu.Lock()
	pending, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if !ok {
		logging.Warn("protocol", "dropping response for unknown id %s", key)
		return
	}
	pending.timer.Stop()
	pending.resultCh <- resp
}

// PendingCount reports how many requests are awaiting a response; used by
// tests asserting the pending-request map is empty at connection
// boundaries.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// FailAllPending fails every outstanding request with the given error,
// used during connection teardown.
func (c *Client) FailAllPending(err error) {
	c.mu.Lock()
	pendings := make([]*pendingRequest, 0, len(c.pending))
	for k, p := range c.pending {
		pendings = append(pendings, p)
		delete(c.pending, k)
	}
	c.mu.Unlock()

	for _, p := range pendings {
		p.timer.Stop()
		p.resultCh <- response{Error: &rpcError{Code: -1, Message: err.Error()}}
	}
}

// Close tears down the underlying transport.
func (c *Client) Close() error { return c.transport.Close() }
