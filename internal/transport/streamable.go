package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/giantswarm/mcpsentry/internal/auth"
	"github.com/giantswarm/mcpsentry/internal/mcperr"
	"github.com/giantswarm/mcpsentry/internal/mcptypes"
)

// protocolVersion is the MCP wire version this inspector negotiates.
const protocolVersion = "2024-11-05"

const sessionIDHeader = "mcp-session-id"

// Streamable implements Transport over a single bidirectional HTTP
// endpoint. Unlike SSE, the server may reply to any POST with
// either a complete JSON body or a streamed text/event-stream.
type Streamable struct {
	callbacks

	cfg         mcptypes.ServerConfig
	client      *http.Client
	clientName  string
	clientVers  string

	// useSessionIDInURL implements the useSessionIdInUrl policy (spec
	// §4.3): by default the session identifier travels as a URL query
	// parameter; set false only when the deployment needs it as a header
	// instead (custom headers trigger CORS preflight in browser contexts,
	// which doesn't apply to this Go client but the policy is preserved
	// for wire compatibility with servers that expect one or the other).
	useSessionIDInURL bool

	mu              sync.Mutex
	sessionID       string
	protocolVersion string
	initResult      json.RawMessage
	initialized     bool
}

// StreamableOption configures a Streamable transport at construction time.
type StreamableOption func(*Streamable)

// WithSessionIDHeader switches session-identifier placement from the
// default URL query parameter to the mcp-session-id header.
func WithSessionIDHeader() StreamableOption {
	return func(s *Streamable) { s.useSessionIDInURL = false }
}

// NewStreamable builds a streamable-HTTP transport for the given server
// configuration and client identity (used in the automatic initialize
// handshake performed by Start).
func NewStreamable(cfg mcptypes.ServerConfig, clientName, clientVersion string, opts ...StreamableOption) *Streamable {
	s := &Streamable{
		cfg:               cfg,
		client:            &http.Client{},
		clientName:        clientName,
		clientVers:        clientVersion,
		useSessionIDInURL: true,
		protocolVersion:   protocolVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Streamable) SessionID() string                 { return s.sessionID }
func (s *Streamable) SetProtocolVersion(version string)  { s.protocolVersion = version }

// AlreadyInitialized returns the InitializeResult captured during Start
// and true, if Start already performed the handshake; protocol.Client uses
// this to avoid the double-initialize ambiguity flagged in spec §9.
func (s *Streamable) AlreadyInitialized() (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initResult, s.initialized
}

// Start performs the streamable session's automatic initialize handshake
// (spec §4.4: "the streamable transport has already exchanged initialize
// as part of connect").
func (s *Streamable) Start(ctx context.Context) error {
	initReq := map[string]any{
		"jsonrpc": "2.0",
		"id":      "init-0",
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": s.protocolVersion,
			"capabilities": map[string]any{
				"roots":    map[string]any{"listChanged": true},
				"sampling": map[string]any{},
			},
			"clientInfo": map[string]any{
				"name":    s.clientName,
				"version": s.clientVers,
			},
		},
	}
	body, err := json.Marshal(initReq)
	if err != nil {
		return mcperr.Connect(mcperr.StageInitialize, err)
	}

	var captured json.RawMessage
	collect := func(raw json.RawMessage) {
		if captured == nil {
			captured = raw
		}
	}

	if err := s.post(ctx, body, collect); err != nil {
		return mcperr.Connect(mcperr.StageInitialize, err)
	}
	if captured == nil {
		return mcperr.Connect(mcperr.StageInitialize, fmt.Errorf("server did not respond to initialize"))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(captured, &envelope); err != nil {
		return mcperr.Connect(mcperr.StageInitialize, err)
	}
	if envelope.Error != nil {
		return mcperr.Connect(mcperr.StageInitialize, mcperr.Protocol(envelope.Error.Code, envelope.Error.Message))
	}

	s.mu.Lock()
	s.initResult = envelope.Result
	s.initialized = true
	s.mu.Unlock()

	notif, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "notifications/initialized",
	})
	_ = s.post(ctx, notif, func(json.RawMessage) {})

	return nil
}

// Send dispatches one JSON-RPC message, feeding every resulting inbound
// frame to OnMessage.
func (s *Streamable) Send(ctx context.Context, message json.RawMessage) error {
	return s.post(ctx, message, s.emitMessage)
}

// post is the shared request path for both the automatic initialize
// handshake and regular Send calls.
func (s *Streamable) post(ctx context.Context, body []byte, onFrame func(json.RawMessage)) error {
	target, err := s.targetURL()
	if err != nil {
		return err
	}
	applied, err := auth.Apply(s.cfg.Auth, auth.Request{URL: target, Headers: map[string]string{}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, applied.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range applied.Headers {
		req.Header.Set(k, v)
	}
	if !s.useSessionIDInURL {
		if sid := s.sessionID; sid != "" {
			req.Header.Set(sessionIDHeader, sid)
		}
	}
	// Two values in one header, set last so no downstream normalization
	// drops the event-stream alternative.
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get(sessionIDHeader); sid != "" {
		s.mu.Lock()
		s.sessionID = sid
		s.mu.Unlock()
	}

	if resp.StatusCode == http.StatusAccepted {
		return nil
	}
	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("streamable POST failed with status %d: %s", resp.StatusCode, string(data))
	}

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "event-stream"):
		return s.consumeEventStream(resp.Body, onFrame)
	default:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return s.dispatchJSONBody(data, onFrame)
	}
}

// dispatchJSONBody handles a JSON body that may be a single JSON-RPC
// object or an array of them.
func (s *Streamable) dispatchJSONBody(data []byte, onFrame func(json.RawMessage)) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return err
		}
		for _, m := range arr {
			onFrame(m)
		}
		return nil
	}
	onFrame(json.RawMessage(trimmed))
	return nil
}

// consumeEventStream reads one event-stream response body to completion,
// dispatching each data: payload as a JSON-RPC frame.
func (s *Streamable) consumeEventStream(body io.ReadCloser, onFrame func(json.RawMessage)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "ping" {
			continue
		}
		onFrame(json.RawMessage(data))
	}
	return scanner.Err()
}

func (s *Streamable) targetURL() (string, error) {
	base := s.cfg.Host + s.cfg.Path
	if !s.useSessionIDInURL {
		return base, nil
	}
	s.mu.Lock()
	sid := s.sessionID
	s.mu.Unlock()
	if sid == "" {
		return base, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("sessionId", sid)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Close only emits onclose for the streamable transport: there is no
// persistent connection to tear down, only per-request HTTP round trips.
func (s *Streamable) Close() error {
	s.emitClose()
	return nil
}
