package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/giantswarm/mcpsentry/internal/auth"
	"github.com/giantswarm/mcpsentry/internal/logging"
	"github.com/giantswarm/mcpsentry/internal/mcperr"
	"github.com/giantswarm/mcpsentry/internal/mcptypes"
)

// sseState is the handshake state machine described in spec §4.2.
type sseState int

const (
	sseIdle sseState = iota
	sseAwaitingEndpoint
	sseReady
	sseClosed
)

// endpointAnnounceTimeout is how long Start waits for the server to emit
// its endpoint event before failing with StageSSEEndpointAnnounce.
const endpointAnnounceTimeout = 10 * time.Second

// sessionIDPattern extracts a session_id= or sessionId= query fragment
// from an announced endpoint string. The token alphabet is hex digits and
// hyphens.
var sessionIDPattern = regexp.MustCompile(`(?:session_id|sessionId)=([0-9a-fA-F-]+)`)

// SSE implements Transport over a server-streamed event source for
// responses paired with a POST endpoint for requests.
type SSE struct {
	callbacks

	cfg    mcptypes.ServerConfig
	client *http.Client

	mu              sync.Mutex
	state           sseState
	messageURL      string // absolute or root-relative, as announced
	sessionID       string
	protocolVersion string

	endpointReady chan struct{}
	endpointErr   error
	readyOnce     sync.Once

	body io.ReadCloser
}

// NewSSE builds an SSE transport for the given server configuration.
func NewSSE(cfg mcptypes.ServerConfig) *SSE {
	return &SSE{
		cfg:           cfg,
		client:        &http.Client{},
		state:         sseIdle,
		endpointReady: make(chan struct{}),
	}
}

func (s *SSE) SessionID() string                    { return s.sessionID }
func (s *SSE) SetProtocolVersion(version string)    { s.protocolVersion = version }

// Start opens the SSE stream and blocks until the server announces its
// message endpoint (or endpointAnnounceTimeout elapses).
func (s *SSE) Start(ctx context.Context) error {
	s.mu.Lock()
	s.state = sseAwaitingEndpoint
	s.mu.Unlock()

	streamURL := s.cfg.Host + s.cfg.Path
	req, err := s.buildRequest(ctx, streamURL)
	if err != nil {
		return mcperr.Connect(mcperr.StageSSEEndpointAnnounce, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return mcperr.Connect(mcperr.StageSSEEndpointAnnounce, err)
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return mcperr.Connect(mcperr.StageSSEEndpointAnnounce, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	s.body = resp.Body

	go s.readLoop()

	timer := time.NewTimer(endpointAnnounceTimeout)
	defer timer.Stop()
	select {
	case <-s.endpointReady:
		if s.endpointErr != nil {
			return mcperr.Connect(mcperr.StageSSEEndpointAnnounce, s.endpointErr)
		}
		s.mu.Lock()
		s.state = sseReady
		s.mu.Unlock()
		return nil
	case <-timer.C:
		return mcperr.Connect(mcperr.StageSSEEndpointAnnounce, fmt.Errorf("no endpoint announcement within %s", endpointAnnounceTimeout))
	case <-ctx.Done():
		return mcperr.Connect(mcperr.StageSSEEndpointAnnounce, ctx.Err())
	}
}

// buildRequest applies auth to a bare URL and returns a ready-to-send GET
// request. When the configured auth needs headers beyond what a plain
// URL-query route can carry (custom headers, apiKey, basic auth), those
// headers are attached directly to this request: unlike a browser
// EventSource, an *http.Request has no such restriction, so one request
// path serves both of spec §4.2's "URL-query route" and "streaming fetch"
// cases.
func (s *SSE) buildRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	applied, err := auth.Apply(s.cfg.Auth, auth.Request{URL: rawURL, Headers: map[string]string{}})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, applied.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range applied.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// readLoop consumes the SSE stream, completing endpointReady on the first
// endpoint announcement and thereafter dispatching data: payloads to
// OnMessage.
func (s *SSE) readLoop() {
	defer func() {
		s.body.Close()
		s.mu.Lock()
		s.state = sseClosed
		s.mu.Unlock()
		s.emitClose()
	}()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			eventName = ""
			continue
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			s.handleDataLine(eventName, data)
		}
	}
	if err := scanner.Err(); err != nil {
		s.failEndpointWait(err)
		s.emitError(err)
	}
}

func (s *SSE) handleDataLine(eventName, data string) {
	s.mu.Lock()
	ready := s.state == sseReady
	s.mu.Unlock()

	if !ready {
		if eventName == "endpoint" || sessionIDPattern.MatchString(data) {
			s.installEndpoint(data)
		}
		return
	}

	if data == "ping" {
		return
	}
	s.emitMessage(json.RawMessage(data))
}

func (s *SSE) installEndpoint(data string) {
	s.mu.Lock()
	s.messageURL = data
	s.mu.Unlock()

	if m := sessionIDPattern.FindStringSubmatch(data); m != nil {
		s.mu.Lock()
		s.sessionID = m[1]
		s.mu.Unlock()
	}
	s.readyOnce.Do(func() { close(s.endpointReady) })
}

func (s *SSE) failEndpointWait(err error) {
	s.mu.Lock()
	already := s.state == sseReady
	s.mu.Unlock()
	if already {
		return
	}
	s.endpointErr = err
	s.readyOnce.Do(func() { close(s.endpointReady) })
}

// Send POSTs a JSON-RPC request to the announced message endpoint. A 202
// response (or a literal "Accepted" body) means the reply will arrive
// later over the SSE stream; any other 2xx with a JSON body is dispatched
// to OnMessage immediately.
func (s *SSE) Send(ctx context.Context, message json.RawMessage) error {
	s.mu.Lock()
	state, messageURL := s.state, s.messageURL
	s.mu.Unlock()
	if state != sseReady {
		return fmt.Errorf("sse transport not ready")
	}

	target, err := s.resolveMessageURL(messageURL)
	if err != nil {
		return err
	}
	applied, err := auth.Apply(s.cfg.Auth, auth.Request{URL: target, Headers: map[string]string{}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, applied.URL, strings.NewReader(string(message)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range applied.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusAccepted || strings.TrimSpace(string(body)) == `"Accepted"` || strings.TrimSpace(string(body)) == "Accepted" {
		logging.Debug("transport.sse", "request accepted asynchronously, response will arrive via stream")
		return nil
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("sse POST failed with status %d: %s", resp.StatusCode, string(body))
	}
	if len(body) > 0 {
		s.emitMessage(json.RawMessage(body))
	}
	return nil
}

// resolveMessageURL turns an announced endpoint (absolute or
// root-relative) into a full URL against the configured host.
func (s *SSE) resolveMessageURL(announced string) (string, error) {
	if u, err := url.Parse(announced); err == nil && u.IsAbs() {
		return announced, nil
	}
	base, err := url.Parse(s.cfg.Host)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(announced)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// Close tears down the reader and emits onclose exactly once, matching the
// teardown step of spec §4.2's state machine.
func (s *SSE) Close() error {
	s.mu.Lock()
	already := s.state == sseClosed
	s.state = sseClosed
	s.mu.Unlock()
	if already {
		return nil
	}
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}
