package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/mcpsentry/internal/mcptypes"
)

func TestStreamable_StartPerformsHandshakeAndCapturesSessionHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("mcp-session-id", "sess-123")
		w.Header().Set("Content-Type", "application/json")
		switch req["method"] {
		case "initialize":
			json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0", "id": req["id"],
				"result": map[string]any{"protocolVersion": "2024-11-05"},
			})
		default:
			w.WriteHeader(http.StatusAccepted)
		}
	}))
	defer srv.Close()

	s := NewStreamable(mcptypes.ServerConfig{Host: srv.URL}, "mcpsentry-test", "0.0.0")

	require.NoError(t, s.Start(context.Background()))

	raw, done := s.AlreadyInitialized()
	require.True(t, done)
	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "2024-11-05", result.ProtocolVersion)
	assert.Equal(t, "sess-123", s.SessionID())
}

func TestStreamable_StartFailsOnProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": "init-0",
			"error": map[string]any{"code": -32000, "message": "boom"},
		})
	}))
	defer srv.Close()

	s := NewStreamable(mcptypes.ServerConfig{Host: srv.URL}, "mcpsentry-test", "0.0.0")
	err := s.Start(context.Background())
	assert.Error(t, err)
}

func TestStreamable_SendDispatchesJSONArrayBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"jsonrpc":"2.0","id":"1","result":{"a":1}},{"jsonrpc":"2.0","id":"2","result":{"b":2}}]`))
	}))
	defer srv.Close()

	s := NewStreamable(mcptypes.ServerConfig{Host: srv.URL}, "mcpsentry-test", "0.0.0")

	var mu sync.Mutex
	var received []json.RawMessage
	s.OnMessage(func(raw json.RawMessage) {
		mu.Lock()
		received = append(received, raw)
		mu.Unlock()
	})

	require.NoError(t, s.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":"1","method":"noop"}`)))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 2)
}

func TestStreamable_SendDispatchesEventStreamBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"jsonrpc\":\"2.0\",\"id\":\"1\",\"result\":{}}\n\n"))
		w.Write([]byte("data: ping\n\n"))
	}))
	defer srv.Close()

	s := NewStreamable(mcptypes.ServerConfig{Host: srv.URL}, "mcpsentry-test", "0.0.0")

	var received []json.RawMessage
	s.OnMessage(func(raw json.RawMessage) { received = append(received, raw) })

	require.NoError(t, s.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":"1","method":"noop"}`)))
	assert.Len(t, received, 1, "the ping keepalive line must not be dispatched as a frame")
}

func TestStreamable_SendReturnsErrorOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	s := NewStreamable(mcptypes.ServerConfig{Host: srv.URL}, "mcpsentry-test", "0.0.0")
	err := s.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":"1","method":"noop"}`))
	assert.Error(t, err)
}

func TestStreamable_SessionIDTravelsAsURLParamByDefault(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("mcp-session-id", "sess-abc")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewStreamable(mcptypes.ServerConfig{Host: srv.URL}, "mcpsentry-test", "0.0.0")
	require.NoError(t, s.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":"1","method":"noop"}`)))
	require.NoError(t, s.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":"2","method":"noop"}`)))

	assert.Contains(t, gotQuery, "sessionId=sess-abc")
}

func TestStreamable_WithSessionIDHeaderOptionUsesHeaderInstead(t *testing.T) {
	var gotHeader, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("mcp-session-id")
		gotQuery = r.URL.RawQuery
		w.Header().Set("mcp-session-id", "sess-xyz")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewStreamable(mcptypes.ServerConfig{Host: srv.URL}, "mcpsentry-test", "0.0.0", WithSessionIDHeader())
	require.NoError(t, s.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":"1","method":"noop"}`)))
	require.NoError(t, s.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":"2","method":"noop"}`)))

	assert.Equal(t, "sess-xyz", gotHeader)
	assert.Empty(t, gotQuery)
}

func TestStreamable_CloseEmitsOnClose(t *testing.T) {
	s := NewStreamable(mcptypes.ServerConfig{Host: "http://example.invalid"}, "mcpsentry-test", "0.0.0")
	closed := false
	s.OnClose(func() { closed = true })
	require.NoError(t, s.Close())
	assert.True(t, closed)
}
