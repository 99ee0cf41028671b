package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/mcpsentry/internal/mcptypes"
)

func TestClient_ListTools_DropsNilEntries(t *testing.T) {
	ft := &fakeTransport{}
	c := New(ft, "mcpsentry", "test")

	done := make(chan struct{})
	var tools []mcptypes.Tool
	var err error
	go func() {
		tools, err = c.ListTools(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return ft.requestCount() == 1 }, time.Second, time.Millisecond)
	req := ft.lastRequest()
	assert.Equal(t, "tools/list", req.Method)
	ft.reply(req.ID, map[string]any{
		"tools": []any{map[string]any{"name": "search"}, nil},
	})
	<-done

	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Name)
}

func TestClient_ListTools_DegradesMethodNotFoundToEmpty(t *testing.T) {
	ft := &fakeTransport{}
	c := New(ft, "mcpsentry", "test")

	done := make(chan struct{})
	var tools []mcptypes.Tool
	var err error
	go func() {
		tools, err = c.ListTools(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return ft.requestCount() == 1 }, time.Second, time.Millisecond)
	req := ft.lastRequest()
	ft.replyError(req.ID, methodNotFound, "method not found")
	<-done

	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestClient_ListResources_DeduplicatesByURI(t *testing.T) {
	ft := &fakeTransport{}
	c := New(ft, "mcpsentry", "test")

	done := make(chan struct{})
	var resources []mcptypes.Resource
	var err error
	go func() {
		resources, err = c.ListResources(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return ft.requestCount() == 1 }, time.Second, time.Millisecond)
	req := ft.lastRequest()
	ft.reply(req.ID, map[string]any{
		"resources": []any{
			map[string]any{"uri": "file:///a"},
			map[string]any{"uri": "file:///a"},
			map[string]any{"uri": "file:///b"},
			map[string]any{"uri": ""},
		},
	})
	<-done

	require.NoError(t, err)
	require.Len(t, resources, 2)
}

func TestClient_ListResourceTemplates_DeduplicatesByURITemplate(t *testing.T) {
	ft := &fakeTransport{}
	c := New(ft, "mcpsentry", "test")

	done := make(chan struct{})
	var templates []mcptypes.ResourceTemplate
	var err error
	go func() {
		templates, err = c.ListResourceTemplates(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return ft.requestCount() == 1 }, time.Second, time.Millisecond)
	req := ft.lastRequest()
	ft.reply(req.ID, map[string]any{
		"resourceTemplates": []any{
			map[string]any{"uriTemplate": "file:///{path}"},
			map[string]any{"uriTemplate": "file:///{path}"},
		},
	})
	<-done

	require.NoError(t, err)
	assert.Len(t, templates, 1)
}

func TestTemplateParameters(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected []string
	}{
		{name: "single placeholder", uri: "file:///{path}", expected: []string{"path"}},
		{name: "multiple placeholders", uri: "db://{host}:{port}", expected: []string{"host", "port"}},
		{name: "no placeholders", uri: "static://thing", expected: nil},
		{name: "empty braces are ignored", uri: "thing://{}/rest", expected: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TemplateParameters(tt.uri))
		})
	}
}
