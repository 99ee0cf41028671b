package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitHostPath(t *testing.T) {
	tests := []struct {
		name         string
		rawURL       string
		expectedHost string
		expectedPath string
	}{
		{
			name:         "path only",
			rawURL:       "https://example.com/mcp",
			expectedHost: "https://example.com",
			expectedPath: "/mcp",
		},
		{
			name:         "path with query string",
			rawURL:       "https://example.com/mcp?session=abc",
			expectedHost: "https://example.com",
			expectedPath: "/mcp?session=abc",
		},
		{
			name:         "no path",
			rawURL:       "https://example.com",
			expectedHost: "https://example.com",
			expectedPath: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, path, err := splitHostPath(tt.rawURL)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedHost, host)
			assert.Equal(t, tt.expectedPath, path)
		})
	}
}

func TestSplitHostPath_InvalidURL(t *testing.T) {
	_, _, err := splitHostPath("://not-a-url")
	assert.Error(t, err)
}

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"X-A=1", "X-B=two=three"})
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, "X-A", headers[0].Name)
	assert.Equal(t, "1", headers[0].Value)
	assert.Equal(t, "X-B", headers[1].Name)
	assert.Equal(t, "two=three", headers[1].Value)
}

func TestParseHeaders_RejectsMissingEquals(t *testing.T) {
	_, err := parseHeaders([]string{"no-equals-sign"})
	assert.Error(t, err)
}
