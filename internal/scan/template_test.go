package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteTemplate(t *testing.T) {
	tests := []struct {
		name        string
		uriTemplate string
		params      []string
		args        map[string]any
		expectedURI string
		expectedOK  bool
	}{
		{
			name:        "single parameter substituted",
			uriTemplate: "file:///{path}",
			params:      []string{"path"},
			args:        map[string]any{"path": "etc/passwd"},
			expectedURI: "file:///etc/passwd",
			expectedOK:  true,
		},
		{
			name:        "multiple parameters substituted",
			uriTemplate: "db://{host}:{port}/{name}",
			params:      []string{"host", "port", "name"},
			args:        map[string]any{"host": "localhost", "port": 5432, "name": "app"},
			expectedURI: "db://localhost:5432/app",
			expectedOK:  true,
		},
		{
			name:        "missing parameter fails locally",
			uriTemplate: "file:///{path}",
			params:      []string{"path"},
			args:        map[string]any{},
			expectedURI: "",
			expectedOK:  false,
		},
		{
			name:        "no parameters required",
			uriTemplate: "file:///static",
			params:      nil,
			args:        map[string]any{},
			expectedURI: "file:///static",
			expectedOK:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, ok := substituteTemplate(tt.uriTemplate, tt.params, tt.args)
			assert.Equal(t, tt.expectedOK, ok)
			assert.Equal(t, tt.expectedURI, uri)
		})
	}
}
