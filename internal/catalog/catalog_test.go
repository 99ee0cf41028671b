package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/giantswarm/mcpsentry/internal/mcptypes"
)

func TestCatalog_InstallToolsDerivesParameterAnalysis(t *testing.T) {
	c := New()
	c.installTools([]mcptypes.Tool{
		{
			Name: "search",
			InputSchema: mcptypes.InputSchema{
				Properties: map[string]mcptypes.SchemaProperty{
					"query": {Type: mcptypes.TypeString},
				},
				Required: []string{"query"},
			},
		},
		{Name: "ping"},
	})

	tools := c.Tools()
	assert.Len(t, tools, 2)

	search, ok := c.FindTool("search")
	assert.True(t, ok)
	assert.Equal(t, "search", search.Name)

	for _, et := range tools {
		if et.Tool.Name == "search" {
			assert.True(t, et.Analysis.HasParameters)
			assert.Equal(t, 1, et.Analysis.Count)
		}
		if et.Tool.Name == "ping" {
			assert.False(t, et.Analysis.HasParameters)
		}
	}

	_, ok = c.FindTool("does-not-exist")
	assert.False(t, ok)
}

func TestCatalog_InstallResourceTemplatesExtractsParameters(t *testing.T) {
	c := New()
	c.installResourceTemplates([]mcptypes.ResourceTemplate{
		{URITemplate: "file:///{path}", Name: "file"},
		{URITemplate: "static://thing", Name: "static"},
	})

	templates := c.ResourceTemplates()
	assert.Len(t, templates, 2)
	for _, et := range templates {
		switch et.Template.Name {
		case "file":
			assert.Equal(t, []string{"path"}, et.Parameters)
			assert.True(t, et.Analysis.RequiresSynthesis)
		case "static":
			assert.Empty(t, et.Parameters)
			assert.False(t, et.Analysis.RequiresSynthesis)
		}
	}
}

func TestCatalog_Reset(t *testing.T) {
	c := New()
	c.installTools([]mcptypes.Tool{{Name: "t"}})
	c.installResources([]mcptypes.Resource{{URI: "r"}})
	assert.NotEmpty(t, c.Tools())
	assert.NotEmpty(t, c.Resources())

	c.Reset()
	assert.Empty(t, c.Tools())
	assert.Empty(t, c.Resources())
	assert.Empty(t, c.Prompts())
	assert.Empty(t, c.ResourceTemplates())
}

func TestCatalog_OnUpdateNotifiesListeners(t *testing.T) {
	c := New()
	calls := 0
	c.OnUpdate(func() { calls++ })

	c.installTools(nil)
	c.notify()
	c.notify()

	assert.Equal(t, 2, calls)
}
