// Package catalog implements ArtifactCatalog: the enumerated,
// deduplicated, parameter-analyzed view of a connected server's tools,
// resources, resource templates, and prompts.
package catalog

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/mcpsentry/internal/mcptypes"
	"github.com/giantswarm/mcpsentry/internal/protocol"
)

// EnhancedTool pairs a Tool with its derived ParameterAnalysis.
type EnhancedTool struct {
	Tool     mcptypes.Tool
	Analysis mcptypes.ParameterAnalysis
}

// EnhancedPrompt pairs a Prompt with its derived ParameterAnalysis.
type EnhancedPrompt struct {
	Prompt   mcptypes.Prompt
	Analysis mcptypes.ParameterAnalysis
}

// EnhancedResourceTemplate pairs a ResourceTemplate with the parameter
// analysis derived from its {name} placeholders.
type EnhancedResourceTemplate struct {
	Template   mcptypes.ResourceTemplate
	Analysis   mcptypes.ParameterAnalysis
	Parameters []string
}

// Catalog holds the latest enumeration for one connection. It is safe for
// concurrent reads and writes; Refresh replaces each list under the lock
// (tools first, then prompts, resources, and resource templates one after
// another) and notifies listeners after each batch of updates.
type Catalog struct {
	mu                sync.RWMutex
	tools             []EnhancedTool
	resources         []mcptypes.Resource
	resourceTemplates []EnhancedResourceTemplate
	prompts           []EnhancedPrompt

	listenersMu sync.Mutex
	listeners   []func()
}

// New returns an empty catalog.
func New() *Catalog { return &Catalog{} }

// OnUpdate registers a listener invoked once per installed batch of
// updates (spec §4.5: "registered listeners notified exactly once per
// batch of updates").
func (c *Catalog) OnUpdate(fn func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Catalog) notify() {
	c.listenersMu.Lock()
	listeners := append([]func(){}, c.listeners...)
	c.listenersMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Reset clears the catalog; called on every new connection attempt
// (spec §3 invariant: "Catalog and passive results reset on every new
// connection attempt").
func (c *Catalog) Reset() {
	c.mu.Lock()
	c.tools = nil
	c.resources = nil
	c.resourceTemplates = nil
	c.prompts = nil
	c.mu.Unlock()
}

// Refresh fetches tools synchronously (to satisfy early callers), then
// fetches prompts, resources, and resource templates concurrently via
// errgroup, installing them as one batch once all three resolve.
func (c *Catalog) Refresh(ctx context.Context, client *protocol.Client) error {
	tools, err := client.ListTools(ctx)
	if err != nil {
		return err
	}
	c.installTools(tools)
	c.notify()

	var (
		prompts           []mcptypes.Prompt
		resources         []mcptypes.Resource
		resourceTemplates []mcptypes.ResourceTemplate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		prompts, err = client.ListPrompts(gctx)
		return err
	})
	g.Go(func() (err error) {
		resources, err = client.ListResources(gctx)
		return err
	})
	g.Go(func() (err error) {
		resourceTemplates, err = client.ListResourceTemplates(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.installPrompts(prompts)
	c.installResources(resources)
	c.installResourceTemplates(resourceTemplates)
	c.notify()
	return nil
}

func (c *Catalog) installTools(tools []mcptypes.Tool) {
	enhanced := make([]EnhancedTool, 0, len(tools))
	for _, t := range tools {
		enhanced = append(enhanced, EnhancedTool{Tool: t, Analysis: mcptypes.AnalyzeToolParameters(t.InputSchema)})
	}
	c.mu.Lock()
	c.tools = enhanced
	c.mu.Unlock()
}

func (c *Catalog) installPrompts(prompts []mcptypes.Prompt) {
	enhanced := make([]EnhancedPrompt, 0, len(prompts))
	for _, p := range prompts {
		enhanced = append(enhanced, EnhancedPrompt{Prompt: p, Analysis: mcptypes.AnalyzePromptParameters(p.Arguments)})
	}
	c.mu.Lock()
	c.prompts = enhanced
	c.mu.Unlock()
}

func (c *Catalog) installResources(resources []mcptypes.Resource) {
	c.mu.Lock()
	c.resources = resources
	c.mu.Unlock()
}

func (c *Catalog) installResourceTemplates(templates []mcptypes.ResourceTemplate) {
	enhanced := make([]EnhancedResourceTemplate, 0, len(templates))
	for _, t := range templates {
		params := protocol.TemplateParameters(t.URITemplate)
		analysis := mcptypes.ParameterAnalysis{
			HasParameters:     len(params) > 0,
			Count:             len(params),
			RequiresSynthesis: len(params) > 0,
		}
		for _, p := range params {
			analysis.Parameters = append(analysis.Parameters, mcptypes.Parameter{Name: p, Type: mcptypes.TypeString, Required: true})
		}
		enhanced = append(enhanced, EnhancedResourceTemplate{Template: t, Analysis: analysis, Parameters: params})
	}
	c.mu.Lock()
	c.resourceTemplates = enhanced
	c.mu.Unlock()
}

// Tools returns a snapshot of the current tool catalog.
func (c *Catalog) Tools() []EnhancedTool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]EnhancedTool{}, c.tools...)
}

// Resources returns a snapshot of the current resource catalog.
func (c *Catalog) Resources() []mcptypes.Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]mcptypes.Resource{}, c.resources...)
}

// ResourceTemplates returns a snapshot of the current resource-template
// catalog.
func (c *Catalog) ResourceTemplates() []EnhancedResourceTemplate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]EnhancedResourceTemplate{}, c.resourceTemplates...)
}

// Prompts returns a snapshot of the current prompt catalog.
func (c *Catalog) Prompts() []EnhancedPrompt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]EnhancedPrompt{}, c.prompts...)
}

// FindTool looks up a tool by name.
func (c *Catalog) FindTool(name string) (mcptypes.Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tools {
		if t.Tool.Name == name {
			return t.Tool, true
		}
	}
	return mcptypes.Tool{}, false
}
