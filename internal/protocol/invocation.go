package protocol

import (
	"context"
	"encoding/json"

	"github.com/giantswarm/mcpsentry/internal/logging"
	"github.com/giantswarm/mcpsentry/internal/mcptypes"
)

// CallTool invokes tools/call with args coerced against the tool's schema.
// On success, the observer (if any) is notified asynchronously; an
// observation failure never fails the call.
func (c *Client) CallTool(ctx context.Context, tool mcptypes.Tool, rawArgs map[string]string) (json.RawMessage, error) {
	args := CoerceArguments(tool.InputSchema, rawArgs)
	params := map[string]any{"name": tool.Name, "arguments": args}

	result, err := c.call(ctx, "tools/call", params, InvocationTimeout)
	if err != nil {
		return nil, err
	}
	c.observe(mcptypes.KindTool, tool.Name, args, result, "")
	return result, nil
}

// ReadResource invokes resources/read for the given URI.
func (c *Client) ReadResource(ctx context.Context, uri, name string) (json.RawMessage, error) {
	params := map[string]any{"uri": uri}
	result, err := c.call(ctx, "resources/read", params, InvocationTimeout)
	if err != nil {
		return nil, err
	}
	label := name
	if label == "" {
		label = uri
	}
	c.observe(mcptypes.KindResource, label, params, result, uri)
	return result, nil
}

// GetPrompt invokes prompts/get for the given prompt name and arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (json.RawMessage, error) {
	params := map[string]any{"name": name}
	if len(args) > 0 {
		params["arguments"] = args
	}
	result, err := c.call(ctx, "prompts/get", params, InvocationTimeout)
	if err != nil {
		return nil, err
	}
	c.observe(mcptypes.KindPrompt, name, args, result, "")
	return result, nil
}

// observe fires the PassiveMonitor hook on its own goroutine so a slow or
// failing observer can never delay or fail the invocation it observed.
func (c *Client) observe(kind mcptypes.ArtifactKind, targetName string, params, result any, uri string) {
	if c.observer == nil {
		return
	}
	obs := c.observer
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("protocol", nil, "passive observer panicked: %v", r)
			}
		}()
		obs.Observe(kind, targetName, params, result, uri)
	}()
}
