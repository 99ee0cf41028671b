package protocol

import (
	"context"
	"encoding/json"

	"github.com/giantswarm/mcpsentry/internal/logging"
	"github.com/giantswarm/mcpsentry/internal/mcperr"
	"github.com/giantswarm/mcpsentry/internal/mcptypes"
)

// listAndDegrade runs a list method, degrading a JSON-RPC -32601
// ("method not found") error to an empty result with a warning log
// instead of propagating it as an error.
func (c *Client) listAndDegrade(ctx context.Context, method string, out any) error {
	raw, err := c.call(ctx, method, nil, ListTimeout)
	if err != nil {
		var pe *mcperr.Error
		if asProtocolNotFound(err, &pe) {
			logging.Warn("protocol", "%s: method not found, treating as empty", method)
			return nil
		}
		return err
	}
	return json.Unmarshal(raw, out)
}

func asProtocolNotFound(err error, target **mcperr.Error) bool {
	pe, ok := err.(*mcperr.Error)
	if !ok || pe.Kind != mcperr.KindProtocol || pe.Code != methodNotFound {
		return false
	}
	*target = pe
	return true
}

// ListTools returns the server's tools, with null entries filtered out.
func (c *Client) ListTools(ctx context.Context) ([]mcptypes.Tool, error) {
	var wrapper struct {
		Tools []*mcptypes.Tool `json:"tools"`
	}
	if err := c.listAndDegrade(ctx, "tools/list", &wrapper); err != nil {
		return nil, err
	}
	return dropNilTools(wrapper.Tools), nil
}

func dropNilTools(in []*mcptypes.Tool) []mcptypes.Tool {
	out := make([]mcptypes.Tool, 0, len(in))
	for _, t := range in {
		if t == nil {
			continue
		}
		out = append(out, *t)
	}
	return out
}

// ListResources returns the server's resources, deduplicated by URI.
func (c *Client) ListResources(ctx context.Context) ([]mcptypes.Resource, error) {
	var wrapper struct {
		Resources []*mcptypes.Resource `json:"resources"`
	}
	if err := c.listAndDegrade(ctx, "resources/list", &wrapper); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(wrapper.Resources))
	out := make([]mcptypes.Resource, 0, len(wrapper.Resources))
	for _, r := range wrapper.Resources {
		if r == nil || r.URI == "" || seen[r.URI] {
			continue
		}
		seen[r.URI] = true
		out = append(out, *r)
	}
	return out, nil
}

// ListResourceTemplates returns the server's resource templates,
// deduplicated by uriTemplate. Each kind is keyed by the URI field it
// carries (uri for resources, uriTemplate for templates), and each list is
// deduplicated on its own: templates are not checked against the
// resources list, nor resources against the templates list.
func (c *Client) ListResourceTemplates(ctx context.Context) ([]mcptypes.ResourceTemplate, error) {
	var wrapper struct {
		ResourceTemplates []*mcptypes.ResourceTemplate `json:"resourceTemplates"`
	}
	if err := c.listAndDegrade(ctx, "resources/templates/list", &wrapper); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(wrapper.ResourceTemplates))
	out := make([]mcptypes.ResourceTemplate, 0, len(wrapper.ResourceTemplates))
	for _, rt := range wrapper.ResourceTemplates {
		if rt == nil || rt.URITemplate == "" || seen[rt.URITemplate] {
			continue
		}
		seen[rt.URITemplate] = true
		out = append(out, *rt)
	}
	return out, nil
}

// ListPrompts returns the server's prompts, with null entries filtered out.
func (c *Client) ListPrompts(ctx context.Context) ([]mcptypes.Prompt, error) {
	var wrapper struct {
		Prompts []*mcptypes.Prompt `json:"prompts"`
	}
	if err := c.listAndDegrade(ctx, "prompts/list", &wrapper); err != nil {
		return nil, err
	}
	out := make([]mcptypes.Prompt, 0, len(wrapper.Prompts))
	for _, p := range wrapper.Prompts {
		if p == nil {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// TemplateParameters extracts {param} placeholders from a resource
// template's URI via a stable left-to-right brace scan.
func TemplateParameters(uriTemplate string) []string {
	var params []string
	var cur []rune
	inBrace := false
	for _, r := range uriTemplate {
		switch {
		case r == '{':
			inBrace = true
			cur = cur[:0]
		case r == '}':
			if inBrace && len(cur) > 0 {
				params = append(params, string(cur))
			}
			inBrace = false
		case inBrace:
			cur = append(cur, r)
		}
	}
	return params
}
