// Package auth derives outgoing HTTP headers and URL query parameters from
// an mcptypes.AuthConfig, the way internal/agent/client.go's SetHeader family
// builds the header map before a transport sends a request.
package auth

import (
	"encoding/base64"
	"net/url"

	"github.com/giantswarm/mcpsentry/internal/logging"
	"github.com/giantswarm/mcpsentry/internal/mcptypes"
)

// defaultBearerPrefix is used when an APIKeyAuth doesn't specify one.
const defaultBearerPrefix = "Bearer "

// defaultAuthHeader is the header name used when APIKeyAuth doesn't specify one.
const defaultAuthHeader = "Authorization"

// Request is the mutable outgoing request shape Apply operates on: a URL
// and a header map. Transports construct one of these before dispatch and
// read the (possibly rewritten) fields back out.
type Request struct {
	URL     string
	Headers map[string]string
}

// Apply derives the final URL and header map for outgoing requests under
// the given auth configuration. It never mutates cfg and
// returns a new Request; callers pass the result to the transport layer.
func Apply(cfg mcptypes.AuthConfig, req Request) (out Request, err error) {
	out = Request{URL: req.URL, Headers: cloneHeaders(req.Headers)}

	if cfg.Kind != mcptypes.AuthCombined || cfg.Combined == nil {
		return out, nil
	}
	c := cfg.Combined

	defer func() {
		event := logging.AuditEvent{Action: "auth.apply", Outcome: "success", Target: string(cfg.Kind)}
		if err != nil {
			event.Outcome = "failure"
			event.Error = err.Error()
		}
		logging.Audit(event)
	}()

	if c.APIKey != nil && c.APIKey.APIKey != "" {
		headerName := c.APIKey.HeaderName
		if headerName == "" {
			headerName = defaultAuthHeader
		}
		prefix := c.APIKey.Prefix
		if prefix == "" {
			prefix = defaultBearerPrefix
		}
		out.Headers[headerName] = prefix + c.APIKey.APIKey
	}

	// basicAuth is applied second and therefore wins over an apiKey-derived
	// Authorization header when both are configured (spec §4.1, §9 flag #1).
	if c.BasicAuth != nil && c.BasicAuth.Username != "" && c.BasicAuth.Password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(c.BasicAuth.Username + ":" + c.BasicAuth.Password))
		out.Headers[defaultAuthHeader] = "Basic " + token
	}

	if len(c.URLParams) > 0 {
		newURL, err := appendURLParams(out.URL, c.URLParams)
		if err != nil {
			return out, err
		}
		out.URL = newURL
	}

	for _, h := range c.CustomHeaders {
		if h.Name == "" || h.Value == "" {
			continue
		}
		if !isLatin1(h.Name) || !isLatin1(h.Value) {
			logging.Warn("auth", "skipping custom header %q: contains a code point outside ISO-8859-1", h.Name)
			continue
		}
		out.Headers[h.Name] = h.Value
	}

	return out, nil
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// appendURLParams appends each named/valued param, skipping any pair with
// an empty name or value. Append semantics: duplicate names are allowed,
// matching spec §4.1. The query is re-encoded by url.Values.Encode, so the
// parameters come out sorted by name; values of a repeated name keep their
// order.
func appendURLParams(rawURL string, params []mcptypes.NameValue) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for _, p := range params {
		if p.Name == "" || p.Value == "" {
			continue
		}
		q.Add(p.Name, p.Value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// isLatin1 reports whether every rune in s fits in a single ISO-8859-1 byte
// (code point <= 255), the constraint HTTP/1.1 header values are held to.
func isLatin1(s string) bool {
	for _, r := range s {
		if r > 255 {
			return false
		}
	}
	return true
}
