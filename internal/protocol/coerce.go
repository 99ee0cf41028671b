package protocol

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/giantswarm/mcpsentry/internal/logging"
	"github.com/giantswarm/mcpsentry/internal/mcptypes"
)

// CoerceArguments converts every raw string argument in args to the type
// its tool's inputSchema declares, per the branch table in spec §4.4.
// Values are coerced in place into a fresh map; args itself is untouched.
func CoerceArguments(schema mcptypes.InputSchema, args map[string]string) map[string]any {
	out := make(map[string]any, len(args))
	for name, raw := range args {
		prop, known := schema.Properties[name]
		if !known {
			out[name] = raw
			continue
		}
		if raw == "" {
			if prop.Default != nil {
				out[name] = prop.Default
			} else {
				out[name] = nil
			}
			continue
		}
		out[name] = coerceOne(name, raw, prop.Type)
	}
	return out
}

func coerceOne(name, raw string, t mcptypes.SchemaPropertyType) any {
	switch t {
	case mcptypes.TypeString:
		return raw
	case mcptypes.TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logging.Warn("protocol", "argument %q: cannot parse %q as integer, passing through", name, raw)
			return raw
		}
		return n
	case mcptypes.TypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			logging.Warn("protocol", "argument %q: cannot parse %q as number, passing through", name, raw)
			return raw
		}
		return f
	case mcptypes.TypeBoolean:
		switch strings.ToLower(raw) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		default:
			return raw
		}
	case mcptypes.TypeArray:
		var arr []any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			return arr
		}
		parts := strings.Split(raw, ",")
		trimmed := make([]any, len(parts))
		for i, p := range parts {
			trimmed[i] = strings.TrimSpace(p)
		}
		return trimmed
	case mcptypes.TypeObject:
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			return obj
		}
		return raw
	default:
		return raw
	}
}
