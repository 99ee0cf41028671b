package scan

import (
	"fmt"
	"strings"
)

// substituteTemplate replaces every {param} placeholder in uriTemplate
// with the corresponding value from args. Every listed parameter must be
// present in args or substitution fails locally (spec §4.8: "Every
// resource template parameter must be substituted before the call —
// missing parameters fail the test case locally, not the scan").
func substituteTemplate(uriTemplate string, params []string, args map[string]any) (string, bool) {
	uri := uriTemplate
	for _, p := range params {
		v, ok := args[p]
		if !ok {
			return "", false
		}
		uri = strings.ReplaceAll(uri, "{"+p+"}", fmt.Sprintf("%v", v))
	}
	return uri, true
}
