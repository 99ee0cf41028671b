package detection

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"github.com/giantswarm/mcpsentry/internal/logging"
)

const contextRadius = 50

// probeCorpus is the standard set of inputs a candidate rule is checked
// against: a pattern matching every one of these is almost certainly too
// broad to be a useful detection.
var probeCorpus = []string{
	"test string",
	"password=secret123",
	"api_key=abcd1234567890",
	"rm -rf /",
	`<script>alert("xss")</script>`,
	"'; DROP TABLE users; --",
}

// Engine compiles and applies a set of Rules. Rule mutations go through
// SetRules; the compiled-regex cache is rebuilt lazily on the next call to
// DetectThreats after a mutation.
type Engine struct {
	mu       sync.RWMutex
	rules    []Rule
	compiled map[string]*regexp.Regexp
	dirty    bool
}

// NewEngine returns an engine with no rules loaded.
func NewEngine() *Engine {
	return &Engine{compiled: make(map[string]*regexp.Regexp)}
}

// SetRules installs a new rule set, invalidating the compiled cache.
func (e *Engine) SetRules(rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append([]Rule{}, rules...)
	e.dirty = true
}

// Rules returns a snapshot of the currently installed rules.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Rule{}, e.rules...)
}

// compile rebuilds e.compiled for every enabled rule. Compilation
// failures are logged and the rule is excluded from dispatch but stays in
// e.rules.
func (e *Engine) compile() {
	fresh := make(map[string]*regexp.Regexp, len(e.rules))
	for _, r := range e.rules {
		if !r.Enabled {
			continue
		}
		re, err := compilePattern(r.Pattern, r.Flags)
		if err != nil {
			logging.Warn("detection", "rule %s (%s): failed to compile pattern: %v", r.ID, r.Name, err)
			continue
		}
		fresh[r.ID] = re
	}
	e.compiled = fresh
	e.dirty = false
}

// compilePattern translates the rule's JS-style flag string (g, i, m, s)
// into Go regexp inline flags; "g" is not an inline flag, it governs
// whether DetectThreats keeps scanning past the first match.
func compilePattern(pattern, flags string) (*regexp.Regexp, error) {
	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		}
	}
	if inline.Len() > 0 {
		pattern = "(?" + inline.String() + ")" + pattern
	}
	return regexp.Compile(pattern)
}

// ensureCompiled recompiles the cache if rules changed since the last
// call. Callers must hold no lock; it manages its own.
func (e *Engine) ensureCompiled() {
	e.mu.Lock()
	if e.dirty {
		e.compile()
	}
	e.mu.Unlock()
}

// DetectThreats serializes params and output to canonical JSON and runs
// every enabled rule whose scope matches scopeFilter against the
// appropriate text(s), per spec §4.6. An empty scopeFilter matches any scope.
func (e *Engine) DetectThreats(params, output any, scopeFilter Scope) []RuleMatch {
	e.ensureCompiled()

	paramText := canonicalJSON(params)
	outputText := canonicalJSON(output)

	e.mu.RLock()
	rules := append([]Rule{}, e.rules...)
	compiled := e.compiled
	e.mu.RUnlock()

	var results []RuleMatch
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if scopeFilter != "" && !r.Scope.Matches(scopeFilter) {
			continue
		}
		re, ok := compiled[r.ID]
		if !ok {
			continue
		}

		var matches []Match
		global := strings.ContainsRune(r.Flags, 'g')
		if r.Scope == ScopeParameters || r.Scope == ScopeBoth {
			matches = append(matches, scanText(re, paramText, r.effectiveMaxMatches(), global)...)
		}
		if r.Scope == ScopeOutput || r.Scope == ScopeBoth {
			matches = append(matches, scanText(re, outputText, r.effectiveMaxMatches(), global)...)
		}
		if len(matches) == 0 {
			continue
		}

		rm := RuleMatch{Rule: r, Matches: matches, Severity: r.RiskLevel}
		if r.MaskSensitiveData {
			rm.MaskedContent = maskedContent(r.ThreatType, matches)
		}
		results = append(results, rm)
	}
	return results
}

// scanText collects up to maxMatches matches of re in text, stopping
// after the first match unless global is set.
func scanText(re *regexp.Regexp, text string, maxMatches int, global bool) []Match {
	if text == "" {
		return nil
	}
	limit := maxMatches
	if !global {
		limit = 1
	}
	idx := re.FindAllStringSubmatchIndex(text, limit)
	out := make([]Match, 0, len(idx))
	for _, loc := range idx {
		start, end := loc[0], loc[1]
		m := Match{
			FullMatch:  text[start:end],
			StartIndex: start,
			EndIndex:   end,
			Context:    buildContext(text, start, end),
		}
		for g := 1; g*2+1 < len(loc); g++ {
			gs, ge := loc[g*2], loc[g*2+1]
			if gs < 0 {
				continue
			}
			m.CapturedGroups = append(m.CapturedGroups, text[gs:ge])
		}
		out = append(out, m)
	}
	return out
}

func buildContext(text string, start, end int) string {
	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	to := end + contextRadius
	if to > len(text) {
		to = len(text)
	}
	return "..." + text[from:to] + "..."
}

// maskedContent builds the comma-joined "<threatType>: <masked>" string
// from each match's primary value (its first captured group, else its
// full match), per spec §4.6.
func maskedContent(threatType string, matches []Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		value := m.FullMatch
		if len(m.CapturedGroups) > 0 {
			value = m.CapturedGroups[0]
		}
		parts = append(parts, threatType+": "+mask(value))
	}
	return strings.Join(parts, ", ")
}

// mask replaces a string's middle with asterisks, keeping the first two
// and last two characters visible for strings longer than four
// characters, and fully masking shorter ones.
func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func canonicalJSON(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// CheckProbeCorpus reports whether pattern matches every entry of the
// standard probe corpus, the heuristic used to warn that a candidate rule
// is "too broad".
func CheckProbeCorpus(pattern, flags string) (tooBroad bool, err error) {
	re, err := compilePattern(pattern, flags)
	if err != nil {
		return false, err
	}
	for _, probe := range probeCorpus {
		if !re.MatchString(probe) {
			return false, nil
		}
	}
	return true, nil
}
