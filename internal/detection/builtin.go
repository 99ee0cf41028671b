package detection

import "time"

// builtinEpoch is the fixed CreatedAt/UpdatedAt stamp for every builtin
// rule, so exports are stable across runs.
var builtinEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// BuiltinRules returns the static corpus shipped with the engine. Callers
// get a fresh copy each time; mutating the result does not affect future
// calls.
func BuiltinRules() []Rule {
	rules := []Rule{
		{
			ID:                "priv_password",
			Name:              "Password Disclosure",
			Description:       "Detects plaintext passwords in tool parameters or output.",
			Category:          CategoryPrivacy,
			Pattern:           `(?:password)\s*[:=]\s*["']?([^\s"']{4,})["']?`,
			Flags:             "gi",
			Scope:             ScopeBoth,
			RiskLevel:         RiskCritical,
			ThreatType:        "password_disclosure",
			MaskSensitiveData: true,
			Enabled:           true,
			IsBuiltin:         true,
			Recommendation:    "Never pass or echo plaintext passwords through tool parameters or output.",
		},
		{
			ID:                "priv_api_key",
			Name:              "API Key Disclosure",
			Description:       "Detects API keys or tokens in tool parameters or output.",
			Category:          CategoryPrivacy,
			Pattern:           `(?:api[_-]?key|access[_-]?token)\s*[:=]\s*["']?([A-Za-z0-9_\-]{12,})["']?`,
			Flags:             "gi",
			Scope:             ScopeBoth,
			RiskLevel:         RiskCritical,
			ThreatType:        "api_key_disclosure",
			MaskSensitiveData: true,
			Enabled:           true,
			IsBuiltin:         true,
			Recommendation:    "Rotate any exposed key and route credentials through a secrets manager instead of tool arguments.",
		},
		{
			ID:                "sec_command_injection",
			Name:              "Shell Command Injection",
			Description:       "Detects shell metacharacters or destructive commands in parameters.",
			Category:          CategorySecurity,
			Pattern:           `(?:;|\|\||&&|\$\(|` + "`" + `)\s*(?:rm\s+-rf|curl|wget|nc\s)|rm\s+-rf\s+/`,
			Flags:             "g",
			Scope:             ScopeParameters,
			RiskLevel:         RiskCritical,
			ThreatType:        "command_injection",
			MaskSensitiveData: false,
			Enabled:           true,
			IsBuiltin:         true,
			Recommendation:    "Reject tool arguments containing shell metacharacters before forwarding them to a subprocess.",
		},
		{
			ID:                "sec_sql_injection",
			Name:              "SQL Injection",
			Description:       "Detects classic SQL injection payloads in parameters.",
			Category:          CategorySecurity,
			Pattern:           `(?:'\s*;\s*DROP\s+TABLE|'\s*OR\s+'1'\s*=\s*'1|UNION\s+SELECT)`,
			Flags:             "gi",
			Scope:             ScopeParameters,
			RiskLevel:         RiskHigh,
			ThreatType:        "sql_injection",
			MaskSensitiveData: false,
			Enabled:           true,
			IsBuiltin:         true,
			Recommendation:    "Use parameterized queries; never interpolate tool arguments into SQL text.",
		},
		{
			ID:                "sec_xss",
			Name:              "Cross-Site Scripting Payload",
			Description:       "Detects script-tag or event-handler injection payloads.",
			Category:          CategorySecurity,
			Pattern:           `<script[^>]*>|on\w+\s*=\s*["'][^"']*["']|javascript:`,
			Flags:             "gi",
			Scope:             ScopeBoth,
			RiskLevel:         RiskHigh,
			ThreatType:        "xss_payload",
			MaskSensitiveData: false,
			Enabled:           true,
			IsBuiltin:         true,
			Recommendation:    "Escape or strip markup before rendering tool output in any HTML context.",
		},
		{
			ID:                "sec_path_traversal",
			Name:              "Path Traversal",
			Description:       "Detects directory traversal sequences in file-path-like parameters.",
			Category:          CategorySecurity,
			Pattern:           `(?:\.\./){2,}|\.\.\\{2,}`,
			Flags:             "g",
			Scope:             ScopeParameters,
			RiskLevel:         RiskHigh,
			ThreatType:        "path_traversal",
			MaskSensitiveData: false,
			Enabled:           true,
			IsBuiltin:         true,
			Recommendation:    "Resolve and validate file paths against an allowed root before use.",
		},
		{
			ID:                "priv_pii_email",
			Name:              "Email Address Disclosure",
			Description:       "Detects email addresses appearing in tool output.",
			Category:          CategoryPrivacy,
			Pattern:           `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
			Flags:             "g",
			Scope:             ScopeOutput,
			RiskLevel:         RiskMedium,
			ThreatType:        "pii_email",
			MaskSensitiveData: true,
			Enabled:           true,
			IsBuiltin:         true,
			Recommendation:    "Redact direct identifiers from tool output unless the caller is authorized to see them.",
		},
		{
			ID:                "priv_pii_ssn",
			Name:              "US Social Security Number",
			Description:       "Detects US SSN-formatted numbers in tool parameters or output.",
			Category:          CategoryPrivacy,
			Pattern:           `\b\d{3}-\d{2}-\d{4}\b`,
			Flags:             "g",
			Scope:             ScopeBoth,
			RiskLevel:         RiskCritical,
			ThreatType:        "pii_ssn",
			MaskSensitiveData: true,
			Enabled:           true,
			IsBuiltin:         true,
			Recommendation:    "Treat SSNs as restricted data; they should never transit tool parameters or output in the clear.",
		},
		{
			ID:                "sec_prompt_injection",
			Name:              "Prompt Injection Marker",
			Description:       "Detects common instruction-override phrasing aimed at an LLM consumer.",
			Category:          CategorySecurity,
			Pattern:           `(?i)ignore\s+(?:all\s+)?(?:previous|prior|above)\s+instructions|disregard\s+(?:all\s+)?(?:previous|prior)\s+instructions`,
			Flags:             "g",
			Scope:             ScopeBoth,
			RiskLevel:         RiskHigh,
			ThreatType:        "prompt_injection",
			MaskSensitiveData: false,
			Enabled:           true,
			IsBuiltin:         true,
			Recommendation:    "Treat tool output as untrusted data; never let it alter agent instructions without review.",
		},
	}
	for i := range rules {
		rules[i].CreatedAt = builtinEpoch
		rules[i].UpdatedAt = builtinEpoch
		if rules[i].MaxMatches == 0 {
			rules[i].MaxMatches = defaultMaxMatches
		}
	}
	return rules
}
