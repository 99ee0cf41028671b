// Package passive implements PassiveMonitor: a
// protocol.Observer that runs every observed invocation through a
// detection.Engine, suppresses low-risk noise, and keeps a bounded
// ring buffer of results for display.
package passive

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/mcpsentry/internal/detection"
	"github.com/giantswarm/mcpsentry/internal/mcptypes"
	sentrystrings "github.com/giantswarm/mcpsentry/pkg/strings"
)

// maxResults is the ring buffer capacity (spec §3 invariant).
const maxResults = 100

// DetectionResult is one observed invocation's detection outcome, per
// spec §3's shape: id, timestamp, kind, targetName, uri?, parameters,
// result, riskLevel (= max of contributing severities), threats[],
// sensitiveDataLeaks[], recommendation.
type DetectionResult struct {
	ID                 string
	Timestamp          time.Time
	Kind               mcptypes.ArtifactKind
	TargetName         string
	URI                string
	Parameters         any
	Result             any
	RiskLevel          detection.RiskLevel
	Threats            []string
	SensitiveDataLeaks []string
	Recommendation     string
	Matches            []detection.RuleMatch
}

// Monitor observes every tool/resource/prompt invocation that flows
// through a protocol.Client and records its detection.Engine verdict.
// Results with RiskLow are discarded as noise.
type Monitor struct {
	mu      sync.Mutex
	engine  *detection.Engine
	results []DetectionResult

	listenersMu sync.Mutex
	listeners   []func(DetectionResult)
}

// New returns a Monitor that scores every observation with engine.
func New(engine *detection.Engine) *Monitor {
	return &Monitor{engine: engine}
}

// OnResult registers a listener invoked once per retained (non-low-risk)
// result.
func (m *Monitor) OnResult(fn func(DetectionResult)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Observe implements protocol.Observer. It is called on its own
// goroutine by the protocol client; Monitor itself still guards its
// state since multiple invocations can complete concurrently.
func (m *Monitor) Observe(kind mcptypes.ArtifactKind, targetName string, params, result any, uri string) {
	ruleMatches := m.engine.DetectThreats(params, result, detection.ScopeBoth)
	if len(ruleMatches) == 0 {
		return
	}

	risk := detection.RiskLow
	var threats, leaks []string
	var recommendations []string
	for _, rm := range ruleMatches {
		if risk.Less(rm.Severity) {
			risk = rm.Severity
		}
		for _, match := range rm.Matches {
			threats = append(threats, fmt.Sprintf("matched %q (pos %d-%d)",
				sentrystrings.TruncateDescription(match.FullMatch, 100), match.StartIndex, match.EndIndex))
		}
		if rm.MaskedContent != "" {
			leaks = append(leaks, rm.MaskedContent)
		}
		if rm.Rule.Recommendation != "" {
			recommendations = append(recommendations, rm.Rule.Recommendation)
		}
	}

	if risk == detection.RiskLow {
		return
	}

	dr := DetectionResult{
		ID:                 uuid.NewString(),
		Timestamp:          time.Now(),
		Kind:               kind,
		TargetName:         targetName,
		URI:                uri,
		Parameters:         params,
		Result:             result,
		RiskLevel:          risk,
		Threats:            threats,
		SensitiveDataLeaks: leaks,
		Recommendation:     strings.Join(recommendations, "; "),
		Matches:            ruleMatches,
	}

	m.mu.Lock()
	m.results = append([]DetectionResult{dr}, m.results...)
	if len(m.results) > maxResults {
		m.results = m.results[:maxResults]
	}
	m.mu.Unlock()

	m.publish(dr)
}

func (m *Monitor) publish(dr DetectionResult) {
	m.listenersMu.Lock()
	listeners := append([]func(DetectionResult){}, m.listeners...)
	m.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(dr)
	}
}

// Results returns a snapshot of the retained ring buffer, newest first
// (spec §3 invariant: "retained newest-first and capped at 100 entries").
func (m *Monitor) Results() []DetectionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DetectionResult{}, m.results...)
}

// Reset clears the ring buffer (spec §3 invariant: "reset on every new
// connection attempt").
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = nil
}
