// Package scan implements ScanOrchestrator: the active-mode
// pipeline that drives synthetic test invocations against a connected
// server's catalog, synthesizes adversarial test cases through a
// pluggable LLM provider, and assembles a risk-aggregated report.
package scan

import (
	"time"

	"github.com/giantswarm/mcpsentry/internal/detection"
	"github.com/giantswarm/mcpsentry/internal/mcptypes"
)

// Phase identifies one stage of the pipeline.
type Phase string

const (
	PhaseInit             Phase = "init"
	PhaseToolAnalysis      Phase = "tool_analysis"
	PhasePromptAnalysis    Phase = "prompt_analysis"
	PhaseResourceAnalysis  Phase = "resource_analysis"
	PhaseTestGeneration    Phase = "test_generation"
	PhaseTestExecution     Phase = "test_execution"
	PhaseEvaluation        Phase = "evaluation"
	PhaseSummary           Phase = "summary"
)

// LogType classifies a LogEntry.
type LogType string

const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogWarning LogType = "warning"
	LogError   LogType = "error"
	LogStep    LogType = "step"
)

// cancelledTag is the Metadata["tag"] value a cancellation log entry
// carries, per spec §8 scenario 6: "log stream ends with a warning entry
// tagged cancelled". Cancellation is not its own LogType — §4.8 fixes the
// type enum to {info,success,warning,error,step}.
const cancelledTag = "cancelled"

// LogEntry is one structured event emitted on the scan's log channel,
// strictly ordered by emission time within a single scan.
type LogEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      LogType        `json:"type"`
	Phase     Phase          `json:"phase"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Progress  float64        `json:"progress,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TestVerdict classifies the outcome of one executed test case.
type TestVerdict string

const (
	VerdictPassed    TestVerdict = "passed"
	VerdictFailed    TestVerdict = "failed"
	VerdictVulnerable TestVerdict = "vulnerable"
	VerdictWarning   TestVerdict = "warning"
)

// TestCase is one synthesized or basic invocation attempted against a
// target during test_execution.
type TestCase struct {
	Name      string         `json:"name"`
	Intent    string         `json:"intent"`
	Arguments map[string]any `json:"arguments,omitempty"`
	URI       string         `json:"uri,omitempty"`
}

// TestResult is a TestCase's outcome after execution and evaluation.
type TestResult struct {
	TestCase TestCase            `json:"testCase"`
	Verdict  TestVerdict         `json:"verdict"`
	Error    string              `json:"error,omitempty"`
	Matches  []detection.RuleMatch `json:"matches,omitempty"`
}

// Assessment is the LLM's risk opinion on a target, degrading to the
// zero value when no LLM is available (spec §4.8 step 2).
type Assessment struct {
	Risks           []string `json:"risks,omitempty"`
	PotentialImpact string   `json:"potentialImpact,omitempty"`
	Mitigation      string   `json:"mitigation,omitempty"`
}

// ArtifactFinding is the aggregated result for a single tool, prompt, or
// resource.
type ArtifactFinding struct {
	Kind        mcptypes.ArtifactKind `json:"kind"`
	Name        string                `json:"name"`
	StaticRisk  []detection.RuleMatch `json:"staticRisk,omitempty"`
	Assessment  *Assessment           `json:"assessment,omitempty"`
	TestResults []TestResult          `json:"testResults,omitempty"`
	OverallRisk detection.RiskLevel   `json:"overallRisk"`
}

// Summary counts findings by severity across the whole scan. TotalIssues
// is the sum of the four severity counts (spec §3, §8 quantified
// invariant: "summary.totalIssues = critical+high+medium+low").
type Summary struct {
	TotalIssues int `json:"totalIssues"`
	Critical    int `json:"critical"`
	High        int `json:"high"`
	Medium      int `json:"medium"`
	Low         int `json:"low"`
}

// Report is the final output of a completed or cancelled scan
// (spec §4.8: "Report assembly").
type Report struct {
	StartedAt   time.Time         `json:"startedAt"`
	FinishedAt  time.Time         `json:"finishedAt"`
	Cancelled   bool              `json:"cancelled"`
	Findings    []ArtifactFinding `json:"findings"`
	Summary     Summary           `json:"summary"`
	OverallRisk detection.RiskLevel `json:"overallRisk"`
	Log         []LogEntry        `json:"log"`
}
