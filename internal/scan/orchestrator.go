package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/mcpsentry/internal/catalog"
	"github.com/giantswarm/mcpsentry/internal/detection"
	"github.com/giantswarm/mcpsentry/internal/llm"
	"github.com/giantswarm/mcpsentry/internal/logging"
	"github.com/giantswarm/mcpsentry/internal/mcperr"
	"github.com/giantswarm/mcpsentry/internal/mcptypes"
	"github.com/giantswarm/mcpsentry/internal/protocol"
)

// defaultMaxTestCases is the default ceiling on LLM-synthesized
// adversarial test cases per tool (spec §4.8 step 3).
const defaultMaxTestCases = 5

// Options configures one scan run.
type Options struct {
	MaxTestCasesPerTool int
	LLMEnabled          bool
}

func (o Options) effectiveMaxTestCases() int {
	if o.MaxTestCasesPerTool <= 0 {
		return defaultMaxTestCases
	}
	return o.MaxTestCasesPerTool
}

// Orchestrator runs at most one active scan at a time against a given
// connection (client + catalog + detection engine). A second concurrent
// Run call is rejected with mcperr.Busy; PassiveMonitor is unaffected
// and keeps observing traffic independently.
type Orchestrator struct {
	client  *protocol.Client
	catalog *catalog.Catalog
	engine  *detection.Engine
	llm     llm.Provider

	mu     sync.Mutex
	active bool
}

// New returns an Orchestrator wired to one connection's collaborators.
// A nil provider is replaced with llm.Unavailable{}.
func New(client *protocol.Client, cat *catalog.Catalog, engine *detection.Engine, provider llm.Provider) *Orchestrator {
	if provider == nil {
		provider = llm.Unavailable{}
	}
	return &Orchestrator{client: client, catalog: cat, engine: engine, llm: provider}
}

// Run executes the full phase pipeline and returns the assembled report.
// logs receives every LogEntry as it's emitted, in order; it may be nil.
func (o *Orchestrator) Run(ctx context.Context, opts Options, logs chan<- LogEntry) (Report, error) {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return Report{}, mcperr.Busy("a scan is already active for this connection")
	}
	o.active = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.active = false
		o.mu.Unlock()
	}()

	r := &run{
		orch:  o,
		opts:  opts,
		logs:  logs,
		start: time.Now(),
	}
	return r.execute(ctx)
}

// run carries one scan's mutable pipeline state.
type run struct {
	orch      *Orchestrator
	opts      Options
	logs      chan<- LogEntry
	start     time.Time
	findings  []ArtifactFinding
	entries   []LogEntry
	cancelled bool
}

func (r *run) execute(ctx context.Context) (Report, error) {
	phases := []struct {
		phase Phase
		fn    func(context.Context) error
	}{
		{PhaseInit, r.runInit},
		{PhaseToolAnalysis, r.runToolAnalysis},
		{PhasePromptAnalysis, r.runPromptAnalysis},
		{PhaseResourceAnalysis, r.runResourceAnalysis},
	}

	for _, p := range phases {
		if r.checkCancelled(ctx, p.phase) {
			break
		}
		if err := p.fn(ctx); err != nil {
			r.log(p.phase, LogError, "phase failed", err.Error(), nil)
			break
		}
	}

	return r.finish(ctx), nil
}

func (r *run) checkCancelled(ctx context.Context, phase Phase) bool {
	select {
	case <-ctx.Done():
		r.cancelled = true
		r.log(phase, LogWarning, "scan cancelled", ctx.Err().Error(), map[string]any{"tag": cancelledTag})
		return true
	default:
		return false
	}
}

func (r *run) finish(ctx context.Context) Report {
	if !r.cancelled {
		r.log(PhaseSummary, LogStep, "assembling report", "", nil)
	}

	summary := Summary{}
	levels := make([]detection.RiskLevel, 0, len(r.findings))
	for _, f := range r.findings {
		levels = append(levels, f.OverallRisk)
		switch f.OverallRisk {
		case detection.RiskLow:
			summary.Low++
		case detection.RiskMedium:
			summary.Medium++
		case detection.RiskHigh:
			summary.High++
		case detection.RiskCritical:
			summary.Critical++
		}
	}
	summary.TotalIssues = summary.Critical + summary.High + summary.Medium + summary.Low

	return Report{
		StartedAt:   r.start,
		FinishedAt:  time.Now(),
		Cancelled:   r.cancelled,
		Findings:    r.findings,
		Summary:     summary,
		OverallRisk: detection.MaxRiskLevel(levels),
		Log:         r.entries,
	}
}

func (r *run) log(phase Phase, typ LogType, title, message string, metadata map[string]any) {
	entry := LogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      typ,
		Phase:     phase,
		Title:     title,
		Message:   message,
		Metadata:  metadata,
	}
	r.entries = append(r.entries, entry)
	if r.logs != nil {
		r.logs <- entry
	}
}

func (r *run) runInit(ctx context.Context) error {
	r.log(PhaseInit, LogStep, "starting scan", "", nil)
	return nil
}

func (r *run) runToolAnalysis(ctx context.Context) error {
	for _, t := range r.orch.catalog.Tools() {
		if r.checkCancelled(ctx, PhaseToolAnalysis) {
			return nil
		}
		finding := r.scanTool(ctx, t)
		r.findings = append(r.findings, finding)
	}
	return nil
}

func (r *run) scanTool(ctx context.Context, t catalog.EnhancedTool) ArtifactFinding {
	r.log(PhaseToolAnalysis, LogStep, "analyzing tool", t.Tool.Name, nil)

	staticParams := map[string]any{"name": t.Tool.Name, "description": t.Tool.Description, "schema": t.Tool.InputSchema}
	staticRisk := r.orch.engine.DetectThreats(staticParams, nil, detection.ScopeParameters)

	finding := ArtifactFinding{Kind: mcptypes.KindTool, Name: t.Tool.Name, StaticRisk: staticRisk}

	assessment := r.assess(ctx, t.Tool.Name, t.Tool.Description, schemaToMap(t.Tool.InputSchema))
	finding.Assessment = assessment

	if r.opts.LLMEnabled && r.orch.llm.IsAvailable() {
		cases := r.synthesizeToolCases(ctx, t)
		finding.TestResults = r.executeToolCases(ctx, t, cases)
	} else {
		r.log(PhaseTestGeneration, LogWarning, "skipping test synthesis", "LLM disabled or no LLM provider available for tool "+t.Tool.Name, nil)
	}

	levels := []detection.RiskLevel{}
	for _, m := range finding.StaticRisk {
		levels = append(levels, m.Severity)
	}
	for _, tr := range finding.TestResults {
		for _, m := range tr.Matches {
			levels = append(levels, m.Severity)
		}
	}
	finding.OverallRisk = detection.MaxRiskLevel(levels)
	return finding
}

func (r *run) assess(ctx context.Context, name, description string, schema map[string]any) *Assessment {
	if !r.opts.LLMEnabled || !r.orch.llm.IsAvailable() {
		return nil
	}
	resp, err := r.orch.llm.Generate(ctx, llm.GenerateRequest{
		TargetName:  name,
		Description: description,
		Schema:      schema,
		Intent:      "risk_assessment",
	})
	if err != nil {
		r.log(PhaseToolAnalysis, LogWarning, "LLM assessment degraded to static-only", err.Error(), nil)
		return nil
	}
	a := &Assessment{}
	a.Risks = asStringSlice(resp["risks"])
	if impact, ok := resp["potentialImpact"].(string); ok {
		a.PotentialImpact = impact
	}
	if mitigation, ok := resp["mitigation"].(string); ok {
		a.Mitigation = mitigation
	}
	return a
}

// asStringSlice normalizes an LLM response field that should be a string
// list but, after a round trip through encoding/json, may decode as
// []any rather than []string.
func asStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (r *run) synthesizeToolCases(ctx context.Context, t catalog.EnhancedTool) []TestCase {
	r.log(PhaseTestGeneration, LogStep, "synthesizing adversarial test cases", t.Tool.Name, nil)
	resp, err := r.orch.llm.Generate(ctx, llm.GenerateRequest{
		TargetName:  t.Tool.Name,
		Description: t.Tool.Description,
		Schema:      schemaToMap(t.Tool.InputSchema),
		Intent:      "adversarial_test_cases",
	})
	if err != nil {
		r.log(PhaseTestGeneration, LogWarning, "test synthesis failed", err.Error(), nil)
		return nil
	}
	return decodeTestCases(resp, r.opts.effectiveMaxTestCases())
}

func decodeTestCases(resp map[string]any, limit int) []TestCase {
	raw, ok := resp["testCases"].([]any)
	if !ok {
		return nil
	}
	cases := make([]TestCase, 0, len(raw))
	for i, item := range raw {
		if i >= limit {
			break
		}
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		tc := TestCase{}
		if n, ok := obj["name"].(string); ok {
			tc.Name = n
		}
		if intent, ok := obj["intent"].(string); ok {
			tc.Intent = intent
		}
		if args, ok := obj["arguments"].(map[string]any); ok {
			tc.Arguments = args
		}
		if uri, ok := obj["uri"].(string); ok {
			tc.URI = uri
		}
		cases = append(cases, tc)
	}
	return cases
}

func (r *run) executeToolCases(ctx context.Context, t catalog.EnhancedTool, cases []TestCase) []TestResult {
	results := make([]TestResult, 0, len(cases))
	for _, tc := range cases {
		if r.checkCancelled(ctx, PhaseTestExecution) {
			break
		}
		results = append(results, r.executeToolCase(ctx, t, tc))
	}
	return results
}

func (r *run) executeToolCase(ctx context.Context, t catalog.EnhancedTool, tc TestCase) TestResult {
	args := make(map[string]string, len(tc.Arguments))
	for k, v := range tc.Arguments {
		args[k] = fmt.Sprintf("%v", v)
	}

	result, err := r.orch.client.CallTool(ctx, t.Tool, args)
	tr := TestResult{TestCase: tc}
	if err != nil {
		tr.Error = err.Error()
		tr.Verdict = VerdictFailed
		return tr
	}

	matches := r.orch.engine.DetectThreats(tc.Arguments, rawToAny(result), detection.ScopeBoth)
	tr.Matches = matches
	if len(matches) > 0 {
		tr.Verdict = VerdictVulnerable
	} else {
		tr.Verdict = VerdictPassed
	}
	return tr
}

func (r *run) runPromptAnalysis(ctx context.Context) error {
	for _, p := range r.orch.catalog.Prompts() {
		if r.checkCancelled(ctx, PhasePromptAnalysis) {
			return nil
		}
		r.log(PhasePromptAnalysis, LogStep, "analyzing prompt", p.Prompt.Name, nil)
		finding := r.scanPrompt(ctx, p)
		r.findings = append(r.findings, finding)
	}
	return nil
}

func (r *run) scanPrompt(ctx context.Context, p catalog.EnhancedPrompt) ArtifactFinding {
	staticParams := map[string]any{"name": p.Prompt.Name, "description": p.Prompt.Description, "arguments": p.Prompt.Arguments}
	staticRisk := r.orch.engine.DetectThreats(staticParams, nil, detection.ScopeParameters)
	finding := ArtifactFinding{Kind: mcptypes.KindPrompt, Name: p.Prompt.Name, StaticRisk: staticRisk}

	args := make(map[string]string, len(p.Prompt.Arguments))
	for _, a := range p.Prompt.Arguments {
		args[a.Name] = ""
	}
	result, err := r.orch.client.GetPrompt(ctx, p.Prompt.Name, args)
	tr := TestResult{TestCase: TestCase{Name: "basic_invocation"}}
	if err != nil {
		tr.Error = err.Error()
		tr.Verdict = VerdictFailed
	} else {
		matches := r.orch.engine.DetectThreats(args, rawToAny(result), detection.ScopeBoth)
		tr.Matches = matches
		if len(matches) > 0 {
			tr.Verdict = VerdictVulnerable
		} else {
			tr.Verdict = VerdictPassed
		}
	}
	finding.TestResults = []TestResult{tr}

	levels := append([]detection.RiskLevel{}, ranksOf(staticRisk)...)
	levels = append(levels, ranksOf(tr.Matches)...)
	finding.OverallRisk = detection.MaxRiskLevel(levels)
	return finding
}

func (r *run) runResourceAnalysis(ctx context.Context) error {
	for _, res := range r.orch.catalog.Resources() {
		if r.checkCancelled(ctx, PhaseResourceAnalysis) {
			return nil
		}
		r.log(PhaseResourceAnalysis, LogStep, "analyzing resource", res.URI, nil)
		r.findings = append(r.findings, r.scanResource(ctx, res.URI, res.Name))
	}
	for _, tmpl := range r.orch.catalog.ResourceTemplates() {
		if r.checkCancelled(ctx, PhaseResourceAnalysis) {
			return nil
		}
		r.log(PhaseResourceAnalysis, LogStep, "analyzing resource template", tmpl.Template.URITemplate, nil)
		r.findings = append(r.findings, r.scanResourceTemplate(ctx, tmpl))
	}
	return nil
}

func (r *run) scanResource(ctx context.Context, uri, name string) ArtifactFinding {
	result, err := r.orch.client.ReadResource(ctx, uri, name)
	tr := TestResult{TestCase: TestCase{Name: "basic_read", URI: uri}}
	if err != nil {
		tr.Error = err.Error()
		tr.Verdict = VerdictFailed
	} else {
		matches := r.orch.engine.DetectThreats(nil, rawToAny(result), detection.ScopeOutput)
		tr.Matches = matches
		if len(matches) > 0 {
			tr.Verdict = VerdictVulnerable
		} else {
			tr.Verdict = VerdictPassed
		}
	}
	return ArtifactFinding{
		Kind:        mcptypes.KindResource,
		Name:        name,
		TestResults: []TestResult{tr},
		OverallRisk: detection.MaxRiskLevel(ranksOf(tr.Matches)),
	}
}

func (r *run) scanResourceTemplate(ctx context.Context, tmpl catalog.EnhancedResourceTemplate) ArtifactFinding {
	finding := ArtifactFinding{Kind: mcptypes.KindResource, Name: tmpl.Template.URITemplate}

	if !r.opts.LLMEnabled || !r.orch.llm.IsAvailable() {
		r.log(PhaseTestGeneration, LogWarning, "skipping URI synthesis", "LLM disabled or no LLM provider available for template "+tmpl.Template.URITemplate, nil)
		finding.OverallRisk = detection.RiskLow
		return finding
	}

	resp, err := r.orch.llm.Generate(ctx, llm.GenerateRequest{
		TargetName: tmpl.Template.URITemplate,
		Intent:     "resource_uri_synthesis",
		Schema:     map[string]any{"parameters": tmpl.Parameters},
	})
	if err != nil {
		r.log(PhaseTestGeneration, LogWarning, "URI synthesis failed", err.Error(), nil)
		finding.OverallRisk = detection.RiskLow
		return finding
	}

	cases := decodeTestCases(resp, r.opts.effectiveMaxTestCases())
	for _, tc := range cases {
		if r.checkCancelled(ctx, PhaseTestExecution) {
			break
		}
		uri, ok := substituteTemplate(tmpl.Template.URITemplate, tmpl.Parameters, tc.Arguments)
		if !ok {
			finding.TestResults = append(finding.TestResults, TestResult{
				TestCase: tc,
				Verdict:  VerdictFailed,
				Error:    "missing template parameter substitution",
			})
			continue
		}
		result, err := r.orch.client.ReadResource(ctx, uri, tmpl.Template.Name)
		tr := TestResult{TestCase: tc}
		if err != nil {
			tr.Error = err.Error()
			tr.Verdict = VerdictFailed
		} else {
			matches := r.orch.engine.DetectThreats(tc.Arguments, rawToAny(result), detection.ScopeBoth)
			tr.Matches = matches
			if len(matches) > 0 {
				tr.Verdict = VerdictVulnerable
			} else {
				tr.Verdict = VerdictPassed
			}
		}
		finding.TestResults = append(finding.TestResults, tr)
	}

	var levels []detection.RiskLevel
	for _, tr := range finding.TestResults {
		levels = append(levels, ranksOf(tr.Matches)...)
	}
	finding.OverallRisk = detection.MaxRiskLevel(levels)
	return finding
}

func ranksOf(matches []detection.RuleMatch) []detection.RiskLevel {
	levels := make([]detection.RiskLevel, 0, len(matches))
	for _, m := range matches {
		levels = append(levels, m.Severity)
	}
	return levels
}

func schemaToMap(schema mcptypes.InputSchema) map[string]any {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		logging.Warn("scan", "failed to convert schema to map: %v", err)
		return nil
	}
	return m
}

func rawToAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
