package conclave

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// JudgeAgent synthesizes the final solution from the debate and evaluates
// consensus confidence. It is not a participant: it never proposes or
// critiques.
type JudgeAgent struct {
	cfg        AgentConfig
	provider   Provider
	summarizer *Summarizer
	sumCfg     *SummarizationConfig
	tracer     Tracer
	logger     *slog.Logger
}

// JudgeOption configures a JudgeAgent.
type JudgeOption func(*JudgeAgent)

// JudgeSummarization enables final-round summarization for the judge.
func JudgeSummarization(cfg SummarizationConfig, s *Summarizer) JudgeOption {
	return func(j *JudgeAgent) {
		j.sumCfg = &cfg
		j.summarizer = s
	}
}

// JudgeTracer sets the tracer for judge operations.
func JudgeTracer(t Tracer) JudgeOption {
	return func(j *JudgeAgent) { j.tracer = t }
}

// JudgeLogger sets the structured logger for the judge.
func JudgeLogger(l *slog.Logger) JudgeOption {
	return func(j *JudgeAgent) { j.logger = l }
}

// NewJudgeAgent creates a JudgeAgent with the given configuration and provider.
func NewJudgeAgent(cfg AgentConfig, provider Provider, opts ...JudgeOption) *JudgeAgent {
	j := &JudgeAgent{cfg: cfg, provider: provider, logger: nopLogger}
	for _, o := range opts {
		o(j)
	}
	return j
}

// Name returns the judge's display name.
func (j *JudgeAgent) Name() string { return j.cfg.Name }

// maxConfidenceUnfulfilled is the hard cap applied when the judge reports
// unfulfilled major requirements: a solution that admits major gaps cannot
// score above it no matter what confidence the model claimed.
const maxConfidenceUnfulfilled = 40

// defaultConfidence is used when the judge's JSON is unparsable or carries
// no usable confidence value.
const defaultConfidence = 50

// Synthesize builds the synthesis prompt from the problem and the debate
// history, requests strict JSON, and parses it into a Solution. Malformed
// JSON is never fatal: the raw text becomes the solution description with
// the default confidence.
func (j *JudgeAgent) Synthesize(ctx context.Context, problem string, rounds []DebateRound, dctx DebateContext) (Solution, Usage, error) {
	if j.tracer != nil {
		var span Span
		ctx, span = j.tracer.Start(ctx, "judge.synthesize",
			StringAttr("judge.name", j.cfg.Name),
			IntAttr("rounds", len(rounds)))
		defer span.End()
	}

	sections := []string{"# Problem\n\n" + problem}
	if dctx.Context != "" {
		sections = append(sections, "# Background\n\n"+dctx.Context)
	}
	if cl := formatClarifications(dctx.Clarifications); cl != "" {
		sections = append(sections, cl)
	}
	sections = append(sections, j.historySection(ctx, rounds))
	sections = append(sections, "# Task\n\nSynthesize the debate into one recommended solution.\n\n"+judgePrompts.SynthesizeFormat)

	resp, err := j.provider.Chat(ctx, ChatRequest{
		Model:        j.cfg.Model,
		Temperature:  j.cfg.Temperature,
		SystemPrompt: judgePrompts.System,
		UserPrompt:   strings.Join(sections, "\n\n"),
	})
	if err != nil {
		return Solution{}, Usage{}, err
	}

	sol := j.parseSolution(resp.Content)
	sol.SynthesizedBy = j.cfg.ID
	return sol, resp.Usage, nil
}

// ShouldSummarize reports whether the final round's proposals and
// refinements exceed the summarization threshold. Unlike role agents, the
// judge counts all participants' contributions, not just its own.
func (j *JudgeAgent) ShouldSummarize(rounds []DebateRound) bool {
	if j.sumCfg == nil || !j.sumCfg.Enabled || j.summarizer == nil {
		return false
	}
	if len(rounds) == 0 {
		return false
	}
	return len(finalRoundContent(rounds)) >= j.sumCfg.Threshold
}

// historySection renders either the full history or, when the final round
// has grown past the threshold, a summary of that round. Summarization
// failure falls back to the unsummarized final-round content.
func (j *JudgeAgent) historySection(ctx context.Context, rounds []DebateRound) string {
	if !j.ShouldSummarize(rounds) {
		return "# Debate history\n\n" + formatHistory(rounds)
	}

	content := finalRoundContent(rounds)
	summary, _, err := j.summarizer.Summarize(ctx, SummarizeRequest{
		Content:      content,
		Role:         RoleJudge,
		Config:       *j.sumCfg,
		SystemPrompt: judgePrompts.SummarizeSystem,
		UserPrompt:   judgePrompts.SummarizeFinal,
		Model:        j.cfg.Model,
		Temperature:  j.cfg.Temperature,
	})
	if err != nil {
		j.logger.Warn("judge summarization failed, using final round verbatim", "error", err)
		return "# Final round\n\n" + content
	}
	return "# Final round (summarized)\n\n" + summary
}

// finalRoundContent concatenates the last round's proposals and refinements
// across all participants.
func finalRoundContent(rounds []DebateRound) string {
	var b strings.Builder
	last := rounds[len(rounds)-1]
	for _, c := range last.Contributions {
		if c.Type != TypeProposal && c.Type != TypeRefinement {
			continue
		}
		fmt.Fprintf(&b, "[%s — %s (%s)]\n%s\n\n", c.Type, c.AgentID, c.AgentRole, c.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// --- JSON extraction and validation ---

// judgePayload is the strict JSON schema requested from the model.
// Confidence stays raw so a missing or non-numeric value degrades to the
// default instead of failing the whole parse.
type judgePayload struct {
	SolutionMarkdown             string          `json:"solutionMarkdown"`
	Tradeoffs                    []string        `json:"tradeoffs"`
	Recommendations              []string        `json:"recommendations"`
	UnfulfilledMajorRequirements []string        `json:"unfulfilledMajorRequirements"`
	OpenQuestions                []string        `json:"openQuestions"`
	Confidence                   json.RawMessage `json:"confidence"`
}

// parseSolution runs the full pipeline: strip fences, extract the first
// balanced JSON object, parse, validate, clamp, cap, render.
func (j *JudgeAgent) parseSolution(raw string) Solution {
	obj := extractJSONObject(stripJSONFences(raw))

	var p judgePayload
	if obj == "" || json.Unmarshal([]byte(obj), &p) != nil || p.SolutionMarkdown == "" {
		j.logger.Warn("judge returned unparsable synthesis, using raw text",
			"length", len(raw))
		return Solution{
			Description:                  raw,
			Tradeoffs:                    []string{},
			Recommendations:              []string{},
			UnfulfilledMajorRequirements: []string{},
			OpenQuestions:                []string{},
			Confidence:                   applyConfidenceCaps(defaultConfidence, nil),
		}
	}

	confidence := defaultConfidence
	var f float64
	if len(p.Confidence) > 0 && json.Unmarshal(p.Confidence, &f) == nil {
		confidence = clampConfidence(int(f))
	}
	confidence = applyConfidenceCaps(confidence, p.UnfulfilledMajorRequirements)

	if p.Tradeoffs == nil {
		p.Tradeoffs = []string{}
	}
	if p.Recommendations == nil {
		p.Recommendations = []string{}
	}
	if p.UnfulfilledMajorRequirements == nil {
		p.UnfulfilledMajorRequirements = []string{}
	}
	if p.OpenQuestions == nil {
		p.OpenQuestions = []string{}
	}

	return Solution{
		Description:                  renderDescription(p, confidence),
		Tradeoffs:                    p.Tradeoffs,
		Recommendations:              p.Recommendations,
		Confidence:                   confidence,
		UnfulfilledMajorRequirements: p.UnfulfilledMajorRequirements,
		OpenQuestions:                p.OpenQuestions,
	}
}

// stripJSONFences removes a surrounding ```json ... ``` (or plain ```)
// fence when present.
func stripJSONFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	if i := strings.LastIndex(t, "```"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// extractJSONObject returns the first balanced {...} object in s, counting
// braces outside of string literals. Returns "" when no balanced object
// exists.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// applyConfidenceCaps clamps to [0,100] and enforces the unfulfilled-major-
// requirements hard cap.
func applyConfidenceCaps(v int, unfulfilled []string) int {
	v = clampConfidence(v)
	if len(unfulfilled) > 0 && v > maxConfidenceUnfulfilled {
		v = maxConfidenceUnfulfilled
	}
	return v
}

// renderDescription appends the judge assessment block to the solution
// markdown. Section order is fixed; empty sections are omitted.
func renderDescription(p judgePayload, confidence int) string {
	var b strings.Builder
	b.WriteString(p.SolutionMarkdown)
	b.WriteString("\n\n---\n\n## Judge Assessment\n\n")
	fmt.Fprintf(&b, "**Confidence Score**: %d/100\n", confidence)

	writeSection := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("\n### " + title + "\n\n")
		for _, item := range items {
			b.WriteString("- " + item + "\n")
		}
	}
	writeSection("⚠️ Unfulfilled Major Requirements", p.UnfulfilledMajorRequirements)
	writeSection("Open Questions", p.OpenQuestions)
	writeSection("Recommendations", p.Recommendations)
	writeSection("Trade-offs", p.Tradeoffs)

	return strings.TrimRight(b.String(), "\n")
}

// --- consensus confidence ---

// EvaluateConfidence scores how much consensus the latest round's
// refinements show, on 0..100. No refinements means no consensus signal:
// the score is 0. A parse failure returns the neutral default.
func (j *JudgeAgent) EvaluateConfidence(ctx context.Context, state *DebateState) (int, error) {
	if state == nil || len(state.Rounds) == 0 {
		return 0, nil
	}
	last := state.Rounds[len(state.Rounds)-1]
	var b strings.Builder
	for _, c := range last.Contributions {
		if c.Type != TypeRefinement {
			continue
		}
		fmt.Fprintf(&b, "[%s (%s)]\n%s\n\n", c.AgentID, c.AgentRole, c.Content)
	}
	if b.Len() == 0 {
		return 0, nil
	}

	resp, err := j.provider.Chat(ctx, ChatRequest{
		Model:        j.cfg.Model,
		Temperature:  j.cfg.Temperature,
		SystemPrompt: judgePrompts.ConfidenceSystem,
		UserPrompt:   "# Refinements from the latest round\n\n" + b.String() + "\n" + judgePrompts.ConfidenceFormat,
	})
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Confidence *int `json:"confidence"`
	}
	obj := extractJSONObject(stripJSONFences(resp.Content))
	if obj == "" || json.Unmarshal([]byte(obj), &parsed) != nil || parsed.Confidence == nil {
		j.logger.Warn("consensus evaluation returned unparsable JSON, using default")
		return defaultConfidence, nil
	}
	return clampConfidence(*parsed.Confidence), nil
}
