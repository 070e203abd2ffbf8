package conclave

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// defaultMaxToolIter bounds the tool-calling loop. After this many
// assistant/tool iterations the last assistant message is used as the
// result.
const defaultMaxToolIter = 8

// RoleAgent produces proposals, critiques, and refinements by applying a
// role-specific prompt record to a Provider. A single role-agnostic type
// serves every role; the prompts are data selected from the registry in
// prompts.go.
//
// Agents are stateless beyond configuration and may be invoked from any
// goroutine.
type RoleAgent struct {
	cfg         AgentConfig
	provider    Provider
	prompts     RolePrompts
	summarizer  *Summarizer
	sumCfg      *SummarizationConfig
	tools       *ToolRegistry
	maxToolIter int
	tracer      Tracer
	logger      *slog.Logger
}

// AgentOption configures a RoleAgent.
type AgentOption func(*RoleAgent)

// WithTools adds tools the agent may call during its operations.
func WithTools(tools ...Tool) AgentOption {
	return func(a *RoleAgent) {
		for _, t := range tools {
			a.tools.Add(t)
		}
	}
}

// WithMaxToolIter sets the maximum tool-calling iterations (default 8).
func WithMaxToolIter(n int) AgentOption {
	return func(a *RoleAgent) {
		if n > 0 {
			a.maxToolIter = n
		}
	}
}

// WithSummarization enables per-agent history summarization.
func WithSummarization(cfg SummarizationConfig, s *Summarizer) AgentOption {
	return func(a *RoleAgent) {
		a.sumCfg = &cfg
		a.summarizer = s
	}
}

// WithPrompts overrides the registry prompt record for this agent.
func WithPrompts(p RolePrompts) AgentOption {
	return func(a *RoleAgent) { a.prompts = p }
}

// WithTracer sets the tracer for the agent's operations.
func WithTracer(t Tracer) AgentOption {
	return func(a *RoleAgent) { a.tracer = t }
}

// WithLogger sets the structured logger for the agent.
func WithLogger(l *slog.Logger) AgentOption {
	return func(a *RoleAgent) { a.logger = l }
}

// NewRoleAgent creates a RoleAgent with the given configuration and provider.
func NewRoleAgent(cfg AgentConfig, provider Provider, opts ...AgentOption) *RoleAgent {
	a := &RoleAgent{
		cfg:         cfg,
		provider:    provider,
		prompts:     PromptsFor(cfg.Role),
		tools:       NewToolRegistry(),
		maxToolIter: defaultMaxToolIter,
		logger:      nopLogger,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *RoleAgent) ID() string          { return a.cfg.ID }
func (a *RoleAgent) Name() string        { return a.cfg.Name }
func (a *RoleAgent) Role() Role          { return a.cfg.Role }
func (a *RoleAgent) Config() AgentConfig { return a.cfg }

// Propose produces the agent's initial solution for the problem.
func (a *RoleAgent) Propose(ctx context.Context, problem string, dctx DebateContext) (Contribution, error) {
	if problem != "" {
		dctx.Problem = problem
	}
	prompt := a.buildPrompt(dctx, nil, a.prompts.Propose)
	return a.complete(ctx, TypeProposal, "propose", prompt)
}

// Critique reviews another agent's proposal. TargetAgentID is set by the
// orchestrator, not here: the agent has no say in whom it is critiquing.
func (a *RoleAgent) Critique(ctx context.Context, proposal Contribution, dctx DebateContext) (Contribution, error) {
	extra := []string{fmt.Sprintf("# Proposal under review (by %s, %s)\n\n%s",
		proposal.AgentID, proposal.AgentRole, proposal.Content)}
	prompt := a.buildPrompt(dctx, extra, a.prompts.Critique)
	return a.complete(ctx, TypeCritique, "critique", prompt)
}

// Refine revises the agent's own proposal against the critiques it received.
func (a *RoleAgent) Refine(ctx context.Context, original Contribution, critiques []Contribution, dctx DebateContext) (Contribution, error) {
	extra := []string{"# Your current proposal\n\n" + original.Content}
	if len(critiques) > 0 {
		var b strings.Builder
		b.WriteString("# Critiques of your proposal\n")
		for _, c := range critiques {
			fmt.Fprintf(&b, "\n## From %s (%s)\n\n%s\n", c.AgentID, c.AgentRole, c.Content)
		}
		extra = append(extra, strings.TrimRight(b.String(), "\n"))
	}
	prompt := a.buildPrompt(dctx, extra, a.prompts.Refine)
	return a.complete(ctx, TypeRefinement, "refine", prompt)
}

// AskClarifyingQuestions asks the agent for up to max clarifying questions
// about the problem. Each item gets a stable generated id so answers can be
// bound later.
func (a *RoleAgent) AskClarifyingQuestions(ctx context.Context, problem string, dctx DebateContext, max int) ([]ClarificationItem, error) {
	if problem != "" {
		dctx.Problem = problem
	}
	prompt := a.buildPrompt(dctx, nil, a.prompts.Clarify)
	c, err := a.complete(ctx, "", "clarify", prompt)
	if err != nil {
		return nil, err
	}

	var items []ClarificationItem
	for _, line := range strings.Split(c.Content, "\n") {
		q := strings.TrimSpace(line)
		q = strings.TrimLeft(q, "-*0123456789.) ")
		if q == "" {
			continue
		}
		items = append(items, ClarificationItem{ID: NewID(), Question: q})
		if max > 0 && len(items) >= max {
			break
		}
	}
	return items, nil
}

// ShouldSummarize reports whether this agent's own output has grown past
// the summarization threshold. Only the agent's proposals and refinements
// count; critiques do not, regardless of target. An agent summarizes what
// it has said, not what was said to it.
func (a *RoleAgent) ShouldSummarize(dctx DebateContext) bool {
	if a.sumCfg == nil || !a.sumCfg.Enabled || a.summarizer == nil {
		return false
	}
	if len(dctx.History) == 0 {
		return false
	}
	var chars int
	for _, r := range dctx.History {
		for _, c := range r.Contributions {
			if c.AgentID != a.cfg.ID {
				continue
			}
			if c.Type == TypeProposal || c.Type == TypeRefinement {
				chars += len(c.Content)
			}
		}
	}
	return chars >= a.sumCfg.Threshold
}

// PrepareContext decides whether the agent should summarize before its next
// call and, if so, produces the summary. The returned context is always the
// input unchanged; the orchestrator persists the summary and injects it.
//
// The summarization input is wider than the trigger set: it includes the
// critiques this agent received, not just its own proposals and refinements.
// On summarization failure the agent falls back to full history for this
// round, so only a warning is logged.
func (a *RoleAgent) PrepareContext(ctx context.Context, dctx DebateContext, roundNumber int) (DebateContext, *DebateSummary) {
	if !a.ShouldSummarize(dctx) {
		return dctx, nil
	}

	var b strings.Builder
	for _, r := range dctx.History {
		for _, c := range r.Contributions {
			own := c.AgentID == a.cfg.ID && (c.Type == TypeProposal || c.Type == TypeRefinement)
			received := c.Type == TypeCritique && c.TargetAgentID == a.cfg.ID
			if !own && !received {
				continue
			}
			fmt.Fprintf(&b, "[round %d, %s", r.RoundNumber, c.Type)
			if received {
				fmt.Fprintf(&b, " from %s", c.AgentID)
			}
			b.WriteString("]\n")
			b.WriteString(c.Content)
			b.WriteString("\n\n")
		}
	}

	summary, meta, err := a.summarizer.Summarize(ctx, SummarizeRequest{
		Content:      strings.TrimRight(b.String(), "\n"),
		Role:         a.cfg.Role,
		Config:       *a.sumCfg,
		SystemPrompt: a.prompts.SummarizeSystem,
		UserPrompt:   a.prompts.Summarize,
		Model:        a.cfg.Model,
		Temperature:  a.cfg.Temperature,
	})
	if err != nil {
		a.logger.Warn("summarization failed, falling back to full history",
			"agent", a.cfg.Name, "round", roundNumber, "error", err)
		return dctx, nil
	}

	return dctx, &DebateSummary{
		AgentID:   a.cfg.ID,
		AgentRole: a.cfg.Role,
		Summary:   summary,
		Metadata:  meta,
	}
}

// --- prompt assembly ---

// buildPrompt assembles the user prompt for any agent operation:
// problem, background, clarifications, the agent's view of history, any
// operation-specific sections, and finally the instruction.
func (a *RoleAgent) buildPrompt(dctx DebateContext, extra []string, instruction string) string {
	sections := []string{"# Problem\n\n" + dctx.Problem}
	if dctx.Context != "" {
		sections = append(sections, "# Background\n\n"+dctx.Context)
	}
	// Clarifications are always included, even when history is summarized.
	if cl := formatClarifications(dctx.Clarifications); cl != "" {
		sections = append(sections, cl)
	}
	if h := a.historySection(dctx); h != "" {
		sections = append(sections, h)
	}
	sections = append(sections, extra...)
	sections = append(sections, "# Task\n\n"+instruction)
	return strings.Join(sections, "\n\n")
}

// historySection renders the agent's perspective of the debate so far:
// full history when configured, otherwise the most recent summary for this
// agent, otherwise full history as the fallback.
func (a *RoleAgent) historySection(dctx DebateContext) string {
	if len(dctx.History) == 0 {
		return ""
	}
	if !dctx.IncludeFullHistory {
		if s := a.latestSummary(dctx); s != nil {
			return "# Your summary of the debate so far\n\n" + s.Summary
		}
	}
	return "# Debate history\n\n" + formatHistory(dctx.History)
}

// latestSummary returns the freshest DebateSummary for this agent: the one
// injected for the current round if present, else the newest one recorded
// in prior rounds.
func (a *RoleAgent) latestSummary(dctx DebateContext) *DebateSummary {
	if dctx.Summary != nil && dctx.Summary.AgentID == a.cfg.ID {
		return dctx.Summary
	}
	for i := len(dctx.History) - 1; i >= 0; i-- {
		if s, ok := dctx.History[i].Summaries[a.cfg.ID]; ok {
			return &s
		}
	}
	return nil
}

// formatHistory renders rounds verbatim for prompt inclusion.
func formatHistory(rounds []DebateRound) string {
	var b strings.Builder
	for _, r := range rounds {
		if len(r.Contributions) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## Round %d\n", r.RoundNumber)
		for _, c := range r.Contributions {
			fmt.Fprintf(&b, "\n### %s — %s (%s)", c.Type, c.AgentID, c.AgentRole)
			if c.TargetAgentID != "" {
				fmt.Fprintf(&b, " → %s", c.TargetAgentID)
			}
			b.WriteString("\n\n")
			b.WriteString(c.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatClarifications renders the question/answer pairs collected before
// round 1. Returns "" when there are none.
func formatClarifications(cls []AgentClarifications) string {
	if len(cls) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("# Clarifications\n")
	for _, ac := range cls {
		for _, item := range ac.Items {
			fmt.Fprintf(&b, "\n- %s (%s) asked: %s\n  Answer: %s", ac.AgentName, ac.AgentRole, item.Question, item.Answer)
		}
	}
	return b.String()
}

// --- provider call with tool loop ---

// complete runs one agent operation against the provider, executing tool
// calls against the local registry until the provider returns text or the
// iteration bound is hit. Tool execution errors are captured as error
// payloads in the tool result; the loop continues.
func (a *RoleAgent) complete(ctx context.Context, typ ContributionType, activity, userPrompt string) (Contribution, error) {
	if a.tracer != nil {
		var span Span
		ctx, span = a.tracer.Start(ctx, "agent."+activity,
			StringAttr("agent.name", a.cfg.Name),
			StringAttr("agent.role", string(a.cfg.Role)))
		defer span.End()
	}

	start := time.Now()
	req := ChatRequest{
		Model:        a.cfg.Model,
		Temperature:  a.cfg.Temperature,
		SystemPrompt: a.prompts.System,
		UserPrompt:   userPrompt,
		Tools:        a.tools.AllDefinitions(),
	}

	var totalUsage Usage
	var traces []ToolTrace
	toolCalls := 0

	resp, err := a.provider.Chat(ctx, req)
	if err != nil {
		return Contribution{}, err
	}
	totalUsage = addUsage(totalUsage, resp.Usage)

	var messages []ChatMessage
	for iter := 0; len(resp.ToolCalls) > 0 && iter < a.maxToolIter; iter++ {
		if messages == nil {
			messages = req.ConversationMessages()
		}
		messages = append(messages, ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			toolCalls++
			result, execErr := a.tools.Execute(ctx, tc.Name, tc.Args)
			content := result.Content
			isErr := false
			if execErr != nil {
				content = "error: " + execErr.Error()
				isErr = true
			} else if result.Error != "" {
				content = "error: " + result.Error
				isErr = true
			}
			traces = append(traces, ToolTrace{
				Name:    tc.Name,
				Args:    string(tc.Args),
				Content: content,
				IsError: isErr,
			})
			messages = append(messages, ToolResultMessage(tc.ID, content))
		}

		next := req
		next.SystemPrompt = ""
		next.UserPrompt = ""
		next.Messages = messages
		resp, err = a.provider.Chat(ctx, next)
		if err != nil {
			return Contribution{}, err
		}
		totalUsage = addUsage(totalUsage, resp.Usage)
	}
	if len(resp.ToolCalls) > 0 {
		a.logger.Warn("tool iteration limit reached, using last response",
			"agent", a.cfg.Name, "activity", activity, "limit", a.maxToolIter)
	}

	return Contribution{
		ID:        NewID(),
		AgentID:   a.cfg.ID,
		AgentRole: a.cfg.Role,
		Type:      typ,
		Content:   resp.Content,
		Metadata: ContributionMeta{
			LatencyMs:   time.Since(start).Milliseconds(),
			TokensUsed:  totalUsage.Total(),
			Model:       a.cfg.Model,
			ToolCalls:   toolCalls,
			ToolResults: traces,
		},
	}, nil
}

func addUsage(a, b Usage) Usage {
	return Usage{
		InputTokens:  a.InputTokens + b.InputTokens,
		OutputTokens: a.OutputTokens + b.OutputTokens,
		TotalTokens:  a.TotalTokens + b.TotalTokens,
	}
}
