package conclave

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func historyWithContributions(cs ...Contribution) []DebateRound {
	return []DebateRound{{RoundNumber: 1, Contributions: cs}}
}

func TestProposeIncludesProblemAndTask(t *testing.T) {
	provider := &mockProvider{responses: []ChatResponse{{Content: "my proposal"}}}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider)

	c, err := agent.Propose(context.Background(), "design a cache", DebateContext{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Type != TypeProposal || c.Content != "my proposal" {
		t.Errorf("contribution = %+v", c)
	}
	if c.AgentID != "arch" || c.AgentRole != RoleArchitect {
		t.Errorf("attribution = %s/%s", c.AgentID, c.AgentRole)
	}

	prompt := provider.requests()[0].UserPrompt
	if !strings.Contains(prompt, "# Problem\n\ndesign a cache") {
		t.Errorf("prompt missing problem section:\n%s", prompt)
	}
	if !strings.Contains(prompt, "# Task") {
		t.Errorf("prompt missing task section:\n%s", prompt)
	}
}

func TestCritiqueEmbedsTargetProposal(t *testing.T) {
	provider := &mockProvider{responses: []ChatResponse{{Content: "weak spot"}}}
	agent := NewRoleAgent(testAgentConfig("sec", RoleSecurity), provider)

	proposal := Contribution{AgentID: "arch", AgentRole: RoleArchitect, Type: TypeProposal, Content: "use a single node"}
	c, err := agent.Critique(context.Background(), proposal, DebateContext{Problem: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Type != TypeCritique {
		t.Errorf("type = %q", c.Type)
	}
	if c.TargetAgentID != "" {
		t.Errorf("agent set TargetAgentID = %q, orchestrator owns it", c.TargetAgentID)
	}

	prompt := provider.requests()[0].UserPrompt
	if !strings.Contains(prompt, "# Proposal under review") || !strings.Contains(prompt, "use a single node") {
		t.Errorf("prompt missing proposal section:\n%s", prompt)
	}
}

func TestRefineEmbedsCritiques(t *testing.T) {
	provider := &mockProvider{responses: []ChatResponse{{Content: "refined"}}}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider)

	original := Contribution{AgentID: "arch", Type: TypeProposal, Content: "original plan"}
	critiques := []Contribution{
		{AgentID: "sec", AgentRole: RoleSecurity, Type: TypeCritique, Content: "no auth story"},
	}
	c, err := agent.Refine(context.Background(), original, critiques, DebateContext{Problem: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Type != TypeRefinement {
		t.Errorf("type = %q", c.Type)
	}

	prompt := provider.requests()[0].UserPrompt
	if !strings.Contains(prompt, "# Your current proposal") {
		t.Errorf("prompt missing own proposal:\n%s", prompt)
	}
	if !strings.Contains(prompt, "no auth story") {
		t.Errorf("prompt missing critique:\n%s", prompt)
	}
}

func TestHistorySectionFullWhenConfigured(t *testing.T) {
	provider := &mockProvider{responses: []ChatResponse{{Content: "x"}}}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider)

	dctx := DebateContext{
		Problem:            "p",
		History:            historyWithContributions(Contribution{AgentID: "arch", Type: TypeProposal, Content: "earlier"}),
		IncludeFullHistory: true,
	}
	if _, err := agent.Propose(context.Background(), "p", dctx); err != nil {
		t.Fatal(err)
	}
	prompt := provider.requests()[0].UserPrompt
	if !strings.Contains(prompt, "# Debate history") || !strings.Contains(prompt, "earlier") {
		t.Errorf("full history not rendered:\n%s", prompt)
	}
}

func TestHistorySectionUsesSummaryWhenAvailable(t *testing.T) {
	provider := &mockProvider{responses: []ChatResponse{{Content: "x"}}}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider)

	history := historyWithContributions(Contribution{AgentID: "arch", Type: TypeProposal, Content: "verbose original"})
	history[0].Summaries = map[string]DebateSummary{
		"arch": {AgentID: "arch", Summary: "the condensed view"},
	}
	dctx := DebateContext{Problem: "p", History: history}

	if _, err := agent.Propose(context.Background(), "p", dctx); err != nil {
		t.Fatal(err)
	}
	prompt := provider.requests()[0].UserPrompt
	if !strings.Contains(prompt, "# Your summary of the debate so far") {
		t.Errorf("summary section missing:\n%s", prompt)
	}
	if !strings.Contains(prompt, "the condensed view") {
		t.Errorf("summary content missing:\n%s", prompt)
	}
	if strings.Contains(prompt, "verbose original") {
		t.Errorf("full history leaked alongside summary:\n%s", prompt)
	}
}

func TestHistorySectionFallsBackWithoutSummary(t *testing.T) {
	provider := &mockProvider{responses: []ChatResponse{{Content: "x"}}}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider)

	dctx := DebateContext{
		Problem: "p",
		History: historyWithContributions(Contribution{AgentID: "other", Type: TypeProposal, Content: "their take"}),
	}
	if _, err := agent.Propose(context.Background(), "p", dctx); err != nil {
		t.Fatal(err)
	}
	prompt := provider.requests()[0].UserPrompt
	if !strings.Contains(prompt, "# Debate history") {
		t.Errorf("expected full-history fallback:\n%s", prompt)
	}
}

func TestInjectedSummaryPreferredOverRecorded(t *testing.T) {
	provider := &mockProvider{responses: []ChatResponse{{Content: "x"}}}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider)

	history := historyWithContributions(Contribution{AgentID: "arch", Type: TypeProposal, Content: "old"})
	history[0].Summaries = map[string]DebateSummary{"arch": {AgentID: "arch", Summary: "stale summary"}}
	dctx := DebateContext{
		Problem: "p",
		History: history,
		Summary: &DebateSummary{AgentID: "arch", Summary: "fresh summary"},
	}

	if _, err := agent.Propose(context.Background(), "p", dctx); err != nil {
		t.Fatal(err)
	}
	prompt := provider.requests()[0].UserPrompt
	if !strings.Contains(prompt, "fresh summary") || strings.Contains(prompt, "stale summary") {
		t.Errorf("injected summary not preferred:\n%s", prompt)
	}
}

func TestClarificationsAlwaysIncluded(t *testing.T) {
	provider := &mockProvider{responses: []ChatResponse{{Content: "x"}}}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider)

	dctx := DebateContext{
		Problem: "p",
		Clarifications: []AgentClarifications{{
			AgentID: "sec", AgentName: "sec", AgentRole: RoleSecurity,
			Items: []ClarificationItem{{ID: "q1", Question: "what scale?", Answer: "10k rps"}},
		}},
	}
	if _, err := agent.Propose(context.Background(), "p", dctx); err != nil {
		t.Fatal(err)
	}
	prompt := provider.requests()[0].UserPrompt
	if !strings.Contains(prompt, "# Clarifications") || !strings.Contains(prompt, "10k rps") {
		t.Errorf("clarifications missing:\n%s", prompt)
	}
}

func TestShouldSummarizeCountsOnlyOwnProposalsAndRefinements(t *testing.T) {
	provider := &mockProvider{}
	summarizer := NewSummarizer(provider)
	cfg := SummarizationConfig{Enabled: true, Threshold: 20, MaxLength: 100}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider,
		WithSummarization(cfg, summarizer))

	// 30 chars of critiques aimed at the agent must not trigger.
	critiqueOnly := DebateContext{History: historyWithContributions(
		Contribution{AgentID: "sec", TargetAgentID: "arch", Type: TypeCritique, Content: strings.Repeat("c", 30)},
	)}
	if agent.ShouldSummarize(critiqueOnly) {
		t.Error("critiques counted toward threshold")
	}

	// 30 chars of the agent's own proposal must trigger.
	ownProposal := DebateContext{History: historyWithContributions(
		Contribution{AgentID: "arch", Type: TypeProposal, Content: strings.Repeat("p", 30)},
	)}
	if !agent.ShouldSummarize(ownProposal) {
		t.Error("own proposal did not trigger threshold")
	}

	// Another agent's proposal must not trigger.
	otherProposal := DebateContext{History: historyWithContributions(
		Contribution{AgentID: "other", Type: TypeProposal, Content: strings.Repeat("p", 30)},
	)}
	if agent.ShouldSummarize(otherProposal) {
		t.Error("other agent's proposal counted toward threshold")
	}
}

func TestPrepareContextIncludesReceivedCritiques(t *testing.T) {
	provider := &mockProvider{responses: []ChatResponse{{Content: "summary text"}}}
	summarizer := NewSummarizer(provider)
	cfg := SummarizationConfig{Enabled: true, Threshold: 5, MaxLength: 1000}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider,
		WithSummarization(cfg, summarizer))

	dctx := DebateContext{History: historyWithContributions(
		Contribution{AgentID: "arch", Type: TypeProposal, Content: "my own proposal"},
		Contribution{AgentID: "sec", TargetAgentID: "arch", Type: TypeCritique, Content: "critique for arch"},
		Contribution{AgentID: "sec", TargetAgentID: "perf", Type: TypeCritique, Content: "critique for someone else"},
	)}

	_, sum := agent.PrepareContext(context.Background(), dctx, 2)
	if sum == nil {
		t.Fatal("expected a summary")
	}
	if sum.AgentID != "arch" || sum.Summary != "summary text" {
		t.Errorf("summary = %+v", sum)
	}

	input := provider.requests()[0].UserPrompt
	if !strings.Contains(input, "my own proposal") {
		t.Errorf("own proposal missing from summarization input:\n%s", input)
	}
	if !strings.Contains(input, "critique for arch") {
		t.Errorf("received critique missing from summarization input:\n%s", input)
	}
	if strings.Contains(input, "critique for someone else") {
		t.Errorf("unrelated critique included in summarization input:\n%s", input)
	}
}

func TestPrepareContextFallsBackOnSummarizerError(t *testing.T) {
	provider := &mockProvider{fn: func(req ChatRequest) (ChatResponse, error) {
		return ChatResponse{}, errors.New("provider down")
	}}
	summarizer := NewSummarizer(provider)
	cfg := SummarizationConfig{Enabled: true, Threshold: 5, MaxLength: 1000}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider,
		WithSummarization(cfg, summarizer))

	dctx := DebateContext{History: historyWithContributions(
		Contribution{AgentID: "arch", Type: TypeProposal, Content: "long enough"},
	)}
	out, sum := agent.PrepareContext(context.Background(), dctx, 2)
	if sum != nil {
		t.Errorf("expected nil summary on error, got %+v", sum)
	}
	if len(out.History) != 1 {
		t.Errorf("context history altered on fallback")
	}
}

// echoTool returns its args verbatim.
type echoTool struct{}

func (echoTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{Name: "echo", Description: "echoes args", Parameters: json.RawMessage(`{"type":"object"}`)}}
}

func (echoTool) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	return ToolResult{Content: string(args)}, nil
}

func TestAgentToolLoop(t *testing.T) {
	provider := &mockProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "1", Name: "echo", Args: json.RawMessage(`{"q":"x"}`)}}},
		{Content: "final answer", Usage: Usage{TotalTokens: 7}},
	}}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider,
		WithTools(echoTool{}))

	c, err := agent.Propose(context.Background(), "p", DebateContext{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Content != "final answer" {
		t.Errorf("content = %q", c.Content)
	}
	if c.Metadata.ToolCalls != 1 {
		t.Errorf("tool calls = %d, want 1", c.Metadata.ToolCalls)
	}
	if len(c.Metadata.ToolResults) != 1 || c.Metadata.ToolResults[0].Name != "echo" {
		t.Errorf("tool results = %+v", c.Metadata.ToolResults)
	}

	// Second request must carry the tool conversation.
	reqs := provider.requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	if len(reqs[1].Messages) == 0 {
		t.Error("follow-up request missing conversation messages")
	}
}

func TestAgentToolLoopBounded(t *testing.T) {
	provider := &mockProvider{fn: func(req ChatRequest) (ChatResponse, error) {
		// Always ask for another tool call.
		return ChatResponse{
			Content:   "still thinking",
			ToolCalls: []ToolCall{{ID: "1", Name: "echo", Args: json.RawMessage(`{}`)}},
		}, nil
	}}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider,
		WithTools(echoTool{}), WithMaxToolIter(2))

	c, err := agent.Propose(context.Background(), "p", DebateContext{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Content != "still thinking" {
		t.Errorf("content = %q", c.Content)
	}
	// Initial call plus two iterations.
	if got := len(provider.requests()); got != 3 {
		t.Errorf("provider calls = %d, want 3", got)
	}
}

func TestAskClarifyingQuestionsParsesAndCaps(t *testing.T) {
	provider := &mockProvider{responses: []ChatResponse{
		{Content: "- What is the expected scale?\n2. Which cloud?\n\n* Any latency budget?\n- A fourth question?"},
	}}
	agent := NewRoleAgent(testAgentConfig("arch", RoleArchitect), provider)

	items, err := agent.AskClarifyingQuestions(context.Background(), "p", DebateContext{}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3 (capped)", len(items))
	}
	if items[0].Question != "What is the expected scale?" {
		t.Errorf("first question = %q", items[0].Question)
	}
	if items[1].Question != "Which cloud?" {
		t.Errorf("second question = %q", items[1].Question)
	}
	for _, item := range items {
		if item.ID == "" {
			t.Error("question missing id")
		}
	}
}
