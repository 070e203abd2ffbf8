package report

import (
	"strings"
	"testing"

	"github.com/nevindra/conclave"
)

func sampleState() *conclave.DebateState {
	return &conclave.DebateState{
		ID:      "deb-20250314-092653-ab12",
		Problem: "design a job queue",
		Context: "single region, modest scale",
		Status:  conclave.StatusCompleted,
		Clarifications: []conclave.AgentClarifications{{
			AgentID: "arch", AgentName: "Architect", AgentRole: conclave.RoleArchitect,
			Items: []conclave.ClarificationItem{{ID: "q1", Question: "delivery guarantees?", Answer: "at-least-once"}},
		}},
		Rounds: []conclave.DebateRound{{
			RoundNumber: 1,
			Contributions: []conclave.Contribution{
				{AgentID: "arch", AgentRole: conclave.RoleArchitect, Type: conclave.TypeProposal,
					Content: "use postgres as the queue", Metadata: conclave.ContributionMeta{TokensUsed: 120, LatencyMs: 900}},
				{AgentID: "sec", AgentRole: conclave.RoleSecurity, Type: conclave.TypeCritique,
					TargetAgentID: "arch", Content: "row locks under load"},
			},
			Summaries: map[string]conclave.DebateSummary{
				"arch": {AgentID: "arch", Summary: "queue on postgres"},
			},
		}},
		FinalSolution: &conclave.Solution{
			Description: "Use postgres with SKIP LOCKED.\n\n---\n\n## Judge Assessment\n\n**Confidence Score**: 75/100",
			Confidence:  75,
		},
		UserFeedback: 1,
	}
}

func TestMarkdownSections(t *testing.T) {
	md := Markdown(sampleState())

	for _, want := range []string{
		"# Debate deb-20250314-092653-ab12",
		"**Status**: completed",
		"**Feedback**: +1",
		"## Problem",
		"design a job queue",
		"## Background",
		"## Clarifications",
		"delivery guarantees?",
		"## Round 1",
		"### Proposal · arch (architect)",
		"### Critique · sec (security) on arch",
		"*120 tokens, 900 ms*",
		"### Summary for arch",
		"## Final Solution",
		"SKIP LOCKED",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMarkdownFailedDebate(t *testing.T) {
	st := &conclave.DebateState{
		ID:            "deb-20250314-092653-ff00",
		Problem:       "p",
		Status:        conclave.StatusFailed,
		FailureReason: "round 1 timed out after 30s",
	}
	md := Markdown(st)
	if !strings.Contains(md, "## Failure") || !strings.Contains(md, "timed out") {
		t.Errorf("failure section missing:\n%s", md)
	}
	if strings.Contains(md, "## Final Solution") {
		t.Error("failed debate should have no solution section")
	}
}

func TestHTMLRendering(t *testing.T) {
	out, err := HTML(sampleState())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<!DOCTYPE html>") {
		t.Error("not a standalone page")
	}
	if !strings.Contains(out, "<title>Debate deb-20250314-092653-ab12</title>") {
		t.Errorf("title missing:\n%.200s", out)
	}
	// Markdown headings must be converted, not escaped.
	if !strings.Contains(out, "<h2") || strings.Contains(out, "\n## Problem") {
		t.Error("markdown not converted to HTML")
	}
}
