// Package report renders a persisted debate as a human-readable transcript,
// either Markdown or a standalone HTML page.
package report

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"

	"github.com/nevindra/conclave"
)

// Markdown renders the full debate transcript: problem, clarifications,
// every round's contributions and summaries, and the final solution.
func Markdown(st *conclave.DebateState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Debate %s\n\n", st.ID)
	fmt.Fprintf(&b, "**Status**: %s", st.Status)
	if st.UserFeedback != 0 {
		fmt.Fprintf(&b, " · **Feedback**: %+d", st.UserFeedback)
	}
	b.WriteString("\n\n## Problem\n\n")
	b.WriteString(st.Problem)
	b.WriteString("\n")
	if st.Context != "" {
		b.WriteString("\n## Background\n\n")
		b.WriteString(st.Context)
		b.WriteString("\n")
	}
	if st.FailureReason != "" {
		b.WriteString("\n## Failure\n\n")
		b.WriteString(st.FailureReason)
		b.WriteString("\n")
	}

	if len(st.Clarifications) > 0 {
		b.WriteString("\n## Clarifications\n")
		for _, ac := range st.Clarifications {
			for _, item := range ac.Items {
				fmt.Fprintf(&b, "\n- **%s** (%s): %s\n  - %s\n", ac.AgentName, ac.AgentRole, item.Question, item.Answer)
			}
		}
	}

	for _, r := range st.Rounds {
		fmt.Fprintf(&b, "\n## Round %d\n", r.RoundNumber)
		for _, c := range r.Contributions {
			fmt.Fprintf(&b, "\n### %s · %s (%s)", titleCase(string(c.Type)), c.AgentID, c.AgentRole)
			if c.TargetAgentID != "" {
				fmt.Fprintf(&b, " on %s", c.TargetAgentID)
			}
			fmt.Fprintf(&b, "\n\n%s\n", c.Content)
			if c.Metadata.TokensUsed > 0 {
				fmt.Fprintf(&b, "\n*%d tokens, %d ms*\n", c.Metadata.TokensUsed, c.Metadata.LatencyMs)
			}
		}
		agentIDs := make([]string, 0, len(r.Summaries))
		for id := range r.Summaries {
			agentIDs = append(agentIDs, id)
		}
		sort.Strings(agentIDs)
		for _, id := range agentIDs {
			fmt.Fprintf(&b, "\n### Summary for %s\n\n%s\n", id, r.Summaries[id].Summary)
		}
	}

	if st.FinalSolution != nil {
		b.WriteString("\n## Final Solution\n\n")
		b.WriteString(st.FinalSolution.Description)
		b.WriteString("\n")
	}

	return b.String()
}

// titleCase uppercases the first byte; contribution types are lowercase ASCII.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { max-width: 52rem; margin: 2rem auto; padding: 0 1rem; font-family: system-ui, sans-serif; line-height: 1.6; color: #1a1a1a; }
pre { background: #f5f5f5; padding: 1rem; overflow-x: auto; border-radius: 4px; }
code { background: #f5f5f5; padding: 0.1rem 0.3rem; border-radius: 3px; }
h1, h2 { border-bottom: 1px solid #ddd; padding-bottom: 0.3rem; }
blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #555; }
</style>
</head>
<body>
%s
</body>
</html>
`

// HTML renders the transcript as a standalone HTML page.
func HTML(st *conclave.DebateState) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(ghtml.WithHardWraps()),
	)
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(st)), &body); err != nil {
		return "", fmt.Errorf("render debate %s: %w", st.ID, err)
	}
	title := html.EscapeString("Debate " + st.ID)
	return fmt.Sprintf(pageTemplate, title, body.String()), nil
}
