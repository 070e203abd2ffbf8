package conclave

import (
	"context"
	"sync"
)

// answerMissing is bound to every clarifying question the user did not
// answer, so agents see an explicit non-answer rather than a blank.
const answerMissing = "NA"

// collectClarifications fans the clarification request out to every agent
// concurrently and gathers the questions in agent configuration order.
// A failing agent is skipped with a warning; clarification is best-effort
// and never aborts the debate.
func (o *Orchestrator) collectClarifications(ctx context.Context, agents []*RoleAgent, problem, background string, maxPerAgent int, bus *hookBus) []AgentClarifications {
	dctx := DebateContext{Problem: problem, Context: background}

	items := make([][]ClarificationItem, len(agents))
	var wg sync.WaitGroup
	for i, a := range agents {
		wg.Add(1)
		go func(i int, a *RoleAgent) {
			defer wg.Done()
			bus.agentStart(a.Name(), "clarify")
			qs, err := a.AskClarifyingQuestions(ctx, problem, dctx, maxPerAgent)
			bus.agentComplete(a.Name(), "clarify")
			if err != nil {
				o.logger.Warn("clarification collection failed, skipping agent",
					"agent", a.Name(), "error", err)
				return
			}
			items[i] = qs
		}(i, a)
	}
	wg.Wait()

	var out []AgentClarifications
	for i, a := range agents {
		if len(items[i]) == 0 {
			continue
		}
		out = append(out, AgentClarifications{
			AgentID:   a.ID(),
			AgentName: a.Name(),
			AgentRole: a.Role(),
			Items:     items[i],
		})
	}
	return out
}

// CollectClarifications gathers clarifying questions from the agents
// without running a debate, for callers that present the questions to a
// user before calling Run with the answered set.
func (o *Orchestrator) CollectClarifications(ctx context.Context, agents []*RoleAgent, problem, background string, maxPerAgent int) []AgentClarifications {
	return o.collectClarifications(ctx, agents, problem, background, maxPerAgent, newHookBus(nil, o.logger))
}

// BindAnswers attaches answers (keyed by question id) to collected
// questions. Questions without an answer are bound to "NA". The input is
// not mutated.
func BindAnswers(questions []AgentClarifications, answers map[string]string) []AgentClarifications {
	if len(questions) == 0 {
		return nil
	}
	out := make([]AgentClarifications, len(questions))
	for i, ac := range questions {
		bound := ac
		bound.Items = make([]ClarificationItem, len(ac.Items))
		for j, item := range ac.Items {
			if a, ok := answers[item.ID]; ok && a != "" {
				item.Answer = a
			} else {
				item.Answer = answerMissing
			}
			bound.Items[j] = item
		}
		out[i] = bound
	}
	return out
}
