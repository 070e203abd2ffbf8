package conclave

import (
	"log/slog"
	"sync"
)

// Hooks receives progress notifications during a debate run. All fields are
// optional; nil hooks are skipped. Hooks are invoked synchronously from the
// orchestrator goroutine in a deterministic order, so a slow hook slows the
// debate. A panicking hook is recovered and logged; it never aborts the run.
type Hooks struct {
	// RoundStart fires when a round begins. total is the configured number
	// of rounds.
	RoundStart func(round, total int)
	// PhaseStart fires when a phase begins with the number of agent tasks
	// the phase will run.
	PhaseStart func(round int, phase Phase, tasks int)
	// PhaseComplete fires after every task of the phase has been persisted.
	PhaseComplete func(round int, phase Phase)
	// SummarizationStart fires before an agent's context is summarized.
	SummarizationStart func(agentName string, round int)
	// SummarizationComplete fires after a summary has been produced and
	// persisted.
	SummarizationComplete func(agentName string, round int, beforeChars, afterChars int)
	// SummarizationEnd fires when the summarization step for an agent is
	// over, whether or not a summary was produced.
	SummarizationEnd func(agentName string, round int)
	// AgentStart fires before an agent performs an activity ("propose",
	// "critique", "refine", "clarify").
	AgentStart func(agentName, activity string)
	// AgentComplete fires after the activity finishes.
	AgentComplete func(agentName, activity string)
	// ContributionCreated fires after a contribution has been persisted,
	// after the producing agent's AgentComplete.
	ContributionCreated func(c Contribution, round int)
	// SynthesisStart fires before the judge synthesizes the solution.
	SynthesisStart func()
	// SynthesisComplete fires with the final solution.
	SynthesisComplete func(sol Solution)
}

// hookBus serializes hook invocations and isolates hook panics from the
// orchestrator.
type hookBus struct {
	mu     sync.Mutex
	hooks  *Hooks
	logger *slog.Logger
}

func newHookBus(h *Hooks, logger *slog.Logger) *hookBus {
	if logger == nil {
		logger = nopLogger
	}
	return &hookBus{hooks: h, logger: logger}
}

// emit runs fn under the bus lock with panic recovery. fn is the hook
// closure already bound to its arguments; nil-field checks happen at the
// call sites so emit is only reached for present hooks.
func (b *hookBus) emit(name string, fn func()) {
	if b == nil || fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("debate hook panicked", "hook", name, "panic", r)
		}
	}()
	fn()
}

func (b *hookBus) roundStart(round, total int) {
	if b == nil || b.hooks == nil || b.hooks.RoundStart == nil {
		return
	}
	b.emit("RoundStart", func() { b.hooks.RoundStart(round, total) })
}

func (b *hookBus) phaseStart(round int, phase Phase, tasks int) {
	if b == nil || b.hooks == nil || b.hooks.PhaseStart == nil {
		return
	}
	b.emit("PhaseStart", func() { b.hooks.PhaseStart(round, phase, tasks) })
}

func (b *hookBus) phaseComplete(round int, phase Phase) {
	if b == nil || b.hooks == nil || b.hooks.PhaseComplete == nil {
		return
	}
	b.emit("PhaseComplete", func() { b.hooks.PhaseComplete(round, phase) })
}

func (b *hookBus) summarizationStart(agentName string, round int) {
	if b == nil || b.hooks == nil || b.hooks.SummarizationStart == nil {
		return
	}
	b.emit("SummarizationStart", func() { b.hooks.SummarizationStart(agentName, round) })
}

func (b *hookBus) summarizationComplete(agentName string, round, before, after int) {
	if b == nil || b.hooks == nil || b.hooks.SummarizationComplete == nil {
		return
	}
	b.emit("SummarizationComplete", func() {
		b.hooks.SummarizationComplete(agentName, round, before, after)
	})
}

func (b *hookBus) summarizationEnd(agentName string, round int) {
	if b == nil || b.hooks == nil || b.hooks.SummarizationEnd == nil {
		return
	}
	b.emit("SummarizationEnd", func() { b.hooks.SummarizationEnd(agentName, round) })
}

func (b *hookBus) agentStart(agentName, activity string) {
	if b == nil || b.hooks == nil || b.hooks.AgentStart == nil {
		return
	}
	b.emit("AgentStart", func() { b.hooks.AgentStart(agentName, activity) })
}

func (b *hookBus) agentComplete(agentName, activity string) {
	if b == nil || b.hooks == nil || b.hooks.AgentComplete == nil {
		return
	}
	b.emit("AgentComplete", func() { b.hooks.AgentComplete(agentName, activity) })
}

func (b *hookBus) contributionCreated(c Contribution, round int) {
	if b == nil || b.hooks == nil || b.hooks.ContributionCreated == nil {
		return
	}
	b.emit("ContributionCreated", func() { b.hooks.ContributionCreated(c, round) })
}

func (b *hookBus) synthesisStart() {
	if b == nil || b.hooks == nil || b.hooks.SynthesisStart == nil {
		return
	}
	b.emit("SynthesisStart", func() { b.hooks.SynthesisStart() })
}

func (b *hookBus) synthesisComplete(sol Solution) {
	if b == nil || b.hooks == nil || b.hooks.SynthesisComplete == nil {
		return
	}
	b.emit("SynthesisComplete", func() { b.hooks.SynthesisComplete(sol) })
}
