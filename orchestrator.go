package conclave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Phase is one of the three stages every round runs through.
type Phase string

const (
	PhaseProposal   Phase = "proposal"
	PhaseCritique   Phase = "critique"
	PhaseRefinement Phase = "refinement"
)

// DebateRequest describes one debate run.
type DebateRequest struct {
	// Problem is the question the agents debate. Required.
	Problem string
	// Context is optional background material included in every prompt.
	Context string
	// Config controls rounds, timeouts, history handling, and summarization.
	Config DebateConfig
	// Clarifications carries pre-answered clarifying questions. When set,
	// no clarification phase runs.
	Clarifications []AgentClarifications
	// CollectClarifications runs the clarification phase before round 1:
	// agents ask questions, AnswerFunc supplies answers.
	CollectClarifications bool
	// MaxQuestionsPerAgent caps questions per agent during collection.
	// Zero means no cap.
	MaxQuestionsPerAgent int
	// AnswerFunc maps collected question ids to answers. Questions it does
	// not answer are bound to "NA". Nil leaves every question unanswered.
	AnswerFunc func(ctx context.Context, questions []AgentClarifications) (map[string]string, error)
}

// Orchestrator drives debates through their round/phase state machine:
// proposal, critique, refinement per round, then judge synthesis. Within a
// phase agents run concurrently; phases never overlap. All state flows
// through the DebateStore.
type Orchestrator struct {
	store  DebateStore
	guard  *InjectionGuard
	tracer Tracer
	logger *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// OrchestratorGuard installs an input guard checked against the problem
// statement and clarification answers.
func OrchestratorGuard(g *InjectionGuard) OrchestratorOption {
	return func(o *Orchestrator) { o.guard = g }
}

// OrchestratorTracer sets the tracer for run and round spans.
func OrchestratorTracer(t Tracer) OrchestratorOption {
	return func(o *Orchestrator) { o.tracer = t }
}

// OrchestratorLogger sets the structured logger.
func OrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an Orchestrator backed by the given store.
func NewOrchestrator(store DebateStore, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{store: store, logger: nopLogger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes a complete debate: validation, optional clarification
// collection, the configured rounds, and judge synthesis. Any agent failure
// is fatal to the run; the debate is marked failed with the cause and the
// error is returned. No state is written before validation passes.
func (o *Orchestrator) Run(ctx context.Context, req DebateRequest, agents []*RoleAgent, judge *JudgeAgent, hooks *Hooks) (DebateResult, error) {
	start := time.Now()

	enabled, err := o.validate(req, agents, judge)
	if err != nil {
		return DebateResult{}, err
	}

	if o.tracer != nil {
		var span Span
		ctx, span = o.tracer.Start(ctx, "debate.run",
			IntAttr("debate.rounds", req.Config.Rounds),
			IntAttr("debate.agents", len(enabled)))
		defer span.End()
	}

	state, err := o.store.CreateDebate(ctx, req.Problem, req.Context)
	if err != nil {
		return DebateResult{}, err
	}
	id := state.ID
	o.logger.Info("debate created", "debate_id", id, "agents", len(enabled), "rounds", req.Config.Rounds)

	bus := newHookBus(hooks, o.logger)

	cls, err := o.clarificationPhase(ctx, id, req, enabled, bus)
	if err != nil {
		return DebateResult{}, o.fail(ctx, id, err)
	}

	base := DebateContext{
		Problem:            req.Problem,
		Context:            req.Context,
		Clarifications:     cls,
		IncludeFullHistory: req.Config.IncludeFullHistory,
	}

	run := &debateRun{
		orchestrator: o,
		id:           id,
		cfg:          req.Config,
		agents:       enabled,
		base:         base,
		bus:          bus,
	}

	for r := 1; r <= req.Config.Rounds; r++ {
		if err := run.round(ctx, r); err != nil {
			return DebateResult{}, o.fail(ctx, id, err)
		}
	}

	bus.synthesisStart()
	sol, usage, err := judge.Synthesize(ctx, req.Problem, run.rounds, base)
	if err != nil {
		return DebateResult{}, o.fail(ctx, id, fmt.Errorf("synthesis: %w", err))
	}
	run.tokens += usage.Total()

	if err := o.store.CompleteDebate(ctx, id, sol); err != nil {
		return DebateResult{}, err
	}
	bus.synthesisComplete(sol)
	o.logger.Info("debate completed", "debate_id", id, "confidence", sol.Confidence)

	return DebateResult{
		DebateID: id,
		Solution: sol,
		Rounds:   run.rounds,
		Metadata: ResultMeta{
			TotalRounds: len(run.rounds),
			TotalTokens: run.tokens,
			DurationMs:  time.Since(start).Milliseconds(),
		},
	}, nil
}

// validate checks the request, the agent set, and the judge before any
// state is written. Returns the enabled agents in configuration order.
func (o *Orchestrator) validate(req DebateRequest, agents []*RoleAgent, judge *JudgeAgent) ([]*RoleAgent, error) {
	if req.Problem == "" {
		return nil, &ErrInvalidInput{Reason: "problem statement is required"}
	}
	if err := req.Config.validate(); err != nil {
		return nil, err
	}
	if judge == nil {
		return nil, &ErrConfig{Reason: "judge agent is required"}
	}

	seenID := make(map[string]bool)
	seenName := make(map[string]bool)
	var enabled []*RoleAgent
	for _, a := range agents {
		cfg := a.Config()
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		if seenID[cfg.ID] {
			return nil, &ErrInvalidInput{Reason: "duplicate agent id: " + cfg.ID}
		}
		if seenName[cfg.Name] {
			return nil, &ErrInvalidInput{Reason: "duplicate agent name: " + cfg.Name}
		}
		seenID[cfg.ID] = true
		seenName[cfg.Name] = true
		if cfg.IsEnabled() {
			enabled = append(enabled, a)
		}
	}
	if len(enabled) == 0 {
		return nil, &ErrInvalidInput{Reason: "no enabled agents"}
	}

	if o.guard != nil {
		if err := o.guard.Check("problem", req.Problem); err != nil {
			return nil, err
		}
		if req.Context != "" {
			if err := o.guard.Check("context", req.Context); err != nil {
				return nil, err
			}
		}
	}
	return enabled, nil
}

// clarificationPhase resolves the clarifications for this run: either the
// pre-answered set from the request, or a fresh collection round.
func (o *Orchestrator) clarificationPhase(ctx context.Context, id string, req DebateRequest, agents []*RoleAgent, bus *hookBus) ([]AgentClarifications, error) {
	cls := req.Clarifications
	if len(cls) == 0 && req.CollectClarifications {
		questions := o.collectClarifications(ctx, agents, req.Problem, req.Context, req.MaxQuestionsPerAgent, bus)
		answers := map[string]string{}
		if req.AnswerFunc != nil && len(questions) > 0 {
			var err error
			answers, err = req.AnswerFunc(ctx, questions)
			if err != nil {
				return nil, fmt.Errorf("clarification answers: %w", err)
			}
		}
		cls = BindAnswers(questions, answers)
	}
	if len(cls) == 0 {
		return nil, nil
	}

	if o.guard != nil {
		for _, ac := range cls {
			for _, item := range ac.Items {
				if err := o.guard.Check("clarification answer", item.Answer); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := o.store.SetClarifications(ctx, id, cls); err != nil {
		return nil, err
	}
	return cls, nil
}

// fail marks the debate failed and returns err unchanged. Persistence uses
// a cancel-free context so a canceled run still records its failure.
func (o *Orchestrator) fail(ctx context.Context, id string, err error) error {
	o.logger.Error("debate failed", "debate_id", id, "error", err)
	if ferr := o.store.FailDebate(context.WithoutCancel(ctx), id, err); ferr != nil {
		o.logger.Error("recording debate failure failed", "debate_id", id, "error", ferr)
	}
	return err
}

// --- per-run state ---

// debateRun carries the mutable state of one Run invocation: the local
// mirror of persisted rounds and the token tally.
type debateRun struct {
	orchestrator *Orchestrator
	id           string
	cfg          DebateConfig
	agents       []*RoleAgent
	base         DebateContext
	bus          *hookBus

	rounds []DebateRound
	tokens int
}

// phaseTask is one agent invocation inside a phase. Tasks are indexed so
// results persist in task order regardless of completion order.
type phaseTask struct {
	agent    *RoleAgent
	activity string
	run      func(ctx context.Context) (Contribution, error)
}

// round executes one full round under the per-round deadline.
func (d *debateRun) round(ctx context.Context, r int) error {
	o := d.orchestrator
	d.bus.roundStart(r, d.cfg.Rounds)

	if _, err := o.store.BeginRound(ctx, d.id); err != nil {
		return err
	}
	d.rounds = append(d.rounds, DebateRound{RoundNumber: r, Timestamp: time.Now().UTC()})

	if o.tracer != nil {
		var span Span
		ctx, span = o.tracer.Start(ctx, "debate.round", IntAttr("round", r))
		defer span.End()
	}

	rctx, cancel := context.WithTimeout(ctx, d.cfg.TimeoutPerRound)
	defer cancel()

	contexts, err := d.prepareContexts(rctx, r)
	if err != nil {
		return d.classify(err, ctx, rctx, r)
	}

	proposals, err := d.proposalPhase(rctx, r, contexts)
	if err != nil {
		return d.classify(err, ctx, rctx, r)
	}
	critiques, err := d.critiquePhase(rctx, r, proposals, contexts)
	if err != nil {
		return d.classify(err, ctx, rctx, r)
	}
	if err := d.refinementPhase(rctx, r, proposals, critiques, contexts); err != nil {
		return d.classify(err, ctx, rctx, r)
	}
	return nil
}

// classify maps a phase error to the caller-visible failure: deadline
// overruns become ErrTimeout, parent cancellation surfaces as the parent's
// error, anything else passes through.
func (d *debateRun) classify(err error, ctx, rctx context.Context, r int) error {
	if errors.Is(err, context.DeadlineExceeded) || rctx.Err() == context.DeadlineExceeded {
		return &ErrTimeout{Round: r, Limit: d.cfg.TimeoutPerRound}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// prepareContexts builds each agent's view for this round, running the
// summarization step sequentially in configuration order so persisted
// summaries and hooks are deterministic.
func (d *debateRun) prepareContexts(ctx context.Context, r int) (map[string]DebateContext, error) {
	o := d.orchestrator
	contexts := make(map[string]DebateContext, len(d.agents))
	history := d.rounds[:len(d.rounds)-1]

	for _, a := range d.agents {
		dctx := d.base
		dctx.History = history

		if a.ShouldSummarize(dctx) {
			d.bus.summarizationStart(a.Name(), r)
			prepared, sum := a.PrepareContext(ctx, dctx, r)
			dctx = prepared
			if sum != nil {
				if err := o.store.AddSummary(ctx, d.id, r, *sum); err != nil {
					return nil, err
				}
				if d.rounds[r-1].Summaries == nil {
					d.rounds[r-1].Summaries = make(map[string]DebateSummary)
				}
				d.rounds[r-1].Summaries[sum.AgentID] = *sum
				d.tokens += sum.Metadata.TokensUsed
				dctx.Summary = sum
				d.bus.summarizationComplete(a.Name(), r, sum.Metadata.BeforeChars, sum.Metadata.AfterChars)
			}
			d.bus.summarizationEnd(a.Name(), r)
		}
		contexts[a.ID()] = dctx
	}
	return contexts, nil
}

// proposalPhase produces one proposal per agent. Round 1 asks every agent
// fresh; later rounds carry each agent's previous refinement forward as its
// proposal without a provider call.
func (d *debateRun) proposalPhase(ctx context.Context, r int, contexts map[string]DebateContext) (map[string]Contribution, error) {
	tasks := make([]phaseTask, 0, len(d.agents))
	for _, a := range d.agents {
		agent := a
		dctx := contexts[agent.ID()]
		task := phaseTask{agent: agent, activity: "propose"}

		if r == 1 {
			task.run = func(ctx context.Context) (Contribution, error) {
				return agent.Propose(ctx, d.base.Problem, dctx)
			}
		} else if prev, ok := d.previousRefinement(agent.ID()); ok {
			task.run = func(ctx context.Context) (Contribution, error) {
				return carryForward(agent, prev), nil
			}
		} else {
			d.orchestrator.logger.Warn("no refinement to carry forward, proposing fresh",
				"agent", agent.Name(), "round", r)
			task.run = func(ctx context.Context) (Contribution, error) {
				return agent.Propose(ctx, d.base.Problem, dctx)
			}
		}
		tasks = append(tasks, task)
	}

	results, err := d.runPhase(ctx, r, PhaseProposal, tasks)
	if err != nil {
		return nil, err
	}
	proposals := make(map[string]Contribution, len(results))
	for _, c := range results {
		proposals[c.AgentID] = c
	}
	return proposals, nil
}

// critiquePhase runs every ordered (critic, target) pair with critic and
// target distinct. Pairs are enumerated in lexicographic (critic id,
// target id) order, which fixes the persist order independently of agent
// configuration order.
func (d *debateRun) critiquePhase(ctx context.Context, r int, proposals map[string]Contribution, contexts map[string]DebateContext) ([]Contribution, error) {
	ordered := make([]*RoleAgent, len(d.agents))
	copy(ordered, d.agents)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID() < ordered[j].ID() })

	var tasks []phaseTask
	for _, critic := range ordered {
		for _, target := range ordered {
			if critic.ID() == target.ID() {
				continue
			}
			critic, target := critic, target
			dctx := contexts[critic.ID()]
			proposal := proposals[target.ID()]
			tasks = append(tasks, phaseTask{
				agent:    critic,
				activity: "critique",
				run: func(ctx context.Context) (Contribution, error) {
					c, err := critic.Critique(ctx, proposal, dctx)
					if err != nil {
						return Contribution{}, err
					}
					c.TargetAgentID = target.ID()
					return c, nil
				},
			})
		}
	}
	return d.runPhase(ctx, r, PhaseCritique, tasks)
}

// refinementPhase has each agent revise its own proposal against the
// critiques aimed at it.
func (d *debateRun) refinementPhase(ctx context.Context, r int, proposals map[string]Contribution, critiques []Contribution, contexts map[string]DebateContext) error {
	tasks := make([]phaseTask, 0, len(d.agents))
	for _, a := range d.agents {
		agent := a
		dctx := contexts[agent.ID()]
		original := proposals[agent.ID()]
		var received []Contribution
		for _, c := range critiques {
			if c.TargetAgentID == agent.ID() {
				received = append(received, c)
			}
		}
		tasks = append(tasks, phaseTask{
			agent:    agent,
			activity: "refine",
			run: func(ctx context.Context) (Contribution, error) {
				return agent.Refine(ctx, original, received, dctx)
			},
		})
	}
	_, err := d.runPhase(ctx, r, PhaseRefinement, tasks)
	return err
}

// runPhase fans the tasks out concurrently, waits for all of them, then
// persists successful contributions in task order. The first error in task
// order wins; contributions that completed before the failure are still
// persisted so partial rounds survive in the store.
func (d *debateRun) runPhase(ctx context.Context, r int, phase Phase, tasks []phaseTask) ([]Contribution, error) {
	o := d.orchestrator
	d.bus.phaseStart(r, phase, len(tasks))

	results := make([]Contribution, len(tasks))
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t phaseTask) {
			defer wg.Done()
			d.bus.agentStart(t.agent.Name(), t.activity)
			results[i], errs[i] = t.run(ctx)
			d.bus.agentComplete(t.agent.Name(), t.activity)
		}(i, t)
	}
	wg.Wait()

	var persisted []Contribution
	var firstErr error
	for i := range tasks {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s %s: %w", tasks[i].agent.Name(), tasks[i].activity, errs[i])
			}
			continue
		}
		c := results[i]
		if err := o.store.AddContribution(context.WithoutCancel(ctx), d.id, c); err != nil {
			return nil, err
		}
		cur := &d.rounds[len(d.rounds)-1]
		cur.Contributions = append(cur.Contributions, c)
		d.tokens += c.Metadata.TokensUsed
		persisted = append(persisted, c)
		d.bus.contributionCreated(c, r)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	d.bus.phaseComplete(r, phase)
	return persisted, nil
}

// previousRefinement returns the agent's refinement from the round before
// the current one.
func (d *debateRun) previousRefinement(agentID string) (Contribution, bool) {
	if len(d.rounds) < 2 {
		return Contribution{}, false
	}
	prev := d.rounds[len(d.rounds)-2]
	for i := len(prev.Contributions) - 1; i >= 0; i-- {
		c := prev.Contributions[i]
		if c.AgentID == agentID && c.Type == TypeRefinement {
			return c, true
		}
	}
	return Contribution{}, false
}

// carryForward turns last round's refinement into this round's proposal.
// No provider call happens, so the accounting fields are zero.
func carryForward(agent *RoleAgent, refinement Contribution) Contribution {
	return Contribution{
		ID:        NewID(),
		AgentID:   agent.ID(),
		AgentRole: agent.Role(),
		Type:      TypeProposal,
		Content:   refinement.Content,
		Metadata: ContributionMeta{
			LatencyMs:  0,
			TokensUsed: 0,
			Model:      refinement.Metadata.Model,
		},
	}
}
