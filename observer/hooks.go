package observer

import (
	"context"
	"sync"
	"time"

	"github.com/nevindra/conclave"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentHooks layers debate metrics onto a set of progress hooks:
// contribution counts by type and role, per-round durations, and completed
// debate runs. base may be nil; its hooks, when present, still fire after
// the metric is recorded.
func InstrumentHooks(inst *Instruments, base *conclave.Hooks) *conclave.Hooks {
	var out conclave.Hooks
	if base != nil {
		out = *base
	}

	// Round duration is measured from one RoundStart to the next; the last
	// round closes at SynthesisStart.
	var mu sync.Mutex
	var openRound int
	var openSince time.Time

	closeRound := func() {
		mu.Lock()
		defer mu.Unlock()
		if openRound == 0 {
			return
		}
		inst.RoundDuration.Record(context.Background(),
			float64(time.Since(openSince).Milliseconds()),
			metric.WithAttributes(AttrDebateRound.Int(openRound)))
		openRound = 0
	}

	prevRoundStart := out.RoundStart
	out.RoundStart = func(round, total int) {
		closeRound()
		mu.Lock()
		openRound, openSince = round, time.Now()
		mu.Unlock()
		if prevRoundStart != nil {
			prevRoundStart(round, total)
		}
	}

	prevContribution := out.ContributionCreated
	out.ContributionCreated = func(c conclave.Contribution, round int) {
		inst.Contributions.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("type", string(c.Type)),
			AttrAgentRole.String(string(c.AgentRole)),
		))
		if prevContribution != nil {
			prevContribution(c, round)
		}
	}

	prevSynthesisStart := out.SynthesisStart
	out.SynthesisStart = func() {
		closeRound()
		if prevSynthesisStart != nil {
			prevSynthesisStart()
		}
	}

	prevSynthesisComplete := out.SynthesisComplete
	out.SynthesisComplete = func(sol conclave.Solution) {
		inst.Debates.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("status", "completed"),
		))
		if prevSynthesisComplete != nil {
			prevSynthesisComplete(sol)
		}
	}

	return &out
}
