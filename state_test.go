package conclave

import (
	"errors"
	"testing"
	"time"
)

func TestApplyBeginRoundTransitionsPendingToRunning(t *testing.T) {
	st := &DebateState{ID: "d1", Status: StatusPending}
	now := time.Now()

	if n := st.ApplyBeginRound(now); n != 1 {
		t.Fatalf("first round number = %d, want 1", n)
	}
	if st.Status != StatusRunning {
		t.Errorf("status = %q, want %q", st.Status, StatusRunning)
	}
	if st.CurrentRound != 1 {
		t.Errorf("current round = %d, want 1", st.CurrentRound)
	}

	if err := st.ApplyContribution(Contribution{ID: "c1"}, now); err != nil {
		t.Fatal(err)
	}
	if n := st.ApplyBeginRound(now); n != 2 {
		t.Fatalf("second round number = %d, want 2", n)
	}
	if len(st.Rounds) != 2 {
		t.Errorf("rounds = %d, want 2", len(st.Rounds))
	}
}

func TestApplyBeginRoundReentryKeepsEmptyRound(t *testing.T) {
	st := &DebateState{ID: "d1", Status: StatusPending}
	now := time.Now()

	if n := st.ApplyBeginRound(now); n != 1 {
		t.Fatalf("first round number = %d, want 1", n)
	}
	// Re-entering before any contribution lands on the same round.
	if n := st.ApplyBeginRound(now); n != 1 {
		t.Fatalf("re-entered round number = %d, want 1", n)
	}
	if len(st.Rounds) != 1 {
		t.Fatalf("rounds = %d, want 1", len(st.Rounds))
	}
	if st.CurrentRound != 1 {
		t.Errorf("current round = %d, want 1", st.CurrentRound)
	}

	// A summary also marks the round as started.
	if err := st.ApplySummary(1, DebateSummary{AgentID: "a1", Summary: "s"}, now); err != nil {
		t.Fatal(err)
	}
	if n := st.ApplyBeginRound(now); n != 2 {
		t.Fatalf("round after summary = %d, want 2", n)
	}
}

func TestApplyContributionRequiresActiveRound(t *testing.T) {
	st := &DebateState{ID: "d1"}
	err := st.ApplyContribution(Contribution{ID: "c1"}, time.Now())

	var noRound *ErrNoActiveRound
	if !errors.As(err, &noRound) {
		t.Fatalf("err = %v, want ErrNoActiveRound", err)
	}

	st.ApplyBeginRound(time.Now())
	if err := st.ApplyContribution(Contribution{ID: "c1"}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if len(st.Rounds[0].Contributions) != 1 {
		t.Errorf("contributions = %d, want 1", len(st.Rounds[0].Contributions))
	}
}

func TestApplySummaryOverwritesSameAgent(t *testing.T) {
	st := &DebateState{ID: "d1"}
	st.ApplyBeginRound(time.Now())

	if err := st.ApplySummary(1, DebateSummary{AgentID: "a1", Summary: "first"}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := st.ApplySummary(1, DebateSummary{AgentID: "a1", Summary: "second"}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if got := st.Rounds[0].Summaries["a1"].Summary; got != "second" {
		t.Errorf("summary = %q, want %q", got, "second")
	}

	if err := st.ApplySummary(5, DebateSummary{AgentID: "a1"}, time.Now()); err == nil {
		t.Error("expected error for out-of-range round")
	}
}

func TestApplyFeedbackRejectsOutOfRange(t *testing.T) {
	st := &DebateState{ID: "d1"}
	for _, v := range []int{0, 2, -2, 100} {
		if err := st.ApplyFeedback(v, time.Now()); err == nil {
			t.Errorf("ApplyFeedback(%d) accepted, want error", v)
		}
	}
	if err := st.ApplyFeedback(1, time.Now()); err != nil {
		t.Fatal(err)
	}
	if st.UserFeedback != 1 {
		t.Errorf("feedback = %d, want 1", st.UserFeedback)
	}
	if err := st.ApplyFeedback(-1, time.Now()); err != nil {
		t.Fatal(err)
	}
	if st.UserFeedback != -1 {
		t.Errorf("feedback = %d, want -1", st.UserFeedback)
	}
}

func TestApplyFailRecordsCause(t *testing.T) {
	st := &DebateState{ID: "d1", Status: StatusRunning}
	st.ApplyFail(&ErrTimeout{Round: 2, Limit: time.Second}, time.Now())
	if st.Status != StatusFailed {
		t.Errorf("status = %q, want %q", st.Status, StatusFailed)
	}
	if st.FailureReason == "" {
		t.Error("failure reason not recorded")
	}
}

func TestDebateConfigValidate(t *testing.T) {
	valid := testDebateConfig(2)
	if err := valid.validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*DebateConfig)
	}{
		{"zero rounds", func(c *DebateConfig) { c.Rounds = 0 }},
		{"zero timeout", func(c *DebateConfig) { c.TimeoutPerRound = 0 }},
		{"negative threshold", func(c *DebateConfig) {
			c.Summarization = &SummarizationConfig{Enabled: true, Threshold: -1, MaxLength: 100}
		}},
		{"zero max length", func(c *DebateConfig) {
			c.Summarization = &SummarizationConfig{Enabled: true, Threshold: 10, MaxLength: 0}
		}},
	}
	for _, tc := range cases {
		cfg := testDebateConfig(2)
		tc.mutate(&cfg)
		if err := cfg.validate(); err == nil {
			t.Errorf("%s: accepted, want error", tc.name)
		}
	}
}

func TestDebateConfigUnimplementedMethods(t *testing.T) {
	var cfgErr *ErrConfig

	cfg := testDebateConfig(2)
	cfg.Termination = TerminationCondition{Type: "convergence", Threshold: 0.8}
	if err := cfg.validate(); !errors.As(err, &cfgErr) {
		t.Errorf("convergence termination: err = %v, want ErrConfig", err)
	}

	cfg = testDebateConfig(2)
	cfg.SynthesisMethod = "voting"
	if err := cfg.validate(); !errors.As(err, &cfgErr) {
		t.Errorf("voting synthesis: err = %v, want ErrConfig", err)
	}
}

func TestAgentConfigValidate(t *testing.T) {
	if err := testAgentConfig("a1", RoleArchitect).validate(); err != nil {
		t.Fatal(err)
	}

	bad := testAgentConfig("a1", RoleArchitect)
	bad.Temperature = 1.5
	if err := bad.validate(); err == nil {
		t.Error("temperature 1.5 accepted, want error")
	}

	bad = testAgentConfig("", RoleArchitect)
	if err := bad.validate(); err == nil {
		t.Error("empty id accepted, want error")
	}
}

func TestAgentConfigIsEnabled(t *testing.T) {
	cfg := testAgentConfig("a1", RoleArchitect)
	if !cfg.IsEnabled() {
		t.Error("nil Enabled should mean enabled")
	}
	off := false
	cfg.Enabled = &off
	if cfg.IsEnabled() {
		t.Error("Enabled=false should disable the agent")
	}
}
