package conclave

import (
	"fmt"
	"math"
	"time"
)

// --- Domain types (persisted records) ---

// Role identifies an agent's specialization. Prompts are selected per role
// from the registry in prompts.go.
type Role string

const (
	RoleArchitect   Role = "architect"
	RolePerformance Role = "performance"
	RoleSecurity    Role = "security"
	RoleTesting     Role = "testing"
	RoleGeneralist  Role = "generalist"
	RoleJudge       Role = "judge"
)

// AgentConfig describes one debate participant.
type AgentConfig struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Role        Role    `json:"role"`
	Model       string  `json:"model"`
	Provider    string  `json:"provider"`
	Temperature float64 `json:"temperature"`
	Enabled     *bool   `json:"enabled,omitempty"` // nil = enabled
}

// IsEnabled reports whether the agent participates in debates.
func (c AgentConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c AgentConfig) validate() error {
	if c.ID == "" || c.Name == "" {
		return &ErrInvalidInput{Reason: "agent id and name are required"}
	}
	if math.IsNaN(c.Temperature) || math.IsInf(c.Temperature, 0) || c.Temperature < 0 || c.Temperature > 1 {
		return &ErrInvalidInput{Reason: fmt.Sprintf("agent %s: temperature %v out of [0,1]", c.ID, c.Temperature)}
	}
	return nil
}

// TerminationCondition controls when a debate stops. Only "fixed" (run the
// configured number of rounds) is implemented.
type TerminationCondition struct {
	Type      string  `json:"type"` // "fixed", "convergence", "quality"
	Threshold float64 `json:"threshold,omitempty"`
}

// SummarizationConfig triggers and bounds per-agent and judge summarization.
type SummarizationConfig struct {
	Enabled   bool   `json:"enabled"`
	Threshold int    `json:"threshold"`  // character count that triggers summarization
	MaxLength int    `json:"max_length"` // summary truncated to this many characters
	Method    string `json:"method,omitempty"`
}

// SummarizationMethodLength is the only implemented summarization method.
const SummarizationMethodLength = "length-based"

// DebateConfig controls a single debate run.
type DebateConfig struct {
	Rounds             int                  `json:"rounds"`
	Termination        TerminationCondition `json:"termination"`
	SynthesisMethod    string               `json:"synthesis_method"` // "judge", "voting", "merge"
	IncludeFullHistory bool                 `json:"include_full_history"`
	TimeoutPerRound    time.Duration        `json:"timeout_per_round"`
	Summarization      *SummarizationConfig `json:"summarization,omitempty"`
	Trace              bool                 `json:"trace,omitempty"`
}

func (c DebateConfig) validate() error {
	if c.Rounds < 1 {
		return &ErrInvalidInput{Reason: "rounds must be >= 1"}
	}
	if c.TimeoutPerRound <= 0 {
		return &ErrInvalidInput{Reason: "timeout per round must be positive"}
	}
	if c.Summarization != nil {
		if c.Summarization.Threshold < 0 {
			return &ErrInvalidInput{Reason: "summarization threshold must be >= 0"}
		}
		if c.Summarization.MaxLength <= 0 {
			return &ErrInvalidInput{Reason: "summarization max length must be positive"}
		}
	}
	if t := c.Termination.Type; t != "" && t != "fixed" {
		return &ErrConfig{Reason: fmt.Sprintf("termination condition %q not implemented", t)}
	}
	if m := c.SynthesisMethod; m != "" && m != "judge" {
		return &ErrConfig{Reason: fmt.Sprintf("synthesis method %q not implemented", m)}
	}
	return nil
}

// ContributionType is one of proposal, critique, refinement.
type ContributionType string

const (
	TypeProposal   ContributionType = "proposal"
	TypeCritique   ContributionType = "critique"
	TypeRefinement ContributionType = "refinement"
)

// ToolTrace records one tool execution inside an agent's tool-calling loop.
type ToolTrace struct {
	Name    string `json:"name"`
	Args    string `json:"args,omitempty"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// ContributionMeta carries per-call accounting for a contribution.
type ContributionMeta struct {
	LatencyMs   int64       `json:"latency_ms"`
	TokensUsed  int         `json:"tokens_used"`
	Model       string      `json:"model"`
	ToolCalls   int         `json:"tool_calls,omitempty"`
	ToolResults []ToolTrace `json:"tool_results,omitempty"`
}

// Contribution is a single agent output persisted in a round.
type Contribution struct {
	ID            string           `json:"id"`
	AgentID       string           `json:"agent_id"`
	AgentRole     Role             `json:"agent_role"`
	Type          ContributionType `json:"type"`
	Content       string           `json:"content"`
	TargetAgentID string           `json:"target_agent_id,omitempty"` // critiques only
	Metadata      ContributionMeta `json:"metadata"`
}

// SummaryMeta carries accounting for a DebateSummary.
type SummaryMeta struct {
	BeforeChars int       `json:"before_chars"`
	AfterChars  int       `json:"after_chars"`
	Method      string    `json:"method"`
	Timestamp   time.Time `json:"timestamp"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	TokensUsed  int       `json:"tokens_used,omitempty"`
	LatencyMs   int64     `json:"latency_ms,omitempty"`
}

// DebateSummary is a compressed view of an agent's relevant history,
// injected in place of full history when summarization is configured.
type DebateSummary struct {
	AgentID   string      `json:"agent_id"`
	AgentRole Role        `json:"agent_role"`
	Summary   string      `json:"summary"`
	Metadata  SummaryMeta `json:"metadata"`
}

// DebateRound is one proposal → critique → refinement iteration across all
// agents. Summaries are keyed by agent id.
type DebateRound struct {
	RoundNumber   int                      `json:"round_number"`
	Contributions []Contribution           `json:"contributions"`
	Summaries     map[string]DebateSummary `json:"summaries,omitempty"`
	Timestamp     time.Time                `json:"timestamp"`
}

// DebateStatus is the debate lifecycle state.
type DebateStatus string

const (
	StatusPending   DebateStatus = "pending"
	StatusRunning   DebateStatus = "running"
	StatusCompleted DebateStatus = "completed"
	StatusFailed    DebateStatus = "failed"
)

// Solution is the judge's synthesized answer.
type Solution struct {
	Description                  string   `json:"description"`
	Tradeoffs                    []string `json:"tradeoffs"`
	Recommendations              []string `json:"recommendations"`
	Confidence                   int      `json:"confidence"` // 0..100
	SynthesizedBy                string   `json:"synthesized_by"`
	UnfulfilledMajorRequirements []string `json:"unfulfilled_major_requirements,omitempty"`
	OpenQuestions                []string `json:"open_questions,omitempty"`
}

// ClarificationItem is one question an agent asked before round 1, together
// with the user's answer. Missing answers are bound to the literal "NA".
type ClarificationItem struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
}

// AgentClarifications groups one agent's clarifying questions.
type AgentClarifications struct {
	AgentID   string              `json:"agent_id"`
	AgentName string              `json:"agent_name"`
	AgentRole Role                `json:"agent_role"`
	Items     []ClarificationItem `json:"items"`
}

// DebateState is the persistent record of one debate. The DebateStore
// exclusively owns it; the orchestrator holds a transient reference for the
// lifetime of a single Run.
type DebateState struct {
	ID             string                `json:"id"`
	Problem        string                `json:"problem"`
	Context        string                `json:"context,omitempty"`
	Status         DebateStatus          `json:"status"`
	CurrentRound   int                   `json:"current_round"`
	Rounds         []DebateRound         `json:"rounds"`
	Clarifications []AgentClarifications `json:"clarifications,omitempty"`
	FinalSolution  *Solution             `json:"final_solution,omitempty"`
	UserFeedback   int                   `json:"user_feedback,omitempty"` // -1, +1, or 0 when unset
	FailureReason  string                `json:"failure_reason,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// DebateContext is the view of a debate passed by value to agents. Never
// persisted; agents must not mutate it.
type DebateContext struct {
	Problem            string
	Context            string
	History            []DebateRound
	Summary            *DebateSummary // summary produced for this agent this round, if any
	Clarifications     []AgentClarifications
	IncludeFullHistory bool
}

// ResultMeta carries run-level accounting for a DebateResult.
type ResultMeta struct {
	TotalRounds int   `json:"total_rounds"`
	TotalTokens int   `json:"total_tokens"`
	DurationMs  int64 `json:"duration_ms"`
}

// DebateResult is what Orchestrator.Run returns on success.
type DebateResult struct {
	DebateID string        `json:"debate_id"`
	Solution Solution      `json:"solution"`
	Rounds   []DebateRound `json:"rounds"`
	Metadata ResultMeta    `json:"metadata"`
}

// --- State transitions ---
//
// Store backends share these helpers so the append-only semantics live in
// one place; each backend only adds its own durability layer around them.

// ApplyBeginRound opens the next round and returns its 1-indexed number.
// Re-entering while the latest round is still empty returns that round
// instead of appending, so a retried begin within a run is idempotent.
// The first round moves a pending debate to running.
func (s *DebateState) ApplyBeginRound(now time.Time) int {
	if n := len(s.Rounds); n > 0 {
		last := s.Rounds[n-1]
		if len(last.Contributions) == 0 && len(last.Summaries) == 0 {
			s.CurrentRound = n
			s.UpdatedAt = now
			return n
		}
	}
	n := len(s.Rounds) + 1
	s.Rounds = append(s.Rounds, DebateRound{RoundNumber: n, Timestamp: now})
	s.CurrentRound = n
	if s.Status == StatusPending {
		s.Status = StatusRunning
	}
	s.UpdatedAt = now
	return n
}

// ApplyContribution appends c to the current round.
func (s *DebateState) ApplyContribution(c Contribution, now time.Time) error {
	if len(s.Rounds) == 0 {
		return &ErrNoActiveRound{DebateID: s.ID}
	}
	r := &s.Rounds[len(s.Rounds)-1]
	r.Contributions = append(r.Contributions, c)
	s.UpdatedAt = now
	return nil
}

// ApplySummary records a summary for (roundNumber, summary.AgentID),
// overwriting any prior entry for the same key.
func (s *DebateState) ApplySummary(roundNumber int, sum DebateSummary, now time.Time) error {
	if roundNumber < 1 || roundNumber > len(s.Rounds) {
		return &ErrNoActiveRound{DebateID: s.ID}
	}
	r := &s.Rounds[roundNumber-1]
	if r.Summaries == nil {
		r.Summaries = make(map[string]DebateSummary)
	}
	r.Summaries[sum.AgentID] = sum
	s.UpdatedAt = now
	return nil
}

// ApplyComplete marks the debate completed with the given solution.
func (s *DebateState) ApplyComplete(sol Solution, now time.Time) {
	s.Status = StatusCompleted
	s.FinalSolution = &sol
	s.UpdatedAt = now
}

// ApplyFail marks the debate failed, recording the cause.
func (s *DebateState) ApplyFail(cause error, now time.Time) {
	s.Status = StatusFailed
	if cause != nil {
		s.FailureReason = cause.Error()
	}
	s.UpdatedAt = now
}

// ApplyFeedback records user feedback. Only -1 and +1 are accepted.
func (s *DebateState) ApplyFeedback(v int, now time.Time) error {
	if v != -1 && v != 1 {
		return &ErrInvalidInput{Reason: fmt.Sprintf("feedback must be -1 or +1, got %d", v)}
	}
	s.UserFeedback = v
	s.UpdatedAt = now
	return nil
}
