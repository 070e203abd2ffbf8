package conclave

import "context"

// DebateStore abstracts persistence of debate records. Each mutation is
// durable before the call returns; the file backend writes the full JSON
// document to a temporary sibling and renames it into place.
//
// The orchestrator serializes its calls into the store (one in-flight
// mutation per debate id); implementations still guard with their own lock
// so direct callers stay safe.
type DebateStore interface {
	// CreateDebate allocates a debate id and writes a pending record.
	CreateDebate(ctx context.Context, problem, background string) (DebateState, error)
	// GetDebate returns the debate, or nil when no record exists.
	GetDebate(ctx context.Context, id string) (*DebateState, error)
	// ListDebates enumerates persisted debates, newest-first by CreatedAt.
	ListDebates(ctx context.Context) ([]DebateState, error)

	// BeginRound opens the next round and returns its 1-indexed number.
	// Re-entry while the latest round is still empty returns that round,
	// so retried begins within a run are idempotent.
	BeginRound(ctx context.Context, id string) (int, error)
	// AddContribution appends a contribution to the current round.
	AddContribution(ctx context.Context, id string, c Contribution) error
	// AddSummary records a summary keyed by (roundNumber, summary.AgentID),
	// overwriting any prior entry for the same key.
	AddSummary(ctx context.Context, id string, roundNumber int, sum DebateSummary) error
	// SetClarifications attaches the pre-round-1 clarifications.
	SetClarifications(ctx context.Context, id string, cl []AgentClarifications) error

	// CompleteDebate marks the debate completed with the final solution.
	CompleteDebate(ctx context.Context, id string, sol Solution) error
	// FailDebate marks the debate failed. Best-effort.
	FailDebate(ctx context.Context, id string, cause error) error
	// UpdateUserFeedback records user feedback; only -1 and +1 are accepted.
	UpdateUserFeedback(ctx context.Context, id string, v int) error

	// Close releases backend resources.
	Close() error
}
