package conclave

import (
	"fmt"
	"time"
)

// ErrInvalidInput reports input rejected at entry: empty problem, zero
// rounds, duplicate agents, out-of-range feedback. No state is written.
type ErrInvalidInput struct {
	Reason string
}

func (e *ErrInvalidInput) Error() string {
	return "invalid input: " + e.Reason
}

// ErrConfig reports fatal configuration problems detected before any round
// opens: unknown provider, unsupported termination or synthesis method.
type ErrConfig struct {
	Reason string
}

func (e *ErrConfig) Error() string {
	return "config: " + e.Reason
}

// ErrStorage wraps file or database I/O failures in a DebateStore.
type ErrStorage struct {
	Op  string
	Err error
}

func (e *ErrStorage) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *ErrStorage) Unwrap() error { return e.Err }

// ErrProvider reports an LLM backend failure. Retryable distinguishes
// transport-level failures (timeouts, 429, 5xx) from schema or auth errors.
type ErrProvider struct {
	Provider  string
	Message   string
	Retryable bool
}

func (e *ErrProvider) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrTimeout reports that a round exceeded its deadline. In-flight agent
// calls were cancelled; contributions persisted before the deadline remain.
type ErrTimeout struct {
	Round int
	Limit time.Duration
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("round %d exceeded %s deadline", e.Round, e.Limit)
}

// ErrNoActiveRound reports an AddContribution before any BeginRound.
type ErrNoActiveRound struct {
	DebateID string
}

func (e *ErrNoActiveRound) Error() string {
	return "no active round in debate " + e.DebateID
}

// ErrNotFound reports an operation against a debate id with no record.
type ErrNotFound struct {
	DebateID string
}

func (e *ErrNotFound) Error() string {
	return "debate not found: " + e.DebateID
}
