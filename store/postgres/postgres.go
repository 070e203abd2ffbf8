// Package postgres implements conclave.DebateStore using PostgreSQL with
// the debate document in a JSONB column.
//
// Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/conclave"
)

// Store implements conclave.DebateStore backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ conclave.DebateStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates the debates table and indexes. Safe to call multiple times.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS debates (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			state JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS debates_created_idx ON debates(created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return &conclave.ErrStorage{Op: "init", Err: err}
		}
	}
	return nil
}

// CreateDebate allocates a timestamped id and persists a pending record.
func (s *Store) CreateDebate(ctx context.Context, problem, background string) (conclave.DebateState, error) {
	now := time.Now().UTC()
	st := conclave.DebateState{
		Problem:   problem,
		Context:   background,
		Status:    conclave.StatusPending,
		Rounds:    []conclave.DebateRound{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for attempt := 0; ; attempt++ {
		st.ID = conclave.NewDebateID(now)
		data, err := json.Marshal(st)
		if err != nil {
			return conclave.DebateState{}, &conclave.ErrStorage{Op: "encode debate", Err: err}
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO debates (id, status, created_at, updated_at, state) VALUES ($1, $2, $3, $4, $5)`,
			st.ID, string(st.Status), now.UnixMilli(), now.UnixMilli(), data)
		if err == nil {
			return st, nil
		}
		if attempt >= 4 {
			return conclave.DebateState{}, &conclave.ErrStorage{Op: "create debate", Err: err}
		}
	}
}

// GetDebate returns the debate, or nil when no row exists.
func (s *Store) GetDebate(ctx context.Context, id string) (*conclave.DebateState, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM debates WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &conclave.ErrStorage{Op: "read debate", Err: err}
	}
	var st conclave.DebateState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, &conclave.ErrStorage{Op: "decode debate", Err: err}
	}
	return &st, nil
}

// ListDebates enumerates persisted debates, newest-first.
func (s *Store) ListDebates(ctx context.Context) ([]conclave.DebateState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT state FROM debates ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, &conclave.ErrStorage{Op: "list debates", Err: err}
	}
	defer rows.Close()

	var out []conclave.DebateState
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, &conclave.ErrStorage{Op: "list debates", Err: err}
		}
		var st conclave.DebateState
		if err := json.Unmarshal(raw, &st); err != nil {
			continue
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, &conclave.ErrStorage{Op: "list debates", Err: err}
	}
	return out, nil
}

// BeginRound opens the next round and returns its 1-indexed number.
// Re-entry on an empty round returns the same number.
func (s *Store) BeginRound(ctx context.Context, id string) (int, error) {
	var n int
	err := s.mutate(ctx, id, func(st *conclave.DebateState, now time.Time) error {
		n = st.ApplyBeginRound(now)
		return nil
	})
	return n, err
}

// AddContribution appends a contribution to the current round.
func (s *Store) AddContribution(ctx context.Context, id string, c conclave.Contribution) error {
	return s.mutate(ctx, id, func(st *conclave.DebateState, now time.Time) error {
		return st.ApplyContribution(c, now)
	})
}

// AddSummary records a summary for (roundNumber, sum.AgentID).
func (s *Store) AddSummary(ctx context.Context, id string, roundNumber int, sum conclave.DebateSummary) error {
	return s.mutate(ctx, id, func(st *conclave.DebateState, now time.Time) error {
		return st.ApplySummary(roundNumber, sum, now)
	})
}

// SetClarifications attaches the pre-round-1 clarifications.
func (s *Store) SetClarifications(ctx context.Context, id string, cl []conclave.AgentClarifications) error {
	return s.mutate(ctx, id, func(st *conclave.DebateState, now time.Time) error {
		st.Clarifications = cl
		st.UpdatedAt = now
		return nil
	})
}

// CompleteDebate marks the debate completed with the final solution.
func (s *Store) CompleteDebate(ctx context.Context, id string, sol conclave.Solution) error {
	return s.mutate(ctx, id, func(st *conclave.DebateState, now time.Time) error {
		st.ApplyComplete(sol, now)
		return nil
	})
}

// FailDebate marks the debate failed, recording the cause.
func (s *Store) FailDebate(ctx context.Context, id string, cause error) error {
	return s.mutate(ctx, id, func(st *conclave.DebateState, now time.Time) error {
		st.ApplyFail(cause, now)
		return nil
	})
}

// UpdateUserFeedback records user feedback; only -1 and +1 are accepted.
func (s *Store) UpdateUserFeedback(ctx context.Context, id string, v int) error {
	return s.mutate(ctx, id, func(st *conclave.DebateState, now time.Time) error {
		return st.ApplyFeedback(v, now)
	})
}

// Close is a no-op; the pool is owned by the caller.
func (s *Store) Close() error { return nil }

// mutate runs a read-modify-write cycle with SELECT ... FOR UPDATE so
// concurrent writers to the same debate serialize.
func (s *Store) mutate(ctx context.Context, id string, fn func(st *conclave.DebateState, now time.Time) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &conclave.ErrStorage{Op: "begin tx", Err: err}
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT state FROM debates WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return &conclave.ErrNotFound{DebateID: id}
	}
	if err != nil {
		return &conclave.ErrStorage{Op: "read debate", Err: err}
	}

	var st conclave.DebateState
	if err := json.Unmarshal(raw, &st); err != nil {
		return &conclave.ErrStorage{Op: "decode debate", Err: err}
	}
	now := time.Now().UTC()
	if err := fn(&st, now); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return &conclave.ErrStorage{Op: "encode debate", Err: err}
	}

	_, err = tx.Exec(ctx,
		`UPDATE debates SET status = $1, updated_at = $2, state = $3 WHERE id = $4`,
		string(st.Status), now.UnixMilli(), data, id)
	if err != nil {
		return &conclave.ErrStorage{Op: "write debate", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &conclave.ErrStorage{Op: "commit", Err: err}
	}
	return nil
}
