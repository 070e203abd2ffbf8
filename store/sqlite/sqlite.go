// Package sqlite implements conclave.DebateStore using pure-Go SQLite.
// Zero CGO required. The full debate document is stored as JSON text; the
// indexed columns exist only for listing and lookup.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nevindra/conclave"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements conclave.DebateStore backed by a local SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ conclave.DebateStore = (*Store)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates the debates table.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS debates (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		state TEXT NOT NULL
	)`)
	if err != nil {
		return &conclave.ErrStorage{Op: "create table", Err: err}
	}
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_debates_created ON debates(created_at)`)
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
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO debates (id, status, created_at, updated_at, state) VALUES (?, ?, ?, ?, ?)`,
			st.ID, string(st.Status), now.UnixMilli(), now.UnixMilli(), string(data))
		if err == nil {
			s.logger.Debug("sqlite: debate created", "debate_id", st.ID)
			return st, nil
		}
		if attempt >= 4 {
			return conclave.DebateState{}, &conclave.ErrStorage{Op: "create debate", Err: err}
		}
	}
}

// GetDebate returns the debate, or nil when no row exists.
func (s *Store) GetDebate(ctx context.Context, id string) (*conclave.DebateState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM debates WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &conclave.ErrStorage{Op: "read debate", Err: err}
	}
	var st conclave.DebateState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, &conclave.ErrStorage{Op: "decode debate", Err: err}
	}
	return &st, nil
}

// ListDebates enumerates persisted debates, newest-first.
func (s *Store) ListDebates(ctx context.Context) ([]conclave.DebateState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state FROM debates ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, &conclave.ErrStorage{Op: "list debates", Err: err}
	}
	defer rows.Close()

	var out []conclave.DebateState
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, &conclave.ErrStorage{Op: "list debates", Err: err}
		}
		var st conclave.DebateState
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			s.logger.Warn("sqlite: skipping undecodable debate row", "error", err)
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

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// mutate runs a read-modify-write cycle in one transaction so concurrent
// direct callers cannot interleave between read and write.
func (s *Store) mutate(ctx context.Context, id string, fn func(st *conclave.DebateState, now time.Time) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &conclave.ErrStorage{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT state FROM debates WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &conclave.ErrNotFound{DebateID: id}
	}
	if err != nil {
		return &conclave.ErrStorage{Op: "read debate", Err: err}
	}

	var st conclave.DebateState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
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

	_, err = tx.ExecContext(ctx,
		`UPDATE debates SET status = ?, updated_at = ?, state = ? WHERE id = ?`,
		string(st.Status), now.UnixMilli(), string(data), id)
	if err != nil {
		return &conclave.ErrStorage{Op: "write debate", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &conclave.ErrStorage{Op: "commit", Err: err}
	}
	return nil
}
