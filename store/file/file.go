// Package file implements conclave.DebateStore on plain JSON files, one
// document per debate. Every mutation rewrites the full document to a
// temporary sibling and renames it into place, so readers never observe a
// partially written debate.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nevindra/conclave"
)

// StoreOption configures a file Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements conclave.DebateStore backed by a directory of JSON
// files. Safe for concurrent use; all operations serialize on one mutex.
type Store struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*conclave.DebateState
}

var _ conclave.DebateStore = (*Store)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, opts ...StoreOption) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &conclave.ErrStorage{Op: "create store dir", Err: err}
	}
	s := &Store{
		dir:    dir,
		logger: nopLogger,
		cache:  make(map[string]*conclave.DebateState),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("file store opened", "dir", dir)
	return s, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// CreateDebate allocates a timestamped id and persists a pending record.
func (s *Store) CreateDebate(ctx context.Context, problem, background string) (conclave.DebateState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var id string
	for attempt := 0; ; attempt++ {
		id = conclave.NewDebateID(now)
		if _, err := os.Stat(s.path(id)); errors.Is(err, fs.ErrNotExist) {
			break
		}
		if attempt >= 4 {
			return conclave.DebateState{}, &conclave.ErrStorage{
				Op: "create debate", Err: fmt.Errorf("id collision for %s", id),
			}
		}
	}

	st := &conclave.DebateState{
		ID:        id,
		Problem:   problem,
		Context:   background,
		Status:    conclave.StatusPending,
		Rounds:    []conclave.DebateRound{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(st); err != nil {
		return conclave.DebateState{}, err
	}
	s.cache[id] = st
	s.logger.Debug("debate created", "debate_id", id)
	return *st, nil
}

// GetDebate returns a copy of the debate, or nil when no record exists.
func (s *Store) GetDebate(ctx context.Context, id string) (*conclave.DebateState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(id)
	if err != nil || st == nil {
		return nil, err
	}
	cp := *st
	return &cp, nil
}

// ListDebates loads every persisted debate, newest-first by CreatedAt.
// Unreadable files are skipped with a warning so one corrupt record does
// not hide the rest.
func (s *Store) ListDebates(ctx context.Context) ([]conclave.DebateState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &conclave.ErrStorage{Op: "list debates", Err: err}
	}

	var out []conclave.DebateState
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		st, err := s.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable debate file", "file", name, "error", err)
			continue
		}
		if st != nil {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// BeginRound opens the next round and returns its 1-indexed number.
// Re-entry on an empty round returns the same number.
func (s *Store) BeginRound(ctx context.Context, id string) (int, error) {
	var n int
	err := s.mutate(id, func(st *conclave.DebateState, now time.Time) error {
		n = st.ApplyBeginRound(now)
		return nil
	})
	return n, err
}

// AddContribution appends a contribution to the current round.
func (s *Store) AddContribution(ctx context.Context, id string, c conclave.Contribution) error {
	return s.mutate(id, func(st *conclave.DebateState, now time.Time) error {
		return st.ApplyContribution(c, now)
	})
}

// AddSummary records a summary for (roundNumber, sum.AgentID).
func (s *Store) AddSummary(ctx context.Context, id string, roundNumber int, sum conclave.DebateSummary) error {
	return s.mutate(id, func(st *conclave.DebateState, now time.Time) error {
		return st.ApplySummary(roundNumber, sum, now)
	})
}

// SetClarifications attaches the pre-round-1 clarifications.
func (s *Store) SetClarifications(ctx context.Context, id string, cl []conclave.AgentClarifications) error {
	return s.mutate(id, func(st *conclave.DebateState, now time.Time) error {
		st.Clarifications = cl
		st.UpdatedAt = now
		return nil
	})
}

// CompleteDebate marks the debate completed with the final solution.
func (s *Store) CompleteDebate(ctx context.Context, id string, sol conclave.Solution) error {
	return s.mutate(id, func(st *conclave.DebateState, now time.Time) error {
		st.ApplyComplete(sol, now)
		return nil
	})
}

// FailDebate marks the debate failed, recording the cause.
func (s *Store) FailDebate(ctx context.Context, id string, cause error) error {
	return s.mutate(id, func(st *conclave.DebateState, now time.Time) error {
		st.ApplyFail(cause, now)
		return nil
	})
}

// UpdateUserFeedback records user feedback; only -1 and +1 are accepted.
func (s *Store) UpdateUserFeedback(ctx context.Context, id string, v int) error {
	return s.mutate(id, func(st *conclave.DebateState, now time.Time) error {
		return st.ApplyFeedback(v, now)
	})
}

// Close is a no-op for the file backend.
func (s *Store) Close() error { return nil }

// mutate loads the debate, applies fn, and persists the result. The write
// only happens when fn succeeds.
func (s *Store) mutate(id string, fn func(st *conclave.DebateState, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(id)
	if err != nil {
		return err
	}
	if st == nil {
		return &conclave.ErrNotFound{DebateID: id}
	}
	if err := fn(st, time.Now().UTC()); err != nil {
		return err
	}
	if err := s.save(st); err != nil {
		return err
	}
	s.cache[id] = st
	return nil
}

// load returns the cached state or reads it from disk. Missing files
// return (nil, nil). Callers hold s.mu.
func (s *Store) load(id string) (*conclave.DebateState, error) {
	if st, ok := s.cache[id]; ok {
		return st, nil
	}
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &conclave.ErrStorage{Op: "read debate", Err: err}
	}
	var st conclave.DebateState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &conclave.ErrStorage{Op: "decode debate", Err: err}
	}
	s.cache[id] = &st
	return &st, nil
}

// save writes the full document atomically: temp sibling in the same
// directory, then rename. Callers hold s.mu.
func (s *Store) save(st *conclave.DebateState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return &conclave.ErrStorage{Op: "encode debate", Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, st.ID+"-*.tmp")
	if err != nil {
		return &conclave.ErrStorage{Op: "write debate", Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &conclave.ErrStorage{Op: "write debate", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &conclave.ErrStorage{Op: "write debate", Err: err}
	}
	if err := os.Rename(tmpName, s.path(st.ID)); err != nil {
		os.Remove(tmpName)
		return &conclave.ErrStorage{Op: "write debate", Err: err}
	}
	return nil
}
