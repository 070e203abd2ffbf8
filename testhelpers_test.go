package conclave

import (
	"context"
	"sync"
	"time"
)

// mockProvider is a test Provider that returns canned responses or delegates
// to fn. Safe for concurrent use; every request is recorded.
type mockProvider struct {
	name      string
	fn        func(req ChatRequest) (ChatResponse, error)
	responses []ChatResponse // popped in order when fn is nil
	delay     time.Duration

	mu    sync.Mutex
	idx   int
	calls []ChatRequest
}

func (m *mockProvider) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *mockProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ChatResponse{}, ctx.Err()
		}
	}
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.fn != nil {
		return m.fn(req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idx >= len(m.responses) {
		return ChatResponse{Content: "exhausted"}, nil
	}
	resp := m.responses[m.idx]
	m.idx++
	return resp, nil
}

func (m *mockProvider) requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// memStore is an in-memory DebateStore for orchestrator tests. It reuses
// the same Apply* transitions the real backends use.
type memStore struct {
	mu     sync.Mutex
	seq    int
	states map[string]*DebateState
}

var _ DebateStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{states: make(map[string]*DebateState)}
}

func (s *memStore) CreateDebate(ctx context.Context, problem, background string) (DebateState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	id := NewDebateID(now.Add(time.Duration(s.seq) * time.Second))
	s.seq++
	st := &DebateState{
		ID:        id,
		Problem:   problem,
		Context:   background,
		Status:    StatusPending,
		Rounds:    []DebateRound{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.states[id] = st
	return *st, nil
}

func (s *memStore) GetDebate(ctx context.Context, id string) (*DebateState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (s *memStore) ListDebates(ctx context.Context) ([]DebateState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DebateState
	for _, st := range s.states {
		out = append(out, *st)
	}
	return out, nil
}

func (s *memStore) mutate(id string, fn func(st *DebateState, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return &ErrNotFound{DebateID: id}
	}
	return fn(st, time.Now().UTC())
}

func (s *memStore) BeginRound(ctx context.Context, id string) (int, error) {
	var n int
	err := s.mutate(id, func(st *DebateState, now time.Time) error {
		n = st.ApplyBeginRound(now)
		return nil
	})
	return n, err
}

func (s *memStore) AddContribution(ctx context.Context, id string, c Contribution) error {
	return s.mutate(id, func(st *DebateState, now time.Time) error {
		return st.ApplyContribution(c, now)
	})
}

func (s *memStore) AddSummary(ctx context.Context, id string, roundNumber int, sum DebateSummary) error {
	return s.mutate(id, func(st *DebateState, now time.Time) error {
		return st.ApplySummary(roundNumber, sum, now)
	})
}

func (s *memStore) SetClarifications(ctx context.Context, id string, cl []AgentClarifications) error {
	return s.mutate(id, func(st *DebateState, now time.Time) error {
		st.Clarifications = cl
		st.UpdatedAt = now
		return nil
	})
}

func (s *memStore) CompleteDebate(ctx context.Context, id string, sol Solution) error {
	return s.mutate(id, func(st *DebateState, now time.Time) error {
		st.ApplyComplete(sol, now)
		return nil
	})
}

func (s *memStore) FailDebate(ctx context.Context, id string, cause error) error {
	return s.mutate(id, func(st *DebateState, now time.Time) error {
		st.ApplyFail(cause, now)
		return nil
	})
}

func (s *memStore) UpdateUserFeedback(ctx context.Context, id string, v int) error {
	return s.mutate(id, func(st *DebateState, now time.Time) error {
		return st.ApplyFeedback(v, now)
	})
}

func (s *memStore) Close() error { return nil }

// only returns the single debate in the store; test setups create one.
func (s *memStore) only() *DebateState {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		return st
	}
	return nil
}

func testAgentConfig(id string, role Role) AgentConfig {
	return AgentConfig{ID: id, Name: id, Role: role, Model: "test-model", Provider: "mock", Temperature: 0.7}
}

func testDebateConfig(rounds int) DebateConfig {
	return DebateConfig{
		Rounds:          rounds,
		TimeoutPerRound: 30 * time.Second,
		SynthesisMethod: "judge",
	}
}

// validJudgeJSON is a well-formed synthesis payload used across judge and
// orchestrator tests.
const validJudgeJSON = `{"solutionMarkdown": "OK", "tradeoffs": ["t1"], "recommendations": ["r1"], "unfulfilledMajorRequirements": [], "openQuestions": [], "confidence": 82}`
