// Package conclave orchestrates structured multi-agent debates over an LLM
// backend. Role-specialized agents iterate through proposal, critique, and
// refinement phases for a configured number of rounds; a judge then
// synthesizes a final solution with a confidence score.
//
// The core pieces are:
//
//   - Provider: the LLM chat-completion port (provider/openaicompat for an
//     OpenAI-compatible implementation, provider/resolve for name lookup)
//   - RoleAgent: propose/critique/refine/clarify over a Provider, with
//     per-agent context summarization and a bounded tool-calling loop
//   - JudgeAgent: structured-output synthesis and consensus evaluation
//   - Orchestrator: the round/phase state machine with concurrent fan-out,
//     per-round deadlines, and a progress hook stream
//   - DebateStore: append-only persistent debate log (store/file is the
//     reference JSON implementation; store/sqlite and store/postgres offer
//     database-backed variants)
//
// Tracing is optional: pass observer.NewTracer() via WithTracer to emit an
// OTEL span tree around provider calls, agent operations, and rounds.
package conclave
