package conclave

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"
)

// Summarizer compresses an agent's perspective of history under a length
// policy. Only the length-based method is implemented: the provider's
// summary is truncated to cfg.MaxLength characters.
type Summarizer struct {
	provider Provider
	logger   *slog.Logger
}

// SummarizerOption configures a Summarizer.
type SummarizerOption func(*Summarizer)

// SummarizerLogger sets the structured logger for summarization calls.
func SummarizerLogger(l *slog.Logger) SummarizerOption {
	return func(s *Summarizer) { s.logger = l }
}

// NewSummarizer creates a Summarizer over the given provider.
func NewSummarizer(provider Provider, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{provider: provider, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SummarizeRequest carries one summarization call. Model and Temperature
// come from the agent whose history is being compressed.
type SummarizeRequest struct {
	Content      string
	Role         Role
	Config       SummarizationConfig
	SystemPrompt string
	UserPrompt   string
	Model        string
	Temperature  float64
}

// Summarize calls the provider with the supplied prompts and the agent's
// model and temperature, then truncates the result to Config.MaxLength
// characters. Provider errors propagate; the caller decides the fallback.
func (s *Summarizer) Summarize(ctx context.Context, req SummarizeRequest) (string, SummaryMeta, error) {
	start := time.Now()
	resp, err := s.provider.Chat(ctx, ChatRequest{
		Model:        req.Model,
		Temperature:  req.Temperature,
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt + "\n\n" + req.Content,
	})
	if err != nil {
		return "", SummaryMeta{}, err
	}

	summary := truncateChars(resp.Content, req.Config.MaxLength)
	meta := SummaryMeta{
		BeforeChars: len(req.Content),
		AfterChars:  len(summary),
		Method:      SummarizationMethodLength,
		Timestamp:   time.Now().UTC(),
		Model:       req.Model,
		Temperature: req.Temperature,
		Provider:    s.provider.Name(),
		TokensUsed:  resp.Usage.Total(),
		LatencyMs:   time.Since(start).Milliseconds(),
	}
	s.logger.Debug("summarized history",
		"role", req.Role,
		"before_chars", meta.BeforeChars,
		"after_chars", meta.AfterChars,
		"latency_ms", meta.LatencyMs)
	return summary, meta, nil
}

// truncateChars keeps at most n leading bytes of s. The summarization bound
// is a character budget, so multi-byte runes at the cut point are dropped
// whole rather than split.
func truncateChars(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
