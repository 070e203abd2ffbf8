package conclave

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSummarizeTruncatesToMaxLength(t *testing.T) {
	long := strings.Repeat("summary ", 100)
	provider := &mockProvider{responses: []ChatResponse{
		{Content: long, Usage: Usage{TotalTokens: 42}},
	}}
	s := NewSummarizer(provider)

	content := strings.Repeat("history ", 50)
	out, meta, err := s.Summarize(context.Background(), SummarizeRequest{
		Content:      content,
		Role:         RoleArchitect,
		Config:       SummarizationConfig{Enabled: true, Threshold: 10, MaxLength: 64},
		SystemPrompt: "sys",
		UserPrompt:   "condense this",
		Model:        "test-model",
		Temperature:  0.7,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 64 {
		t.Errorf("summary length = %d, want 64", len(out))
	}
	if meta.BeforeChars != len(content) {
		t.Errorf("before chars = %d, want %d", meta.BeforeChars, len(content))
	}
	if meta.AfterChars != 64 {
		t.Errorf("after chars = %d, want 64", meta.AfterChars)
	}
	if meta.Method != SummarizationMethodLength {
		t.Errorf("method = %q", meta.Method)
	}
	if meta.TokensUsed != 42 {
		t.Errorf("tokens = %d, want 42", meta.TokensUsed)
	}

	req := provider.requests()[0]
	if req.Model != "test-model" || req.SystemPrompt != "sys" {
		t.Errorf("request = %+v", req)
	}
	if !strings.HasPrefix(req.UserPrompt, "condense this") || !strings.Contains(req.UserPrompt, "history") {
		t.Errorf("prompt = %q", req.UserPrompt)
	}
}

func TestSummarizeErrorPropagates(t *testing.T) {
	provider := &mockProvider{fn: func(req ChatRequest) (ChatResponse, error) {
		return ChatResponse{}, errors.New("down")
	}}
	s := NewSummarizer(provider)
	if _, _, err := s.Summarize(context.Background(), SummarizeRequest{Content: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestTruncateCharsRespectsRuneBoundaries(t *testing.T) {
	// "héllo" with é as two bytes; cutting mid-rune must drop the whole rune.
	s := "héllo"
	got := truncateChars(s, 2)
	if !utf8.ValidString(got) {
		t.Errorf("truncateChars produced invalid UTF-8: %q", got)
	}
	if got != "h" {
		t.Errorf("truncateChars = %q, want %q", got, "h")
	}

	if got := truncateChars("short", 100); got != "short" {
		t.Errorf("no-op truncation = %q", got)
	}
	if got := truncateChars("anything", 0); got != "anything" {
		t.Errorf("zero budget should disable truncation, got %q", got)
	}
}
