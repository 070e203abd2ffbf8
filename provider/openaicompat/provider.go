// Package openaicompat implements conclave.Provider for any API speaking
// the OpenAI chat completions protocol.
//
// Works with OpenAI, OpenRouter, Groq, Together, Fireworks, DeepSeek,
// Mistral, Ollama, vLLM, LM Studio, Azure OpenAI, and any other provider
// that implements the OpenAI chat completions API.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nevindra/conclave"
)

// Provider implements conclave.Provider against an OpenAI-compatible
// /chat/completions endpoint.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	name    string
	logger  *slog.Logger
}

var _ conclave.Provider = (*Provider)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates an OpenAI-compatible chat provider.
//
// baseURL is the API base (e.g. "https://api.openai.com/v1",
// "https://api.groq.com/openai/v1", "http://localhost:11434/v1").
// The /chat/completions path is appended automatically.
func New(apiKey, baseURL string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
		name:    "openai",
		logger:  nopLogger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name returns the provider name (default "openai", configurable via WithName).
func (p *Provider) Name() string { return p.name }

// Chat sends a non-streaming chat request and returns the complete response.
// When req.Tools is non-empty, the response may contain ToolCalls.
func (p *Provider) Chat(ctx context.Context, req conclave.ChatRequest) (conclave.ChatResponse, error) {
	payload, err := json.Marshal(buildBody(req))
	if err != nil {
		return conclave.ChatResponse{}, &conclave.ErrProvider{
			Provider: p.name, Message: fmt.Sprintf("marshal request: %v", err),
		}
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return conclave.ChatResponse{}, &conclave.ErrProvider{
			Provider: p.name, Message: fmt.Sprintf("create request: %v", err),
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			// Let the orchestrator classify cancellation and deadline.
			return conclave.ChatResponse{}, ctx.Err()
		}
		return conclave.ChatResponse{}, &conclave.ErrProvider{
			Provider: p.name, Message: err.Error(), Retryable: true,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return conclave.ChatResponse{}, p.httpErr(resp)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return conclave.ChatResponse{}, &conclave.ErrProvider{
			Provider: p.name, Message: fmt.Sprintf("decode response: %v", err),
		}
	}
	return parseResponse(p.name, wire)
}

// httpErr maps an error status to an ErrProvider. Rate limits and server
// errors are retryable; auth and schema errors are not.
func (p *Provider) httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	p.logger.Warn("chat completion failed",
		"provider", p.name, "status", resp.StatusCode, "retryable", retryable)
	return &conclave.ErrProvider{
		Provider:  p.name,
		Message:   fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)),
		Retryable: retryable,
	}
}
