package conclave

import "encoding/json"

// --- LLM protocol types ---

type ChatMessage struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ChatRequest is what the core emits toward a Provider. Either SystemPrompt
// and UserPrompt are set, or Messages carries an ordered conversation; when
// Messages is non-empty it takes precedence.
type ChatRequest struct {
	Model         string           `json:"model"`
	Temperature   float64          `json:"temperature"`
	MaxTokens     int              `json:"max_tokens,omitempty"`
	StopSequences []string         `json:"stop_sequences,omitempty"`
	SystemPrompt  string           `json:"system_prompt,omitempty"`
	UserPrompt    string           `json:"user_prompt,omitempty"`
	Messages      []ChatMessage    `json:"messages,omitempty"`
	Tools         []ToolDefinition `json:"tools,omitempty"`
}

type ChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Total returns TotalTokens when the provider reported it, otherwise the
// sum of input and output tokens.
func (u Usage) Total() int {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ConversationMessages expands a prompt-style request into an ordered message
// list. Providers use it to build the wire payload; the tool-calling loop
// uses it to append assistant and tool turns.
func (r ChatRequest) ConversationMessages() []ChatMessage {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	var msgs []ChatMessage
	if r.SystemPrompt != "" {
		msgs = append(msgs, SystemMessage(r.SystemPrompt))
	}
	msgs = append(msgs, UserMessage(r.UserPrompt))
	return msgs
}

// --- ChatMessage constructors ---

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: text}
}

func ToolResultMessage(callID, content string) ChatMessage {
	return ChatMessage{Role: "tool", Content: content, ToolCallID: callID}
}
