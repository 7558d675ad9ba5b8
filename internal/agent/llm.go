// Package agent implements the conversational booking layer: a Gemini
// function-calling loop that exposes the scheduling engine's operations as
// tools, with per-session state held in an external key-value store so the
// engine itself stays stateless.
package agent

import "context"

// Chat roles used in transcripts and LLM exchanges.
const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResult is the outcome of executing a tool call, echoed back to the
// model.
type ToolResult struct {
	Name     string
	Response map[string]any
}

// Message is one turn of an LLM exchange. User and model turns carry text;
// model turns may carry tool calls; tool turns carry results.
type Message struct {
	Role    string
	Text    string
	Calls   []ToolCall
	Results []ToolResult
}

// LLMRequest is a completion request with the full exchange so far.
type LLMRequest struct {
	System   string
	Messages []Message
}

// LLMResponse is the model's reply: either text, tool calls, or both.
type LLMResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// LLMClient abstracts the language model so the dispatch loop can be tested
// with a stub.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
