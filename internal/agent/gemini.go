package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements LLMClient using Google's Gemini API with function
// calling enabled for the registered tools.
type GeminiClient struct {
	client       *genai.Client
	modelID      string
	declarations []*genai.FunctionDeclaration
}

// NewGeminiClient creates a new Gemini LLM client.
func NewGeminiClient(ctx context.Context, apiKey, modelID string, declarations []*genai.FunctionDeclaration) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("agent: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:       client,
		modelID:      modelID,
		declarations: declarations,
	}, nil
}

// Complete sends the exchange to Gemini and returns text and/or tool calls.
func (c *GeminiClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if len(req.Messages) == 0 {
		return LLMResponse{}, errors.New("agent: gemini requires at least one message")
	}

	model := c.client.GenerativeModel(c.modelID)
	if len(c.declarations) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: c.declarations}}
	}
	if strings.TrimSpace(req.System) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}

	cs := model.StartChat()
	for _, msg := range req.Messages[:len(req.Messages)-1] {
		cs.History = append(cs.History, toContent(msg))
	}

	last := req.Messages[len(req.Messages)-1]
	resp, err := cs.SendMessage(ctx, toContent(last).Parts...)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("agent: gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return LLMResponse{}, errors.New("agent: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return LLMResponse{}, errors.New("agent: gemini returned empty content")
	}

	var result LLMResponse
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			result.ToolCalls = append(result.ToolCalls, ToolCall{Name: p.Name, Args: p.Args})
		}
	}
	result.Text = strings.TrimSpace(text.String())
	return result, nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// toContent maps an exchange message to genai content. Tool results travel
// in a function-role turn; model tool calls are replayed as function-call
// parts.
func toContent(msg Message) *genai.Content {
	var parts []genai.Part
	switch msg.Role {
	case RoleTool:
		for _, result := range msg.Results {
			parts = append(parts, genai.FunctionResponse{Name: result.Name, Response: result.Response})
		}
		return &genai.Content{Role: "function", Parts: parts}
	case RoleModel:
		if msg.Text != "" {
			parts = append(parts, genai.Text(msg.Text))
		}
		for _, call := range msg.Calls {
			parts = append(parts, genai.FunctionCall{Name: call.Name, Args: call.Args})
		}
		return &genai.Content{Role: "model", Parts: parts}
	default:
		return &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Text)}}
	}
}
