package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openclinic/booking-platform/pkg/logging"
)

// systemPrompt frames the assistant. Tool results carry the authoritative
// scheduling data; the model only narrates them.
const systemPrompt = `You are the booking assistant for a medical clinic.
Help patients find available appointment slots, book, reschedule, and cancel
appointments using the provided tools. Always confirm the date, time, and
service with the patient before booking. Today's date is %s. Times are
24-hour clinic local time. If a tool reports an error, explain it plainly
and offer alternatives. Never invent availability.`

// Service runs the tool-dispatch conversation loop.
type Service struct {
	llm       LLMClient
	registry  *ToolRegistry
	sessions  *SessionStore
	logger    *logging.Logger
	maxRounds int
	now       func() time.Time
}

// ServiceConfig wires the agent service.
type ServiceConfig struct {
	LLM       LLMClient
	Registry  *ToolRegistry
	Sessions  *SessionStore
	Logger    *logging.Logger
	MaxRounds int
	Now       func() time.Time
}

// NewService creates the agent service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 8
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		llm:       cfg.LLM,
		registry:  cfg.Registry,
		sessions:  cfg.Sessions,
		logger:    logger,
		maxRounds: maxRounds,
		now:       now,
	}
}

// ErrNoReply means the model exhausted its tool rounds without producing a
// patient-facing reply.
var ErrNoReply = errors.New("agent: model produced no reply")

// HandleMessage processes one user message within a session and returns the
// assistant's reply. Session state is loaded before and saved after; nothing
// is retained in-process.
func (s *Service) HandleMessage(ctx context.Context, sessionID, userMessage string) (string, error) {
	state, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("session load failed, starting fresh", "session_id", sessionID, "error", err)
		state = &SessionState{}
	}

	messages := make([]Message, 0, len(state.Transcript)+1)
	for _, entry := range state.Transcript {
		messages = append(messages, Message{Role: entry.Role, Text: entry.Text})
	}
	messages = append(messages, Message{Role: RoleUser, Text: userMessage})

	system := fmt.Sprintf(systemPrompt, s.now().UTC().Format("Monday, 2006-01-02"))

	var reply string
	for round := 0; round < s.maxRounds; round++ {
		resp, err := s.llm.Complete(ctx, LLMRequest{System: system, Messages: messages})
		if err != nil {
			return "", err
		}

		if len(resp.ToolCalls) == 0 {
			reply = resp.Text
			break
		}

		results := make([]ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			s.logger.Debug("executing tool", "tool", call.Name, "session_id", sessionID)
			result, err := s.registry.Execute(ctx, call)
			if err != nil {
				return "", fmt.Errorf("agent: tool %s: %w", call.Name, err)
			}
			results = append(results, result)
		}

		messages = append(messages,
			Message{Role: RoleModel, Text: resp.Text, Calls: resp.ToolCalls},
			Message{Role: RoleTool, Results: results},
		)
	}
	if reply == "" {
		return "", ErrNoReply
	}

	state.Append(RoleUser, userMessage)
	state.Append(RoleModel, reply)
	if err := s.sessions.Set(ctx, sessionID, state); err != nil {
		s.logger.Warn("session save failed", "session_id", sessionID, "error", err)
	}
	return reply, nil
}
