package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TranscriptEntry is one visible turn of the conversation.
type TranscriptEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// SessionState is the externally-owned conversation context passed into each
// agent call. The engine never sees it; it exists so the agent layer can
// stay stateless between requests.
type SessionState struct {
	PatientID  string            `json:"patient_id,omitempty"`
	Transcript []TranscriptEntry `json:"transcript,omitempty"`
}

// maxTranscriptEntries bounds how much history a session replays to the model.
const maxTranscriptEntries = 20

// Append adds a turn and trims the transcript to its bound.
func (s *SessionState) Append(role, text string) {
	s.Transcript = append(s.Transcript, TranscriptEntry{Role: role, Text: text})
	if len(s.Transcript) > maxTranscriptEntries {
		s.Transcript = s.Transcript[len(s.Transcript)-maxTranscriptEntries:]
	}
}

// SessionStore persists per-session conversation state in redis with a TTL.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a redis-backed session store.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return "agent:session:" + sessionID
}

// Get loads the session state, returning an empty state for new sessions.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*SessionState, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &SessionState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("agent: load session: %w", err)
	}
	var state SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("agent: decode session: %w", err)
	}
	return &state, nil
}

// Set stores the session state, refreshing the TTL.
func (s *SessionStore) Set(ctx context.Context, sessionID string, state *SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("agent: encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("agent: store session: %w", err)
	}
	return nil
}

// Clear removes the session state.
func (s *SessionStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("agent: clear session: %w", err)
	}
	return nil
}
