package agent

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatHandler(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{{Text: "How can I help?"}}}
	svc := newAgentService(t, llm, newAgentFixture(t).registry)
	h := NewHandler(svc, nil)

	payload, _ := json.Marshal(ChatRequest{Message: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "How can I help?", resp.Reply)
	assert.NotEmpty(t, resp.SessionID, "a session id is generated when absent")
}

func TestChatHandlerKeepsSessionID(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{{Text: "Hi again."}}}
	svc := newAgentService(t, llm, newAgentFixture(t).registry)
	h := NewHandler(svc, nil)

	payload, _ := json.Marshal(ChatRequest{SessionID: "sess-42", Message: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "sess-42", resp.SessionID)
}

func TestChatHandlerValidation(t *testing.T) {
	svc := newAgentService(t, &scriptedLLM{}, newAgentFixture(t).registry)
	h := NewHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(`{"message":"  "}`)))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(`not json`)))
	rec = httptest.NewRecorder()
	h.Chat(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
