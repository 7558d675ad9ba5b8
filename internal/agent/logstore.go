package agent

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openclinic/booking-platform/pkg/logging"
)

// Querier is the subset of pgxpool.Pool the log store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ActionLog is one audited agent decision.
type ActionLog struct {
	PatientID       *uuid.UUID
	UserMessage     string
	AgentAction     string
	SystemDecision  string
	ConfidenceScore *float64
}

// LogStore records agent actions for audit and debugging. Logging failures
// never propagate to the conversation flow.
type LogStore struct {
	db     Querier
	logger *logging.Logger
}

// NewLogStore creates an agent action log store.
func NewLogStore(db Querier, logger *logging.Logger) *LogStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogStore{db: db, logger: logger}
}

// Record inserts an action log row, best-effort.
func (s *LogStore) Record(ctx context.Context, entry ActionLog) {
	if s == nil || s.db == nil {
		return
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO agent_logs (id, patient_id, user_message, agent_action, system_decision, confidence_score)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), entry.PatientID, entry.UserMessage, entry.AgentAction, entry.SystemDecision, entry.ConfidenceScore)
	if err != nil {
		s.logger.Error("failed to record agent action", "action", entry.AgentAction, "error", err)
	}
}
