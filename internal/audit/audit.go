package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	ActionImportStarted   = "import.started"
	ActionImportCompleted = "import.completed"
)

type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Logger struct {
	db Execer
}

func NewLogger(db Execer) *Logger {
	return &Logger{db: db}
}

type Entry struct {
	OrganizationID uuid.UUID
	Action         string
	EntityType     string
	EntityID       *uuid.UUID
	RequestID      string
	Metadata       map[string]any
}

func (l *Logger) Log(ctx context.Context, entry Entry) error {
	metadata := []byte("{}")
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = encoded
	}

	var requestID *string
	if entry.RequestID != "" {
		requestID = &entry.RequestID
	}

	if _, err := l.db.Exec(ctx, `
		INSERT INTO audit_logs (organization_id, action, entity_type, entity_id, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.OrganizationID, entry.Action, entry.EntityType, entry.EntityID, requestID, metadata); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
