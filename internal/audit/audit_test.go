package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExec struct {
	sql  string
	args []any
	err  error
}

func (r *recordingExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql, r.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func TestLogEncodesMetadata(t *testing.T) {
	exec := &recordingExec{}
	runID := uuid.New()
	err := NewLogger(exec).Log(context.Background(), Entry{
		OrganizationID: uuid.New(),
		Action:         ActionImportCompleted,
		EntityType:     "import_run",
		EntityID:       &runID,
		RequestID:      "req-1",
		Metadata:       map[string]any{"ordersCreated": 3},
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if !strings.Contains(exec.sql, "INSERT INTO audit_logs") {
		t.Fatalf("unexpected sql %q", exec.sql)
	}
	if got := string(exec.args[5].([]byte)); got != `{"ordersCreated":3}` {
		t.Fatalf("unexpected metadata %s", got)
	}
	if rid := exec.args[4].(*string); rid == nil || *rid != "req-1" {
		t.Fatalf("request id not passed")
	}
}

func TestLogWrapsStoreError(t *testing.T) {
	boom := errors.New("boom")
	err := NewLogger(&recordingExec{err: boom}).Log(context.Background(), Entry{Action: ActionImportStarted})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
