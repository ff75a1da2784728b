// Package importrun runs imports in the background for the HTTP layer and
// keeps their progress around for polling. An organization has at most one
// active run.
package importrun

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/atelierops/api/internal/audit"
	"github.com/atelierops/api/internal/importer"
)

var (
	ErrRunActive = errors.New("an import is already running for this organization")
	ErrNotFound  = errors.New("import run not found")
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

const defaultRetained = 100

type Runner interface {
	Run(ctx context.Context, req importer.Request, progress *importer.Progress) (importer.Result, error)
}

type Auditor interface {
	Log(ctx context.Context, entry audit.Entry) error
}

type StartRequest struct {
	Import    importer.Request
	FileName  string
	File      []byte
	RequestID string
}

// View is a point-in-time copy of a run.
type View struct {
	ID             uuid.UUID                 `json:"id"`
	OrganizationID uuid.UUID                 `json:"organizationId"`
	FileName       string                    `json:"fileName"`
	Fingerprint    string                    `json:"fingerprint"`
	Status         Status                    `json:"status"`
	StartedAt      time.Time                 `json:"startedAt"`
	FinishedAt     *time.Time                `json:"finishedAt,omitempty"`
	Progress       importer.ProgressSnapshot `json:"progress"`
	Result         *importer.Result          `json:"result,omitempty"`
	Error          string                    `json:"error,omitempty"`
}

type run struct {
	id          uuid.UUID
	orgID       uuid.UUID
	fileName    string
	fingerprint string
	startedAt   time.Time
	progress    *importer.Progress

	mu         sync.Mutex
	status     Status
	finishedAt *time.Time
	result     *importer.Result
	err        string
}

func (r *run) view() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return View{
		ID:             r.id,
		OrganizationID: r.orgID,
		FileName:       r.fileName,
		Fingerprint:    r.fingerprint,
		Status:         r.status,
		StartedAt:      r.startedAt,
		FinishedAt:     r.finishedAt,
		Progress:       r.progress.Snapshot(),
		Result:         r.result,
		Error:          r.err,
	}
}

type Manager struct {
	runner   Runner
	audit    Auditor
	logger   *slog.Logger
	baseCtx  context.Context
	retained int
	now      func() time.Time

	mu     sync.Mutex
	runs   map[uuid.UUID]*run
	active map[uuid.UUID]uuid.UUID
	wg     sync.WaitGroup
}

// NewManager runs imports under ctx; cancelling it stops every run at its
// next batch boundary. auditor may be nil.
func NewManager(ctx context.Context, runner Runner, auditor Auditor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		runner:   runner,
		audit:    auditor,
		logger:   logger,
		baseCtx:  ctx,
		retained: defaultRetained,
		now:      time.Now,
		runs:     map[uuid.UUID]*run{},
		active:   map[uuid.UUID]uuid.UUID{},
	}
}

// Fingerprint is the hex BLAKE2b-256 digest of an uploaded file.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (m *Manager) Start(req StartRequest) (View, error) {
	orgID := req.Import.OrganizationID
	if orgID == uuid.Nil {
		return View{}, importer.ErrMissingOrganization
	}
	if _, err := importer.NewMapping(req.Import.Mapping); err != nil {
		return View{}, err
	}

	m.mu.Lock()
	if _, busy := m.active[orgID]; busy {
		m.mu.Unlock()
		return View{}, ErrRunActive
	}
	id := uuid.New()
	r := &run{
		id:          id,
		orgID:       orgID,
		fileName:    req.FileName,
		fingerprint: Fingerprint(req.File),
		startedAt:   m.now().UTC(),
		status:      StatusRunning,
		progress:    importer.NewProgress(m.logger, "run_id", id.String(), "organization_id", orgID.String()),
	}
	m.runs[id] = r
	m.active[orgID] = id
	m.pruneLocked()
	m.wg.Add(1)
	m.mu.Unlock()

	go m.execute(r, req)
	return r.view(), nil
}

func (m *Manager) execute(r *run, req StartRequest) {
	defer m.wg.Done()
	ctx := m.baseCtx
	auditCtx := context.WithoutCancel(ctx)

	m.logger.Info("import_run_started", "run_id", r.id, "organization_id", r.orgID, "file", r.fileName, "rows", len(req.Import.Rows))
	m.recordAudit(auditCtx, r, audit.ActionImportStarted, req.RequestID, map[string]any{
		"fileName":    r.fileName,
		"fingerprint": r.fingerprint,
		"rows":        len(req.Import.Rows),
		"dryRun":      req.Import.Options.DryRun,
	})

	res, err := m.runner.Run(ctx, req.Import, r.progress)

	finished := m.now().UTC()
	r.mu.Lock()
	r.finishedAt = &finished
	switch {
	case err != nil:
		r.status = StatusFailed
		r.err = err.Error()
	case res.Cancelled:
		r.status = StatusCancelled
	default:
		r.status = StatusCompleted
	}
	if err == nil {
		r.result = &res
	}
	status := r.status
	r.mu.Unlock()

	m.mu.Lock()
	if m.active[r.orgID] == r.id {
		delete(m.active, r.orgID)
	}
	m.mu.Unlock()

	m.logger.Info("import_run_finished",
		"run_id", r.id,
		"organization_id", r.orgID,
		"status", status,
		"orders_created", res.OrdersCreated,
		"duration_ms", finished.Sub(r.startedAt).Milliseconds(),
	)
	metadata := map[string]any{"status": string(status)}
	if err != nil {
		metadata["error"] = err.Error()
	} else {
		metadata["result"] = res
	}
	m.recordAudit(auditCtx, r, audit.ActionImportCompleted, req.RequestID, metadata)
}

func (m *Manager) recordAudit(ctx context.Context, r *run, action, requestID string, metadata map[string]any) {
	if m.audit == nil {
		return
	}
	id := r.id
	if err := m.audit.Log(ctx, audit.Entry{
		OrganizationID: r.orgID,
		Action:         action,
		EntityType:     "import_run",
		EntityID:       &id,
		RequestID:      requestID,
		Metadata:       metadata,
	}); err != nil {
		m.logger.Error("audit_log_failed", "run_id", r.id, "action", action, "error", err)
	}
}

// Get returns the run when it belongs to orgID.
func (m *Manager) Get(orgID, runID uuid.UUID) (View, error) {
	r, err := m.lookup(orgID, runID)
	if err != nil {
		return View{}, err
	}
	return r.view(), nil
}

// Cancel asks the run to stop at its next batch boundary. Cancelling a
// finished run is a no-op.
func (m *Manager) Cancel(orgID, runID uuid.UUID) (View, error) {
	r, err := m.lookup(orgID, runID)
	if err != nil {
		return View{}, err
	}
	r.progress.Cancel()
	m.logger.Info("import_run_cancel_requested", "run_id", r.id, "organization_id", r.orgID)
	return r.view(), nil
}

// Wait blocks until every started run has finished or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) lookup(orgID, runID uuid.UUID) (*run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok || r.orgID != orgID {
		return nil, ErrNotFound
	}
	return r, nil
}

// pruneLocked drops the oldest finished runs beyond the retention limit.
func (m *Manager) pruneLocked() {
	if len(m.runs) <= m.retained {
		return
	}
	finished := make([]*run, 0, len(m.runs))
	for _, r := range m.runs {
		r.mu.Lock()
		done := r.status != StatusRunning
		r.mu.Unlock()
		if done {
			finished = append(finished, r)
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].startedAt.Before(finished[j].startedAt) })
	for _, r := range finished {
		if len(m.runs) <= m.retained {
			return
		}
		delete(m.runs, r.id)
	}
}
