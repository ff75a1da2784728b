// Package importer reconciles a spreadsheet of historical orders into the
// record store: it creates the clients, services, workers and assignment
// projects the rows reference, then the orders with their service lines and
// worker assignments.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atelierops/api/internal/metrics"
	"github.com/atelierops/api/internal/rowsource"
	"github.com/atelierops/api/internal/store"
	"github.com/atelierops/api/internal/store/dryrun"
)

const (
	defaultBatchSize     = 50
	defaultLineBatchSize = 200
	defaultPageSize      = 1000
)

var ErrMissingOrganization = errors.New("organization id is required")

type Options struct {
	// BatchSize is the number of orders per insert.
	BatchSize int
	// LineBatchSize bounds every other bulk create: dependencies, service
	// lines and worker assignments.
	LineBatchSize int
	PageSize      int
	Currency      string
	// CollapseBatchDuplicates creates a repeated business key once.
	CollapseBatchDuplicates bool
	// DuplicateContactCheck skips new clients that share only a name or only
	// a phone with another client.
	DuplicateContactCheck bool
	DryRun                bool
}

func DefaultOptions() Options {
	return Options{
		BatchSize:               defaultBatchSize,
		LineBatchSize:           defaultLineBatchSize,
		PageSize:                defaultPageSize,
		Currency:                DefaultCurrency,
		CollapseBatchDuplicates: true,
	}
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.LineBatchSize <= 0 {
		o.LineBatchSize = defaultLineBatchSize
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	if o.Currency == "" {
		o.Currency = DefaultCurrency
	}
	return o
}

type Request struct {
	OrganizationID uuid.UUID
	Rows           []rowsource.Row
	// Lines is the source row number of each entry in Rows, as read by
	// rowsource. Optional.
	Lines []int
	// Mapping is column name -> canonical field (or "custom[:key]").
	Mapping map[string]string
	Options Options
}

type Result struct {
	Rows                int         `json:"rows"`
	ClientsCreated      int         `json:"clientsCreated"`
	ServicesCreated     int         `json:"servicesCreated"`
	WorkersCreated      int         `json:"workersCreated"`
	ProjectsCreated     int         `json:"projectsCreated"`
	OrdersCreated       int         `json:"ordersCreated"`
	ServiceLinesCreated int         `json:"serviceLinesCreated"`
	AssignmentsCreated  int         `json:"assignmentsCreated"`
	RowsSkipped         int         `json:"rowsSkipped"`
	BatchesFailed       int         `json:"batchesFailed"`
	Warnings            int         `json:"warnings"`
	Errors              int         `json:"errors"`
	Repairs             RepairStats `json:"repairs"`
	Cancelled           bool        `json:"cancelled"`
	DryRun              bool        `json:"dryRun"`
}

type Importer struct {
	store   store.DataStore
	logger  *slog.Logger
	metrics *metrics.Registry
	now     func() time.Time
}

// New builds an Importer. logger and reg may be nil.
func New(ds store.DataStore, logger *slog.Logger, reg *metrics.Registry) *Importer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{store: ds, logger: logger, metrics: reg, now: time.Now}
}

// run is the state of one invocation. Stages read and extend it in order; it
// is dropped when Run returns.
type run struct {
	ds        store.DataStore
	orgID     uuid.UUID
	opts      Options
	snap      *Snapshot
	progress  *Progress
	metrics   *metrics.Registry
	result    *Result
	repair    *repairer
	workers   map[string]workerRef
	startedAt time.Time

	// failedWorkers holds keys of workers whose bulk create failed; they are
	// not retried one by one.
	failedWorkers map[string]struct{}
}

// Run imports req.Rows. It fails before any store call when the mapping is
// invalid; afterwards only a failed snapshot load is fatal. Row and batch
// failures are recorded on progress and counted in the Result.
func (im *Importer) Run(ctx context.Context, req Request, progress *Progress) (Result, error) {
	if req.OrganizationID == uuid.Nil {
		return Result{}, ErrMissingOrganization
	}
	mapping, err := NewMapping(req.Mapping)
	if err != nil {
		return Result{}, fmt.Errorf("validate mapping: %w", err)
	}
	opts := req.Options.withDefaults()
	if progress == nil {
		progress = NewProgress(im.logger, "organization_id", req.OrganizationID.String())
	}

	started := im.now()
	result := Result{Rows: len(req.Rows), DryRun: opts.DryRun}
	outcome := "failed"
	defer func() {
		im.metrics.RunFinished(outcome, im.now().Sub(started))
	}()

	ds := im.store
	if opts.DryRun {
		ds = dryrun.New(ds)
		progress.Infof("dry run: nothing will be written")
	}

	progress.SetTotal(len(req.Rows))
	progress.SetOperation("normalizing rows")
	records := Normalize(req.Rows, req.Lines, mapping)

	progress.SetOperation("loading existing records")
	snap, err := LoadSnapshot(ctx, ds, req.OrganizationID, opts.PageSize)
	if err != nil {
		progress.Errorf("loading existing records failed: %v", err)
		return result, fmt.Errorf("load snapshot: %w", err)
	}
	clients, services, workers := snap.Counts()
	progress.Infof("found %d clients, %d services and %d workers", clients, services, workers)

	r := &run{
		ds:        ds,
		orgID:     req.OrganizationID,
		opts:      opts,
		snap:      snap,
		progress:  progress,
		metrics:   im.metrics,
		result:    &result,
		workers:   map[string]workerRef{},
		startedAt: started,

		failedWorkers: map[string]struct{}{},
	}
	r.repair = &repairer{run: r}

	progress.SetOperation("computing new records")
	diff := ComputeDiff(records, snap, DiffOptions{
		CollapseDuplicates: opts.CollapseBatchDuplicates,
		Currency:           opts.Currency,
	})
	if opts.DuplicateContactCheck {
		kept, messages := filterDuplicateContacts(diff.Clients, snap)
		for _, msg := range messages {
			r.warn(0, "%s", msg)
		}
		diff.Clients = kept
	}
	progress.Infof("to create: %d clients, %d services, %d workers", len(diff.Clients), len(diff.Services), len(diff.Workers))

	r.materialize(ctx, diff)

	if r.cancelled(ctx) {
		result.Cancelled = true
		progress.Infof("import cancelled before any order batch")
	} else {
		progress.SetOperation("preparing orders")
		prepared := r.prepare(ctx, records)
		r.commit(ctx, prepared)
	}

	snapshot := progress.Snapshot()
	result.Warnings = snapshot.Warnings
	result.Errors = snapshot.Errors
	result.Repairs = r.repair.stats

	switch {
	case result.Cancelled:
		outcome = "cancelled"
		progress.SetOperation("cancelled")
	default:
		outcome = "completed"
		progress.Advance(len(req.Rows))
		progress.SetOperation("done")
		progress.Infof("import finished: %d orders, %d clients, %d services, %d workers created", result.OrdersCreated, result.ClientsCreated, result.ServicesCreated, result.WorkersCreated)
	}
	return result, nil
}

// warn records a row warning. Row 0 means the warning is not tied to a row.
func (r *run) warn(row int, format string, args ...any) {
	if row > 0 {
		r.progress.RowWarnf(row, format, args...)
	} else {
		r.progress.Warnf(format, args...)
	}
	r.metrics.RowWarning()
}

func (r *run) cancelled(ctx context.Context) bool {
	return r.progress.CancelRequested() || ctx.Err() != nil
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
