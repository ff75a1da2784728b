package importer

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelierops/api/internal/domain"
)

// PreparedOrder is an order ready to insert plus the lines and assignments
// that follow it once it has an ID.
type PreparedOrder struct {
	Row int
	// Index is the record's position among non-blank rows; progress uses it.
	Index       int
	Order       domain.Order
	Lines       []domain.OrderServiceLine
	Assignments []domain.OrderWorkerAssignment
}

type workerRef struct {
	workerID  uuid.UUID
	projectID uuid.UUID
	ok        bool
}

// prepare turns each record into a PreparedOrder. Rows without an order
// number or a resolvable client are skipped; unresolved services and workers
// only drop the sub-entity.
func (r *run) prepare(ctx context.Context, records []Record) []PreparedOrder {
	prepared := make([]PreparedOrder, 0, len(records))
	for _, rec := range records {
		for _, w := range rec.Warnings {
			r.warn(0, "%s", w)
		}
		if p, ok := r.prepareRecord(ctx, rec); ok {
			prepared = append(prepared, p)
		} else {
			r.result.RowsSkipped++
		}
	}
	return prepared
}

func (r *run) prepareRecord(ctx context.Context, rec Record) (PreparedOrder, bool) {
	if rec.OrderNumber == "" {
		r.warn(rec.Row, "no order number, row skipped")
		return PreparedOrder{}, false
	}
	if rec.ClientName == "" {
		r.warn(rec.Row, "order %s has no client, row skipped", rec.OrderNumber)
		return PreparedOrder{}, false
	}
	client, ok := r.snap.Client(NewClientKey(rec.ClientName, rec.ClientPhone))
	if !ok {
		r.warn(rec.Row, "order %s: client %q (%s) not found, row skipped", rec.OrderNumber, rec.ClientName, rec.ClientPhone)
		return PreparedOrder{}, false
	}

	p := PreparedOrder{Row: rec.Row, Index: rec.Index}
	total := decimal.Zero

	entries, problems := ParseServiceText(rec.Services, r.opts.Currency)
	for _, msg := range problems {
		r.warn(rec.Row, "order %s: %s", rec.OrderNumber, msg)
	}
	for _, entry := range entries {
		svc, ok := r.snap.Service(NewServiceKey(entry.Name, entry.UnitPrice))
		if !ok {
			r.warn(rec.Row, "order %s: service %q at %s not found, line omitted", rec.OrderNumber, entry.Name, entry.UnitPrice.StringFixed(2))
			continue
		}
		cost := entry.LineCost()
		total = total.Add(cost)
		p.Lines = append(p.Lines, domain.OrderServiceLine{
			OrganizationID: r.orgID,
			ServiceID:      svc.ID,
			Quantity:       entry.Quantity,
			UnitPrice:      entry.UnitPrice,
			LineCost:       cost,
		})
	}

	for _, name := range []string{rec.TopWorker, rec.BottomWorker} {
		if name == "" {
			continue
		}
		ref := r.resolveWorker(ctx, name)
		if !ref.ok {
			r.warn(rec.Row, "order %s: worker %q could not be resolved, assignment omitted", rec.OrderNumber, name)
			continue
		}
		p.Assignments = append(p.Assignments, domain.OrderWorkerAssignment{
			OrganizationID:      r.orgID,
			WorkerID:            ref.workerID,
			AssignmentProjectID: ref.projectID,
		})
	}

	status := rec.Status
	if status == "" {
		status = domain.OrderStatusPending
	}
	createdAt := r.startedAt.UTC()
	if rec.OrderDate != nil {
		createdAt = *rec.OrderDate
	}
	p.Order = domain.Order{
		OrganizationID:     r.orgID,
		OrderNumber:        rec.OrderNumber,
		ClientID:           client.ID,
		Description:        rec.Description,
		DueDate:            rec.DueDate,
		Status:             status,
		TotalAmount:        total,
		OutstandingBalance: total,
		PaymentStatus:      domain.PaymentStatusUnpaid,
		CustomFields:       rec.Custom,
		CreatedAt:          createdAt,
	}
	return p, true
}

// resolveWorker finds the worker and its base project, caching by name. A
// worker or project still missing at this point goes through the repair
// path, unless the worker's bulk create already failed. A failed repair is
// cached too so it is attempted once per run.
func (r *run) resolveWorker(ctx context.Context, name string) workerRef {
	key := WorkerKey(name)
	if ref, ok := r.workers[key]; ok {
		return ref
	}

	ref := workerRef{}
	defer func() { r.workers[key] = ref }()

	w, ok := r.snap.Worker(key)
	if !ok {
		if _, failed := r.failedWorkers[key]; failed {
			return ref
		}
		var err error
		if w, err = r.repair.createWorker(ctx, name); err != nil {
			return ref
		}
	}
	project, ok := r.snap.BaseProject(w.ID)
	if !ok {
		var err error
		if project, err = r.repair.createProject(ctx, w); err != nil {
			return ref
		}
	}
	ref = workerRef{workerID: w.ID, projectID: project.ID, ok: true}
	return ref
}
