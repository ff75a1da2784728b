package importer

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/atelierops/api/internal/domain"
)

// commit inserts prepared orders batch by batch, strictly in order. The
// cancel flag is checked only between batches. A batch whose order insert
// fails is skipped whole.
func (r *run) commit(ctx context.Context, prepared []PreparedOrder) {
	storeCtx := context.WithoutCancel(ctx)
	batches := chunk(prepared, r.opts.BatchSize)
	total := len(batches)

	for i, batch := range batches {
		if r.cancelled(ctx) {
			r.result.Cancelled = true
			r.progress.Infof("import cancelled after batch %d of %d", i, total)
			return
		}
		r.progress.SetOperation("committing orders")

		orders := make([]domain.Order, len(batch))
		numbers := make([]string, len(batch))
		for j, p := range batch {
			orders[j] = p.Order
			numbers[j] = p.Order.OrderNumber
		}

		created, err := r.ds.InsertOrders(storeCtx, r.orgID, orders)
		if err != nil {
			r.result.BatchesFailed++
			r.metrics.BatchFailed("orders")
			r.progress.Errorf("batch %d/%d: inserting orders failed (orders %s): %v", i+1, total, strings.Join(numbers, ", "), err)
			r.advancePast(batch)
			r.reportBatch(i+1, total, "failed")
			continue
		}
		r.result.OrdersCreated += len(created)
		r.metrics.Created("order", len(created))

		lines, assignments := r.attach(batch, created, i+1, total)
		r.insertLines(storeCtx, lines, i+1, total)
		r.insertAssignments(storeCtx, assignments, i+1, total)

		r.advancePast(batch)
		r.reportBatch(i+1, total, "committed")
	}
}

func (r *run) reportBatch(n, total int, outcome string) {
	r.progress.Infof("batch %d/%d %s: %d orders, %d clients, %d services, %d workers created so far",
		n, total, outcome, r.result.OrdersCreated, r.result.ClientsCreated, r.result.ServicesCreated, r.result.WorkersCreated)
}

// attach matches created orders back to the batch by order number and
// returns the lines and assignments of the orders that got an ID. Repeated
// order numbers are paired in insertion order.
func (r *run) attach(batch []PreparedOrder, created []domain.Order, n, total int) ([]domain.OrderServiceLine, []domain.OrderWorkerAssignment) {
	pending := map[string][]int{}
	for j, p := range batch {
		pending[p.Order.OrderNumber] = append(pending[p.Order.OrderNumber], j)
	}

	var (
		lines       []domain.OrderServiceLine
		assignments []domain.OrderWorkerAssignment
	)
	for _, order := range created {
		queue := pending[order.OrderNumber]
		if len(queue) == 0 {
			r.progress.Warnf("batch %d/%d: store returned unknown order %s", n, total, order.OrderNumber)
			continue
		}
		p := batch[queue[0]]
		pending[order.OrderNumber] = queue[1:]

		for _, line := range p.Lines {
			line.OrderID = order.ID
			lines = append(lines, line)
		}
		seen := map[[2]uuid.UUID]struct{}{}
		for _, a := range p.Assignments {
			pair := [2]uuid.UUID{a.WorkerID, a.AssignmentProjectID}
			if _, dup := seen[pair]; dup {
				continue
			}
			seen[pair] = struct{}{}
			a.OrderID = order.ID
			assignments = append(assignments, a)
		}
	}

	// Leftovers are reported in batch order.
	for _, p := range batch {
		number := p.Order.OrderNumber
		queue := pending[number]
		if len(queue) == 0 {
			continue
		}
		r.warn(batch[queue[0]].Row, "order %s was not returned by the store, lines and assignments skipped", number)
		pending[number] = queue[1:]
	}
	return lines, assignments
}

func (r *run) insertLines(ctx context.Context, lines []domain.OrderServiceLine, n, total int) {
	for _, sub := range chunk(lines, r.opts.LineBatchSize) {
		created, err := r.ds.InsertOrderServiceLines(ctx, r.orgID, sub)
		if err != nil {
			r.result.BatchesFailed++
			r.metrics.BatchFailed("order_service_lines")
			r.progress.Errorf("batch %d/%d: inserting %d service lines failed: %v", n, total, len(sub), err)
			continue
		}
		r.result.ServiceLinesCreated += len(created)
		r.metrics.Created("order_service_line", len(created))
	}
}

func (r *run) insertAssignments(ctx context.Context, assignments []domain.OrderWorkerAssignment, n, total int) {
	for _, sub := range chunk(assignments, r.opts.LineBatchSize) {
		created, err := r.ds.InsertOrderWorkerAssignments(ctx, r.orgID, sub)
		if err != nil {
			r.result.BatchesFailed++
			r.metrics.BatchFailed("order_worker_assignments")
			r.progress.Errorf("batch %d/%d: inserting %d worker assignments failed: %v", n, total, len(sub), err)
			continue
		}
		r.result.AssignmentsCreated += len(created)
		r.metrics.Created("order_worker_assignment", len(created))
	}
}

func (r *run) advancePast(batch []PreparedOrder) {
	if len(batch) > 0 {
		r.progress.Advance(batch[len(batch)-1].Index)
	}
}
