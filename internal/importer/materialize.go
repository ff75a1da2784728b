package importer

import (
	"context"

	"github.com/atelierops/api/internal/domain"
)

// materialize creates the diff in dependency order: clients, services,
// workers, then a base project for every worker created here. Each chunk's
// returned rows go straight into the snapshot. A failed chunk is reported
// and its rows stay unresolved for the preparer; workers from a failed chunk
// are also kept out of the repair path.
func (r *run) materialize(ctx context.Context, diff EntityDiff) {
	storeCtx := context.WithoutCancel(ctx)
	size := r.opts.LineBatchSize

	if len(diff.Clients) > 0 {
		r.progress.SetOperation("creating clients")
	}
	for _, batch := range chunk(diff.Clients, size) {
		if r.cancelled(ctx) {
			return
		}
		for i := range batch {
			batch[i].OrganizationID = r.orgID
		}
		created, err := r.ds.InsertClients(storeCtx, r.orgID, batch)
		if err != nil {
			r.batchFailed("clients", err)
			for _, c := range batch {
				r.warn(0, "client %q (%s) was not created", c.Name, c.Phone)
			}
			continue
		}
		for _, c := range created {
			r.snap.AddClient(c)
			r.progress.Infof("created client %q (%s)", c.Name, c.Phone)
		}
		r.result.ClientsCreated += len(created)
		r.metrics.Created("client", len(created))
	}

	if len(diff.Services) > 0 {
		r.progress.SetOperation("creating services")
	}
	for _, batch := range chunk(diff.Services, size) {
		if r.cancelled(ctx) {
			return
		}
		for i := range batch {
			batch[i].OrganizationID = r.orgID
		}
		created, err := r.ds.UpsertServices(storeCtx, r.orgID, batch)
		if err != nil {
			r.batchFailed("services", err)
			for _, s := range batch {
				r.warn(0, "service %q at %s was not created", s.Name, s.UnitCost.StringFixed(2))
			}
			continue
		}
		for _, s := range created {
			r.snap.AddService(s)
			r.progress.Infof("created service %q at %s", s.Name, s.UnitCost.StringFixed(2))
		}
		r.result.ServicesCreated += len(created)
		r.metrics.Created("service", len(created))
	}

	if len(diff.Workers) > 0 {
		r.progress.SetOperation("creating workers")
	}
	var newWorkers []domain.Worker
	for _, batch := range chunk(diff.Workers, size) {
		if r.cancelled(ctx) {
			return
		}
		for i := range batch {
			batch[i].OrganizationID = r.orgID
		}
		created, err := r.ds.InsertWorkers(storeCtx, r.orgID, batch)
		if err != nil {
			r.batchFailed("workers", err)
			for _, w := range batch {
				r.failedWorkers[WorkerKey(w.Name)] = struct{}{}
				r.warn(0, "worker %q was not created", w.Name)
			}
			continue
		}
		for _, w := range created {
			r.snap.AddWorker(w)
			r.progress.Infof("created worker %q", w.Name)
		}
		newWorkers = append(newWorkers, created...)
		r.result.WorkersCreated += len(created)
		r.metrics.Created("worker", len(created))
	}

	projects := make([]domain.AssignmentProject, 0, len(newWorkers))
	for _, w := range newWorkers {
		if _, ok := r.snap.BaseProject(w.ID); ok {
			continue
		}
		projects = append(projects, domain.AssignmentProject{
			OrganizationID: r.orgID,
			WorkerID:       w.ID,
			Name:           domain.BaseProjectName,
		})
	}
	if len(projects) > 0 {
		r.progress.SetOperation("creating assignment projects")
	}
	for _, batch := range chunk(projects, size) {
		if r.cancelled(ctx) {
			return
		}
		created, err := r.ds.InsertAssignmentProjects(storeCtx, r.orgID, batch)
		if err != nil {
			r.batchFailed("assignment_projects", err)
			continue
		}
		for _, p := range created {
			r.snap.AddProject(p)
		}
		r.progress.Infof("created %d assignment projects", len(created))
		r.result.ProjectsCreated += len(created)
		r.metrics.Created("assignment_project", len(created))
	}
}

func (r *run) batchFailed(stage string, err error) {
	r.progress.Errorf("creating %s failed: %v", stage, err)
	r.result.BatchesFailed++
	r.metrics.BatchFailed(stage)
}
