package importer

import (
	"context"
	"fmt"

	"github.com/atelierops/api/internal/domain"
)

// RepairStats counts single-row fallback creates. A healthy run has none.
type RepairStats struct {
	WorkersCreated  int `json:"workersCreated"`
	ProjectsCreated int `json:"projectsCreated"`
	Failures        int `json:"failures"`
}

func (s RepairStats) Total() int { return s.WorkersCreated + s.ProjectsCreated }

// repairer creates a worker or base project one row at a time when the
// preparer finds one missing after materialization.
type repairer struct {
	run   *run
	stats RepairStats
}

func (rp *repairer) createWorker(ctx context.Context, name string) (domain.Worker, error) {
	r := rp.run
	r.progress.Warnf("repair: worker %q missing after materialization, creating it", name)
	created, err := r.ds.InsertWorkers(context.WithoutCancel(ctx), r.orgID, []domain.Worker{{
		OrganizationID: r.orgID,
		Name:           name,
	}})
	if err == nil && len(created) != 1 {
		err = fmt.Errorf("store returned %d workers", len(created))
	}
	if err != nil {
		rp.stats.Failures++
		r.progress.Errorf("repair: creating worker %q failed: %v", name, err)
		return domain.Worker{}, err
	}
	w := created[0]
	r.snap.AddWorker(w)
	rp.stats.WorkersCreated++
	r.metrics.Repaired("worker")
	return w, nil
}

func (rp *repairer) createProject(ctx context.Context, w domain.Worker) (domain.AssignmentProject, error) {
	r := rp.run
	r.progress.Warnf("repair: worker %q has no %s project, creating it", w.Name, domain.BaseProjectName)
	created, err := r.ds.InsertAssignmentProjects(context.WithoutCancel(ctx), r.orgID, []domain.AssignmentProject{{
		OrganizationID: r.orgID,
		WorkerID:       w.ID,
		Name:           domain.BaseProjectName,
	}})
	if err == nil && len(created) != 1 {
		err = fmt.Errorf("store returned %d projects", len(created))
	}
	if err != nil {
		rp.stats.Failures++
		r.progress.Errorf("repair: creating project for worker %q failed: %v", w.Name, err)
		return domain.AssignmentProject{}, err
	}
	p := created[0]
	r.snap.AddProject(p)
	rp.stats.ProjectsCreated++
	r.metrics.Repaired("assignment_project")
	return p, nil
}
