package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/atelierops/api/internal/domain"
	"github.com/atelierops/api/internal/store"
)

// Snapshot is the working copy of an organization's clients, services,
// workers and base assignment projects. The first row seen for a key wins.
type Snapshot struct {
	clients  map[ClientKey]domain.Client
	services map[ServiceKey]domain.Service
	workers  map[string]domain.Worker
	projects map[uuid.UUID]domain.AssignmentProject
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		clients:  map[ClientKey]domain.Client{},
		services: map[ServiceKey]domain.Service{},
		workers:  map[string]domain.Worker{},
		projects: map[uuid.UUID]domain.AssignmentProject{},
	}
}

// LoadSnapshot pages through every entity list once.
func LoadSnapshot(ctx context.Context, ds store.DataStore, orgID uuid.UUID, pageSize int) (*Snapshot, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	snap := NewSnapshot()

	clients, err := listAll(ctx, pageSize, func(ctx context.Context, p store.Page) ([]domain.Client, error) {
		return ds.ListClients(ctx, orgID, p)
	})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	for _, c := range clients {
		snap.AddClient(c)
	}

	services, err := listAll(ctx, pageSize, func(ctx context.Context, p store.Page) ([]domain.Service, error) {
		return ds.ListServices(ctx, orgID, p)
	})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	for _, s := range services {
		snap.AddService(s)
	}

	workers, err := listAll(ctx, pageSize, func(ctx context.Context, p store.Page) ([]domain.Worker, error) {
		return ds.ListWorkers(ctx, orgID, p)
	})
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	for _, w := range workers {
		snap.AddWorker(w)
	}

	projects, err := listAll(ctx, pageSize, func(ctx context.Context, p store.Page) ([]domain.AssignmentProject, error) {
		return ds.ListAssignmentProjects(ctx, orgID, p)
	})
	if err != nil {
		return nil, fmt.Errorf("list assignment projects: %w", err)
	}
	for _, p := range projects {
		snap.AddProject(p)
	}
	return snap, nil
}

func listAll[T any](ctx context.Context, pageSize int, list func(context.Context, store.Page) ([]T, error)) ([]T, error) {
	var out []T
	for offset := 0; ; offset += pageSize {
		page, err := list(ctx, store.Page{Offset: offset, Limit: pageSize})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
	}
}

func (s *Snapshot) AddClient(c domain.Client) {
	key := NewClientKey(c.Name, c.Phone)
	if _, ok := s.clients[key]; !ok {
		s.clients[key] = c
	}
}

func (s *Snapshot) AddService(svc domain.Service) {
	key := NewServiceKey(svc.Name, svc.UnitCost)
	if _, ok := s.services[key]; !ok {
		s.services[key] = svc
	}
}

func (s *Snapshot) AddWorker(w domain.Worker) {
	key := WorkerKey(w.Name)
	if _, ok := s.workers[key]; !ok {
		s.workers[key] = w
	}
}

// AddProject records p when it is the worker's base project.
func (s *Snapshot) AddProject(p domain.AssignmentProject) {
	if fold(p.Name) != domain.BaseProjectName {
		return
	}
	if _, ok := s.projects[p.WorkerID]; !ok {
		s.projects[p.WorkerID] = p
	}
}

func (s *Snapshot) Client(key ClientKey) (domain.Client, bool) {
	c, ok := s.clients[key]
	return c, ok
}

func (s *Snapshot) Service(key ServiceKey) (domain.Service, bool) {
	svc, ok := s.services[key]
	return svc, ok
}

func (s *Snapshot) Worker(key string) (domain.Worker, bool) {
	w, ok := s.workers[key]
	return w, ok
}

func (s *Snapshot) BaseProject(workerID uuid.UUID) (domain.AssignmentProject, bool) {
	p, ok := s.projects[workerID]
	return p, ok
}

// Counts reports clients, services and workers held.
func (s *Snapshot) Counts() (clients, services, workers int) {
	return len(s.clients), len(s.services), len(s.workers)
}
