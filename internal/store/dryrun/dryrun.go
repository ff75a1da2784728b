// Package dryrun wraps a DataStore so reads hit the real store and writes are
// echoed back with fresh identities without being persisted.
package dryrun

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atelierops/api/internal/domain"
	"github.com/atelierops/api/internal/store"
)

type Store struct {
	next store.DataStore

	mu       sync.Mutex
	services []domain.Service
}

func New(next store.DataStore) *Store {
	return &Store{next: next}
}

var _ store.DataStore = (*Store)(nil)

func (s *Store) InsertClients(_ context.Context, orgID uuid.UUID, clients []domain.Client) ([]domain.Client, error) {
	out := make([]domain.Client, len(clients))
	for i, c := range clients {
		c.ID, c.OrganizationID, c.CreatedAt = uuid.New(), orgID, stamp(c.CreatedAt)
		out[i] = c
	}
	return out, nil
}

// UpsertServices honors the (name, cost) conflict within the simulated rows.
func (s *Store) UpsertServices(_ context.Context, orgID uuid.UUID, services []domain.Service) ([]domain.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Service, len(services))
	for i, svc := range services {
		if existing, ok := s.findService(svc); ok {
			out[i] = existing
			continue
		}
		svc.ID, svc.OrganizationID, svc.CreatedAt = uuid.New(), orgID, stamp(svc.CreatedAt)
		s.services = append(s.services, svc)
		out[i] = svc
	}
	return out, nil
}

func (s *Store) findService(svc domain.Service) (domain.Service, bool) {
	for _, existing := range s.services {
		if strings.EqualFold(existing.Name, svc.Name) && existing.UnitCost.Equal(svc.UnitCost) {
			return existing, true
		}
	}
	return domain.Service{}, false
}

func (s *Store) InsertWorkers(_ context.Context, orgID uuid.UUID, workers []domain.Worker) ([]domain.Worker, error) {
	out := make([]domain.Worker, len(workers))
	for i, w := range workers {
		w.ID, w.OrganizationID, w.CreatedAt = uuid.New(), orgID, stamp(w.CreatedAt)
		out[i] = w
	}
	return out, nil
}

func (s *Store) InsertAssignmentProjects(_ context.Context, orgID uuid.UUID, projects []domain.AssignmentProject) ([]domain.AssignmentProject, error) {
	out := make([]domain.AssignmentProject, len(projects))
	for i, p := range projects {
		p.ID, p.OrganizationID, p.CreatedAt = uuid.New(), orgID, stamp(p.CreatedAt)
		out[i] = p
	}
	return out, nil
}

func (s *Store) InsertOrders(_ context.Context, orgID uuid.UUID, orders []domain.Order) ([]domain.Order, error) {
	out := make([]domain.Order, len(orders))
	for i, o := range orders {
		o.ID, o.OrganizationID, o.CreatedAt = uuid.New(), orgID, stamp(o.CreatedAt)
		out[i] = o
	}
	return out, nil
}

func (s *Store) InsertOrderServiceLines(_ context.Context, orgID uuid.UUID, lines []domain.OrderServiceLine) ([]domain.OrderServiceLine, error) {
	out := make([]domain.OrderServiceLine, len(lines))
	for i, l := range lines {
		l.ID, l.OrganizationID = uuid.New(), orgID
		out[i] = l
	}
	return out, nil
}

func (s *Store) InsertOrderWorkerAssignments(_ context.Context, orgID uuid.UUID, assignments []domain.OrderWorkerAssignment) ([]domain.OrderWorkerAssignment, error) {
	out := make([]domain.OrderWorkerAssignment, len(assignments))
	for i, a := range assignments {
		a.ID, a.OrganizationID = uuid.New(), orgID
		out[i] = a
	}
	return out, nil
}

func (s *Store) ListClients(ctx context.Context, orgID uuid.UUID, page store.Page) ([]domain.Client, error) {
	return s.next.ListClients(ctx, orgID, page)
}

func (s *Store) ListServices(ctx context.Context, orgID uuid.UUID, page store.Page) ([]domain.Service, error) {
	return s.next.ListServices(ctx, orgID, page)
}

func (s *Store) ListWorkers(ctx context.Context, orgID uuid.UUID, page store.Page) ([]domain.Worker, error) {
	return s.next.ListWorkers(ctx, orgID, page)
}

func (s *Store) ListAssignmentProjects(ctx context.Context, orgID uuid.UUID, page store.Page) ([]domain.AssignmentProject, error) {
	return s.next.ListAssignmentProjects(ctx, orgID, page)
}

// UpdateOrders reports no rows changed.
func (s *Store) UpdateOrders(context.Context, uuid.UUID, store.OrderFilter, store.OrderPatch) (int64, error) {
	return 0, nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
