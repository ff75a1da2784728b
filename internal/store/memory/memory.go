// Package memory is a thread-safe in-memory DataStore. It enforces the same
// references the database schema does, so tests catch ordering mistakes.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atelierops/api/internal/domain"
	"github.com/atelierops/api/internal/store"
)

var (
	ErrForeignKey    = errors.New("referenced record does not exist")
	ErrOrganization  = errors.New("record belongs to another organization")
	ErrInvalidRecord = errors.New("invalid record")
)

type orgData struct {
	clients     []domain.Client
	services    []domain.Service
	workers     []domain.Worker
	projects    []domain.AssignmentProject
	orders      []domain.Order
	lines       []domain.OrderServiceLine
	assignments []domain.OrderWorkerAssignment

	clientIDs  map[uuid.UUID]struct{}
	serviceIDs map[uuid.UUID]struct{}
	workerIDs  map[uuid.UUID]struct{}
	projectIDs map[uuid.UUID]uuid.UUID
	orderIDs   map[uuid.UUID]struct{}
}

type Store struct {
	mu   sync.RWMutex
	orgs map[uuid.UUID]*orgData
	now  func() time.Time
}

func New() *Store {
	return &Store{orgs: map[uuid.UUID]*orgData{}, now: time.Now}
}

var _ store.DataStore = (*Store)(nil)

func (s *Store) org(orgID uuid.UUID) *orgData {
	d, ok := s.orgs[orgID]
	if !ok {
		d = &orgData{
			clientIDs:  map[uuid.UUID]struct{}{},
			serviceIDs: map[uuid.UUID]struct{}{},
			workerIDs:  map[uuid.UUID]struct{}{},
			projectIDs: map[uuid.UUID]uuid.UUID{},
			orderIDs:   map[uuid.UUID]struct{}{},
		}
		s.orgs[orgID] = d
	}
	return d
}

func checkOrg(orgID, recordOrg uuid.UUID) error {
	if recordOrg != uuid.Nil && recordOrg != orgID {
		return ErrOrganization
	}
	return nil
}

func (s *Store) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t
}

func (s *Store) InsertClients(_ context.Context, orgID uuid.UUID, clients []domain.Client) ([]domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range clients {
		if err := checkOrg(orgID, c.OrganizationID); err != nil {
			return nil, fmt.Errorf("insert clients: %w", err)
		}
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("insert clients: %w: empty name", ErrInvalidRecord)
		}
	}
	d := s.org(orgID)
	out := make([]domain.Client, 0, len(clients))
	for _, c := range clients {
		c.ID, c.OrganizationID, c.CreatedAt = uuid.New(), orgID, s.stamp(c.CreatedAt)
		d.clients = append(d.clients, c)
		d.clientIDs[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) UpsertServices(_ context.Context, orgID uuid.UUID, services []domain.Service) ([]domain.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, svc := range services {
		if err := checkOrg(orgID, svc.OrganizationID); err != nil {
			return nil, fmt.Errorf("upsert services: %w", err)
		}
		if strings.TrimSpace(svc.Name) == "" {
			return nil, fmt.Errorf("upsert services: %w: empty name", ErrInvalidRecord)
		}
	}
	d := s.org(orgID)
	out := make([]domain.Service, 0, len(services))
	for _, svc := range services {
		if existing, ok := d.findService(svc); ok {
			out = append(out, existing)
			continue
		}
		svc.ID, svc.OrganizationID, svc.CreatedAt = uuid.New(), orgID, s.stamp(svc.CreatedAt)
		d.services = append(d.services, svc)
		d.serviceIDs[svc.ID] = struct{}{}
		out = append(out, svc)
	}
	return out, nil
}

func (d *orgData) findService(svc domain.Service) (domain.Service, bool) {
	for _, existing := range d.services {
		if strings.EqualFold(existing.Name, svc.Name) && existing.UnitCost.Equal(svc.UnitCost) {
			return existing, true
		}
	}
	return domain.Service{}, false
}

func (s *Store) InsertWorkers(_ context.Context, orgID uuid.UUID, workers []domain.Worker) ([]domain.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range workers {
		if err := checkOrg(orgID, w.OrganizationID); err != nil {
			return nil, fmt.Errorf("insert workers: %w", err)
		}
		if strings.TrimSpace(w.Name) == "" {
			return nil, fmt.Errorf("insert workers: %w: empty name", ErrInvalidRecord)
		}
	}
	d := s.org(orgID)
	out := make([]domain.Worker, 0, len(workers))
	for _, w := range workers {
		w.ID, w.OrganizationID, w.CreatedAt = uuid.New(), orgID, s.stamp(w.CreatedAt)
		d.workers = append(d.workers, w)
		d.workerIDs[w.ID] = struct{}{}
		out = append(out, w)
	}
	return out, nil
}

func (s *Store) InsertAssignmentProjects(_ context.Context, orgID uuid.UUID, projects []domain.AssignmentProject) ([]domain.AssignmentProject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.org(orgID)
	for _, p := range projects {
		if err := checkOrg(orgID, p.OrganizationID); err != nil {
			return nil, fmt.Errorf("insert assignment projects: %w", err)
		}
		if _, ok := d.workerIDs[p.WorkerID]; !ok {
			return nil, fmt.Errorf("insert assignment projects: %w: worker %s", ErrForeignKey, p.WorkerID)
		}
	}
	out := make([]domain.AssignmentProject, 0, len(projects))
	for _, p := range projects {
		p.ID, p.OrganizationID, p.CreatedAt = uuid.New(), orgID, s.stamp(p.CreatedAt)
		d.projects = append(d.projects, p)
		d.projectIDs[p.ID] = p.WorkerID
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) InsertOrders(_ context.Context, orgID uuid.UUID, orders []domain.Order) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.org(orgID)
	for _, o := range orders {
		if err := checkOrg(orgID, o.OrganizationID); err != nil {
			return nil, fmt.Errorf("insert orders: %w", err)
		}
		if o.OrderNumber == "" {
			return nil, fmt.Errorf("insert orders: %w: empty order number", ErrInvalidRecord)
		}
		if _, ok := d.clientIDs[o.ClientID]; !ok {
			return nil, fmt.Errorf("insert orders: %w: client %s", ErrForeignKey, o.ClientID)
		}
	}
	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		o.ID, o.OrganizationID, o.CreatedAt = uuid.New(), orgID, s.stamp(o.CreatedAt)
		d.orders = append(d.orders, o)
		d.orderIDs[o.ID] = struct{}{}
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) InsertOrderServiceLines(_ context.Context, orgID uuid.UUID, lines []domain.OrderServiceLine) ([]domain.OrderServiceLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.org(orgID)
	for _, l := range lines {
		if err := checkOrg(orgID, l.OrganizationID); err != nil {
			return nil, fmt.Errorf("insert order service lines: %w", err)
		}
		if _, ok := d.orderIDs[l.OrderID]; !ok {
			return nil, fmt.Errorf("insert order service lines: %w: order %s", ErrForeignKey, l.OrderID)
		}
		if _, ok := d.serviceIDs[l.ServiceID]; !ok {
			return nil, fmt.Errorf("insert order service lines: %w: service %s", ErrForeignKey, l.ServiceID)
		}
	}
	out := make([]domain.OrderServiceLine, 0, len(lines))
	for _, l := range lines {
		l.ID, l.OrganizationID = uuid.New(), orgID
		d.lines = append(d.lines, l)
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) InsertOrderWorkerAssignments(_ context.Context, orgID uuid.UUID, assignments []domain.OrderWorkerAssignment) ([]domain.OrderWorkerAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.org(orgID)
	for _, a := range assignments {
		if err := checkOrg(orgID, a.OrganizationID); err != nil {
			return nil, fmt.Errorf("insert order worker assignments: %w", err)
		}
		if _, ok := d.orderIDs[a.OrderID]; !ok {
			return nil, fmt.Errorf("insert order worker assignments: %w: order %s", ErrForeignKey, a.OrderID)
		}
		if _, ok := d.workerIDs[a.WorkerID]; !ok {
			return nil, fmt.Errorf("insert order worker assignments: %w: worker %s", ErrForeignKey, a.WorkerID)
		}
		owner, ok := d.projectIDs[a.AssignmentProjectID]
		if !ok || owner != a.WorkerID {
			return nil, fmt.Errorf("insert order worker assignments: %w: project %s of worker %s", ErrForeignKey, a.AssignmentProjectID, a.WorkerID)
		}
	}
	out := make([]domain.OrderWorkerAssignment, 0, len(assignments))
	for _, a := range assignments {
		a.ID, a.OrganizationID = uuid.New(), orgID
		d.assignments = append(d.assignments, a)
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) ListClients(_ context.Context, orgID uuid.UUID, page store.Page) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.orgOrEmpty(orgID).clients, page), nil
}

func (s *Store) ListServices(_ context.Context, orgID uuid.UUID, page store.Page) ([]domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.orgOrEmpty(orgID).services, page), nil
}

func (s *Store) ListWorkers(_ context.Context, orgID uuid.UUID, page store.Page) ([]domain.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.orgOrEmpty(orgID).workers, page), nil
}

func (s *Store) ListAssignmentProjects(_ context.Context, orgID uuid.UUID, page store.Page) ([]domain.AssignmentProject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.orgOrEmpty(orgID).projects, page), nil
}

func (s *Store) UpdateOrders(_ context.Context, orgID uuid.UUID, filter store.OrderFilter, patch store.OrderPatch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.orgs[orgID]
	if !ok {
		return 0, nil
	}
	wanted := make(map[string]struct{}, len(filter.OrderNumbers))
	for _, n := range filter.OrderNumbers {
		wanted[n] = struct{}{}
	}
	var n int64
	for i := range d.orders {
		if _, ok := wanted[d.orders[i].OrderNumber]; !ok {
			continue
		}
		if patch.Status != nil {
			d.orders[i].Status = *patch.Status
		}
		if patch.PaymentStatus != nil {
			d.orders[i].PaymentStatus = *patch.PaymentStatus
		}
		if patch.OutstandingBalance != nil {
			d.orders[i].OutstandingBalance = *patch.OutstandingBalance
		}
		n++
	}
	return n, nil
}

// Orders returns a copy of the organization's orders in insertion order.
func (s *Store) Orders(orgID uuid.UUID) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Order(nil), s.orgOrEmpty(orgID).orders...)
}

func (s *Store) OrderServiceLines(orgID uuid.UUID) []domain.OrderServiceLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.OrderServiceLine(nil), s.orgOrEmpty(orgID).lines...)
}

func (s *Store) OrderWorkerAssignments(orgID uuid.UUID) []domain.OrderWorkerAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.OrderWorkerAssignment(nil), s.orgOrEmpty(orgID).assignments...)
}

func (s *Store) orgOrEmpty(orgID uuid.UUID) *orgData {
	if d, ok := s.orgs[orgID]; ok {
		return d
	}
	return &orgData{}
}

func window[T any](items []T, page store.Page) []T {
	if page.Offset < 0 {
		page.Offset = 0
	}
	if page.Offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if page.Limit > 0 && page.Offset+page.Limit < end {
		end = page.Offset + page.Limit
	}
	return append([]T(nil), items[page.Offset:end]...)
}
