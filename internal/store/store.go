// Package store defines the record store contract the import engine runs
// against. Every call is scoped to one organization.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelierops/api/internal/domain"
)

// Page selects a window of a listing ordered by creation.
type Page struct {
	Offset int
	Limit  int
}

type OrderFilter struct {
	OrderNumbers []string
}

// OrderPatch holds the columns to change; nil fields are left untouched.
type OrderPatch struct {
	Status             *domain.OrderStatus
	PaymentStatus      *domain.PaymentStatus
	OutstandingBalance *decimal.Decimal
}

// DataStore is the hosted record store. Insert calls return the inserted rows
// enriched with generated identities; the returned order is not guaranteed to
// match the input order, so callers match on business keys.
type DataStore interface {
	InsertClients(ctx context.Context, orgID uuid.UUID, clients []domain.Client) ([]domain.Client, error)
	// UpsertServices inserts services and returns the existing row on a
	// (name, unit cost) conflict.
	UpsertServices(ctx context.Context, orgID uuid.UUID, services []domain.Service) ([]domain.Service, error)
	InsertWorkers(ctx context.Context, orgID uuid.UUID, workers []domain.Worker) ([]domain.Worker, error)
	InsertAssignmentProjects(ctx context.Context, orgID uuid.UUID, projects []domain.AssignmentProject) ([]domain.AssignmentProject, error)
	InsertOrders(ctx context.Context, orgID uuid.UUID, orders []domain.Order) ([]domain.Order, error)
	InsertOrderServiceLines(ctx context.Context, orgID uuid.UUID, lines []domain.OrderServiceLine) ([]domain.OrderServiceLine, error)
	InsertOrderWorkerAssignments(ctx context.Context, orgID uuid.UUID, assignments []domain.OrderWorkerAssignment) ([]domain.OrderWorkerAssignment, error)

	ListClients(ctx context.Context, orgID uuid.UUID, page Page) ([]domain.Client, error)
	ListServices(ctx context.Context, orgID uuid.UUID, page Page) ([]domain.Service, error)
	ListWorkers(ctx context.Context, orgID uuid.UUID, page Page) ([]domain.Worker, error)
	ListAssignmentProjects(ctx context.Context, orgID uuid.UUID, page Page) ([]domain.AssignmentProject, error)

	UpdateOrders(ctx context.Context, orgID uuid.UUID, filter OrderFilter, patch OrderPatch) (int64, error)
}
