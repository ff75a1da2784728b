// Package postgres implements store.DataStore on PostgreSQL. Each bulk call
// is one INSERT ... SELECT FROM unnest(...) statement, so a call either
// writes every row or none.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/atelierops/api/internal/domain"
	"github.com/atelierops/api/internal/store"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

var _ store.DataStore = (*Store)(nil)

const clientColumns = `id, organization_id, name, phone, created_at`

func scanClient(row pgx.CollectableRow) (domain.Client, error) {
	var c domain.Client
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Phone, &c.CreatedAt)
	return c, err
}

func (s *Store) InsertClients(ctx context.Context, orgID uuid.UUID, clients []domain.Client) ([]domain.Client, error) {
	if len(clients) == 0 {
		return nil, nil
	}
	names := make([]string, len(clients))
	phones := make([]string, len(clients))
	for i, c := range clients {
		names[i], phones[i] = c.Name, c.Phone
	}
	rows, err := s.db.Query(ctx, `
		INSERT INTO clients (organization_id, name, phone)
		SELECT $1, c.name, c.phone
		FROM unnest($2::text[], $3::text[]) AS c(name, phone)
		RETURNING `+clientColumns, orgID, names, phones)
	if err != nil {
		return nil, fmt.Errorf("insert clients: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanClient)
	if err != nil {
		return nil, fmt.Errorf("insert clients: %w", err)
	}
	return out, nil
}

const serviceColumns = `id, organization_id, name, unit_cost::text, created_at`

func scanService(row pgx.CollectableRow) (domain.Service, error) {
	var (
		svc  domain.Service
		cost string
	)
	if err := row.Scan(&svc.ID, &svc.OrganizationID, &svc.Name, &cost, &svc.CreatedAt); err != nil {
		return svc, err
	}
	parsed, err := decimal.NewFromString(cost)
	if err != nil {
		return svc, fmt.Errorf("parse unit cost %q: %w", cost, err)
	}
	svc.UnitCost = parsed
	return svc, nil
}

// UpsertServices collapses repeated (name, cost) pairs before the statement
// since ON CONFLICT DO UPDATE cannot touch one row twice.
func (s *Store) UpsertServices(ctx context.Context, orgID uuid.UUID, services []domain.Service) ([]domain.Service, error) {
	if len(services) == 0 {
		return nil, nil
	}
	seen := map[string]struct{}{}
	names := make([]string, 0, len(services))
	costs := make([]string, 0, len(services))
	for _, svc := range services {
		key := strings.ToLower(svc.Name) + "\x00" + svc.UnitCost.StringFixed(2)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, svc.Name)
		costs = append(costs, svc.UnitCost.String())
	}
	rows, err := s.db.Query(ctx, `
		INSERT INTO services (organization_id, name, unit_cost)
		SELECT $1, s.name, s.unit_cost
		FROM unnest($2::text[], $3::text[]::numeric[]) AS s(name, unit_cost)
		ON CONFLICT (organization_id, (lower(name)), unit_cost) DO UPDATE SET name = services.name
		RETURNING `+serviceColumns, orgID, names, costs)
	if err != nil {
		return nil, fmt.Errorf("upsert services: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanService)
	if err != nil {
		return nil, fmt.Errorf("upsert services: %w", err)
	}
	return out, nil
}

const workerColumns = `id, organization_id, name, created_at`

func scanWorker(row pgx.CollectableRow) (domain.Worker, error) {
	var w domain.Worker
	err := row.Scan(&w.ID, &w.OrganizationID, &w.Name, &w.CreatedAt)
	return w, err
}

func (s *Store) InsertWorkers(ctx context.Context, orgID uuid.UUID, workers []domain.Worker) ([]domain.Worker, error) {
	if len(workers) == 0 {
		return nil, nil
	}
	names := make([]string, len(workers))
	for i, w := range workers {
		names[i] = w.Name
	}
	rows, err := s.db.Query(ctx, `
		INSERT INTO workers (organization_id, name)
		SELECT $1, w.name FROM unnest($2::text[]) AS w(name)
		RETURNING `+workerColumns, orgID, names)
	if err != nil {
		return nil, fmt.Errorf("insert workers: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanWorker)
	if err != nil {
		return nil, fmt.Errorf("insert workers: %w", err)
	}
	return out, nil
}

const projectColumns = `id, organization_id, worker_id, name, created_at`

func scanProject(row pgx.CollectableRow) (domain.AssignmentProject, error) {
	var p domain.AssignmentProject
	err := row.Scan(&p.ID, &p.OrganizationID, &p.WorkerID, &p.Name, &p.CreatedAt)
	return p, err
}

// InsertAssignmentProjects only accepts workers of the same organization.
func (s *Store) InsertAssignmentProjects(ctx context.Context, orgID uuid.UUID, projects []domain.AssignmentProject) ([]domain.AssignmentProject, error) {
	if len(projects) == 0 {
		return nil, nil
	}
	workerIDs := make([]string, len(projects))
	names := make([]string, len(projects))
	for i, p := range projects {
		workerIDs[i], names[i] = p.WorkerID.String(), p.Name
	}
	rows, err := s.db.Query(ctx, `
		INSERT INTO assignment_projects (organization_id, worker_id, name)
		SELECT $1, w.id, p.name
		FROM unnest($2::text[]::uuid[], $3::text[]) AS p(worker_id, name)
		JOIN workers w ON w.id = p.worker_id AND w.organization_id = $1
		RETURNING `+projectColumns, orgID, workerIDs, names)
	if err != nil {
		return nil, fmt.Errorf("insert assignment projects: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanProject)
	if err != nil {
		return nil, fmt.Errorf("insert assignment projects: %w", err)
	}
	return out, nil
}

const orderColumns = `id, organization_id, order_number, client_id, description, due_date, status,
	total_amount::text, outstanding_balance::text, payment_status, custom_fields, created_at`

func scanOrder(row pgx.CollectableRow) (domain.Order, error) {
	var (
		o              domain.Order
		total, balance string
		custom         []byte
	)
	if err := row.Scan(&o.ID, &o.OrganizationID, &o.OrderNumber, &o.ClientID, &o.Description, &o.DueDate,
		&o.Status, &total, &balance, &o.PaymentStatus, &custom, &o.CreatedAt); err != nil {
		return o, err
	}
	var err error
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return o, fmt.Errorf("parse total amount %q: %w", total, err)
	}
	if o.OutstandingBalance, err = decimal.NewFromString(balance); err != nil {
		return o, fmt.Errorf("parse outstanding balance %q: %w", balance, err)
	}
	if len(custom) > 0 && string(custom) != "{}" {
		if err := json.Unmarshal(custom, &o.CustomFields); err != nil {
			return o, fmt.Errorf("decode custom fields: %w", err)
		}
	}
	return o, nil
}

func (s *Store) InsertOrders(ctx context.Context, orgID uuid.UUID, orders []domain.Order) ([]domain.Order, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	n := len(orders)
	var (
		numbers      = make([]string, n)
		clientIDs    = make([]string, n)
		descriptions = make([]string, n)
		dueDates     = make([]pgtype.Timestamptz, n)
		statuses     = make([]string, n)
		totals       = make([]string, n)
		balances     = make([]string, n)
		payments     = make([]string, n)
		customs      = make([]string, n)
		createdAts   = make([]pgtype.Timestamptz, n)
	)
	for i, o := range orders {
		numbers[i] = o.OrderNumber
		clientIDs[i] = o.ClientID.String()
		descriptions[i] = o.Description
		if o.DueDate != nil {
			dueDates[i] = pgtype.Timestamptz{Time: *o.DueDate, Valid: true}
		}
		statuses[i] = string(o.Status)
		totals[i] = o.TotalAmount.String()
		balances[i] = o.OutstandingBalance.String()
		payments[i] = string(o.PaymentStatus)
		custom := []byte("{}")
		if len(o.CustomFields) > 0 {
			encoded, err := json.Marshal(o.CustomFields)
			if err != nil {
				return nil, fmt.Errorf("encode custom fields for order %s: %w", o.OrderNumber, err)
			}
			custom = encoded
		}
		customs[i] = string(custom)
		created := o.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		createdAts[i] = pgtype.Timestamptz{Time: created, Valid: true}
	}

	rows, err := s.db.Query(ctx, `
		INSERT INTO orders (organization_id, order_number, client_id, description, due_date, status,
			total_amount, outstanding_balance, payment_status, custom_fields, created_at)
		SELECT $1, o.order_number, o.client_id, o.description, o.due_date, o.status,
			o.total_amount, o.outstanding_balance, o.payment_status, o.custom_fields, o.created_at
		FROM unnest(
			$2::text[], $3::text[]::uuid[], $4::text[], $5::timestamptz[], $6::text[],
			$7::text[]::numeric[], $8::text[]::numeric[], $9::text[], $10::text[]::jsonb[], $11::timestamptz[]
		) AS o(order_number, client_id, description, due_date, status,
			total_amount, outstanding_balance, payment_status, custom_fields, created_at)
		RETURNING `+orderColumns,
		orgID, numbers, clientIDs, descriptions, dueDates, statuses, totals, balances, payments, customs, createdAts)
	if err != nil {
		return nil, fmt.Errorf("insert orders: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("insert orders: %w", err)
	}
	return out, nil
}

func (s *Store) InsertOrderServiceLines(ctx context.Context, orgID uuid.UUID, lines []domain.OrderServiceLine) ([]domain.OrderServiceLine, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	n := len(lines)
	orderIDs, serviceIDs := make([]string, n), make([]string, n)
	quantities := make([]int32, n)
	prices, costs := make([]string, n), make([]string, n)
	for i, l := range lines {
		orderIDs[i], serviceIDs[i] = l.OrderID.String(), l.ServiceID.String()
		quantities[i] = l.Quantity
		prices[i], costs[i] = l.UnitPrice.String(), l.LineCost.String()
	}
	rows, err := s.db.Query(ctx, `
		INSERT INTO order_service_lines (organization_id, order_id, service_id, quantity, unit_price, line_cost)
		SELECT $1, l.order_id, l.service_id, l.quantity, l.unit_price, l.line_cost
		FROM unnest($2::text[]::uuid[], $3::text[]::uuid[], $4::int4[], $5::text[]::numeric[], $6::text[]::numeric[])
			AS l(order_id, service_id, quantity, unit_price, line_cost)
		RETURNING id, organization_id, order_id, service_id, quantity, unit_price::text, line_cost::text`,
		orgID, orderIDs, serviceIDs, quantities, prices, costs)
	if err != nil {
		return nil, fmt.Errorf("insert order service lines: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderServiceLine, error) {
		var (
			l           domain.OrderServiceLine
			price, cost string
		)
		if err := row.Scan(&l.ID, &l.OrganizationID, &l.OrderID, &l.ServiceID, &l.Quantity, &price, &cost); err != nil {
			return l, err
		}
		var err error
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return l, err
		}
		l.LineCost, err = decimal.NewFromString(cost)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("insert order service lines: %w", err)
	}
	return out, nil
}

func (s *Store) InsertOrderWorkerAssignments(ctx context.Context, orgID uuid.UUID, assignments []domain.OrderWorkerAssignment) ([]domain.OrderWorkerAssignment, error) {
	if len(assignments) == 0 {
		return nil, nil
	}
	n := len(assignments)
	orderIDs, workerIDs, projectIDs := make([]string, n), make([]string, n), make([]string, n)
	for i, a := range assignments {
		orderIDs[i], workerIDs[i], projectIDs[i] = a.OrderID.String(), a.WorkerID.String(), a.AssignmentProjectID.String()
	}
	rows, err := s.db.Query(ctx, `
		INSERT INTO order_worker_assignments (organization_id, order_id, worker_id, assignment_project_id)
		SELECT $1, a.order_id, a.worker_id, a.project_id
		FROM unnest($2::text[]::uuid[], $3::text[]::uuid[], $4::text[]::uuid[]) AS a(order_id, worker_id, project_id)
		RETURNING id, organization_id, order_id, worker_id, assignment_project_id`,
		orgID, orderIDs, workerIDs, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("insert order worker assignments: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderWorkerAssignment, error) {
		var a domain.OrderWorkerAssignment
		err := row.Scan(&a.ID, &a.OrganizationID, &a.OrderID, &a.WorkerID, &a.AssignmentProjectID)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("insert order worker assignments: %w", err)
	}
	return out, nil
}

func (s *Store) ListClients(ctx context.Context, orgID uuid.UUID, page store.Page) ([]domain.Client, error) {
	return list(ctx, s.db, "clients", clientColumns, orgID, page, scanClient)
}

func (s *Store) ListServices(ctx context.Context, orgID uuid.UUID, page store.Page) ([]domain.Service, error) {
	return list(ctx, s.db, "services", serviceColumns, orgID, page, scanService)
}

func (s *Store) ListWorkers(ctx context.Context, orgID uuid.UUID, page store.Page) ([]domain.Worker, error) {
	return list(ctx, s.db, "workers", workerColumns, orgID, page, scanWorker)
}

func (s *Store) ListAssignmentProjects(ctx context.Context, orgID uuid.UUID, page store.Page) ([]domain.AssignmentProject, error) {
	return list(ctx, s.db, "assignment_projects", projectColumns, orgID, page, scanProject)
}

// list pages a table by creation. table and columns are package constants.
func list[T any](ctx context.Context, db DB, table, columns string, orgID uuid.UUID, page store.Page, scan pgx.RowToFunc[T]) ([]T, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.Query(ctx, `SELECT `+columns+` FROM `+table+`
		WHERE organization_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`, orgID, limit, max(page.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) UpdateOrders(ctx context.Context, orgID uuid.UUID, filter store.OrderFilter, patch store.OrderPatch) (int64, error) {
	if len(filter.OrderNumbers) == 0 {
		return 0, nil
	}
	var status, payment, balance *string
	if patch.Status != nil {
		v := string(*patch.Status)
		status = &v
	}
	if patch.PaymentStatus != nil {
		v := string(*patch.PaymentStatus)
		payment = &v
	}
	if patch.OutstandingBalance != nil {
		v := patch.OutstandingBalance.String()
		balance = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE orders SET
			status = COALESCE($3, status),
			payment_status = COALESCE($4, payment_status),
			outstanding_balance = COALESCE($5::text::numeric, outstanding_balance)
		WHERE organization_id = $1 AND order_number = ANY($2::text[])`,
		orgID, filter.OrderNumbers, status, payment, balance)
	if err != nil {
		return 0, fmt.Errorf("update orders: %w", err)
	}
	return tag.RowsAffected(), nil
}
