package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BaseProjectName is the logical name of the default assignment project every
// worker needs before an order can reference them.
const BaseProjectName = "base"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type Client struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Phone          string
	CreatedAt      time.Time
}

type Service struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	UnitCost       decimal.Decimal
	CreatedAt      time.Time
}

type Worker struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	CreatedAt      time.Time
}

type AssignmentProject struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	WorkerID       uuid.UUID
	Name           string
	CreatedAt      time.Time
}

type Order struct {
	ID                 uuid.UUID
	OrganizationID     uuid.UUID
	OrderNumber        string
	ClientID           uuid.UUID
	Description        string
	DueDate            *time.Time
	Status             OrderStatus
	TotalAmount        decimal.Decimal
	OutstandingBalance decimal.Decimal
	PaymentStatus      PaymentStatus
	CustomFields       map[string]string
	CreatedAt          time.Time
}

type OrderServiceLine struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	OrderID        uuid.UUID
	ServiceID      uuid.UUID
	Quantity       int32
	UnitPrice      decimal.Decimal
	LineCost       decimal.Decimal
}

type OrderWorkerAssignment struct {
	ID                  uuid.UUID
	OrganizationID      uuid.UUID
	OrderID             uuid.UUID
	WorkerID            uuid.UUID
	AssignmentProjectID uuid.UUID
}
