package dryrun

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelierops/api/internal/domain"
	"github.com/atelierops/api/internal/store"
	"github.com/atelierops/api/internal/store/memory"
)

func TestWritesDoNotReachUnderlyingStore(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	base := memory.New()
	if _, err := base.InsertClients(ctx, org, []domain.Client{{Name: "Ama", Phone: "0551234567"}}); err != nil {
		t.Fatalf("seed client: %v", err)
	}

	s := New(base)
	created, err := s.InsertClients(ctx, org, []domain.Client{{Name: "Kofi"}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created[0].ID == uuid.Nil || created[0].OrganizationID != org {
		t.Fatalf("expected simulated identity, got %+v", created[0])
	}

	listed, err := s.ListClients(ctx, org, store.Page{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "Ama" {
		t.Fatalf("expected only the real client, got %+v", listed)
	}
}

func TestUpsertServicesDeduplicatesSimulatedRows(t *testing.T) {
	s := New(memory.New())
	org := uuid.New()
	out, err := s.UpsertServices(context.Background(), org, []domain.Service{
		{Name: "Shirt", UnitCost: decimal.RequireFromString("50.00")},
		{Name: "SHIRT", UnitCost: decimal.RequireFromString("50")},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if out[0].ID != out[1].ID {
		t.Fatalf("expected one simulated service, got %s and %s", out[0].ID, out[1].ID)
	}
}
