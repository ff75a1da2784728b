package importer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelierops/api/internal/domain"
)

func existingSnapshot() *Snapshot {
	snap := NewSnapshot()
	snap.AddClient(domain.Client{ID: uuid.New(), Name: "Ama", Phone: "0551234567"})
	snap.AddClient(domain.Client{ID: uuid.New(), Name: "Kofi", Phone: "0241111111"})
	snap.AddService(domain.Service{ID: uuid.New(), Name: "Shirt", UnitCost: decimal.RequireFromString("50.00")})
	snap.AddWorker(domain.Worker{ID: uuid.New(), Name: "Kwame"})
	return snap
}

func TestComputeDiffCountsOnlyNewKeys(t *testing.T) {
	records := []Record{
		{Row: 1, OrderNumber: "A-1", ClientName: "AMA", ClientPhone: "0551234567", Services: "shirt - 1 pcs - GH₵50", TopWorker: "kwame"},
		{Row: 2, OrderNumber: "A-2", ClientName: "Esi", ClientPhone: "0200000000", Services: "Shirt - 1 pcs - GH₵55Dress - 1 pcs - GH₵120", TopWorker: "Yaw", BottomWorker: "yaw"},
		{Row: 3, OrderNumber: "A-3", ClientName: "esi", ClientPhone: "0200000000", Services: "DRESS - 2 pcs - GH₵120.00", TopWorker: "Kwame", BottomWorker: "Adwoa"},
		{Row: 4, OrderNumber: "A-4", ClientName: "Esi", ClientPhone: "0209999999"},
	}

	diff := ComputeDiff(records, existingSnapshot(), DiffOptions{CollapseDuplicates: true})

	if len(diff.Clients) != 2 {
		t.Fatalf("expected Esi twice (two phones), got %+v", diff.Clients)
	}
	if diff.Clients[0].Phone != "0200000000" || diff.Clients[1].Phone != "0209999999" {
		t.Fatalf("unexpected client order %+v", diff.Clients)
	}
	if len(diff.Services) != 2 {
		t.Fatalf("expected Shirt@55 and Dress@120, got %+v", diff.Services)
	}
	if len(diff.Workers) != 2 || diff.Workers[0].Name != "Yaw" || diff.Workers[1].Name != "Adwoa" {
		t.Fatalf("expected Yaw and Adwoa, got %+v", diff.Workers)
	}
}

func TestComputeDiffWithoutCollapse(t *testing.T) {
	records := []Record{
		{Row: 1, OrderNumber: "A-1", ClientName: "Ama", ClientPhone: "0550000000"},
		{Row: 2, OrderNumber: "A-2", ClientName: "ama", ClientPhone: "0550000000"},
	}
	diff := ComputeDiff(records, NewSnapshot(), DiffOptions{})
	if len(diff.Clients) != 2 {
		t.Fatalf("expected every occurrence without collapse, got %d", len(diff.Clients))
	}
	if !ComputeDiff(nil, NewSnapshot(), DiffOptions{CollapseDuplicates: true}).Empty() {
		t.Fatalf("no rows should give an empty diff")
	}
}

func TestComputeDiffIgnoresRowsWithoutOrderNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   int
	}{
		{name: "blank order number", number: "", want: 0},
		{name: "with order number", number: "A-9", want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			records := []Record{{Row: 1, OrderNumber: tc.number, ClientName: "Ghost", Services: "Cape - 1 pcs - GH₵10.00", TopWorker: "Phantom"}}
			diff := ComputeDiff(records, NewSnapshot(), DiffOptions{CollapseDuplicates: true})
			if len(diff.Clients) != tc.want || len(diff.Services) != tc.want || len(diff.Workers) != tc.want {
				t.Fatalf("expected %d of each, got %+v", tc.want, diff)
			}
		})
	}
}

func TestFilterDuplicateContacts(t *testing.T) {
	candidates := []domain.Client{
		{Name: "Kofi", Phone: "024111111"},
		{Name: "Abena", Phone: "0551234567"},
		{Name: "Efua", Phone: "0277777777"},
		{Name: "Efua", Phone: "0278888888"},
		{Name: "Kojo", Phone: ""},
	}
	kept, messages := filterDuplicateContacts(candidates, existingSnapshot())
	if len(kept) != 2 || kept[0].Name != "Efua" || kept[1].Name != "Kojo" {
		t.Fatalf("unexpected kept %+v", kept)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %v", messages)
	}
}
