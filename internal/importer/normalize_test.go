package importer

import (
	"strings"
	"testing"

	"github.com/atelierops/api/internal/domain"
	"github.com/atelierops/api/internal/rowsource"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "45366.5", want: "2024-03-15T12:00:00Z"},
		{in: "45366", want: "2024-03-15T00:00:00Z"},
		{in: "15/03/2024", want: "2024-03-15T00:00:00Z"},
		{in: "15/03/2024 14:30", want: "2024-03-15T14:30:00Z"},
		{in: "5/3/2024 9:05", want: "2024-03-05T09:05:00Z"},
		{in: "2024-03-15", want: "2024-03-15T00:00:00Z"},
		{in: "2024-03-15T10:00:00+02:00", want: "2024-03-15T08:00:00Z"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDate(tc.in)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.in, err)
			}
			if s := FormatTimestamp(got); s != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, s)
			}
		})
	}

	for _, bad := range []string{"yesterday", "31/02/2024", "-3", "NaN", "15.03.2024"} {
		if got, err := ParseDate(bad); err == nil || got != nil {
			t.Fatalf("expected %q to fail, got %v", bad, got)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]domain.OrderStatus{
		"":            "",
		"New":         domain.OrderStatusPending,
		" open ":      domain.OrderStatusPending,
		"DONE":        domain.OrderStatusCompleted,
		"Collected":   domain.OrderStatusCompleted,
		"cutting":     domain.OrderStatusInProgress,
		"in progress": domain.OrderStatusInProgress,
	}
	for in, want := range tests {
		if got := NormalizeStatus(in); got != want {
			t.Fatalf("status %q: expected %q, got %q", in, want, got)
		}
	}
}

func TestNormalizeKeepsRowOnBadDate(t *testing.T) {
	m, err := NewMapping(map[string]string{
		"No":     "order_number",
		"Client": "client_name",
		"Due":    "due_date",
		"Fabric": "custom",
		"Notes":  "",
	})
	if err != nil {
		t.Fatalf("mapping: %v", err)
	}
	records := Normalize([]rowsource.Row{
		{"No": "A-1", "Client": "  Ama   Owusu ", "Due": "someday", "Fabric": "Kente", "Notes": "ignored"},
		{"No": "A-2", "Client": "Kojo", "Due": "01/04/2024", "Fabric": ""},
	}, nil, m)

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	first := records[0]
	if first.Row != 1 || first.ClientName != "Ama Owusu" || first.DueDate != nil {
		t.Fatalf("unexpected first record %+v", first)
	}
	if len(first.Warnings) != 1 || !strings.Contains(first.Warnings[0], "due_date") {
		t.Fatalf("expected a due_date warning, got %v", first.Warnings)
	}
	if first.Custom["Fabric"] != "Kente" {
		t.Fatalf("expected custom field, got %v", first.Custom)
	}
	if records[1].DueDate == nil || records[1].Custom != nil {
		t.Fatalf("unexpected second record %+v", records[1])
	}
}

func TestNormalizeUsesSourceRowNumbers(t *testing.T) {
	m, err := NewMapping(map[string]string{"No": "order_number", "Due": "due_date"})
	if err != nil {
		t.Fatalf("mapping: %v", err)
	}
	rows := []rowsource.Row{{"No": "A-1"}, {"No": "A-4", "Due": "never"}}
	tests := []struct {
		name      string
		lines     []int
		wantRows  []int
		wantInDue string
	}{
		{name: "source lines", lines: []int{1, 4}, wantRows: []int{1, 4}, wantInDue: "row 4:"},
		{name: "no lines", lines: nil, wantRows: []int{1, 2}, wantInDue: "row 2:"},
		{name: "mismatched lines", lines: []int{7}, wantRows: []int{1, 2}, wantInDue: "row 2:"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			records := Normalize(rows, tc.lines, m)
			for i, rec := range records {
				if rec.Row != tc.wantRows[i] || rec.Index != i+1 {
					t.Fatalf("record %d: got row %d index %d", i, rec.Row, rec.Index)
				}
			}
			if len(records[1].Warnings) != 1 || !strings.HasPrefix(records[1].Warnings[0], tc.wantInDue) {
				t.Fatalf("unexpected warnings %v", records[1].Warnings)
			}
		})
	}
}
