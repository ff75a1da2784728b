package importer

import (
	"errors"
	"testing"
)

func TestNewMappingValidation(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]string
		wantErr error
	}{
		{name: "empty", raw: nil, wantErr: ErrEmptyMapping},
		{name: "order number unmapped", raw: map[string]string{"Client": "client_name"}, wantErr: ErrOrderNumberUnmapped},
		{name: "unknown field", raw: map[string]string{"No": "order_number", "Colour": "colour"}, wantErr: ErrUnknownField},
		{name: "duplicate field", raw: map[string]string{"No": "order_number", "Ref": "order_number"}, wantErr: ErrDuplicateField},
		{name: "valid", raw: map[string]string{"No": "order_number", "Client": "CLIENT_NAME", "Ignored": ""}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMapping(tc.raw)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestMappingMatchesNormalizedHeaders(t *testing.T) {
	m, err := NewMapping(map[string]string{
		"Order No.": "order_number",
		"Fabric":    "custom",
		"Tailor N":  "custom:tailor_note",
	})
	if err != nil {
		t.Fatalf("mapping: %v", err)
	}

	if got, ok := m.lookup("order_no"); !ok || got.field != FieldOrderNumber {
		t.Fatalf("expected order_no to match Order No., got %+v %v", got, ok)
	}
	if got, _ := m.lookup("fabric"); got.field != FieldCustom || got.customKey != "Fabric" {
		t.Fatalf("expected custom key from column name, got %+v", got)
	}
	if got, _ := m.lookup("Tailor N"); got.customKey != "tailor_note" {
		t.Fatalf("expected explicit custom key, got %+v", got)
	}
	if column, ok := m.Column(FieldOrderNumber); !ok || column != "Order No." {
		t.Fatalf("unexpected column %q", column)
	}
}
