package importer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Field is a canonical order field a spreadsheet column can be mapped to.
type Field string

const (
	FieldOrderNumber  Field = "order_number"
	FieldClientName   Field = "client_name"
	FieldClientPhone  Field = "client_phone"
	FieldDescription  Field = "description"
	FieldOrderDate    Field = "order_date"
	FieldDueDate      Field = "due_date"
	FieldStatus       Field = "status"
	FieldServices     Field = "services"
	FieldTopWorker    Field = "top_worker"
	FieldBottomWorker Field = "bottom_worker"
	FieldCustom       Field = "custom"
)

var canonicalFields = []Field{
	FieldOrderNumber,
	FieldClientName,
	FieldClientPhone,
	FieldDescription,
	FieldOrderDate,
	FieldDueDate,
	FieldStatus,
	FieldServices,
	FieldTopWorker,
	FieldBottomWorker,
}

var (
	ErrEmptyMapping        = errors.New("header mapping is empty")
	ErrUnknownField        = errors.New("unknown target field")
	ErrDuplicateField      = errors.New("field mapped from more than one column")
	ErrOrderNumberUnmapped = errors.New("order_number is not mapped to any column")
)

// Fields lists the canonical fields in display order.
func Fields() []Field {
	out := make([]Field, len(canonicalFields))
	copy(out, canonicalFields)
	return out
}

func (f Field) Known() bool {
	for _, known := range canonicalFields {
		if f == known {
			return true
		}
	}
	return false
}

type target struct {
	field     Field
	customKey string
}

// Mapping is a validated header->field mapping. Columns are matched on a
// normalized header key so "Order No." and "order_no" select the same column.
type Mapping struct {
	columns map[string]target
	byField map[Field]string
}

// NewMapping validates the operator's choice of column->field. A value of
// "custom" or "custom:<key>" keeps the column as a custom order field.
func NewMapping(raw map[string]string) (Mapping, error) {
	if len(raw) == 0 {
		return Mapping{}, ErrEmptyMapping
	}

	m := Mapping{
		columns: make(map[string]target, len(raw)),
		byField: make(map[Field]string, len(raw)),
	}

	columns := make([]string, 0, len(raw))
	for column := range raw {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	for _, column := range columns {
		value := strings.TrimSpace(raw[column])
		key := normalizeHeaderKey(column)
		if key == "" || value == "" {
			continue
		}

		if value == string(FieldCustom) || strings.HasPrefix(value, string(FieldCustom)+":") {
			customKey := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(value, string(FieldCustom)), ":"))
			if customKey == "" {
				customKey = strings.TrimSpace(column)
			}
			m.columns[key] = target{field: FieldCustom, customKey: customKey}
			continue
		}

		field := Field(strings.ToLower(value))
		if !field.Known() {
			return Mapping{}, fmt.Errorf("%w: %q for column %q", ErrUnknownField, value, column)
		}
		if existing, ok := m.byField[field]; ok {
			return Mapping{}, fmt.Errorf("%w: %s from %q and %q", ErrDuplicateField, field, existing, column)
		}
		m.byField[field] = column
		m.columns[key] = target{field: field}
	}

	if _, ok := m.byField[FieldOrderNumber]; !ok {
		return Mapping{}, ErrOrderNumberUnmapped
	}
	return m, nil
}

// Column returns the source column mapped to field.
func (m Mapping) Column(field Field) (string, bool) {
	column, ok := m.byField[field]
	return column, ok
}

func (m Mapping) lookup(header string) (target, bool) {
	t, ok := m.columns[normalizeHeaderKey(header)]
	return t, ok
}

func normalizeHeaderKey(raw string) string {
	replacer := strings.NewReplacer(" ", "", "_", "", "-", "", ".", "", "/", "")
	return strings.ToLower(replacer.Replace(strings.TrimSpace(raw)))
}
