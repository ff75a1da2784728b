package importer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/atelierops/api/internal/domain"
	"github.com/atelierops/api/internal/rowsource"
)

// Record is one spreadsheet row keyed by canonical field.
type Record struct {
	// Row is the 1-based source data row number (header excluded, blank
	// rows counted). Index is the 1-based position among non-blank rows.
	Row          int
	Index        int
	OrderNumber  string
	ClientName   string
	ClientPhone  string
	Description  string
	Services     string
	TopWorker    string
	BottomWorker string
	OrderDate    *time.Time
	DueDate      *time.Time
	// Status is empty when the column is unmapped or blank.
	Status   domain.OrderStatus
	Custom   map[string]string
	Warnings []string
}

var errInvalidDate = errors.New("invalid date")

var textDateLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalize maps raw rows onto canonical fields. Unmapped columns are ignored
// and a bad date only clears that field. lines carries the source row number
// of each row; when it does not line up with rows, positions are used.
func Normalize(rows []rowsource.Row, lines []int, m Mapping) []Record {
	records := make([]Record, 0, len(rows))
	for idx, row := range rows {
		rec := Record{Row: idx + 1, Index: idx + 1}
		if len(lines) == len(rows) {
			rec.Row = lines[idx]
		}
		for header, raw := range row {
			t, ok := m.lookup(header)
			if !ok {
				continue
			}
			value := strings.TrimSpace(raw)
			switch t.field {
			case FieldOrderNumber:
				rec.OrderNumber = value
			case FieldClientName:
				rec.ClientName = cleanText(value)
			case FieldClientPhone:
				rec.ClientPhone = value
			case FieldDescription:
				rec.Description = value
			case FieldServices:
				rec.Services = value
			case FieldTopWorker:
				rec.TopWorker = cleanText(value)
			case FieldBottomWorker:
				rec.BottomWorker = cleanText(value)
			case FieldStatus:
				rec.Status = NormalizeStatus(value)
			case FieldOrderDate, FieldDueDate:
				parsed, err := ParseDate(value)
				if err != nil {
					rec.Warnings = append(rec.Warnings, fmt.Sprintf("row %d: unparseable %s %q left empty", rec.Row, t.field, value))
				}
				if t.field == FieldOrderDate {
					rec.OrderDate = parsed
				} else {
					rec.DueDate = parsed
				}
			case FieldCustom:
				if value == "" {
					continue
				}
				if rec.Custom == nil {
					rec.Custom = map[string]string{}
				}
				rec.Custom[t.customKey] = value
			}
		}
		records = append(records, rec)
	}
	return records
}

// ParseDate accepts spreadsheet serial numbers (1900 date system),
// DD/MM/YYYY with an optional HH:mm[:ss] suffix, and ISO dates. Blank input
// yields nil without error.
func ParseDate(raw string) (*time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(serial) || math.IsInf(serial, 0) || serial <= 0 {
			return nil, fmt.Errorf("%w: serial %q", errInvalidDate, s)
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidDate, err)
		}
		t = t.UTC().Round(time.Second)
		return &t, nil
	}

	for _, layout := range textDateLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		t = t.UTC()
		return &t, nil
	}
	return nil, fmt.Errorf("%w: %q", errInvalidDate, s)
}

// FormatTimestamp renders the canonical timestamp string, empty for nil.
func FormatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func NormalizeStatus(value string) domain.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return ""
	case "new", "pending", "open":
		return domain.OrderStatusPending
	case "done", "completed", "complete", "delivered", "collected":
		return domain.OrderStatusCompleted
	default:
		return domain.OrderStatusInProgress
	}
}
