package rowsource

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Row maps a header name to the raw cell text.
type Row map[string]string

type Table struct {
	Headers []string
	Rows    []Row
	// Lines holds the source data-row number of each entry in Rows, header
	// excluded and blank rows counted, so messages can point at the row the
	// operator sees.
	Lines []int
}

var (
	ErrEmptyFile       = errors.New("file has no rows")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooManyRows     = errors.New("row limit exceeded")
)

type Options struct {
	// Sheet selects the worksheet of an XLSX file; the first sheet when empty.
	Sheet   string
	MaxRows int
}

// Read picks the decoder from the file extension.
func Read(filename string, r io.Reader, opts Options) (Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return ReadCSV(r, opts)
	case ".xlsx", ".xlsm":
		return ReadXLSX(r, opts)
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filename))
	}
}

func ReadCSV(r io.Reader, opts Options) (Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records := make([][]string, 0, 1024)
	// encoding/csv skips empty lines, so record positions come from the reader.
	lines := make([]int, 0, 1024)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("parse csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}
	return buildTable(records, lines, opts.MaxRows)
}

func ReadXLSX(r io.Reader, opts Options) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("read xlsx: %w", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Table{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return Table{}, fmt.Errorf("no sheets in workbook")
		}
	}

	// Raw values keep date cells as serial numbers for the normalizer.
	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	// GetRows keeps empty rows between data rows, so the index is the row.
	lines := make([]int, len(records))
	for i := range records {
		lines[i] = i + 1
	}
	return buildTable(records, lines, opts.MaxRows)
}

// buildTable turns records into rows; lines[i] is the source line of
// records[i] and records[0] is the header.
func buildTable(records [][]string, lines []int, maxRows int) (Table, error) {
	if len(records) == 0 {
		return Table{}, ErrEmptyFile
	}

	headers := NormalizeHeaderRow(records[0])
	data := records[1:]
	rows := make([]Row, 0, len(data))
	numbers := make([]int, 0, len(data))
	for n, record := range data {
		if isBlank(record) {
			continue
		}
		numbers = append(numbers, lines[n+1]-lines[0])
		row := make(Row, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(record) {
				row[header] = record[i]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}
	if maxRows > 0 && len(rows) > maxRows {
		return Table{}, fmt.Errorf("%w: %d rows, max %d", ErrTooManyRows, len(rows), maxRows)
	}
	return Table{Headers: headers, Rows: rows, Lines: numbers}, nil
}

func NormalizeHeaderRow(row []string) []string {
	headers := make([]string, len(row))
	for i, col := range row {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
	}
	return headers
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
