// Package dataset imports uploaded spreadsheets into ordered data rows
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// ErrEmpty is returned for files without a header row.
var ErrEmpty = errors.New("dataset has no header row")

// Parse reads r according to the extension of filename: .csv, .tsv, .txt or
// .xlsx. For workbooks the first sheet is used.
func Parse(filename string, r io.Reader) (*labelformat.Dataset, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return ParseCSV(r)
	case ".tsv":
		return parseDelimited(r, '\t')
	case ".xlsx", ".xlsm":
		return ParseXLSX(r, "")
	default:
		return nil, fmt.Errorf("unsupported dataset file '%s' (expected .csv, .tsv or .xlsx)", filepath.Base(filename))
	}
}

// ParseCSV reads a delimited file whose first record is the header. The
// delimiter is guessed from the header line: comma, semicolon or tab.
func ParseCSV(r io.Reader) (*labelformat.Dataset, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(4096)
	return parseDelimited(br, sniffDelimiter(head))
}

func parseDelimited(r io.Reader, comma rune) (*labelformat.Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return fromRecords(records)
}

// ParseXLSX reads sheet of a workbook, or the first sheet when sheet is empty.
func ParseXLSX(r io.Reader, sheet string) (*labelformat.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if !lo.Contains(sheets, sheet) {
		return nil, fmt.Errorf("sheet '%s' not found (have %s)", sheet, strings.Join(sheets, ", "))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet '%s': %w", sheet, err)
	}
	return fromRecords(rows)
}

// fromRecords turns a header and records into a dataset. Short records are
// padded with empty cells, cells beyond the header are dropped, and blank
// records are skipped.
func fromRecords(records [][]string) (*labelformat.Dataset, error) {
	for len(records) > 0 && isBlank(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	columns := headerNames(records[0])
	ds := &labelformat.Dataset{Columns: columns, Rows: make([]labelformat.DataRow, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		ds.Rows = append(ds.Rows, labelformat.NewRow(columns, rec))
	}
	return ds, nil
}

// headerNames trims header cells, names blank ones by position and makes
// duplicates unique with a numeric suffix.
func headerNames(header []string) []string {
	seen := make(map[string]int, len(header))
	names := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = fmt.Sprintf("Column %d", i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		names[i] = name
	}
	return names
}

func isBlank(rec []string) bool {
	return lo.EveryBy(rec, func(s string) bool { return strings.TrimSpace(s) == "" })
}

func sniffDelimiter(head []byte) rune {
	line, _, _ := bytes.Cut(head, []byte("\n"))
	best, bestCount := ',', bytes.Count(line, []byte(","))
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
