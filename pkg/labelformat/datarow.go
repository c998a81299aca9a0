package labelformat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Field is one cell of a DataRow.
type Field struct {
	Name  string `json:"name" msgpack:"n"`
	Value any    `json:"value" msgpack:"v"`
}

// DataRow is one record of an imported dataset. Fields keep the dataset's
// column order. Rows are treated as immutable once parsed.
type DataRow []Field

// Dataset is the parsed form of an uploaded file.
type Dataset struct {
	Columns []string  `json:"columns" msgpack:"columns"`
	Rows    []DataRow `json:"rows" msgpack:"rows"`
}

// NewRow builds a row from parallel column and value slices. Missing values
// are stored as empty strings.
func NewRow(columns []string, values []string) DataRow {
	row := make(DataRow, len(columns))
	for i, col := range columns {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		row[i] = Field{Name: col, Value: v}
	}
	return row
}

// Get returns the raw value stored for column.
func (r DataRow) Get(column string) (any, bool) {
	for _, f := range r {
		if f.Name == column {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the string form of column's value. Missing columns and
// blank values report ok=false.
func (r DataRow) String(column string) (string, bool) {
	v, found := r.Get(column)
	if !found || v == nil {
		return "", false
	}
	s := FormatValue(v)
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func (r DataRow) Columns() []string {
	cols := make([]string, len(r))
	for i, f := range r {
		cols[i] = f.Name
	}
	return cols
}

// FormatValue renders a cell value without exponent notation for numbers.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprint(val)
	}
}

// MarshalJSON encodes the row as a JSON object in column order.
func (r DataRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order. Numbers are kept as
// json.Number so they print as written.
func (r *DataRow) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("data row must be a JSON object")
	}

	row := DataRow{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("column %q: %w", key, err)
		}
		row = append(row, Field{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = row
	return nil
}
