package labelformat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataRow_JSONKeepsColumnOrder(t *testing.T) {
	var row DataRow
	require.NoError(t, json.Unmarshal([]byte(`{"Zeta":"z","Alpha":12,"Mid":null}`), &row))

	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, row.Columns())

	out, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Zeta":"z","Alpha":12,"Mid":null}`, string(out))
	assert.Equal(t, `{"Zeta":"z","Alpha":12,"Mid":null}`, string(out))
}

func TestDataRow_String(t *testing.T) {
	row := DataRow{
		{Name: "SKU", Value: "ABC123"},
		{Name: "Price", Value: 1250000.0},
		{Name: "Count", Value: json.Number("007")},
		{Name: "Blank", Value: "  "},
		{Name: "Nil", Value: nil},
	}

	s, ok := row.String("SKU")
	assert.True(t, ok)
	assert.Equal(t, "ABC123", s)

	s, _ = row.String("Price")
	assert.Equal(t, "1250000", s)

	s, _ = row.String("Count")
	assert.Equal(t, "007", s)

	for _, col := range []string{"Blank", "Nil", "Missing"} {
		_, ok := row.String(col)
		assert.False(t, ok, col)
	}
}

func TestNewRow_PadsMissingValues(t *testing.T) {
	row := NewRow([]string{"a", "b", "c"}, []string{"1"})
	assert.Len(t, row, 3)
	v, ok := row.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}
