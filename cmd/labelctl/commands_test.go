package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    labelformat.QuantityPlan
		wantErr bool
	}{
		{in: "1", want: labelformat.QuantityPlan{Type: labelformat.QuantityFixed, Fixed: 1}},
		{in: "12", want: labelformat.QuantityPlan{Type: labelformat.QuantityFixed, Fixed: 12}},
		{in: "column:qty", want: labelformat.QuantityPlan{Type: labelformat.QuantityColumn, Column: "qty"}},
		{in: "column:", wantErr: true},
		{in: "-2", wantErr: true},
		{in: "lots", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseQuantity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadRows(t *testing.T) {
	rows, err := loadRows("", "")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	path := filepath.Join(t.TempDir(), "items.csv")
	require.NoError(t, os.WriteFile(path, []byte("sku;qty\nA-1;2\nA-2;3\n"), 0644))
	rows, err = loadRows(path, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	v, _ := rows[1].String("qty")
	assert.Equal(t, "3", v)

	_, err = loadRows(filepath.Join(t.TempDir(), "missing.csv"), "")
	assert.Error(t, err)
}
