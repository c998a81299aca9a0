package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereceipt/label-engine/internal/printer"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "LABEL_WORKERS", "LABEL_PRINT_DPI", "LABEL_PREVIEW_DPI", "LABEL_MAX_DPI"} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 96.0, cfg.PreviewDPI)
	assert.Equal(t, 300.0, cfg.PrintDPI)
	assert.Equal(t, 1200.0, cfg.MaxDPI)
	assert.Equal(t, "12212", cfg.Port)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "labels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "8080"
workers: 4
printDPI: 203
printers:
  - name: shelf
    type: network
    address: 10.0.0.5
  - name: bench
    type: serial
    address: /dev/ttyUSB0
    baud: 19200
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 203.0, cfg.PrintDPI)
	assert.Equal(t, 96.0, cfg.PreviewDPI)
	require.Len(t, cfg.Printers, 2)
	assert.Equal(t, printer.Target{Name: "bench", Type: printer.TypeSerial, Address: "/dev/ttyUSB0", Baud: 19200}, cfg.Printers[1])
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":            "9000",
		"LABEL_WORKERS":   "2",
		"LABEL_PRINT_DPI": "600",
		"LABEL_DATA_DIR":  "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 600.0, cfg.PrintDPI)
	assert.Equal(t, "", cfg.DataDir)

	env["LABEL_WORKERS"] = "many"
	assert.Error(t, cfg.applyEnv(lookup))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.PrintDPI = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Workers = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxDPI = 200
	assert.Error(t, cfg.Validate(), "print dpi above the maximum")
}
