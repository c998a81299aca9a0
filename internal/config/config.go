// Package config loads the service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/thereceipt/label-engine/internal/printer"
)

// Config is the label service configuration.
type Config struct {
	Port        string           `yaml:"port"`
	DataDir     string           `yaml:"dataDir"`
	Workers     int              `yaml:"workers"`
	PreviewDPI  float64          `yaml:"previewDPI"`
	PrintDPI    float64          `yaml:"printDPI"`
	MaxDPI      float64          `yaml:"maxDPI"`
	MaxUploadMB int              `yaml:"maxUploadMB"`
	FontsDir    string           `yaml:"fontsDir"`
	AssetsDir   string           `yaml:"assetsDir"` // image files templates may reference
	Printers    []printer.Target `yaml:"printers"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:        "12212",
		DataDir:     "data",
		Workers:     0,
		PreviewDPI:  96,
		PrintDPI:    300,
		MaxDPI:      1200,
		MaxUploadMB: 20,
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Port = v
	}
	if v, ok := lookup("LABEL_DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := lookup("LABEL_FONTS_DIR"); ok {
		c.FontsDir = v
	}
	if v, ok := lookup("LABEL_ASSETS_DIR"); ok {
		c.AssetsDir = v
	}
	if v, ok := lookup("LABEL_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LABEL_WORKERS: %w", err)
		}
		c.Workers = n
	}
	for key, dst := range map[string]*float64{
		"LABEL_PRINT_DPI":   &c.PrintDPI,
		"LABEL_PREVIEW_DPI": &c.PreviewDPI,
		"LABEL_MAX_DPI":     &c.MaxDPI,
	} {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}
	return nil
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.PreviewDPI <= 0 || c.PrintDPI <= 0 || c.MaxDPI <= 0 {
		return fmt.Errorf("dpi must be positive (preview %g, print %g, max %g)", c.PreviewDPI, c.PrintDPI, c.MaxDPI)
	}
	if c.PreviewDPI > c.MaxDPI || c.PrintDPI > c.MaxDPI {
		return fmt.Errorf("dpi must not exceed maxDPI %g (preview %g, print %g)", c.MaxDPI, c.PreviewDPI, c.PrintDPI)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("maxUploadMB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}
