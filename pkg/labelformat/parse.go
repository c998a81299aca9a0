package labelformat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tiendc/go-deepcopy"
	"gopkg.in/yaml.v3"
)

const CurrentVersion = "1.0"

// Parse parses a .label file from a JSON byte slice
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if err := Validate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseYAML parses a template written in YAML
func ParseYAML(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if err := Validate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseFile parses a template from disk. Files ending in .yaml or .yml are
// read as YAML, everything else as JSON.
func ParseFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Parse(data)
	}
}

// New returns an empty absolute-mode template of the given size in inches.
func New(name string, width, height float64) *Template {
	return &Template{
		Version:    CurrentVersion,
		Name:       name,
		Width:      width,
		Height:     height,
		LayoutMode: LayoutAbsolute,
		Elements:   []Element{},
	}
}

// Clone returns a deep copy. Exports render from a clone so that edits made
// while a batch runs are not observed.
func (t *Template) Clone() (*Template, error) {
	var out Template
	if err := deepcopy.Copy(&out, *t); err != nil {
		return nil, fmt.Errorf("failed to copy template: %w", err)
	}
	return &out, nil
}

// ToJSON converts a Template to JSON bytes
func (t *Template) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

func (t *Template) ToYAML() ([]byte, error) {
	return yaml.Marshal(t)
}

// SaveToFile saves a Template to a file, as YAML when the extension asks for it
func (t *Template) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = t.ToYAML()
	default:
		data, err = t.ToJSON()
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
