// Package printer sends rendered labels to ESC/POS label printers over TCP or
// a serial port.
package printer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/flanksource/commons/logger"
)

var log = logger.GetLogger("printer")

// ErrUnknownPrinter is returned for printer names that are not configured.
var ErrUnknownPrinter = errors.New("unknown printer")

const (
	TypeNetwork = "network"
	TypeSerial  = "serial"
)

// Target is a configured printer.
type Target struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`       // network or serial
	Address string `json:"address" yaml:"address"` // host[:port] or device path
	Baud    int    `json:"baud,omitempty" yaml:"baud,omitempty"`
	Cut     bool   `json:"cut,omitempty" yaml:"cut,omitempty"` // cut after each label
}

// Dial opens a connection to t.
func Dial(t Target) (Connection, error) {
	switch t.Type {
	case TypeNetwork:
		return ConnectNetwork(t.Address)
	case TypeSerial:
		return ConnectSerial(t.Address, t.Baud)
	default:
		return nil, fmt.Errorf("printer '%s': unsupported type '%s'", t.Name, t.Type)
	}
}

// Manager holds the configured printers by name.
type Manager struct {
	targets map[string]Target
	dial    func(Target) (Connection, error)
	mu      sync.RWMutex
}

// NewManager creates a manager for targets. Names must be unique.
func NewManager(targets []Target) (*Manager, error) {
	m := &Manager{targets: make(map[string]Target), dial: Dial}
	for _, t := range targets {
		if err := m.Add(t); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add registers t.
func (m *Manager) Add(t Target) error {
	if t.Name == "" {
		return errors.New("printer name is required")
	}
	if t.Type != TypeNetwork && t.Type != TypeSerial {
		return fmt.Errorf("printer '%s': type must be %s or %s", t.Name, TypeNetwork, TypeSerial)
	}
	if t.Address == "" {
		return fmt.Errorf("printer '%s': address is required", t.Name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.targets[t.Name]; exists {
		return fmt.Errorf("printer '%s' is configured twice", t.Name)
	}
	m.targets[t.Name] = t
	return nil
}

// List returns the configured printers sorted by name.
func (m *Manager) List() []Target {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Target, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Print sends every image to the named printer over one connection.
// Cancellation is checked between labels; progress is called after each.
func (m *Manager) Print(ctx context.Context, name string, imgs []image.Image, progress func(done, total int)) error {
	m.mu.RLock()
	t, ok := m.targets[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPrinter, name)
	}

	conn, err := m.dial(t)
	if err != nil {
		return err
	}
	defer conn.Close()

	for i, img := range imgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := conn.Write(EncodeLabel(img, t.Cut)); err != nil {
			return fmt.Errorf("failed to send label %d to '%s': %w", i+1, name, err)
		}
		if progress != nil {
			progress(i+1, len(imgs))
		}
	}
	log.Infof("sent %d labels to '%s'", len(imgs), name)
	return nil
}

// SerialPorts lists device paths that may be serial printers on this host.
func SerialPorts() []string {
	var patterns []string
	switch runtime.GOOS {
	case "darwin":
		patterns = []string{"/dev/cu.*"}
	case "linux":
		patterns = []string{"/dev/ttyUSB*", "/dev/ttyACM*"}
	case "windows":
		ports := make([]string, 0, 16)
		for i := 1; i <= 16; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
		return ports
	}

	var ports []string
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(pattern)
		for _, match := range matches {
			if strings.Contains(match, "Bluetooth") || strings.Contains(match, "debug-console") {
				continue
			}
			ports = append(ports, match)
		}
	}
	return ports
}
