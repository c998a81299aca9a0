// Package fonts resolves font families to font faces. Parsed fonts are shared;
// faces are created per call because a font.Face must not be used from more
// than one goroutine.
package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/flanksource/commons/logger"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	WeightNormal = "normal"
	WeightBold   = "bold"
)

// systemFonts are tried for named families that are not registered anywhere.
var systemFonts = []string{
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"C:\\Windows\\Fonts\\arial.ttf",
}

// Registry caches parsed fonts by path.
type Registry struct {
	mu     sync.RWMutex
	parsed map[string]*truetype.Font
	dirs   []string
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns a registry without font directories.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry that also looks for <family>.ttf and
// <family>-bold.ttf in dirs.
func NewRegistry(dirs ...string) *Registry {
	r := &Registry{
		parsed: make(map[string]*truetype.Font),
		dirs:   dirs,
	}
	r.parsed["go-regular"] = mustParse(goregular.TTF)
	r.parsed["go-bold"] = mustParse(gobold.TTF)
	return r
}

func mustParse(ttf []byte) *truetype.Font {
	f, err := truetype.Parse(ttf)
	if err != nil {
		panic(fmt.Sprintf("embedded font: %v", err))
	}
	return f
}

// Face returns a face of sizePx pixels. families maps family names to font files
// (a template's font table). The default family, and anything that cannot be
// loaded, uses the embedded Go fonts so output does not depend on the host.
func (r *Registry) Face(families map[string]string, family, weight string, sizePx float64) font.Face {
	if sizePx <= 0 {
		sizePx = 1
	}
	f := r.lookup(families, family, weight)
	return truetype.NewFace(f, &truetype.Options{Size: sizePx, DPI: 72, Hinting: font.HintingNone})
}

func (r *Registry) lookup(families map[string]string, family, weight string) *truetype.Font {
	fallback := r.parsed["go-regular"]
	if weight == WeightBold {
		fallback = r.parsed["go-bold"]
	}
	if family == "" || family == "default" {
		if path, ok := families["default"]; ok {
			if f := r.load(path); f != nil {
				return f
			}
		}
		return fallback
	}

	for _, path := range r.candidates(families, family, weight) {
		if f := r.load(path); f != nil {
			return f
		}
	}
	logger.Debugf("font family %q not found, using embedded font", family)
	return fallback
}

func (r *Registry) candidates(families map[string]string, family, weight string) []string {
	var paths []string
	if weight == WeightBold {
		if p, ok := families[family+"-bold"]; ok {
			paths = append(paths, p)
		}
	}
	if p, ok := families[family]; ok {
		paths = append(paths, p)
	}
	name := strings.ToLower(family)
	for _, dir := range r.dirs {
		if weight == WeightBold {
			paths = append(paths, filepath.Join(dir, name+"-bold.ttf"))
		}
		paths = append(paths, filepath.Join(dir, name+".ttf"))
	}
	return append(paths, systemFonts...)
}

func (r *Registry) load(path string) *truetype.Font {
	r.mu.RLock()
	f, ok := r.parsed[path]
	r.mu.RUnlock()
	if ok {
		return f
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	f, err = truetype.Parse(data)
	if err != nil {
		logger.Warnf("failed to parse font %s: %v", path, err)
		return nil
	}

	r.mu.Lock()
	r.parsed[path] = f
	r.mu.Unlock()
	return f
}
