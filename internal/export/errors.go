package export

import (
	"errors"
	"fmt"
)

// ErrCancelled is wrapped by every error returned for a cancelled export.
var ErrCancelled = errors.New("export cancelled")

// ConfigError reports export settings that cannot produce a document, such
// as a label larger than the printable page area.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid export configuration: " + e.Reason
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IOError wraps a failure writing an export artifact.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
