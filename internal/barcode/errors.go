package barcode

import (
	"fmt"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// Kind classifies why a value cannot be encoded.
type Kind string

const (
	InvalidFormat    Kind = "invalid_format"
	ChecksumMismatch Kind = "checksum_mismatch"
	InvalidCharset   Kind = "invalid_charset"
	InvalidLength    Kind = "invalid_length"
)

// Error is returned by Normalize and Generate. Render recovers from it by
// drawing a placeholder.
type Error struct {
	Kind      Kind
	Symbology labelformat.Symbology
	Value     string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s barcode %q: %s", e.Symbology, e.Value, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, sym labelformat.Symbology, value string, err error) *Error {
	return &Error{Kind: kind, Symbology: sym, Value: value, Err: err}
}
