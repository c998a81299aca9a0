// Package barcode validates barcode values and draws barcode symbols.
package barcode

import (
	"fmt"
	"strings"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

const maxCode128Length = 80

// Encoded is a value ready for the symbol encoder. Symbology may differ from the
// requested one when a fallback applied.
type Encoded struct {
	Value     string
	Symbology labelformat.Symbology
	Fallback  bool
}

// CheckDigit computes the EAN-13 check digit of a 12-digit string. Weights
// alternate 1,3 starting at the first digit.
func CheckDigit(digits string) (int, error) {
	if len(digits) != 12 || !isDigits(digits) {
		return 0, fmt.Errorf("check digit needs 12 digits, got %q", digits)
	}
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(digits[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += 3 * d
		}
	}
	return (10 - sum%10) % 10, nil
}

// ValidEAN13 reports whether code is 13 digits with a correct check digit.
func ValidEAN13(code string) bool {
	if len(code) != 13 || !isDigits(code) {
		return false
	}
	check, err := CheckDigit(code[:12])
	if err != nil {
		return false
	}
	return int(code[12]-'0') == check
}

// Normalize applies the per-symbology input rules:
//
//	EAN13   <12 digits are left-padded with 0, 12 digits get a check digit,
//	        >13 digits are truncated to 13, and a 13-digit value with a wrong
//	        check digit (or any non-digit input) falls back to CODE128 of the
//	        raw value.
//	UPC_A   exactly 12 digits with a valid check digit, encoded as EAN-13
//	        with a leading 0. No fallback.
//	CODE39  A-Z 0-9 - . and space.
//	CODE128 printable ASCII, at most 80 characters.
//	ITF     digits only; odd lengths get a leading 0.
func Normalize(value string, sym labelformat.Symbology) (Encoded, error) {
	if value == "" {
		return Encoded{}, newError(InvalidLength, sym, value, fmt.Errorf("empty value"))
	}

	switch sym {
	case labelformat.EAN13:
		return normalizeEAN13(value)
	case labelformat.UPCA:
		if len(value) != 12 || !isDigits(value) {
			return Encoded{}, newError(InvalidFormat, sym, value, fmt.Errorf("UPC-A requires exactly 12 digits"))
		}
		code := "0" + value
		if !ValidEAN13(code) {
			return Encoded{}, newError(ChecksumMismatch, sym, value, nil)
		}
		return Encoded{Value: code, Symbology: labelformat.EAN13}, nil
	case labelformat.CODE39:
		for _, r := range value {
			if !isCode39(r) {
				return Encoded{}, newError(InvalidCharset, sym, value, fmt.Errorf("character %q not allowed", r))
			}
		}
		return Encoded{Value: value, Symbology: sym}, nil
	case labelformat.CODE128:
		return normalizeCode128(value, sym)
	case labelformat.ITF:
		if !isDigits(value) {
			return Encoded{}, newError(InvalidCharset, sym, value, fmt.Errorf("ITF accepts digits only"))
		}
		if len(value)%2 == 1 {
			value = "0" + value
		}
		return Encoded{Value: value, Symbology: sym}, nil
	case labelformat.QR:
		return Encoded{Value: value, Symbology: sym}, nil
	default:
		return Encoded{}, newError(InvalidFormat, sym, value, fmt.Errorf("unsupported symbology"))
	}
}

func normalizeEAN13(raw string) (Encoded, error) {
	if !isDigits(raw) {
		return fallbackCode128(raw)
	}

	code := raw
	if len(code) > 13 {
		code = code[:13]
	}
	if len(code) < 12 {
		code = strings.Repeat("0", 12-len(code)) + code
	}
	if len(code) == 12 {
		check, _ := CheckDigit(code)
		return Encoded{Value: fmt.Sprintf("%s%d", code, check), Symbology: labelformat.EAN13}, nil
	}
	if !ValidEAN13(code) {
		return fallbackCode128(raw)
	}
	return Encoded{Value: code, Symbology: labelformat.EAN13}, nil
}

func fallbackCode128(raw string) (Encoded, error) {
	enc, err := normalizeCode128(raw, labelformat.EAN13)
	if err != nil {
		return Encoded{}, err
	}
	enc.Symbology = labelformat.CODE128
	enc.Fallback = true
	return enc, nil
}

func normalizeCode128(value string, sym labelformat.Symbology) (Encoded, error) {
	if len(value) > maxCode128Length {
		return Encoded{}, newError(InvalidLength, sym, value, fmt.Errorf("longer than %d characters", maxCode128Length))
	}
	for _, r := range value {
		if r < 0x20 || r > 0x7e {
			return Encoded{}, newError(InvalidCharset, sym, value, fmt.Errorf("character %q is not printable ASCII", r))
		}
	}
	return Encoded{Value: value, Symbology: labelformat.CODE128}, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isCode39(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '.', r == ' ':
		return true
	}
	return false
}

// SampleValue is a valid example value per symbology, used when a barcode has
// no data to show.
func SampleValue(sym labelformat.Symbology) string {
	switch sym {
	case labelformat.EAN13:
		return "1234567890123"
	case labelformat.CODE39:
		return "SAMPLE"
	case labelformat.UPCA:
		return "123456789012"
	case labelformat.ITF:
		return "12345678901234"
	case labelformat.QR:
		return "https://example.com"
	default:
		return "SAMPLE123"
	}
}
