package labelformat

import (
	"math"
	"strconv"
	"strings"
)

type QuantityPolicy string

const (
	QuantityColumn QuantityPolicy = "column"
	QuantityFixed  QuantityPolicy = "fixed"
	QuantityManual QuantityPolicy = "manual"
)

// QuantityPlan decides how many copies of each row are printed. A result of
// zero or less skips the row.
type QuantityPlan struct {
	Type   QuantityPolicy `json:"type" yaml:"type"`
	Column string         `json:"column,omitempty" yaml:"column,omitempty"`
	Fixed  int            `json:"fixedQuantity,omitempty" yaml:"fixedQuantity,omitempty"`
	Manual map[int]int    `json:"manual,omitempty" yaml:"manual,omitempty"` // row index -> copies
}

// DefaultQuantity prints every row once.
func DefaultQuantity() QuantityPlan {
	return QuantityPlan{Type: QuantityFixed, Fixed: 1}
}

// For returns the copy count for the row at index.
func (q QuantityPlan) For(index int, row DataRow) int {
	switch q.Type {
	case QuantityColumn:
		s, ok := row.String(q.Column)
		if !ok {
			return 1
		}
		n, ok := parseQuantity(s)
		if !ok {
			return 1
		}
		return n
	case QuantityFixed:
		return q.Fixed
	case QuantityManual:
		if n, ok := q.Manual[index]; ok {
			return n
		}
		return 1
	default:
		return 1
	}
}

// Total sums the copies over rows, counting skipped rows as zero.
func (q QuantityPlan) Total(rows []DataRow) int {
	total := 0
	for i, row := range rows {
		if n := q.For(i, row); n > 0 {
			total += n
		}
	}
	return total
}

// parseQuantity accepts integers and integral decimals such as "3.0", which is
// how spreadsheets often export whole numbers. Values outside the int range
// are parse failures.
func parseQuantity(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt || f >= math.MaxInt {
		return 0, false
	}
	return int(f), true
}
