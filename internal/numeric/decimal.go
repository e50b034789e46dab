// Package numeric converts between float64 values and the fixed-point
// decimal text the database stores in NUMERIC(precision, scale) columns.
package numeric

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNotFinite is returned when encoding NaN or an infinity.
	ErrNotFinite = errors.New("value is not a finite number")
	// ErrOverflow is returned when the integer part does not fit the column.
	ErrOverflow = errors.New("value exceeds column precision")
	// ErrMalformed is returned when stored text is not a decimal number.
	ErrMalformed = errors.New("malformed decimal text")
)

// Decimal describes a NUMERIC(Precision, Scale) column.
type Decimal struct {
	Precision int
	Scale     int
}

// Columns declared by the schema.
var (
	Coordinate  = Decimal{Precision: 10, Scale: 7}
	Temperature = Decimal{Precision: 5, Scale: 2}
	Pressure    = Decimal{Precision: 7, Scale: 2}
	WindSpeed   = Decimal{Precision: 5, Scale: 2}
	Visibility  = Decimal{Precision: 5, Scale: 2}
)

// Unit returns the rounding unit of the column, 10^-Scale.
func (d Decimal) Unit() float64 {
	return math.Pow10(-d.Scale)
}

// Encode renders v with exactly Scale fractional digits. Digits beyond the
// scale are rounded; an integer part wider than Precision-Scale is an error.
func (d Decimal) Encode(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", ErrNotFinite
	}

	s := strconv.FormatFloat(v, 'f', d.Scale, 64)

	intPart := strings.TrimPrefix(s, "-")
	if i := strings.IndexByte(intPart, '.'); i >= 0 {
		intPart = intPart[:i]
	}
	intPart = strings.TrimLeft(intPart, "0")
	if len(intPart) > d.Precision-d.Scale {
		return "", fmt.Errorf("%w: %s does not fit NUMERIC(%d,%d)", ErrOverflow, s, d.Precision, d.Scale)
	}

	return s, nil
}

// Decode parses stored decimal text back to a float64.
func (d Decimal) Decode(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrMalformed)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return v, nil
}
