package parse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNumericFormat reports a numeric token that could not be parsed. Callers
// treat it as "not a number here" and skip the line, never as a fatal error.
var ErrNumericFormat = errors.New("malformed numeric token")

// ParseDecimal parses a Swedish-formatted decimal string ("15,90") into an
// exact decimal. Point separators are accepted too, since some extracted
// fields already carry them.
func ParseDecimal(s string) (decimal.Decimal, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrNumericFormat, s)
	}
	return d, nil
}
