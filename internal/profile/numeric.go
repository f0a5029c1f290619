package profile

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jkramsay/flat-file-manager/internal/tabular"
)

// precisionAndScale converts each value's literal text to an exact decimal
// and returns the maximum digit count and the maximum fractional digit
// count. A value's digit count is never below its own scale, so "0.05"
// counts as two digits.
func precisionAndScale(cells []tabular.Cell) (precision, scale int) {
	for _, c := range cells {
		d, err := decimal.NewFromString(strings.TrimSpace(c.Raw))
		if err != nil {
			f, ok := c.Value.(float64)
			if !ok {
				continue
			}
			d = decimal.NewFromFloat(f)
		}
		digits := len(d.Coefficient().String())
		if d.Sign() < 0 {
			digits--
		}
		s := 0
		switch exp := d.Exponent(); {
		case exp < 0:
			s = int(-exp)
		case exp > 0:
			digits += int(exp)
		}
		if digits < s {
			digits = s
		}
		if digits > precision {
			precision = digits
		}
		if s > scale {
			scale = s
		}
	}
	return precision, scale
}
