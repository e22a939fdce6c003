package cushion

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// plainNumber is what remains of a user entry once separators are normalized.
var plainNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)

// ParseAmount parses a user-entered number.
//
// Space-like characters are thousands separators and are dropped. Both ','
// and '.' are accepted as decimal separator; when both appear, the last one
// is the decimal separator and the other one a thousands separator.
// Non-finite values (NaN, Inf) and malformed entries are refused.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}

	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	if !plainNumber.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, raw, err)
	}
	return d, nil
}

// ParsePositive is like ParseAmount but refuses values lower or equal to zero.
func ParsePositive(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return d, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrInvalidAmount, d)
	}
	return d, nil
}

// ParseText normalizes free text: trimmed, inner whitespace collapsed.
func ParseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ValidateCurrency checks that code is a known 3-letter upper case currency code.
func ValidateCurrency(code string) error {
	if len(code) != 3 || strings.ToUpper(code) != code {
		return fmt.Errorf("%w: %q is not a 3-letter upper case code", ErrInvalidCurrency, code)
	}
	if money.GetCurrency(code) == nil {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidCurrency, code)
	}
	return nil
}

// FormatAmount formats v for display: a space as thousands separator, a comma
// as decimal separator, at most two decimals with trailing zeros trimmed but
// at least one decimal digit. A non empty currency is appended as a suffix.
func FormatAmount(v decimal.Decimal, currency string) string {
	r := v.Round(2)
	fraction := 2
	if tenth := r.Shift(1); tenth.Equal(tenth.Truncate(0)) {
		fraction = 1
	}
	template := "1"
	if currency != "" {
		template = "1 $"
	}
	f := money.NewFormatter(fraction, ",", " ", currency, template)
	return f.Format(r.Shift(int32(fraction)).IntPart())
}
