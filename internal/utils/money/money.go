// Package money converts between the decimal text stored on records and integer cents.
package money

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxSafeCents is the largest integer that survives a round trip through a JavaScript number.
const MaxSafeCents int64 = 1<<53 - 1

var (
	ErrEmpty           = errors.New("amount is empty")
	ErrInvalidFormat   = errors.New("amount is not a valid number")
	ErrTooManyDecimals = errors.New("amount has more than two decimal digits")
	ErrOutOfRange      = errors.New("amount is out of range")
)

var amountPattern = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

var currencySymbols = strings.NewReplacer("$", "", "€", "", "£", "", ",", "")

// ParseCents parses a user-entered amount into cents.
// Currency symbols, thousands separators and whitespace are ignored; "(12.50)" and "-12.50" are negative.
// maxAbsCents <= 0 disables the configured ceiling (the safe-integer bound still applies).
func ParseCents(raw string, maxAbsCents int64) (int64, error) {
	s := strings.Join(strings.Fields(currencySymbols.Replace(raw)), "")
	if s == "" {
		return 0, ErrEmpty
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	switch {
	case strings.HasPrefix(s, "-"):
		if negative {
			return 0, ErrInvalidFormat
		}
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	if !amountPattern.MatchString(s) {
		return 0, ErrInvalidFormat
	}
	if dot := strings.IndexByte(s, '.'); dot >= 0 && len(s)-dot-1 > 2 {
		return 0, ErrTooManyDecimals
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidFormat
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(decimal.NewFromInt(MaxSafeCents)) {
		return 0, ErrOutOfRange
	}
	value := cents.IntPart()
	if maxAbsCents > 0 && value > maxAbsCents {
		return 0, ErrOutOfRange
	}
	if negative {
		value = -value
	}
	return value, nil
}

// FormatCents renders cents as fixed two-decimal text, e.g. 123450 -> "1234.50".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Normalize parses and re-renders an amount in canonical form.
func Normalize(raw string, maxAbsCents int64) (string, int64, error) {
	cents, err := ParseCents(raw, maxAbsCents)
	if err != nil {
		return "", 0, err
	}
	return FormatCents(cents), cents, nil
}
