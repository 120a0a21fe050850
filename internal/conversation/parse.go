package conversation

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the only accepted timestamp format (YYYY-MM-DD HH:MM).
const TimestampLayout = "2006-01-02 15:04"

// costPattern accepts plain digits with an optional fraction. Exponent forms
// are rejected because they expand to arbitrarily many digits on storage.
var costPattern = regexp.MustCompile(`^[0-9]{1,12}(\.[0-9]{1,6})?$`)

var (
	errTimestampFormat = errors.New("timestamp must match YYYY-MM-DD HH:MM")
	errCostFormat      = errors.New("cost must be a decimal number")
	errCostNegative    = errors.New("cost must not be negative")
)

// ParseTimestamp parses a naive wall-clock timestamp. Surrounding whitespace
// is ignored.
func ParseTimestamp(input string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, strings.TrimSpace(input))
	if err != nil {
		return time.Time{}, errTimestampFormat
	}
	return t, nil
}

// ParseCost parses a non-negative decimal amount written as plain digits
// with an optional fraction. Surrounding whitespace is ignored.
func ParseCost(input string) (decimal.Decimal, error) {
	text := strings.TrimSpace(input)
	digits := strings.TrimPrefix(text, "-")
	if !costPattern.MatchString(digits) {
		return decimal.Zero, errCostFormat
	}
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, errCostFormat
	}
	if digits != text && !d.IsZero() {
		return decimal.Zero, errCostNegative
	}
	return d, nil
}
